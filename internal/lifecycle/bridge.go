// Package lifecycle connects game host events to the roster synchroniser.
package lifecycle

import (
	"hscsupdater/internal/host"
	"hscsupdater/internal/roster"
)

// Source is where host lifecycle events come from.
type Source interface {
	OnClientLoaded(fn func(host.Event))
	OnClientDisconnected(fn func(host.Event))
}

// Handler receives translated events; *syncer.Syncer implements it.
type Handler interface {
	OnClientLoaded(c roster.Client)
	OnClientDisconnected(c roster.Client)
}

// Bind subscribes h to src. It is called once at startup and never undone.
func Bind(src Source, h Handler) {
	src.OnClientLoaded(func(e host.Event) {
		h.OnClientLoaded(ToClient(e))
	})
	src.OnClientDisconnected(func(e host.Event) {
		h.OnClientDisconnected(ToClient(e))
	})
}

// ToClient converts a host event into the roster record the syncer stores.
func ToClient(e host.Event) roster.Client {
	return roster.Client{Name: e.Name, SteamID: e.SteamID, Car: e.Car}
}

// Lister reports the clients the host currently has loaded.
type Lister interface {
	Loaded() []host.Event
}

// RosterSource adapts a Lister to the syncer's reseed hook.
type RosterSource struct {
	Lister Lister
}

func (s RosterSource) LoadedClients() []roster.Client {
	events := s.Lister.Loaded()
	out := make([]roster.Client, 0, len(events))
	for _, e := range events {
		out = append(out, ToClient(e))
	}
	return out
}
