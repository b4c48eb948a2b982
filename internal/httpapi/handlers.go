// Package httpapi serves the sidecar's local diagnostics and host event intake.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"hscsupdater/internal/host"
	"hscsupdater/internal/roster"
)

// Snapshotter provides the server info served by get_server_info.
type Snapshotter interface {
	Snapshot() roster.ServerInfo
}

// StatusProvider reports registration state.
type StatusProvider interface {
	Registered() bool
}

// EventSink accepts lifecycle events posted by the game host.
// ClientLoaded reports false when the client was never seen connecting.
type EventSink interface {
	ClientConnected(e host.Event)
	ClientLoaded(e host.Event) bool
	ClientDisconnected(e host.Event)
}

type API struct {
	Store    Snapshotter
	Status   StatusProvider
	Events   EventSink
	Gatherer prometheus.Gatherer
	Log      *zap.Logger
}

type statusResponse struct {
	Registered bool `json:"registered"`
	Clients    int  `json:"clients"`
}

// Routes registers every endpoint on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ping", a.ServePing)
	mux.HandleFunc("GET /api/v1/get_server_info", a.ServeServerInfo)
	mux.HandleFunc("GET /api/v1/status", a.ServeStatus)
	mux.HandleFunc("POST /api/v1/events/client_connected", a.serveEvent(accept(a.Events.ClientConnected)))
	mux.HandleFunc("POST /api/v1/events/client_loaded", a.serveEvent(a.Events.ClientLoaded))
	mux.HandleFunc("POST /api/v1/events/client_disconnected", a.serveEvent(accept(a.Events.ClientDisconnected)))
	if a.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(a.Gatherer, promhttp.HandlerOpts{}))
	}
}

// ServePing answers 200 with no body.
func (a *API) ServePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// ServeServerInfo responds with the current server snapshot in JSON.
func (a *API) ServeServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Store.Snapshot())
}

func (a *API) ServeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Registered: a.Status.Registered(),
		Clients:    len(a.Store.Snapshot().Clients),
	})
}

func accept(publish func(host.Event)) func(host.Event) bool {
	return func(e host.Event) bool {
		publish(e)
		return true
	}
}

// serveEvent answers 202 when publish took the event and 409 when it was refused.
func (a *API) serveEvent(publish func(host.Event) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e host.Event
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
		if err := dec.Decode(&e); err != nil {
			http.Error(w, "invalid event body", http.StatusBadRequest)
			return
		}
		if e.SteamID == "" && e.Name == "" {
			http.Error(w, "event needs a name or steam_id", http.StatusBadRequest)
			return
		}
		a.Log.Debug("host event", zap.String("path", r.URL.Path), zap.String("steam_id", e.SteamID))
		if !publish(e) {
			http.Error(w, "client has not connected", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
