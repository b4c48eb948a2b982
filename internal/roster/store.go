package roster

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Remove when no client is stored under the identity.
var ErrNotFound = errors.New("roster: client not found")

// Store is the in-memory source of truth for who is connected to this server.
type Store struct {
	mu   sync.Mutex
	info ServerInfo
}

// NewStore creates a store for one server. Only the roster changes afterwards.
func NewStore(name string, httpPort int, track string) *Store {
	return &Store{
		info: ServerInfo{
			ServerName: name,
			HTTPPort:   httpPort,
			TrackName:  track,
			Clients:    make(map[string]Client),
		},
	}
}

// Upsert inserts c or replaces the record already stored under c.SteamID.
func (s *Store) Upsert(c Client) {
	s.mu.Lock()
	s.info.Clients[c.SteamID] = c
	s.mu.Unlock()
}

// Remove deletes the client stored under id and returns it.
func (s *Store) Remove(id string) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.info.Clients[id]
	if !ok {
		return Client{}, ErrNotFound
	}
	delete(s.info.Clients, id)
	return c, nil
}

// Get returns the client stored under id, if any.
func (s *Store) Get(id string) (Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.info.Clients[id]
	return c, ok
}

// Len returns the number of clients in the roster.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.info.Clients)
}

// Reset replaces the whole roster. Clients without a SteamID are skipped.
func (s *Store) Reset(clients []Client) {
	next := make(map[string]Client, len(clients))
	for _, c := range clients {
		if c.SteamID == "" {
			continue
		}
		next[c.SteamID] = c
	}

	s.mu.Lock()
	s.info.Clients = next
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the server info safe to hand to other goroutines.
func (s *Store) Snapshot() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.info
	out.Clients = make(map[string]Client, len(s.info.Clients))
	for id, c := range s.info.Clients {
		out.Clients[id] = c
	}
	return out
}
