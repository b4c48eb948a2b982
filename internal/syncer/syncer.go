// Package syncer keeps the directory's view of this server in step with the
// local roster. It owns the registration flag, runs the heartbeat loop and
// turns client lifecycle events into add_client/remove_client deltas.
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hscsupdater/internal/directory"
	"hscsupdater/internal/metrics"
	"hscsupdater/internal/roster"
)

// DefaultHeartbeatInterval is how often Run pings the directory.
const DefaultHeartbeatInterval = 4 * time.Second

// Directory is the subset of directory.Client the syncer needs.
type Directory interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, info roster.ServerInfo) error
	AddClient(ctx context.Context, c roster.Client) error
	RemoveClient(ctx context.Context, c roster.Client) error
}

// RosterSource lists the clients the game host currently has fully loaded.
type RosterSource interface {
	LoadedClients() []roster.Client
}

// Syncer owns the registration state and the roster it advertises.
type Syncer struct {
	// mu guards registered and every check-then-mutate sequence on store.
	// It is held across the register call so no lifecycle event can slip
	// between the snapshot and the state change.
	mu         sync.Mutex
	registered bool

	// gen changes on every registration transition. A delta only reaches the
	// directory if gen still matches the value captured when it was queued.
	gen atomic.Uint64
	// inflight is read-held by a delta while it is sent and write-held by
	// register, so a register never overlaps a delta from an older gen.
	inflight sync.RWMutex

	store    *roster.Store
	dir      Directory
	dispatch Dispatcher
	source   RosterSource
	filter   Filter
	interval time.Duration
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithRosterSource reseeds the roster from src before every registration.
func WithRosterSource(src RosterSource) Option {
	return func(s *Syncer) { s.source = src }
}

// WithFilter sets the admission filter applied to loaded clients and reseeds.
func WithFilter(f Filter) Option {
	return func(s *Syncer) { s.filter = f }
}

// WithInterval overrides DefaultHeartbeatInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// New returns an unregistered Syncer over store. Deltas are sent through dispatch.
func New(store *roster.Store, dir Directory, dispatch Dispatcher, log *zap.Logger, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		dir:      dir,
		dispatch: dispatch,
		interval: DefaultHeartbeatInterval,
		log:      log.Named("syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registered reports whether the last registration is still considered valid.
func (s *Syncer) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registered
}

// Run ticks the heartbeat immediately and then every interval until ctx is
// cancelled. A tick in progress is allowed to finish.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	tickCtx := context.WithoutCancel(ctx)
	for {
		s.safeTick(tickCtx)

		select {
		case <-ctx.Done():
			s.log.Info("heartbeat loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Syncer) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("heartbeat tick panicked", zap.Any("panic", r))
		}
	}()
	s.HeartbeatTick(ctx)
}

// HeartbeatTick pings the directory and registers if we are not registered.
func (s *Syncer) HeartbeatTick(ctx context.Context) {
	err := s.dir.Ping(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.metrics.Heartbeat(metrics.ResultFailed)
		if s.registered {
			s.log.Warn("lost contact with directory, registration dropped")
		}
		s.setRegistered(false)
		s.log.Error("failed to ping directory", zap.Error(err))
		return
	}
	s.metrics.Heartbeat(metrics.ResultOK)

	if s.registered {
		return
	}
	s.registerLocked(ctx)
}

// RegisterNow sends the full current state to the directory unless already registered.
func (s *Syncer) RegisterNow(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerLocked(ctx)
}

func (s *Syncer) registerLocked(ctx context.Context) {
	if s.registered {
		return
	}

	if s.source != nil {
		s.store.Reset(s.filter.apply(s.source.LoadedClients()))
	}
	info := s.store.Snapshot()
	s.metrics.SetRosterSize(len(info.Clients))

	s.inflight.Lock()
	defer s.inflight.Unlock()

	s.log.Info("registering server with directory",
		zap.String("server", info.ServerName),
		zap.Int("clients", len(info.Clients)))

	if err := s.dir.Register(ctx, info); err != nil {
		var rej *directory.RejectedError
		if errors.As(err, &rej) {
			s.metrics.Registration(metrics.ResultRejected)
			s.log.Error("directory rejected registration",
				zap.Int("status", rej.StatusCode),
				zap.String("reason", rej.Body))
		} else {
			s.metrics.Registration(metrics.ResultFailed)
			s.log.Error("failed to register server", zap.Error(err))
		}
		return
	}

	s.metrics.Registration(metrics.ResultOK)
	s.setRegistered(true)
	s.log.Info("registered server with directory")
}

func (s *Syncer) setRegistered(v bool) {
	if s.registered != v {
		s.gen.Add(1)
	}
	s.registered = v
	s.metrics.SetRegistered(v)
}

// OnClientLoaded records a client that finished loading and tells the directory.
func (s *Syncer) OnClientLoaded(c roster.Client) {
	log := s.log.With(zap.String("client", c.Name), zap.String("steam_id", c.SteamID))
	if !s.filter.Admit(c) {
		log.Debug("ignoring synthetic or anonymous client")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.registered {
		log.Debug("not registered, ignoring loaded client")
		return
	}

	s.store.Upsert(c)
	s.metrics.SetRosterSize(s.store.Len())
	log.Info("client loaded", zap.String("car", c.Car))

	s.send("add_client", c, s.dir.AddClient)
}

// OnClientDisconnected drops a client from the roster. The directory is only
// told when we are registered; the local roster is updated either way.
func (s *Syncer) OnClientDisconnected(c roster.Client) {
	log := s.log.With(zap.String("client", c.Name), zap.String("steam_id", c.SteamID))

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.store.Remove(c.SteamID)
	if err != nil {
		log.Warn("disconnect for client not in roster", zap.Error(err))
		return
	}
	s.metrics.SetRosterSize(s.store.Len())

	if !s.registered {
		log.Info("client disconnected while unregistered, directory not notified")
		return
	}
	log.Info("client disconnected")

	s.send("remove_client", stored, s.dir.RemoveClient)
}

func (s *Syncer) send(op string, c roster.Client, call func(context.Context, roster.Client) error) {
	gen := s.gen.Load()
	ok := s.dispatch.Dispatch(op, func(ctx context.Context) {
		log := s.log.With(zap.String("op", op), zap.String("steam_id", c.SteamID))

		s.inflight.RLock()
		defer s.inflight.RUnlock()
		if s.gen.Load() != gen {
			s.metrics.Delta(op, metrics.ResultSuperseded)
			log.Debug("registration changed since update was queued, skipping")
			return
		}

		err := call(ctx, c)
		var rej *directory.RejectedError
		switch {
		case err == nil:
			s.metrics.Delta(op, metrics.ResultOK)
		case errors.As(err, &rej):
			s.metrics.Delta(op, metrics.ResultRejected)
			log.Error("directory rejected roster update",
				zap.Int("status", rej.StatusCode),
				zap.String("reason", rej.Body))
		default:
			s.metrics.Delta(op, metrics.ResultFailed)
			log.Error("failed to send roster update", zap.Error(err))
		}
	})
	if !ok {
		s.metrics.Delta(op, metrics.ResultDropped)
	}
}
