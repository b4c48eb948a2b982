// Package app assembles the sidecar with fx.
package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"hscsupdater/internal/config"
	"hscsupdater/internal/directory"
	"hscsupdater/internal/host"
	"hscsupdater/internal/httpapi"
	"hscsupdater/internal/lifecycle"
	"hscsupdater/internal/metrics"
	"hscsupdater/internal/roster"
	"hscsupdater/internal/syncer"
)

// Options returns everything needed to run the sidecar for cfg.
func Options(cfg config.Config, log *zap.Logger) fx.Option {
	return fx.Options(
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		Module,
	)
}

// Module provides the components. It expects config.Config and *zap.Logger.
var Module = fx.Module("hscsupdater",
	fx.Provide(
		newRegistry,
		newMetrics,
		newStore,
		newDirectory,
		newQueue,
		host.NewHub,
		newSyncer,
		newServer,
	),
	fx.Invoke(
		bindLifecycle,
		startQueue,
		startSyncer,
		startServer,
	),
)

func newRegistry() (*prometheus.Registry, prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, reg, reg
}

func newMetrics(reg prometheus.Registerer) *metrics.Metrics {
	return metrics.New(reg)
}

func newStore(cfg config.Config) *roster.Store {
	return roster.NewStore(cfg.Server.Name, cfg.Server.HTTPPort, cfg.Server.Track)
}

func newDirectory(cfg config.Config) *directory.Client {
	return directory.New(directory.Config{
		Address:        cfg.Directory.Address,
		Port:           cfg.Directory.Port,
		APIKey:         cfg.Directory.APIKey,
		ServerPort:     cfg.Server.Port,
		PingTimeout:    cfg.Sync.PingTimeout,
		RequestTimeout: cfg.Sync.RequestTimeout,
	})
}

func newQueue(cfg config.Config, log *zap.Logger) *syncer.Queue {
	return syncer.NewQueue(cfg.Sync.QueueSize, log)
}

func newSyncer(
	cfg config.Config,
	store *roster.Store,
	dir *directory.Client,
	queue *syncer.Queue,
	hub *host.Hub,
	m *metrics.Metrics,
	log *zap.Logger,
) (*syncer.Syncer, error) {
	filter, err := syncer.NewFilter(cfg.Sync.BotNamePattern)
	if err != nil {
		return nil, err
	}
	return syncer.New(store, dir, queue, log,
		syncer.WithFilter(filter),
		syncer.WithInterval(cfg.Sync.HeartbeatInterval),
		syncer.WithRosterSource(lifecycle.RosterSource{Lister: hub}),
		syncer.WithMetrics(m),
	), nil
}

func newServer(
	cfg config.Config,
	store *roster.Store,
	s *syncer.Syncer,
	hub *host.Hub,
	gatherer prometheus.Gatherer,
	log *zap.Logger,
) *httpapi.Server {
	api := &httpapi.API{
		Store:    store,
		Status:   s,
		Events:   hub,
		Gatherer: gatherer,
		Log:      log.Named("events"),
	}
	limiter := httpapi.NewIPLimiter(cfg.API.RateLimit, cfg.API.RateBurst)
	return httpapi.NewServer(cfg.API.ListenAddr, api, limiter, log)
}

func bindLifecycle(hub *host.Hub, s *syncer.Syncer) {
	lifecycle.Bind(hub, s)
}

func startQueue(lc fx.Lifecycle, q *syncer.Queue) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			q.Start()
			return nil
		},
		OnStop: q.Stop,
	})
}

func startSyncer(lc fx.Lifecycle, s *syncer.Syncer) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				s.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func startServer(lc fx.Lifecycle, srv *httpapi.Server) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return srv.Start() },
		OnStop:  srv.Stop,
	})
}
