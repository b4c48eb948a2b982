package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server wraps the local API's http.Server.
type Server struct {
	srv     *http.Server
	limiter *IPLimiter
	log     *zap.Logger
	cancel  context.CancelFunc
}

func NewServer(addr string, api *API, limiter *IPLimiter, log *zap.Logger) *Server {
	mux := http.NewServeMux()
	api.Routes(mux)

	var h http.Handler = mux
	if limiter != nil {
		h = WithRateLimit(limiter, h)
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           WithCORS(h),
			ReadHeaderTimeout: 5 * time.Second,
		},
		limiter: limiter,
		log:     log.Named("httpapi"),
	}
}

// Handler exposes the full middleware chain, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	s.log.Info("local API listening", zap.String("addr", ln.Addr().String()))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.limiter != nil {
		go s.limiter.RunJanitor(ctx, 5*time.Minute, 10*time.Minute)
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("local API stopped", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.srv.Shutdown(ctx)
}
