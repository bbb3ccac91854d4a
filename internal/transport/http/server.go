package httptransport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/syncmld/internal/logger"
)

// Server is the HTTP listener hosting the SyncML transport endpoint.
//
// Grounded on this codebase's pkg/api.Server: an *http.Server wrapped with
// an idempotent graceful Start/Stop pair.
type Server struct {
	httpServer   *http.Server
	startedAt    time.Time
	shutdownOnce sync.Once
}

// NewServer builds a Server listening on listenAddress and routing through
// reg. startedAt is reported on the /health endpoint so a "status --live"
// check can compute uptime.
func NewServer(listenAddress string, reg *Registry, startedAt time.Time) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         listenAddress,
			Handler:      Router(reg, startedAt),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		startedAt: startedAt,
	}
}

// Start runs the listener until ctx is canceled, then shuts it down
// gracefully. It blocks for the lifetime of the server.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("transport server listening", "address", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("transport server failed: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("transport server shutdown: %w", err)
			return
		}
		logger.Info("transport server stopped gracefully")
	})
	return shutdownErr
}

// Port returns the listen address (host:port) the server is configured with.
func (s *Server) Port() string {
	return s.httpServer.Addr
}
