package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Serve starts a /metrics HTTP server on the given port against reg,
// returning a shutdown func. Mirrors this codebase's InitializeMetrics +
// metrics-server bootstrap referenced from cmd_dittofs/main.go, adapted to
// a self-contained constructor since this codebase's own implementation
// wasn't part of the retrieved reference set.
func Serve(port int, reg *prometheus.Registry) (shutdown func(context.Context) error, err error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(50 * time.Millisecond):
	}

	return func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	}, nil
}
