package httptransport

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/syncmld/internal/logger"
)

// healthResponse is the /health endpoint's wire shape. Deliberately not
// shared with internal/cli/health's decode-side type of the same shape:
// the two sides of this contract are kept decoupled the way this
// codebase's pkg/api response types and cli/health are, rather than
// coupling the transport to a CLI-only package.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
}

// SessionFactory starts a new server-role session bound to transport, for
// a device identified by remoteDevice. The factory is expected to launch
// its own goroutine driving Prepare/Receive/IngestMessage/finalize; it
// must not block.
type SessionFactory func(remoteDevice string, transport *ServerTransport)

// Registry dispatches an inbound SyncML POST to the ServerTransport of an
// already-running session, or starts one via factory on first contact.
type Registry struct {
	factory              SessionFactory
	maxTxSize, maxRxSize int64

	mu       sync.Mutex
	sessions map[string]*ServerTransport
}

// NewRegistry builds a Registry that starts sessions through factory,
// bounding every session's transport at maxTxSize/maxRxSize.
func NewRegistry(factory SessionFactory, maxTxSize, maxRxSize int64) *Registry {
	return &Registry{
		factory:   factory,
		maxTxSize: maxTxSize,
		maxRxSize: maxRxSize,
		sessions:  make(map[string]*ServerTransport),
	}
}

func (reg *Registry) transportFor(remoteDevice string) *ServerTransport {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if t, ok := reg.sessions[remoteDevice]; ok {
		return t
	}
	t := NewServerTransport(reg.maxTxSize, reg.maxRxSize)
	reg.sessions[remoteDevice] = t
	reg.factory(remoteDevice, t)
	return t
}

// Forget drops a finished session's transport so the next POST from that
// device starts a fresh session instead of reusing a closed one.
func (reg *Registry) Forget(remoteDevice string) {
	reg.mu.Lock()
	delete(reg.sessions, remoteDevice)
	reg.mu.Unlock()
}

// Router builds the chi router exposing the SyncML endpoint.
//
// Grounded on this codebase's pkg/api/router.go: the same RequestID/RealIP/
// Recoverer/Timeout middleware stack and a custom slog-backed request
// logger, narrowed to the POST endpoint a SyncML server needs plus a
// GET /health probe.
func Router(reg *Registry, startedAt time.Time) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(startedAt)
		resp := healthResponse{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
		resp.Data.Service = "syncmld"
		resp.Data.StartedAt = startedAt.UTC().Format(time.RFC3339)
		resp.Data.Uptime = uptime.String()
		resp.Data.UptimeSec = int64(uptime.Seconds())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Post("/syncml/{remoteDevice}", func(w http.ResponseWriter, r *http.Request) {
		remoteDevice := chi.URLParam(r, "remoteDevice")
		if remoteDevice == "" {
			http.Error(w, "missing remote device identifier", http.StatusBadRequest)
			return
		}
		reg.transportFor(remoteDevice).ServeHTTP(w, r)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Info("transport request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
