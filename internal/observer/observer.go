// Package observer implements session.Observer: the callback surface the
// Session Handler notifies on every state transition, terminal signal,
// and per-item/per-mapping/per-storage event. It fans each notification
// out to structured logging and Prometheus metrics.
//
// Grounded on _teacher_ref/metrics/nfs.go's NFSMetrics interface: an
// optional observability collaborator a protocol layer calls into by
// value, safe to pass nil to disable collection with zero overhead.
package observer

import (
	"strconv"
	"time"

	"github.com/marmos91/syncmld/internal/dsync/model"
	"github.com/marmos91/syncmld/internal/dsync/session"
	"github.com/marmos91/syncmld/internal/logger"
	"github.com/marmos91/syncmld/internal/metrics"
)

// Observer implements session.Observer, logging every event through
// internal/logger and, when m is non-nil, recording it against
// internal/metrics.
type Observer struct {
	role         string
	sessionID    string
	remoteDevice string
	metrics      *metrics.Metrics
	startedAt    time.Time
}

// New returns an Observer for one session. m may be nil to disable metrics
// collection; logging always happens.
func New(role model.Role, sessionID, remoteDevice string, m *metrics.Metrics) *Observer {
	roleStr := "client"
	if role == model.RoleServer {
		roleStr = "server"
	}
	if m != nil {
		m.ActiveSessions.Inc()
	}
	return &Observer{
		role:         roleStr,
		sessionID:    sessionID,
		remoteDevice: remoteDevice,
		metrics:      m,
		startedAt:    time.Now(),
	}
}

func (o *Observer) SyncStateChanged(state session.State) {
	logger.Info("sync state changed",
		logger.SessionID(o.sessionID),
		logger.RemoteDevice(o.remoteDevice),
		logger.State(state.String()))
}

func (o *Observer) SyncFinished(remoteDevice string, state session.State, description string) {
	logger.Info("sync finished",
		logger.SessionID(o.sessionID),
		logger.RemoteDevice(remoteDevice),
		logger.State(state.String()),
		logger.Errf("%s", description))

	if o.metrics == nil {
		return
	}
	o.metrics.ActiveSessions.Dec()
	o.metrics.SessionsTotal.WithLabelValues(o.role, state.String()).Inc()
	o.metrics.SessionDuration.WithLabelValues(o.role).Observe(time.Since(o.startedAt).Seconds())
}

func (o *Observer) ItemProcessed(sourceURI string, id model.ItemId, status model.ResponseStatusCode) {
	logger.Debug("item processed",
		logger.SessionID(o.sessionID),
		logger.SourceURI(sourceURI),
		logger.StatusCode(int(status)))

	if o.metrics == nil {
		return
	}
	o.metrics.CommandsTotal.WithLabelValues(id.CmdID, strconv.Itoa(int(status))).Inc()
}

func (o *Observer) NewItemWritten(sourceURI, localKey string) {
	logger.Debug("new item written",
		logger.SessionID(o.sessionID),
		logger.SourceURI(sourceURI))
}

func (o *Observer) NewMapWritten(sourceURI string, mapping model.UIDMapping) {
	logger.Debug("new mapping written",
		logger.SessionID(o.sessionID),
		logger.SourceURI(sourceURI))
}

func (o *Observer) StorageAcquired(sourceURI string) {
	logger.Info("storage acquired",
		logger.SessionID(o.sessionID),
		logger.SourceURI(sourceURI))
}
