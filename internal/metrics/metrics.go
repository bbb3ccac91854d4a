// Package metrics provides Prometheus observability for the sync engine,
// grounded on this codebase's per-adapter metrics structs (internal/adapter/
// nlm.Metrics, internal/adapter/nsm.Metrics): a struct of prometheus
// collectors built and registered together in one constructor, with every
// method nil-receiver safe so a nil *Metrics (collection disabled) costs
// nothing at call sites.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks session- and command-level Prometheus metrics for the
// sync engine, all under the syncmld_ prefix.
type Metrics struct {
	SessionsTotal    *prometheus.CounterVec
	SessionDuration  *prometheus.HistogramVec
	ActiveSessions prometheus.Gauge

	CommandsTotal *prometheus.CounterVec

	MessageSize       *prometheus.HistogramVec
	LargeObjectsInFlight prometheus.Gauge

	ConflictsTotal *prometheus.CounterVec
}

// New creates sync-engine metrics registered against reg. Panics if
// registration fails (expected only during initialization).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncmld_sessions_total",
				Help: "Total sync sessions by final state",
			},
			[]string{"role", "final_state"},
		),
		SessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syncmld_session_duration_seconds",
				Help:    "Sync session duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"role"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncmld_active_sessions",
				Help: "Number of sessions currently in progress",
			},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncmld_commands_total",
				Help: "Total Add/Replace/Delete commands processed, by command and resulting status code",
			},
			[]string{"cmd", "status_code"},
		),
		MessageSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "syncmld_message_size_bytes",
				Help:    "Encoded outbound SyncML message size in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 2, 12),
			},
			[]string{"direction"}, // "outbound"
		),
		LargeObjectsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "syncmld_large_objects_in_flight",
				Help: "Number of chunked large-object transfers currently in progress",
			},
		),
		ConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncmld_conflicts_total",
				Help: "Total item conflicts by resolution outcome",
			},
			[]string{"outcome"}, // "local_wins", "remote_wins", "duplicate"
		),
	}

	reg.MustRegister(
		m.SessionsTotal,
		m.SessionDuration,
		m.ActiveSessions,
		m.CommandsTotal,
		m.MessageSize,
		m.LargeObjectsInFlight,
		m.ConflictsTotal,
	)

	return m
}

func (m *Metrics) RecordSession(role, finalState string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(role, finalState).Inc()
	m.SessionDuration.WithLabelValues(role).Observe(durationSeconds)
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) RecordCommand(cmd string, statusCode int) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(cmd, itoa(statusCode)).Inc()
}

func (m *Metrics) RecordMessageSize(direction string, bytes int) {
	if m == nil {
		return
	}
	m.MessageSize.WithLabelValues(direction).Observe(float64(bytes))
}

func (m *Metrics) LargeObjectStarted() {
	if m == nil {
		return
	}
	m.LargeObjectsInFlight.Inc()
}

func (m *Metrics) LargeObjectFinished() {
	if m == nil {
		return
	}
	m.LargeObjectsInFlight.Dec()
}

func (m *Metrics) RecordConflict(outcome string) {
	if m == nil {
		return
	}
	m.ConflictsTotal.WithLabelValues(outcome).Inc()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
