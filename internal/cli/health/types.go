// Package health provides the shared health-check response type exchanged
// between a running syncmld server and the "status --live" CLI check.
//
// Grounded on _teacher_ref/cli/health/types.go, unchanged: the response
// shape served by the transport's /health route and decoded by the CLI.
package health

// Response is the /health endpoint's JSON body.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}
