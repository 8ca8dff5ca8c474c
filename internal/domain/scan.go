package domain

import "time"

// ScanRequest is built once per scan call after validation.
type ScanRequest struct {
	Port  int
	Level ScanLevel
}

// ScanResult is the scanner's JSON object, passed through untouched apart
// from the annotation keys.
type ScanResult map[string]any

const (
	ResultKeyTunnelURL = "tunnel_url"
	ResultKeyLocalPort = "local_port"
)

// Annotate adds tunnel_url and local_port unless the scanner already reported them.
func (r ScanResult) Annotate(tunnelURL string, port int) {
	if _, ok := r[ResultKeyTunnelURL]; !ok {
		r[ResultKeyTunnelURL] = tunnelURL
	}
	if _, ok := r[ResultKeyLocalPort]; !ok {
		r[ResultKeyLocalPort] = port
	}
}

// Scan run statuses as stored in history.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ScanRun is the persisted record of one scan, synchronous or queued.
type ScanRun struct {
	ID           string
	Port         int
	Level        string
	Status       string
	TunnelDomain string
	Result       ScanResult
	ErrorKind    ErrorKind
	ErrorMessage string
	QueuedAt     time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}
