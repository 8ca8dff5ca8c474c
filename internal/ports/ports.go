package ports

import (
	"context"
	"errors"
	"fmt"

	"paxreport/internal/domain"
)

// Tunnel is one ephemeral public endpoint forwarding to a local port.
type Tunnel interface {
	URL() string
	Close() error
}

// TunnelProvider opens public tunnels to local ports.
type TunnelProvider interface {
	Forward(ctx context.Context, port int) (Tunnel, error)
}

// ScanClient calls the remote scanning service against a public URL.
type ScanClient interface {
	Invoke(ctx context.Context, level domain.ScanLevel, tunnelURL string) (domain.ScanResult, error)
}

// Scanner runs scans end to end and records them under scanID.
type Scanner interface {
	ScanWithID(ctx context.Context, scanID string, port int, level string) (domain.ScanResult, error)
}

// Ingestor delivers activity updates to the report service.
type Ingestor interface {
	Post(ctx context.Context, env domain.UpdateEnvelope) (updateID string, err error)
}

// ScanClient failures. Implementations wrap these so the orchestrator can classify them.
var (
	ErrRemoteTimeout     = errors.New("remote scan timed out")
	ErrMalformedResponse = errors.New("malformed scan response")
)

// RemoteStatusError is a non-2xx reply from the scanning service. Body is kept verbatim.
type RemoteStatusError struct {
	Status int
	Body   string
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("scanner returned status %d: %s", e.Status, e.Body)
}

// Ingestor failures.
var (
	ErrIngestTimeout      = errors.New("ingestion request timed out")
	ErrIngestUnauthorized = errors.New("ingestion authentication failed")
)

// IngestStatusError is any ingestion reply other than 200 or 401. Body is kept verbatim.
type IngestStatusError struct {
	Status int
	Body   string
}

func (e *IngestStatusError) Error() string {
	return fmt.Sprintf("ingestion returned status %d: %s", e.Status, e.Body)
}
