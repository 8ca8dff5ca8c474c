package ports

import (
	"context"
	"errors"

	"paxreport/internal/domain"
)

// ErrNotFound is returned by history lookups for unknown scan ids.
var ErrNotFound = errors.New("not found")

// ScanHistory records finished synchronous scans.
type ScanHistory interface {
	Record(ctx context.Context, run domain.ScanRun) error
}

// ScanJob is a queued asynchronous scan.
type ScanJob struct {
	ID    string
	Port  int
	Level string
}

// JobRepository supports queueing, claiming and finishing asynchronous scans.
type JobRepository interface {
	ScanHistory
	Enqueue(ctx context.Context, port int, level string) (scanID string, err error)
	ClaimNext(ctx context.Context) (job ScanJob, found bool, err error)
	MarkCompleted(ctx context.Context, scanID string, tunnelDomain string, result domain.ScanResult) error
	MarkFailed(ctx context.Context, scanID string, kind domain.ErrorKind, reason string) error
	Get(ctx context.Context, scanID string) (domain.ScanRun, error)
}

// NopHistory discards records. Used when no database is configured.
type NopHistory struct{}

func (NopHistory) Record(context.Context, domain.ScanRun) error { return nil }
