package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

// Enqueue stores a queued scan and returns its id.
func (db *DB) Enqueue(ctx context.Context, port int, level string) (string, error) {
	var id string
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO scan_runs (port, level, status)
		VALUES ($1, $2, 'queued')
		RETURNING id::text
	`, port, level).Scan(&id)
	return id, err
}

// ClaimNext selects the oldest queued scan using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.ScanJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id::text, port, level FROM scan_runs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.Port, &job.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE scan_runs SET status = 'running', started_at = now() WHERE id = $1
	`, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, scanID string, tunnelDomain string, result domain.ScanResult) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		UPDATE scan_runs
		SET status = 'completed', tunnel_domain = NULLIF($2, ''), result = $3::jsonb, finished_at = now()
		WHERE id = $1
	`, scanID, tunnelDomain, string(raw))
	return err
}

func (db *DB) MarkFailed(ctx context.Context, scanID string, kind domain.ErrorKind, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE scan_runs
		SET status = 'failed', error_kind = $2, error_message = $3, finished_at = now()
		WHERE id = $1
	`, scanID, string(kind), reason)
	return err
}
