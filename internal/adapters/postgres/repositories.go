package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

// Record inserts a finished synchronous scan.
func (db *DB) Record(ctx context.Context, run domain.ScanRun) error {
	var result *string
	if run.Result != nil {
		raw, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		s := string(raw)
		result = &s
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO scan_runs (id, port, level, status, tunnel_domain, result, error_kind, error_message, queued_at, started_at, finished_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6::jsonb, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)
	`, run.ID, run.Port, run.Level, run.Status, run.TunnelDomain, result,
		string(run.ErrorKind), run.ErrorMessage, run.QueuedAt, run.StartedAt, run.FinishedAt)
	return err
}

// Get loads one scan run by id.
func (db *DB) Get(ctx context.Context, scanID string) (domain.ScanRun, error) {
	var (
		run                           domain.ScanRun
		tunnelDomain, errKind, errMsg *string
		result                        []byte
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT id::text, port, level, status, tunnel_domain, result, error_kind, error_message, queued_at, started_at, finished_at
		FROM scan_runs WHERE id = $1
	`, scanID).Scan(&run.ID, &run.Port, &run.Level, &run.Status, &tunnelDomain, &result,
		&errKind, &errMsg, &run.QueuedAt, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return run, ports.ErrNotFound
	}
	if err != nil {
		return run, err
	}
	if tunnelDomain != nil {
		run.TunnelDomain = *tunnelDomain
	}
	if errKind != nil {
		run.ErrorKind = domain.ErrorKind(*errKind)
	}
	if errMsg != nil {
		run.ErrorMessage = *errMsg
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &run.Result); err != nil {
			return run, fmt.Errorf("decode result: %w", err)
		}
	}
	return run, nil
}
