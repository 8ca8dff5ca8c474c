// Package ingest posts development activity updates to the report service.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

// DefaultTimeout bounds one ingestion request.
const DefaultTimeout = 30 * time.Second

// Client implements ports.Ingestor.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type ingestResponse struct {
	UpdateID json.RawMessage `json:"update_id"`
}

// Post sends env to {base}/ingest/updates and returns the assigned update id.
func (c *Client) Post(ctx context.Context, env domain.UpdateEnvelope) (string, error) {
	buf, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("encode update: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest/updates", bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("build ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ports.ErrIngestTimeout
		}
		return "", fmt.Errorf("ingest request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ports.ErrIngestTimeout
		}
		return "", fmt.Errorf("read ingest response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", ports.ErrIngestUnauthorized
	default:
		return "", &ports.IngestStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var out ingestResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode ingest response: %w", err)
	}
	return updateIDString(out.UpdateID), nil
}

// update_id may arrive as a string or a number.
func updateIDString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
