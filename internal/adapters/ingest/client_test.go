package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

func testEnvelope() domain.UpdateEnvelope {
	created := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
	return domain.UpdateEnvelope{
		Source: "claude-code",
		Payload: domain.UpdatePayload{
			Type:        domain.UpdateBugFix,
			Description: "Fixed race condition in database connection pool",
			Concepts:    []string{"concurrency"},
		},
		CreatedAt: &created,
	}
}

func TestPostSuccess(t *testing.T) {
	var (
		gotAuth, gotPath, gotCT string
		gotBody                 map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"update_id":"upd_123"}`))
	}))
	defer srv.Close()

	id, err := New(srv.URL, "secret-key").Post(context.Background(), testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, "upd_123", id)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "/ingest/updates", gotPath)
	assert.Equal(t, "application/json", gotCT)

	assert.Equal(t, "claude-code", gotBody["source"])
	assert.Equal(t, "2026-10-16T09:30:00Z", gotBody["created_at"])
	payload := gotBody["payload"].(map[string]any)
	assert.Equal(t, "bug_fix", payload["type"])
	assert.NotContains(t, payload, "files_changed")
	assert.NotContains(t, payload, "code_snippet")
}

func TestPostNumericUpdateID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"update_id":42}`))
	}))
	defer srv.Close()

	id, err := New(srv.URL, "k").Post(context.Background(), testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestPostUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "wrong").Post(context.Background(), testEnvelope())
	assert.ErrorIs(t, err, ports.ErrIngestUnauthorized)
}

func TestPostOtherStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"description required"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "k").Post(context.Background(), testEnvelope())
	var se *ports.IngestStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status)
	assert.Equal(t, `{"detail":"description required"}`, se.Body)
}

func TestPostTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, "k", WithTimeout(50*time.Millisecond)).Post(context.Background(), testEnvelope())
	assert.ErrorIs(t, err, ports.ErrIngestTimeout)
}

func TestDefaultTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, New("http://x", "k").timeout)
}
