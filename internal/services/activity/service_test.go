package activity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

type fakeIngestor struct {
	calls []domain.UpdateEnvelope
	id    string
	err   error
}

func (f *fakeIngestor) Post(ctx context.Context, env domain.UpdateEnvelope) (string, error) {
	f.calls = append(f.calls, env)
	return f.id, f.err
}

func newTestService(ing *fakeIngestor) *Service {
	logger, _ := logtest.NewNullLogger()
	s := New(ing, "claude-code", logger)
	s.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600)) }
	return s
}

func TestReportSuccess(t *testing.T) {
	ing := &fakeIngestor{id: "upd_1"}
	res := newTestService(ing).Report(context.Background(), UpdateRequest{
		UpdateType:   "code_written",
		Description:  "Implemented user authentication with JWT tokens",
		FilesChanged: []string{"src/auth/login.py"},
		Concepts:     []string{"JWT"},
	})

	assert.Equal(t, Result{
		Success:     true,
		Message:     "Update recorded successfully",
		UpdateID:    "upd_1",
		UpdateType:  "code_written",
		Description: "Implemented user authentication with JWT tokens",
	}, res)

	require.Len(t, ing.calls, 1)
	env := ing.calls[0]
	assert.Equal(t, "claude-code", env.Source)
	require.NotNil(t, env.CreatedAt)
	assert.Equal(t, time.UTC, env.CreatedAt.Location())
	assert.Equal(t, 10, env.CreatedAt.Hour())
	assert.Equal(t, []string{"src/auth/login.py"}, env.Payload.FilesChanged)
}

func TestReportInvalidTypeSendsNothing(t *testing.T) {
	ing := &fakeIngestor{}
	res := newTestService(ing).Report(context.Background(), UpdateRequest{UpdateType: "other", Description: "x"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid update_type 'other'")
	assert.Len(t, res.ValidTypes, 5)
	assert.Equal(t, "Bug fixes or issue resolutions", res.ValidTypes["bug_fix"])
	assert.Empty(t, ing.calls)
}

func TestReportFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Result
	}{
		{
			name: "unauthorized",
			err:  ports.ErrIngestUnauthorized,
			want: Result{Error: "Authentication failed. Check your PAX_API_KEY.", StatusCode: 401},
		},
		{
			name: "status",
			err:  &ports.IngestStatusError{Status: 500, Body: "internal error"},
			want: Result{Error: "Failed to record update: internal error", StatusCode: 500},
		},
		{
			name: "timeout",
			err:  ports.ErrIngestTimeout,
			want: Result{Error: "Request timed out while recording update.", UpdateType: "learning"},
		},
		{
			name: "other",
			err:  errors.New("dial tcp: no such host"),
			want: Result{Error: "Error recording update: dial tcp: no such host", UpdateType: "learning"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestService(&fakeIngestor{err: tt.err}).Report(context.Background(), UpdateRequest{
				UpdateType:  "learning",
				Description: "Explained React hooks",
			})
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestBuildPayload(t *testing.T) {
	p := BuildPayload(UpdateRequest{UpdateType: "refactoring", Description: "d", FilesChanged: []string{}, Concepts: nil})
	assert.Nil(t, p.FilesChanged)
	assert.Nil(t, p.Concepts)
	assert.Empty(t, p.CodeSnippet)

	long := strings.Repeat("a", 600)
	p = BuildPayload(UpdateRequest{UpdateType: "refactoring", Description: "d", CodeSnippet: long})
	assert.Len(t, p.CodeSnippet, domain.MaxSnippetLen)

	short := "func main() {}"
	p = BuildPayload(UpdateRequest{UpdateType: "refactoring", Description: "d", CodeSnippet: short})
	assert.Equal(t, short, p.CodeSnippet)

	multi := strings.Repeat("é", 501)
	p = BuildPayload(UpdateRequest{UpdateType: "refactoring", Description: "d", CodeSnippet: multi})
	assert.Equal(t, 500, len([]rune(p.CodeSnippet)))
}

func TestUpdateTypesListing(t *testing.T) {
	l := UpdateTypesListing()
	require.Len(t, l.UpdateTypes, 5)
	for _, ut := range domain.UpdateTypes {
		info, ok := l.UpdateTypes[string(ut)]
		require.True(t, ok, string(ut))
		assert.NotEmpty(t, info.Description)
		assert.NotEmpty(t, info.WhenToUse)
		assert.NotEmpty(t, info.Example)
	}
	assert.Equal(t, UpdateRecommendation, l.Recommendation)
}
