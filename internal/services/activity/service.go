package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

// UpdateRequest is the input of the report_update tool.
type UpdateRequest struct {
	UpdateType   string   `json:"update_type"`
	Description  string   `json:"description"`
	FilesChanged []string `json:"files_changed,omitempty"`
	Concepts     []string `json:"concepts,omitempty"`
	CodeSnippet  string   `json:"code_snippet,omitempty"`
}

// Result is always returned, success or not.
type Result struct {
	Success     bool              `json:"success,omitempty"`
	Message     string            `json:"message,omitempty"`
	UpdateID    string            `json:"update_id,omitempty"`
	UpdateType  string            `json:"update_type,omitempty"`
	Description string            `json:"description,omitempty"`
	Error       string            `json:"error,omitempty"`
	StatusCode  int               `json:"status_code,omitempty"`
	ValidTypes  map[string]string `json:"valid_types,omitempty"`
}

type Service struct {
	ingestor ports.Ingestor
	source   string
	now      func() time.Time
	log      logrus.FieldLogger
}

func New(ingestor ports.Ingestor, source string, log logrus.FieldLogger) *Service {
	return &Service{ingestor: ingestor, source: source, now: time.Now, log: log}
}

// Report validates and forwards one activity update.
func (s *Service) Report(ctx context.Context, req UpdateRequest) Result {
	ut := domain.UpdateType(req.UpdateType)
	if !ut.Valid() {
		return Result{
			Error:      fmt.Sprintf("Invalid update_type '%s'. Must be one of: %v", req.UpdateType, domain.UpdateTypes),
			ValidTypes: validTypes(),
		}
	}

	created := s.now().UTC()
	env := domain.UpdateEnvelope{
		Source:    s.source,
		Payload:   BuildPayload(req),
		CreatedAt: &created,
	}

	log := s.log.WithField("update_type", req.UpdateType)
	id, err := s.ingestor.Post(ctx, env)
	if err != nil {
		var status *ports.IngestStatusError
		switch {
		case errors.Is(err, ports.ErrIngestUnauthorized):
			log.Warn("ingestion rejected credentials")
			return Result{Error: "Authentication failed. Check your PAX_API_KEY.", StatusCode: 401}
		case errors.As(err, &status):
			log.WithField("status", status.Status).Warn("ingestion failed")
			return Result{Error: "Failed to record update: " + status.Body, StatusCode: status.Status}
		case errors.Is(err, ports.ErrIngestTimeout):
			log.Warn("ingestion timed out")
			return Result{Error: "Request timed out while recording update.", UpdateType: req.UpdateType}
		default:
			log.WithError(err).Error("ingestion failed")
			return Result{Error: "Error recording update: " + err.Error(), UpdateType: req.UpdateType}
		}
	}

	log.WithField("update_id", id).Info("update recorded")
	return Result{
		Success:     true,
		Message:     "Update recorded successfully",
		UpdateID:    id,
		UpdateType:  req.UpdateType,
		Description: req.Description,
	}
}

// BuildPayload drops empty optional fields and truncates the snippet.
func BuildPayload(req UpdateRequest) domain.UpdatePayload {
	p := domain.UpdatePayload{
		Type:        domain.UpdateType(req.UpdateType),
		Description: req.Description,
	}
	if len(req.FilesChanged) > 0 {
		p.FilesChanged = req.FilesChanged
	}
	if len(req.Concepts) > 0 {
		p.Concepts = req.Concepts
	}
	if req.CodeSnippet != "" {
		p.CodeSnippet = truncate(req.CodeSnippet, domain.MaxSnippetLen)
	}
	return p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func validTypes() map[string]string {
	out := make(map[string]string, len(typeInfo))
	for t, info := range typeInfo {
		out[string(t)] = info.Description
	}
	return out
}
