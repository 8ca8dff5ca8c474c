package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
	"paxreport/internal/services/activity"
	"paxreport/internal/services/scanner"
)

// Reporter records development activity updates.
type Reporter interface {
	Report(ctx context.Context, req activity.UpdateRequest) activity.Result
}

// ScanIDHeader carries the history id of a synchronous scan, usable with GET /scans/{id}.
const ScanIDHeader = "X-Scan-ID"

type Options struct {
	ToolsToken       string
	RateLimitEnabled bool
	ScanRatePerMin   float64
}

// Server exposes the tool operations over HTTP.
type Server struct {
	scanner  ports.Scanner
	jobs     ports.JobRepository
	reporter Reporter
	opts     Options
	limiter  *ipRateLimiter
	log      logrus.FieldLogger
}

// New builds the server. jobs may be nil, which disables queued scans.
func New(scans ports.Scanner, jobs ports.JobRepository, reporter Reporter, opts Options, log logrus.FieldLogger) *Server {
	return &Server{
		scanner:  scans,
		jobs:     jobs,
		reporter: reporter,
		opts:     opts,
		limiter:  newIPRateLimiter(opts.RateLimitEnabled, opts.ScanRatePerMin, log),
		log:      log,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)

	r.Group(func(r chi.Router) {
		r.Use(requireToken(s.opts.ToolsToken))
		r.With(s.limiter.middleware("scan")).Post("/tools/scan", s.postScan)
		r.Get("/tools/scan-options", s.getScanOptions)
		r.Post("/tools/report-update", s.postReportUpdate)
		r.Get("/tools/update-types", s.getUpdateTypes)
		r.Get("/scans/{id}", s.getScan)
	})
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scanRequest struct {
	PortNum int     `json:"port_num"`
	Level   *string `json:"level"`
	Async   bool    `json:"async"`
}

type scanErrorBody struct {
	Error       string            `json:"error"`
	ErrorType   domain.ErrorKind  `json:"error_type"`
	Port        int               `json:"port"`
	Level       string            `json:"level"`
	StatusCode  int               `json:"status_code,omitempty"`
	Body        *string           `json:"body,omitempty"`
	ValidLevels map[string]string `json:"valid_levels,omitempty"`
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	level := domain.DefaultLevel.String()
	if req.Level != nil {
		level = *req.Level
	}

	if req.Async {
		s.enqueueScan(w, r, req.PortNum, level)
		return
	}

	scanID := uuid.NewString()
	if s.jobs != nil {
		w.Header().Set(ScanIDHeader, scanID)
	}
	result, err := s.scanner.ScanWithID(r.Context(), scanID, req.PortNum, level)
	if err != nil {
		writeJSON(w, http.StatusOK, scanErrorResponse(err, req.PortNum, level))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) enqueueScan(w http.ResponseWriter, r *http.Request, port int, level string) {
	if _, verr := scanner.Validate(port, level); verr != nil {
		writeJSON(w, http.StatusOK, scanErrorResponse(verr, port, level))
		return
	}
	if s.jobs == nil {
		writeJSON(w, http.StatusOK, scanErrorBody{
			Error:     "asynchronous scans require DATABASE_URL",
			ErrorType: domain.KindUnexpected,
			Port:      port,
			Level:     level,
		})
		return
	}
	id, err := s.jobs.Enqueue(r.Context(), port, level)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"port": port, "level": level}).Error("enqueue scan failed")
		writeJSON(w, http.StatusOK, scanErrorBody{
			Error:     "could not queue scan",
			ErrorType: domain.KindUnexpected,
			Port:      port,
			Level:     level,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"scan_id": id, "status": domain.StatusQueued})
}

func scanErrorResponse(err error, port int, level string) scanErrorBody {
	var se *domain.ScanError
	if !errors.As(err, &se) {
		return scanErrorBody{Error: err.Error(), ErrorType: domain.KindUnexpected, Port: port, Level: level}
	}
	msg := se.Message
	if msg == "" && se.Err != nil {
		msg = se.Err.Error()
	}
	out := scanErrorBody{
		Error:       msg,
		ErrorType:   se.Kind,
		Port:        se.Port,
		Level:       se.Level,
		ValidLevels: se.ValidLevels,
	}
	if se.Kind == domain.KindRemoteError {
		body := se.Body
		out.StatusCode = se.Status
		out.Body = &body
	}
	return out
}

func (s *Server) getScanOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.ScanOptionsListing())
}

func (s *Server) postReportUpdate(w http.ResponseWriter, r *http.Request) {
	var req activity.UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.reporter.Report(r.Context(), req))
}

func (s *Server) getUpdateTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, activity.UpdateTypesListing())
}

type scanRunResponse struct {
	ScanID       string            `json:"scan_id"`
	Status       string            `json:"status"`
	Port         int               `json:"port"`
	Level        string            `json:"level"`
	TunnelDomain string            `json:"tunnel_domain,omitempty"`
	Result       domain.ScanResult `json:"result,omitempty"`
	ErrorType    domain.ErrorKind  `json:"error_type,omitempty"`
	Error        string            `json:"error,omitempty"`
	QueuedAt     time.Time         `json:"queued_at"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	FinishedAt   *time.Time        `json:"finished_at,omitempty"`
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil || s.jobs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "scan not found"})
		return
	}
	run, err := s.jobs.Get(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "scan not found"})
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("scan_id", id).Error("load scan failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not load scan"})
		return
	}
	writeJSON(w, http.StatusOK, scanRunResponse{
		ScanID:       run.ID,
		Status:       run.Status,
		Port:         run.Port,
		Level:        run.Level,
		TunnelDomain: run.TunnelDomain,
		Result:       run.Result,
		ErrorType:    run.ErrorKind,
		Error:        run.ErrorMessage,
		QueuedAt:     run.QueuedAt,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
