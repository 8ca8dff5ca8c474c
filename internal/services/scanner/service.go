package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

const (
	minPort = 1
	maxPort = 65535
)

// Service validates a scan request, exposes the local port through a tunnel,
// runs the remote scan against it and always tears the tunnel down again.
type Service struct {
	tunnels *TunnelManager
	client  ports.ScanClient
	history ports.ScanHistory
	log     logrus.FieldLogger
}

func New(tunnels *TunnelManager, client ports.ScanClient, history ports.ScanHistory, log logrus.FieldLogger) *Service {
	if history == nil {
		history = ports.NopHistory{}
	}
	return &Service{tunnels: tunnels, client: client, history: history, log: log}
}

// Scan runs one scan and records it in the history. Every returned error is a *domain.ScanError.
func (s *Service) Scan(ctx context.Context, port int, level string) (domain.ScanResult, error) {
	return s.ScanWithID(ctx, uuid.NewString(), port, level)
}

// ScanWithID is Scan with a caller-chosen history id, so the caller can hand
// the id out before the scan finishes.
func (s *Service) ScanWithID(ctx context.Context, scanID string, port int, level string) (domain.ScanResult, error) {
	started := time.Now().UTC()
	run := domain.ScanRun{ID: scanID, Port: port, Level: level, QueuedAt: started, StartedAt: &started}

	result, tunnelDomain, err := s.run(ctx, run.ID, port, level)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.TunnelDomain = tunnelDomain
	if err != nil {
		run.Status = domain.StatusFailed
		run.ErrorKind = err.Kind
		run.ErrorMessage = err.Error()
	} else {
		run.Status = domain.StatusCompleted
		run.Result = result
	}
	// Recording must not depend on the caller's context having survived the scan.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if recErr := s.history.Record(recCtx, run); recErr != nil {
		s.log.WithError(recErr).WithField("scan_id", run.ID).Warn("scan history record failed")
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Run is Scan without history recording. Queued scans use it; the worker
// stores the outcome on the job row instead.
func (s *Service) Run(ctx context.Context, scanID string, port int, level string) (domain.ScanResult, error) {
	result, _, err := s.run(ctx, scanID, port, level)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Validate checks level and port without touching any collaborator.
func Validate(port int, level string) (domain.ScanRequest, *domain.ScanError) {
	lvl, err := domain.ParseLevel(level)
	if err != nil {
		var se *domain.ScanError
		if errors.As(err, &se) {
			se.Port = port
			return domain.ScanRequest{}, se
		}
		return domain.ScanRequest{}, &domain.ScanError{Kind: domain.KindInvalidLevel, Port: port, Level: level, Err: err}
	}
	if port < minPort || port > maxPort {
		return domain.ScanRequest{}, &domain.ScanError{
			Kind:    domain.KindInvalidPort,
			Port:    port,
			Level:   level,
			Message: fmt.Sprintf("port must be between %d and %d", minPort, maxPort),
		}
	}
	return domain.ScanRequest{Port: port, Level: lvl}, nil
}

func (s *Service) run(ctx context.Context, scanID string, port int, level string) (result domain.ScanResult, tunnelDomain string, scanErr *domain.ScanError) {
	log := s.log.WithFields(logrus.Fields{"scan_id": scanID, "port": port, "level": level})

	// Registered first so it runs after the tunnel release below.
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Errorf("scan panicked\n%s", debug.Stack())
			result = nil
			scanErr = &domain.ScanError{
				Kind:    domain.KindUnexpected,
				Port:    port,
				Level:   level,
				Message: fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	req, verr := Validate(port, level)
	if verr != nil {
		log.WithField("error_type", verr.Kind).Info("scan rejected")
		return nil, "", verr
	}

	handle, err := s.tunnels.Acquire(ctx, req.Port)
	if err != nil {
		log.WithError(err).Warn("tunnel acquisition failed")
		return nil, "", &domain.ScanError{
			Kind:    domain.KindTunnelFailed,
			Port:    port,
			Level:   level,
			Message: "could not open a public tunnel to the local port",
			Err:     err,
		}
	}
	defer handle.Release()
	tunnelDomain = handle.Domain()

	log = log.WithField("tunnel_url", handle.URL())
	log.Info("remote scan started")
	res, err := s.client.Invoke(ctx, req.Level, handle.URL())
	if err != nil {
		se := classify(err, port, level)
		entry := log.WithError(err).WithField("error_type", se.Kind)
		if se.Kind == domain.KindUnexpected {
			entry.Error("remote scan failed")
		} else {
			entry.Warn("remote scan failed")
		}
		return nil, tunnelDomain, se
	}
	if res == nil {
		res = domain.ScanResult{}
	}
	res.Annotate(handle.URL(), port)
	log.Info("remote scan completed")
	return res, tunnelDomain, nil
}

func classify(err error, port int, level string) *domain.ScanError {
	var status *ports.RemoteStatusError
	switch {
	case errors.Is(err, ports.ErrRemoteTimeout), errors.Is(err, context.DeadlineExceeded):
		return &domain.ScanError{
			Kind:    domain.KindRemoteTimeout,
			Port:    port,
			Level:   level,
			Message: fmt.Sprintf("scan timed out; try a lower level than '%s'", level),
			Err:     err,
		}
	case errors.As(err, &status):
		return &domain.ScanError{
			Kind:    domain.KindRemoteError,
			Port:    port,
			Level:   level,
			Status:  status.Status,
			Body:    status.Body,
			Message: fmt.Sprintf("scanner returned status %d", status.Status),
			Err:     err,
		}
	case errors.Is(err, ports.ErrMalformedResponse):
		return &domain.ScanError{Kind: domain.KindUnexpected, Port: port, Level: level, Message: "scanner returned an unreadable response", Err: err}
	case errors.Is(err, context.Canceled):
		return &domain.ScanError{Kind: domain.KindUnexpected, Port: port, Level: level, Message: "scan cancelled", Err: err}
	default:
		return &domain.ScanError{Kind: domain.KindUnexpected, Port: port, Level: level, Err: err}
	}
}
