package domain

import "fmt"

// ErrorKind classifies a failed scan.
type ErrorKind string

const (
	KindInvalidLevel  ErrorKind = "invalid_level"
	KindInvalidPort   ErrorKind = "invalid_port"
	KindTunnelFailed  ErrorKind = "tunnel_acquisition_failed"
	KindRemoteTimeout ErrorKind = "remote_timeout"
	KindRemoteError   ErrorKind = "remote_error"
	KindUnexpected    ErrorKind = "unexpected_failure"
)

// ScanError is the only error type returned by the scan orchestrator. It carries
// the request inputs so callers can correlate and retry.
type ScanError struct {
	Kind    ErrorKind
	Port    int
	Level   string
	Message string

	// RemoteError only.
	Status int
	Body   string

	// InvalidLevel only: level name -> description.
	ValidLevels map[string]string

	Err error
}

func (e *ScanError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (port=%d, level=%s): %s", e.Kind, e.Port, e.Level, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (port=%d, level=%s): %v", e.Kind, e.Port, e.Level, e.Err)
	}
	return fmt.Sprintf("%s (port=%d, level=%s)", e.Kind, e.Port, e.Level)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Is matches another *ScanError by kind, so errors.Is(err, &ScanError{Kind: KindRemoteTimeout}) works.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	return ok && t.Kind == e.Kind
}
