// Package scanapi talks to the remote vulnerability scanning service.
package scanapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

// DefaultTimeout bounds a single remote scan.
const DefaultTimeout = 120 * time.Second

const maxBodyBytes = 10 << 20

// Client implements ports.ScanClient over HTTP.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        logrus.FieldLogger
}

type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, log logrus.FieldLogger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		log: log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Invoke requests GET {base}/scan/{level}/{tunnelURL}. The tunnel URL is
// appended as-is; the scanner splits the path itself.
func (c *Client) Invoke(ctx context.Context, level domain.ScanLevel, tunnelURL string) (domain.ScanResult, error) {
	if c.baseURL == "" {
		return nil, errors.New("scanner url not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/scan/%s/%s", c.baseURL, level, tunnelURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build scan request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.WithFields(logrus.Fields{"level": level.String(), "endpoint": endpoint}).Debug("calling scanner")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w after %s", ports.ErrRemoteTimeout, c.timeout)
		}
		return nil, fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w after %s", ports.ErrRemoteTimeout, c.timeout)
		}
		return nil, fmt.Errorf("read scan response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ports.RemoteStatusError{Status: resp.StatusCode, Body: string(body)}
	}

	var result domain.ScanResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformedResponse, err)
	}
	if result == nil {
		// "null" decodes without error into a nil map.
		return nil, fmt.Errorf("%w: empty body", ports.ErrMalformedResponse)
	}
	return result, nil
}

// isTimeout separates our own deadline from a caller cancellation.
func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
