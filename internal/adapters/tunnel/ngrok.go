// Package tunnel opens public endpoints for local ports via ngrok.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"

	"paxreport/internal/ports"
)

var ErrNoAuthtoken = errors.New("ngrok authtoken not configured")

// endpoint is the part of ngrok.Forwarder the provider uses.
type endpoint interface {
	URL() string
	Close() error
}

// listenAndForward connects a fresh agent session and forwards one endpoint
// over it. The session is returned separately because closing the endpoint
// leaves it running.
var listenAndForward = func(ctx context.Context, backend *url.URL, authtoken string) (endpoint, io.Closer, error) {
	fwd, err := ngrok.ListenAndForward(ctx, backend, config.HTTPEndpoint(), ngrok.WithAuthtoken(authtoken))
	if err != nil {
		return nil, nil, err
	}
	return fwd, fwd.Session(), nil
}

// NgrokProvider implements ports.TunnelProvider. The authtoken is read once at
// startup and shared by every tunnel.
type NgrokProvider struct {
	authtoken string
	host      string
}

func NewNgrokProvider(authtoken string) *NgrokProvider {
	return &NgrokProvider{authtoken: authtoken, host: "localhost"}
}

// Forward opens an HTTPS endpoint forwarding to http://localhost:port.
func (p *NgrokProvider) Forward(ctx context.Context, port int) (ports.Tunnel, error) {
	if p.authtoken == "" {
		return nil, ErrNoAuthtoken
	}
	backend, err := url.Parse(fmt.Sprintf("http://%s:%d", p.host, port))
	if err != nil {
		return nil, fmt.Errorf("backend url: %w", err)
	}
	fwd, sess, err := listenAndForward(ctx, backend, p.authtoken)
	if err != nil {
		return nil, fmt.Errorf("ngrok: %w", err)
	}
	return &forwarder{fwd: fwd, sess: sess}, nil
}

// forwarder owns both the endpoint and the session it was opened on.
type forwarder struct {
	fwd  endpoint
	sess io.Closer
}

func (f *forwarder) URL() string { return f.fwd.URL() }

// Close stops forwarding and then disconnects the session.
func (f *forwarder) Close() error {
	fwdErr := f.fwd.Close()
	var sessErr error
	if f.sess != nil {
		sessErr = f.sess.Close()
	}
	return errors.Join(fwdErr, sessErr)
}
