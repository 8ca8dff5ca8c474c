package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"

	"paxreport/internal/ports"
)

var errEmptyTunnelURL = errors.New("tunnel provider returned an empty public url")

// TunnelManager hands out scoped tunnel handles.
type TunnelManager struct {
	provider ports.TunnelProvider
	log      logrus.FieldLogger
}

func NewTunnelManager(provider ports.TunnelProvider, log logrus.FieldLogger) *TunnelManager {
	return &TunnelManager{provider: provider, log: log}
}

// Acquire opens one tunnel to port. There is no retry; the caller owns the
// returned handle and must Release it.
func (m *TunnelManager) Acquire(ctx context.Context, port int) (*TunnelHandle, error) {
	tun, err := m.provider.Forward(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("forward port %d: %w", port, err)
	}
	h := &TunnelHandle{tun: tun, port: port, log: m.log}
	if tun == nil || tun.URL() == "" {
		h.Release()
		return nil, fmt.Errorf("forward port %d: %w", port, errEmptyTunnelURL)
	}
	h.url = tun.URL()
	h.domain = TunnelDomain(h.url)
	m.log.WithFields(logrus.Fields{"port": port, "tunnel_url": h.url}).Info("tunnel opened")
	return h, nil
}

// TunnelHandle is exclusively owned by the scan that acquired it.
type TunnelHandle struct {
	tun    ports.Tunnel
	url    string
	domain string
	port   int
	log    logrus.FieldLogger
	once   sync.Once
}

func (h *TunnelHandle) URL() string { return h.url }

// Domain is the registrable domain of the public URL.
func (h *TunnelHandle) Domain() string { return h.domain }

// Release closes the tunnel. Safe to call more than once and on a nil handle.
// Teardown errors are logged, never returned.
func (h *TunnelHandle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.tun == nil {
			return
		}
		entry := h.log.WithFields(logrus.Fields{"port": h.port, "tunnel_url": h.url})
		if err := h.tun.Close(); err != nil {
			entry.WithError(err).Warn("tunnel close failed")
			return
		}
		entry.Info("tunnel closed")
	})
}

// TunnelDomain returns the eTLD+1 of a tunnel URL, or the bare host when the
// public suffix list has no answer.
func TunnelDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}
