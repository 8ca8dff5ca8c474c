package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"paxreport/internal/domain"
	"paxreport/internal/ports"
)

type fakeTunnel struct {
	url      string
	closeErr error
	closes   atomic.Int32
}

func (t *fakeTunnel) URL() string { return t.url }

func (t *fakeTunnel) Close() error {
	t.closes.Add(1)
	return t.closeErr
}

// fakeProvider hands out tunnels with the given URLs in order.
type fakeProvider struct {
	mu      sync.Mutex
	urls    []string
	err     error
	ports   []int
	tunnels []*fakeTunnel
}

func (p *fakeProvider) Forward(ctx context.Context, port int) (ports.Tunnel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ports = append(p.ports, port)
	if p.err != nil {
		return nil, p.err
	}
	url := "https://default.example.tunnel"
	if n := len(p.tunnels); n < len(p.urls) {
		url = p.urls[n]
	}
	t := &fakeTunnel{url: url}
	p.tunnels = append(p.tunnels, t)
	return t, nil
}

func (p *fakeProvider) acquireCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ports)
}

type clientFunc func(ctx context.Context, level domain.ScanLevel, tunnelURL string) (domain.ScanResult, error)

func (f clientFunc) Invoke(ctx context.Context, level domain.ScanLevel, tunnelURL string) (domain.ScanResult, error) {
	return f(ctx, level, tunnelURL)
}

type fakeHistory struct {
	mu   sync.Mutex
	runs []domain.ScanRun
	err  error
}

func (h *fakeHistory) Record(ctx context.Context, run domain.ScanRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append(h.runs, run)
	return h.err
}

var errBoom = errors.New("boom")
