package tunnel

import (
	"context"
	"errors"
	"io"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct {
	url    string
	err    error
	closes int
	order  *[]string
	name   string
}

func (c *closeCounter) URL() string { return c.url }

func (c *closeCounter) Close() error {
	c.closes++
	if c.order != nil {
		*c.order = append(*c.order, c.name)
	}
	return c.err
}

func stubListen(t *testing.T, fn func(ctx context.Context, backend *url.URL, authtoken string) (endpoint, io.Closer, error)) {
	t.Helper()
	orig := listenAndForward
	listenAndForward = fn
	t.Cleanup(func() { listenAndForward = orig })
}

func TestForwardWithoutAuthtoken(t *testing.T) {
	stubListen(t, func(context.Context, *url.URL, string) (endpoint, io.Closer, error) {
		t.Fatal("must not connect without an authtoken")
		return nil, nil, nil
	})

	tun, err := NewNgrokProvider("").Forward(context.Background(), 3000)
	assert.Nil(t, tun)
	assert.ErrorIs(t, err, ErrNoAuthtoken)
}

func TestForwardTargetsLocalPort(t *testing.T) {
	var gotBackend, gotToken string
	stubListen(t, func(ctx context.Context, backend *url.URL, authtoken string) (endpoint, io.Closer, error) {
		gotBackend, gotToken = backend.String(), authtoken
		return &closeCounter{url: "https://abc123.example.com"}, &closeCounter{}, nil
	})

	tun, err := NewNgrokProvider("tok").Forward(context.Background(), 3000)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", gotBackend)
	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, "https://abc123.example.com", tun.URL())
}

func TestForwardError(t *testing.T) {
	stubListen(t, func(context.Context, *url.URL, string) (endpoint, io.Closer, error) {
		return nil, nil, errors.New("ERR_NGROK_108: session limit")
	})

	_, err := NewNgrokProvider("tok").Forward(context.Background(), 3000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NGROK_108")
}

func TestCloseDisconnectsSession(t *testing.T) {
	var order []string
	fwd := &closeCounter{url: "https://abc123.example.com", order: &order, name: "endpoint"}
	sess := &closeCounter{order: &order, name: "session"}
	stubListen(t, func(context.Context, *url.URL, string) (endpoint, io.Closer, error) {
		return fwd, sess, nil
	})

	tun, err := NewNgrokProvider("tok").Forward(context.Background(), 3000)
	require.NoError(t, err)
	require.NoError(t, tun.Close())

	assert.Equal(t, 1, fwd.closes)
	assert.Equal(t, 1, sess.closes)
	assert.Equal(t, []string{"endpoint", "session"}, order)
}

func TestCloseReportsBothErrors(t *testing.T) {
	errEndpoint := errors.New("endpoint close")
	errSession := errors.New("session close")
	fwd := &closeCounter{err: errEndpoint}
	sess := &closeCounter{err: errSession}
	stubListen(t, func(context.Context, *url.URL, string) (endpoint, io.Closer, error) {
		return fwd, sess, nil
	})

	tun, err := NewNgrokProvider("tok").Forward(context.Background(), 3000)
	require.NoError(t, err)

	err = tun.Close()
	assert.ErrorIs(t, err, errEndpoint)
	assert.ErrorIs(t, err, errSession)
	assert.Equal(t, 1, sess.closes, "session is closed even when the endpoint close fails")
}
