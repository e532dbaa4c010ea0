package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestManual_PublishesTransitionsOnly(t *testing.T) {
	m := NewManual(StateOffline)
	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Set(StateOffline)
	select {
	case s := <-ch:
		t.Fatalf("unexpected state %v", s)
	default:
	}

	m.Set(StateConnected)
	assert.Equal(t, StateConnected, <-ch)
	assert.True(t, m.IsConnected(context.Background()))
	assert.Equal(t, StateConnected, m.State())
}

func TestManual_SlowSubscriberSeesNewestState(t *testing.T) {
	m := NewManual(StateUnknown)
	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	m.Set(StateConnected)
	m.Set(StateOffline)
	assert.Equal(t, StateOffline, <-ch)
}

func TestManual_Unsubscribe(t *testing.T) {
	m := NewManual(StateOffline)
	ch, unsubscribe := m.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)

	m.Set(StateConnected)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "offline", StateOffline.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestProber_IsConnected(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewProber(ProberConfig{URL: srv.URL, Timeout: time.Second}, zap.NewNop())
	ctx := context.Background()

	assert.True(t, p.IsConnected(ctx))
	status.Store(http.StatusNotFound)
	assert.True(t, p.IsConnected(ctx), "any answer below 500 means the network works")
	status.Store(http.StatusServiceUnavailable)
	assert.False(t, p.IsConnected(ctx))
	assert.Equal(t, StateOffline, p.State())
}

func TestProber_UnreachableIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewProber(ProberConfig{URL: url, Timeout: 200 * time.Millisecond}, nil)
	assert.False(t, p.IsConnected(context.Background()))
}

func TestProber_NoURLMeansConnected(t *testing.T) {
	p := NewProber(ProberConfig{}, nil)
	assert.True(t, p.IsConnected(context.Background()))
}

func TestProber_RunPublishesTransitions(t *testing.T) {
	var up atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if up.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewProber(ProberConfig{URL: srv.URL, Interval: 10 * time.Millisecond, Timeout: time.Second}, nil)
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case s := <-ch:
		assert.Equal(t, StateOffline, s)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial state published")
	}

	up.Store(true)
	select {
	case s := <-ch:
		assert.Equal(t, StateConnected, s)
	case <-time.After(2 * time.Second):
		t.Fatal("transition not published")
	}

	cancel()
	require.NoError(t, <-done)
}
