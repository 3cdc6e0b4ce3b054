package probe

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthURL(t *testing.T) {
	assert.Equal(t, "http://127.0.0.1:8000/health", HealthURL(8000))
}

func TestProber_Check(t *testing.T) {
	status := http.StatusOK
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		mu.Lock()
		defer mu.Unlock()
		w.WriteHeader(status)
	}))
	defer srv.Close()

	p := New(srv.URL+"/health", time.Second)
	require.NoError(t, p.Check(context.Background()))

	mu.Lock()
	status = http.StatusServiceUnavailable
	mu.Unlock()
	err := p.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestProber_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	err := New(srv.URL, 30*time.Millisecond).Check(context.Background())
	assert.Error(t, err)
}

func TestProber_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, New(url, 100*time.Millisecond).Check(context.Background()))
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestWatcher(cfg WatchConfig) (*Watcher, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewWatcher(cfg, func(context.Context) error { return nil })
	w.now = c.now
	w.started = c.now()
	return w, c
}

var errDown = stderrors.New("down")

func TestWatcher_StartPeriodFailuresDoNotCount(t *testing.T) {
	w, c := newTestWatcher(WatchConfig{StartPeriod: 5 * time.Second, Interval: time.Second, Retries: 3})
	assert.Equal(t, StateStarting, w.State())

	for i := 0; i < 4; i++ {
		c.advance(time.Second)
		assert.Equal(t, StateStarting, w.Observe(errDown))
	}
	assert.Equal(t, 0, w.Failures())

	c.advance(2 * time.Second)
	w.Observe(errDown)
	w.Observe(errDown)
	assert.Equal(t, StateStarting, w.State())
	assert.Equal(t, StateUnhealthy, w.Observe(errDown))
	assert.Equal(t, errDown, w.LastError())
}

func TestWatcher_SuccessThenRetries(t *testing.T) {
	w, _ := newTestWatcher(WatchConfig{StartPeriod: time.Hour, Interval: time.Second, Retries: 3})

	var transitions []State
	w.OnChange(func(_, to State, _ error) { transitions = append(transitions, to) })

	assert.Equal(t, StateHealthy, w.Observe(nil))

	// after the first success, start-period failures count
	w.Observe(errDown)
	w.Observe(errDown)
	assert.Equal(t, StateHealthy, w.State())
	assert.Equal(t, 2, w.Failures())

	w.Observe(nil)
	assert.Equal(t, 0, w.Failures())

	w.Observe(errDown)
	w.Observe(errDown)
	assert.Equal(t, StateUnhealthy, w.Observe(errDown))

	assert.Equal(t, StateHealthy, w.Observe(nil))
	assert.Equal(t, []State{StateHealthy, StateUnhealthy, StateHealthy}, transitions)
}

func TestWatcher_Defaults(t *testing.T) {
	cfg := DefaultWatchConfig()
	assert.Equal(t, 5*time.Second, cfg.StartPeriod)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.Retries)

	w := NewWatcher(WatchConfig{}, nil)
	assert.Equal(t, cfg.Interval, w.cfg.Interval)
	assert.Equal(t, cfg.Retries, w.cfg.Retries)
}

func TestWatcher_Run(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	w := NewWatcher(WatchConfig{Interval: 5 * time.Millisecond, Timeout: time.Second, Retries: 1}, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan State, 1)
	go func() { done <- w.Run(ctx) }()

	assert.Eventually(t, func() bool { return w.State() == StateHealthy }, time.Second, 5*time.Millisecond)
	cancel()
	assert.Equal(t, StateHealthy, <-done)
}

func TestWatcher_ProbeAppliesTimeout(t *testing.T) {
	w := NewWatcher(WatchConfig{Timeout: 10 * time.Millisecond, Retries: 1}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	w.succeeded = true

	assert.Equal(t, StateUnhealthy, w.Probe(context.Background()))
	assert.ErrorIs(t, w.LastError(), context.DeadlineExceeded)
}
