package probe

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StateStarting  State = "starting"
	StateHealthy   State = "healthy"
	StateUnhealthy State = "unhealthy"
)

type WatchConfig struct {
	StartPeriod time.Duration
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
}

func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		StartPeriod: 5 * time.Second,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		Retries:     3,
	}
}

// CheckFunc runs one probe.
type CheckFunc func(ctx context.Context) error

// Watcher tracks health across repeated probes.
//
// The state starts as starting. A passing probe makes it healthy and resets
// the failure streak. Failures inside the start period are ignored until
// the first success. Retries consecutive counted failures make it unhealthy.
type Watcher struct {
	cfg      WatchConfig
	check    CheckFunc
	now      func() time.Time
	onChange func(from, to State, err error)

	mu        sync.Mutex
	state     State
	failures  int
	started   time.Time
	succeeded bool
	lastErr   error
}

func NewWatcher(cfg WatchConfig, check CheckFunc) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWatchConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWatchConfig().Timeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultWatchConfig().Retries
	}
	return &Watcher{
		cfg:     cfg,
		check:   check,
		now:     time.Now,
		state:   StateStarting,
		started: time.Now(),
	}
}

// OnChange registers a callback invoked on every state transition.
func (w *Watcher) OnChange(fn func(from, to State, err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Failures is the current streak of counted failures.
func (w *Watcher) Failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failures
}

func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Observe folds one probe result into the state.
func (w *Watcher) Observe(err error) State {
	w.mu.Lock()
	from := w.state
	w.lastErr = err

	if err == nil {
		w.succeeded = true
		w.failures = 0
		w.state = StateHealthy
	} else if w.succeeded || w.now().Sub(w.started) >= w.cfg.StartPeriod {
		w.failures++
		if w.failures >= w.cfg.Retries {
			w.state = StateUnhealthy
		}
	}

	to := w.state
	onChange := w.onChange
	w.mu.Unlock()

	if from != to && onChange != nil {
		onChange(from, to, err)
	}
	return to
}

// Probe runs one check bounded by the configured timeout and observes it.
func (w *Watcher) Probe(ctx context.Context) State {
	checkCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()
	return w.Observe(w.check(checkCtx))
}

// Run probes every interval until ctx is cancelled. The first probe runs
// one interval after Run starts.
func (w *Watcher) Run(ctx context.Context) State {
	w.mu.Lock()
	w.started = w.now()
	w.mu.Unlock()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.State()
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}
