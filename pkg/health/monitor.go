// Package health tracks the health of the service's components.
package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	// StatusUnknown marks a component that has not been checked yet.
	StatusUnknown Status = "unknown"
)

// ComponentHealth is the last check result for one component.
type ComponentHealth struct {
	Name         string                 `json:"name"`
	Status       Status                 `json:"status"`
	Message      string                 `json:"message,omitempty"`
	LastChecked  time.Time              `json:"last_checked"`
	ResponseTime time.Duration          `json:"response_time"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	CheckCount   int64                  `json:"check_count"`
	FailureCount int64                  `json:"failure_count"`
	LastFailure  *time.Time             `json:"last_failure,omitempty"`
	LastSuccess  *time.Time             `json:"last_success,omitempty"`
}

// usable reports whether the component can serve traffic.
func (c ComponentHealth) usable() bool {
	return c.Status == StatusHealthy || c.Status == StatusDegraded
}

type OverallHealth struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     time.Duration              `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
	Summary    Summary                    `json:"summary"`
}

type Summary struct {
	TotalComponents     int `json:"total_components"`
	HealthyComponents   int `json:"healthy_components"`
	DegradedComponents  int `json:"degraded_components"`
	UnhealthyComponents int `json:"unhealthy_components"`
}

// status folds the counts: any unhealthy component wins, then degraded.
// Unchecked components do not count against the process.
func (s Summary) status() Status {
	switch {
	case s.UnhealthyComponents > 0:
		return StatusUnhealthy
	case s.DegradedComponents > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

type ReadinessCheck struct {
	Component    string        `json:"component"`
	Ready        bool          `json:"ready"`
	Message      string        `json:"message,omitempty"`
	CheckTime    time.Time     `json:"check_time"`
	ResponseTime time.Duration `json:"response_time"`
}

type ReadinessStatus struct {
	Ready     bool             `json:"ready"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    []ReadinessCheck `json:"checks"`
	Message   string           `json:"message,omitempty"`
}

// Checker checks one component.
type Checker interface {
	CheckHealth(ctx context.Context) ComponentHealth
	GetName() string
}

// Observer is told about every completed check.
type Observer func(component string, healthy bool)

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

func WithVersion(version string) MonitorOption {
	return func(m *Monitor) { m.version = version }
}

// WithInterval sets how often Start re-runs the checks.
func WithInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithCheckTimeout bounds every individual check.
func WithCheckTimeout(timeout time.Duration) MonitorOption {
	return func(m *Monitor) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// Monitor runs registered checkers and keeps their latest results.
type Monitor struct {
	logger   zerolog.Logger
	started  time.Time
	version  string
	interval time.Duration
	timeout  time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	results  map[string]ComponentHealth
	observer Observer
	stop     chan struct{}
}

func NewMonitor(logger zerolog.Logger, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		logger:   logger.With().Str("component", "health_monitor").Logger(),
		started:  time.Now(),
		interval: 30 * time.Second,
		timeout:  10 * time.Second,
		checkers: make(map[string]Checker),
		results:  make(map[string]ComponentHealth),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetObserver replaces the observer. It may refer back to the monitor.
func (m *Monitor) SetObserver(observer Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = observer
}

func (m *Monitor) RegisterChecker(checker Checker) {
	name := checker.GetName()

	m.mu.Lock()
	m.checkers[name] = checker
	m.results[name] = ComponentHealth{Name: name, Status: StatusUnknown, Message: "Not yet checked"}
	m.mu.Unlock()

	m.logger.Debug().Str("checker", name).Msg("Health checker registered")
}

func (m *Monitor) UnregisterChecker(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkers, name)
	delete(m.results, name)
}

// Start runs one round of checks, then keeps checking every interval until
// Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return errors.Newf(errors.CodeInternalError, "health", "health monitor is already running")
	}
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	m.logger.Info().Dur("interval", m.interval).Msg("Starting health monitor")
	m.CheckNow(ctx)

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.logger.Debug().Msg("Health monitor stopped due to context cancellation")
				return
			case <-stop:
				m.logger.Debug().Msg("Health monitor stopped")
				return
			case <-ticker.C:
				m.CheckNow(ctx)
			}
		}
	}()
	return nil
}

func (m *Monitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop == nil {
		return errors.Newf(errors.CodeInternalError, "health", "health monitor is not running")
	}
	close(m.stop)
	m.stop = nil
	return nil
}

// CheckNow runs every registered checker concurrently and waits for them.
func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for name, c := range checkers {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			m.check(ctx, name, c)
		}(name, c)
	}
	wg.Wait()
}

func (m *Monitor) check(ctx context.Context, name string, c Checker) {
	checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	result := c.CheckHealth(checkCtx)
	result.Name = name
	result.LastChecked = start
	result.ResponseTime = time.Since(start)

	m.mu.Lock()
	prev, ok := m.results[name]
	if !ok {
		// unregistered while the check ran
		m.mu.Unlock()
		return
	}
	result.CheckCount = prev.CheckCount + 1
	result.FailureCount = prev.FailureCount
	result.LastSuccess = prev.LastSuccess
	result.LastFailure = prev.LastFailure
	now := time.Now()
	if result.Status == StatusHealthy {
		result.LastSuccess = &now
	} else {
		result.FailureCount++
		result.LastFailure = &now
	}
	m.results[name] = result
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(name, result.Status == StatusHealthy)
	}

	e := m.logger.Debug()
	if result.Status == StatusUnhealthy {
		e = m.logger.Warn().Str("message", result.Message)
	}
	e.Str("checker", name).
		Str("status", string(result.Status)).
		Dur("response_time", result.ResponseTime).
		Msg("Health check completed")
}

// GetHealth reports the aggregate status. A monitor with no checked
// components is healthy: the process itself is serving.
func (m *Monitor) GetHealth() OverallHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make(map[string]ComponentHealth, len(m.results))
	summary := Summary{TotalComponents: len(m.results)}
	for name, r := range m.results {
		components[name] = r
		switch r.Status {
		case StatusHealthy:
			summary.HealthyComponents++
		case StatusDegraded:
			summary.DegradedComponents++
		case StatusUnhealthy:
			summary.UnhealthyComponents++
		}
	}

	return OverallHealth{
		Status:     summary.status(),
		Timestamp:  time.Now(),
		Version:    m.version,
		Uptime:     m.Uptime(),
		Components: components,
		Summary:    summary,
	}
}

// GetReadiness is ready only when every component has been checked and is
// healthy or degraded.
func (m *Monitor) GetReadiness() ReadinessStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.results))
	for name := range m.results {
		names = append(names, name)
	}
	sort.Strings(names)

	status := ReadinessStatus{Ready: true, Timestamp: time.Now(), Checks: make([]ReadinessCheck, 0, len(names))}
	var failing []string
	for _, name := range names {
		r := m.results[name]
		if !r.usable() {
			status.Ready = false
			failing = append(failing, fmt.Sprintf("%s: %s", name, r.Message))
		}
		status.Checks = append(status.Checks, ReadinessCheck{
			Component:    name,
			Ready:        r.usable(),
			Message:      r.Message,
			CheckTime:    r.LastChecked,
			ResponseTime: r.ResponseTime,
		})
	}
	if !status.Ready {
		status.Message = "Not ready: " + strings.Join(failing, "; ")
	}
	return status
}

func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.started)
}
