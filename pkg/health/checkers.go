package health

import (
	"context"
	"time"
)

// Pinger is anything that can report reachability, such as a result store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a component healthy while Ping succeeds. Pings slower
// than SlowThreshold mark it degraded.
type PingChecker struct {
	Name          string
	Target        Pinger
	SlowThreshold time.Duration
}

func (c PingChecker) GetName() string { return c.Name }

func (c PingChecker) CheckHealth(ctx context.Context) ComponentHealth {
	start := time.Now()
	err := c.Target.Ping(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		return ComponentHealth{Status: StatusUnhealthy, Message: err.Error()}
	case c.SlowThreshold > 0 && elapsed > c.SlowThreshold:
		return ComponentHealth{
			Status:   StatusDegraded,
			Message:  "slow response",
			Metadata: map[string]interface{}{"latency_ms": elapsed.Milliseconds()},
		}
	default:
		return ComponentHealth{Status: StatusHealthy}
	}
}

// FuncChecker adapts a plain function. A nil error is healthy; metadata
// returned alongside is attached to the result.
type FuncChecker struct {
	Name  string
	Check func(ctx context.Context) (map[string]interface{}, error)
}

func (c FuncChecker) GetName() string { return c.Name }

func (c FuncChecker) CheckHealth(ctx context.Context) ComponentHealth {
	meta, err := c.Check(ctx)
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: err.Error(), Metadata: meta}
	}
	return ComponentHealth{Status: StatusHealthy, Metadata: meta}
}
