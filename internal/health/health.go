// Package health runs named probes against backing services and aggregates
// the results into an atomically replaced snapshot. Probes run in parallel,
// each under its own timeout, so one hung dependency never hides the state
// of the others.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edustack/academy-api/internal/pkg/logger"
	"github.com/edustack/academy-api/internal/provider"
)

// Status is an aggregate or per-probe health state.
type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusDegraded    Status = "degraded"
	StatusUnreachable Status = "unreachable"
)

// CheckResult is the outcome of one probe in one sweep.
type CheckResult struct {
	Status     Status `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Critical   bool   `json:"critical,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Snapshot is the aggregated result of one full sweep. It is immutable once
// published; readers always see a complete prior sweep, never a partial one.
type Snapshot struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type check struct {
	probe    provider.Probe
	critical bool
}

// Checker is the probe registry and sweep runner.
type Checker struct {
	mu       sync.RWMutex
	checks   map[string]check
	timeout  time.Duration
	snapshot atomic.Pointer[Snapshot]
}

// NewChecker creates a checker whose probes each get probeTimeout per sweep.
func NewChecker(probeTimeout time.Duration) *Checker {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &Checker{
		checks:  make(map[string]check),
		timeout: probeTimeout,
	}
}

// RegisterCheck adds a probe under a name. Registering an existing name
// replaces the probe, so registration is idempotent per name.
func (c *Checker) RegisterCheck(name string, probe provider.Probe) {
	c.register(name, probe, false)
}

// RegisterCriticalCheck adds a probe whose failure makes the whole service
// unready, not merely degraded.
func (c *Checker) RegisterCriticalCheck(name string, probe provider.Probe) {
	c.register(name, probe, true)
}

func (c *Checker) register(name string, probe provider.Probe, critical bool) {
	c.mu.Lock()
	c.checks[name] = check{probe: probe, critical: critical}
	c.mu.Unlock()
}

// Names returns the registered probe names.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	return names
}

// PerformChecks runs every registered probe in parallel and publishes a new
// snapshot. A probe that exceeds its timeout is recorded as unreachable
// without delaying the sweep past the timeout itself.
func (c *Checker) PerformChecks(ctx context.Context) Snapshot {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, ch := range c.checks {
		checks[name] = ch
	}
	c.mu.RUnlock()

	type outcome struct {
		name   string
		result CheckResult
	}
	results := make(chan outcome, len(checks))

	var wg sync.WaitGroup
	for name, ch := range checks {
		wg.Add(1)
		go func(name string, ch check) {
			defer wg.Done()
			results <- outcome{name: name, result: c.runProbe(ctx, name, ch)}
		}(name, ch)
	}
	wg.Wait()
	close(results)

	snap := Snapshot{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for o := range results {
		snap.Checks[o.name] = o.result
		if o.result.Status == StatusHealthy {
			continue
		}
		if o.result.Critical {
			snap.Status = StatusUnreachable
		} else if snap.Status == StatusHealthy {
			snap.Status = StatusDegraded
		}
	}

	// A sweep aborted by caller cancellation says nothing about the probes,
	// so the previously published snapshot stays in place.
	if ctx.Err() != nil {
		snap.Status = StatusUnreachable
		return snap
	}

	c.snapshot.Store(&snap)
	return snap
}

// runProbe executes one probe under its own timeout. The select on the
// timeout channel means a probe that ignores its context cannot stall the
// sweep; its goroutine is abandoned once the deadline fires.
func (c *Checker) runProbe(ctx context.Context, name string, ch check) CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- ch.probe(probeCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-probeCtx.Done():
		err = &provider.TimeoutError{Op: "probe " + name, Budget: c.timeout}
	}
	elapsed := time.Since(start)

	result := CheckResult{
		Status:     StatusHealthy,
		DurationMs: elapsed.Milliseconds(),
		Critical:   ch.critical,
	}
	if err != nil {
		result.Status = StatusUnreachable
		result.Error = err.Error()
		logger.Warn("health probe failed",
			"check", name,
			"critical", ch.critical,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error())
	}
	return result
}

// Snapshot returns the last published sweep. ok is false before the first
// sweep completes.
func (c *Checker) Snapshot() (Snapshot, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Ready reports whether every critical probe passed in the last sweep.
// Before the first sweep it reports false.
func (c *Checker) Ready() bool {
	snap := c.snapshot.Load()
	if snap == nil {
		return false
	}
	for _, r := range snap.Checks {
		if r.Critical && r.Status != StatusHealthy {
			return false
		}
	}
	return true
}

// StartPeriodicChecks runs PerformChecks on a recurring timer until ctx is
// canceled. The first sweep runs immediately.
func (c *Checker) StartPeriodicChecks(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		c.PerformChecks(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.PerformChecks(ctx)
			}
		}
	}()
}
