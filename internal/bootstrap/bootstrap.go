// Package bootstrap initializes every registered provider exactly once at
// startup, in declared order, without letting one failure block the rest.
// Providers that come up get a health probe registered; providers that fail
// are recorded and their feature surface stays disabled.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/edustack/academy-api/internal/health"
	"github.com/edustack/academy-api/internal/pkg/logger"
	"github.com/edustack/academy-api/internal/provider"
)

// Registration declares one provider to bring up.
type Registration struct {
	Name     string
	Provider provider.Provider
	// Critical marks providers whose failure should abort startup when
	// strict bootstrap is enabled, and whose probe gates readiness.
	Critical bool
	// Probe overrides the provider's own health probe. Optional.
	Probe provider.Probe
	// OnResult is invoked with the outcome, letting the owning service flip
	// its availability gate. Optional.
	OnResult func(ok bool)
}

// Result is one provider's bootstrap outcome.
type Result struct {
	Name      string        `json:"name"`
	Critical  bool          `json:"critical"`
	Attempted bool          `json:"attempted"`
	Succeeded bool          `json:"succeeded"`
	Elapsed   time.Duration `json:"-"`
	ElapsedMs int64         `json:"elapsed_ms"`
	Error     string        `json:"error,omitempty"`

	err error
}

// Err returns the underlying initialization error, if any.
func (r Result) Err() error { return r.err }

// InitReport is the full outcome of a bootstrap pass.
type InitReport struct {
	Results []Result `json:"results"`
}

// Succeeded reports whether the named provider initialized.
func (rep InitReport) Succeeded(name string) bool {
	for _, r := range rep.Results {
		if r.Name == name {
			return r.Succeeded
		}
	}
	return false
}

// FailedCritical returns the names of critical providers that failed.
func (rep InitReport) FailedCritical() []string {
	var names []string
	for _, r := range rep.Results {
		if r.Critical && !r.Succeeded {
			names = append(names, r.Name)
		}
	}
	return names
}

// InitializeAll brings up each registration in order under initTimeout. No
// failure short-circuits the loop. Successful providers get their probe
// registered with checker; failed ones do not, so their absence shows up as
// unavailable features rather than failing health checks.
func InitializeAll(ctx context.Context, regs []Registration, checker *health.Checker, initTimeout time.Duration) InitReport {
	if initTimeout <= 0 {
		initTimeout = 15 * time.Second
	}

	report := InitReport{Results: make([]Result, 0, len(regs))}
	for _, reg := range regs {
		report.Results = append(report.Results, initOne(ctx, reg, checker, initTimeout))
	}

	var ok, failed int
	for _, r := range report.Results {
		if r.Succeeded {
			ok++
		} else {
			failed++
		}
	}
	logger.Info("bootstrap complete", "succeeded", ok, "failed", failed)
	return report
}

func initOne(ctx context.Context, reg Registration, checker *health.Checker, timeout time.Duration) Result {
	result := Result{Name: reg.Name, Critical: reg.Critical, Attempted: true}

	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := reg.Provider.Initialize(initCtx)
	result.Elapsed = time.Since(start)
	result.ElapsedMs = result.Elapsed.Milliseconds()

	if err != nil {
		initErr := &provider.InitError{Provider: reg.Name, Err: err}
		result.err = initErr
		result.Error = initErr.Error()
		logger.Error("provider initialization failed",
			"provider", reg.Name,
			"critical", reg.Critical,
			"elapsed_ms", result.ElapsedMs,
			"error", err.Error())
	} else {
		result.Succeeded = true
		logger.Info("provider initialized",
			"provider", reg.Name,
			"elapsed_ms", result.ElapsedMs)

		if checker != nil {
			probe := reg.Probe
			if probe == nil {
				if prober, ok := reg.Provider.(provider.HealthProber); ok {
					probe = prober.Probe
				}
			}
			if probe != nil {
				if reg.Critical {
					checker.RegisterCriticalCheck(reg.Name, probe)
				} else {
					checker.RegisterCheck(reg.Name, probe)
				}
			}
		}
	}

	if reg.OnResult != nil {
		reg.OnResult(result.Succeeded)
	}
	return result
}

// Enforce returns an error when strict bootstrap is on and any critical
// provider failed. Callers abort startup on a non-nil return.
func Enforce(rep InitReport, strict bool) error {
	if !strict {
		return nil
	}
	if failed := rep.FailedCritical(); len(failed) > 0 {
		return fmt.Errorf("critical providers failed to initialize: %v", failed)
	}
	return nil
}
