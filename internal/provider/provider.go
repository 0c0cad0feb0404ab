// Package provider defines the contracts shared by all backing-service
// providers (storage, email, cache, persistent store) and the typed errors
// their operations return.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Provider is the minimal contract a backing service must satisfy to be
// managed by the bootstrapper. Initialize is called exactly once at startup;
// a failure disables the provider's feature surface but never crashes the
// process.
type Provider interface {
	Name() string
	Initialize(ctx context.Context) error
}

// Probe is a timeout-bounded health check function.
type Probe func(ctx context.Context) error

// HealthProber is implemented by providers that can report their own health.
// The bootstrapper registers the probe with the health checker after a
// successful Initialize.
type HealthProber interface {
	Probe(ctx context.Context) error
}

// InitError records a provider startup failure. It is recovered locally by
// the bootstrapper, never escalated.
type InitError struct {
	Provider string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("provider %s: initialization failed: %v", e.Provider, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// CallError is a provider operation failure after initialization.
type CallError struct {
	Provider string
	Op       string
	Elapsed  time.Duration
	Err      error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider %s: %s failed after %s: %v", e.Provider, e.Op, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// TimeoutError is returned when a probe or provider call exceeds its budget.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded %s budget", e.Op, e.Budget)
}
