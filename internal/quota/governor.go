// Package quota implements the process-wide governor that arbitrates
// per-provider call budgets. Free-tier LLM providers ban accounts that
// exceed their published limits, so calls are refused here before they are
// ever sent.
package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// warningThreshold is the share of the per-minute budget at which health
// degrades from HEALTHY to WARNING.
const warningThreshold = 0.8

// Health is the governor's view of one provider's remaining headroom.
type Health string

// Health states. OVERLOAD means calls must be deferred or rejected, never
// silently sent.
const (
	HealthHealthy  Health = "HEALTHY"
	HealthWarning  Health = "WARNING"
	HealthOverload Health = "OVERLOAD"
)

// ErrExceeded is returned when a provider has no capacity left in its
// per-minute or per-day budget. It is the one retryable-by-waiting refusal.
var ErrExceeded = errors.New("provider quota exceeded")

// ErrUnknownProvider is returned for providers with no configured limits.
var ErrUnknownProvider = errors.New("provider has no configured quota limits")

// Limits are a provider's published request budgets.
type Limits struct {
	RPM int // requests per minute
	RPD int // requests per day
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// Governor tracks rolling usage for every provider. It is shared by all
// in-flight pipeline runs in the process; all methods are safe for
// concurrent use.
type Governor struct {
	mu     sync.Mutex
	clock  Clock
	limits map[string]Limits
	states map[string]*providerState
}

// providerState holds one provider's counters. The minute window is a
// sliding list of call timestamps pruned lazily on read, so correctness does
// not depend on any background timer. The day counter resets when the UTC
// calendar day changes.
type providerState struct {
	window []time.Time
	day    int
	dayKey string
}

// NewGovernor builds a Governor for the given provider limits.
func NewGovernor(limits map[string]Limits, clock Clock) *Governor {
	states := make(map[string]*providerState, len(limits))
	for name := range limits {
		states[name] = &providerState{}
	}
	return &Governor{
		clock:  clock,
		limits: limits,
		states: states,
	}
}

// Reserve consumes one unit of the provider's budget, or refuses with
// ErrExceeded when the provider is at capacity. Admitted reservations count
// against quota regardless of how the subsequent call turns out; the
// provider bills the attempt, not the outcome.
func (g *Governor) Reserve(provider string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	limits, state, err := g.lookup(provider)
	if err != nil {
		return err
	}

	now := g.clock.Now()
	g.roll(state, now)

	if limits.RPM > 0 && len(state.window) >= limits.RPM {
		return fmt.Errorf("provider %s at %d/%d requests in the last minute: %w",
			provider, len(state.window), limits.RPM, ErrExceeded)
	}
	if limits.RPD > 0 && state.day >= limits.RPD {
		return fmt.Errorf("provider %s at %d/%d requests today: %w",
			provider, state.day, limits.RPD, ErrExceeded)
	}

	state.window = append(state.window, now)
	state.day++
	return nil
}

// Check reports health without consuming budget.
func (g *Governor) Check(provider string) Health {
	g.mu.Lock()
	defer g.mu.Unlock()

	limits, state, err := g.lookup(provider)
	if err != nil {
		return HealthOverload
	}
	g.roll(state, g.clock.Now())

	if limits.RPD > 0 && state.day >= limits.RPD {
		return HealthOverload
	}
	if limits.RPM <= 0 {
		return HealthHealthy
	}
	ratio := float64(len(state.window)) / float64(limits.RPM)
	switch {
	case ratio >= 1:
		return HealthOverload
	case ratio >= warningThreshold:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// Usage reports the provider's current minute and day counters, mainly for
// metrics export.
func (g *Governor) Usage(provider string) (minute, day int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, state, err := g.lookup(provider)
	if err != nil {
		return 0, 0
	}
	g.roll(state, g.clock.Now())
	return len(state.window), state.day
}

// Providers lists the providers this governor knows about.
func (g *Governor) Providers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.limits))
	for name := range g.limits {
		names = append(names, name)
	}
	return names
}

func (g *Governor) lookup(provider string) (Limits, *providerState, error) {
	limits, ok := g.limits[provider]
	if !ok {
		return Limits{}, nil, fmt.Errorf("%q: %w", provider, ErrUnknownProvider)
	}
	state, ok := g.states[provider]
	if !ok {
		state = &providerState{}
		g.states[provider] = state
	}
	return limits, state, nil
}

// roll prunes window entries older than sixty seconds and resets the day
// counter when the UTC calendar day has changed. Callers hold g.mu.
func (g *Governor) roll(state *providerState, now time.Time) {
	cutoff := now.Add(-time.Minute)
	kept := state.window[:0]
	for _, ts := range state.window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	state.window = kept

	dayKey := now.UTC().Format(time.DateOnly)
	if state.dayKey != dayKey {
		state.dayKey = dayKey
		state.day = 0
	}
}
