// Package system provides the wall clock behind candidate discovery
// timestamps and quota window accounting.
package system

import "time"

// Clock reads real time. It satisfies the crawler's Clock interface and
// feeds the quota governor, which is why Now always reports UTC: daily
// budgets reset on the UTC day boundary.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
