// Package clock provides the time source injected into the inventory engine.
//
// Services never call time.Now() directly so that status classification,
// sweeps and retention windows can be tested against a fixed instant.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// Real returns the actual system time.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

// Now returns the fixed time.
func (c Fixed) Now() time.Time {
	return c.T
}

// Func wraps a function as a Clock.
type Func func() time.Time

// Now calls the wrapped function.
func (f Func) Now() time.Time {
	return f()
}

// NewReal returns a Clock backed by the system time. Use at entry points only.
func NewReal() Clock {
	return Real{}
}

// NewFixed returns a Clock frozen at t.
func NewFixed(t time.Time) Clock {
	return Fixed{T: t}
}
