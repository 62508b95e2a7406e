package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// RealClock implements domain.Clock with the system clock.
type RealClock struct{}

// NewRealClock creates a wall clock.
func NewRealClock() domain.Clock {
	return RealClock{}
}

// Now returns the local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker.
func (RealClock) NewTicker(d time.Duration) domain.Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// Ensure RealClock implements domain.Clock.
var _ domain.Clock = RealClock{}
