// Package fixtures provides test doubles for driving a tracker end to end.
package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// ManualClock only moves when told to. Its tickers never fire on their own,
// so tests drive the tracker with explicit Tick calls.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *ManualClock) NewTicker(time.Duration) domain.Ticker {
	return &idleTicker{ch: make(chan time.Time)}
}

type idleTicker struct {
	ch chan time.Time
}

func (t *idleTicker) C() <-chan time.Time { return t.ch }
func (t *idleTicker) Stop()               {}

// ScriptedSampler reports whichever window was focused last.
type ScriptedSampler struct {
	mu  sync.Mutex
	win *domain.ActiveWindow
}

// Focus puts app (with title) in the foreground. An empty app means nothing is focused.
func (s *ScriptedSampler) Focus(app, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if app == "" {
		s.win = nil
		return
	}
	s.win = &domain.ActiveWindow{Name: app, Title: title}
}

func (s *ScriptedSampler) ActiveWindow(context.Context) (*domain.ActiveWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.win == nil {
		return nil, nil
	}
	w := *s.win
	return &w, nil
}

var (
	_ domain.Clock         = (*ManualClock)(nil)
	_ domain.WindowSampler = (*ScriptedSampler)(nil)
)
