package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// manualClock hands out tickers keyed by interval so tests can fire each one.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers map[time.Duration]*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{
		now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local),
		tickers: make(map[time.Duration]*manualTicker),
	}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(d time.Duration) domain.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	c.tickers[d] = t
	return t
}

func (c *manualClock) ticker(d time.Duration) *manualTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[d]
}

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// fire blocks until the runner loop receives the tick.
func (t *manualTicker) fire() { t.ch <- time.Now() }

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// fakeTracker records lifecycle calls.
type fakeTracker struct {
	mu       sync.Mutex
	started  int
	stopped  int
	workMode []bool
}

func (f *fakeTracker) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeTracker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeTracker) SetWorkModeActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workMode = append(f.workMode, active)
}

func (f *fakeTracker) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

func (f *fakeTracker) workModeCalls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.workMode...)
}

// fakeRegistry is an in-memory domain.InstanceRegistry.
type fakeRegistry struct {
	mu         sync.Mutex
	inst       *domain.Instance
	held       bool
	acquireErr error
	heartbeats int
	releases   int
}

func (r *fakeRegistry) Acquire(inst domain.Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acquireErr != nil {
		return r.acquireErr
	}
	if r.held {
		return errors.New("already held")
	}
	r.held = true
	r.inst = &inst
	return nil
}

func (r *fakeRegistry) Heartbeat() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats++
	return nil
}

func (r *fakeRegistry) Current() (*domain.Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inst == nil {
		return nil, nil
	}
	inst := *r.inst
	return &inst, nil
}

func (r *fakeRegistry) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases++
	r.held = false
	r.inst = nil
	return nil
}

func (r *fakeRegistry) state() (held bool, heartbeats, releases int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held, r.heartbeats, r.releases
}

// fakeBlocker records the modes it enforced.
type fakeBlocker struct {
	mu    sync.Mutex
	modes []string
}

func (b *fakeBlocker) Enforce(_ context.Context, mode domain.WorkMode) (*domain.EnforcementResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modes = append(b.modes, mode.ID)
	return &domain.EnforcementResult{ModeID: mode.ID, KilledPIDs: []int{42}}, nil
}

func (b *fakeBlocker) enforced() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.modes...)
}

// fakeExporter counts exports.
type fakeExporter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *fakeExporter) ExportToday(ctx context.Context) (*domain.ExportSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("export without deadline")
	}
	if e.err != nil {
		return &domain.ExportSummary{Error: e.err.Error()}, e.err
	}
	return &domain.ExportSummary{Date: "2026-03-10", Rows: 2, Success: true}, nil
}

func (e *fakeExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// fakeProcessManager simulates processes that exit on SIGTERM.
type fakeProcessManager struct {
	mu           sync.Mutex
	running      map[int]bool
	terminated   []int
	terminateErr error
	ignoreTerm   bool
}

func newFakeProcessManager(pids ...int) *fakeProcessManager {
	pm := &fakeProcessManager{running: make(map[int]bool)}
	for _, pid := range pids {
		pm.running[pid] = true
	}
	return pm
}

func (p *fakeProcessManager) FindByName(string) ([]int, error) { return nil, nil }
func (p *fakeProcessManager) NameOf(int) (string, error)       { return "", nil }
func (p *fakeProcessManager) Kill(int) error                   { return nil }
func (p *fakeProcessManager) GetCurrentPID() int               { return 1 }

func (p *fakeProcessManager) Terminate(pid int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.terminateErr != nil {
		return p.terminateErr
	}
	p.terminated = append(p.terminated, pid)
	if !p.ignoreTerm {
		delete(p.running, pid)
	}
	return nil
}

func (p *fakeProcessManager) IsRunning(pid int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running[pid]
}

var _ domain.ProcessManager = (*fakeProcessManager)(nil)
