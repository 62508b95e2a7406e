package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// fakeClock is a manually advanced domain.Clock.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) NewTicker(d time.Duration) domain.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) tickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func (c *fakeClock) lastTicker() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickers[len(c.tickers)-1]
}

// fakeTicker is fired by sending on ch.
type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *fakeTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// mockSampler returns whatever window was set last.
type mockSampler struct {
	mu    sync.Mutex
	win   *domain.ActiveWindow
	err   error
	calls int
	block chan struct{} // when non-nil, ActiveWindow waits on it
}

func (s *mockSampler) set(app string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	if app == "" {
		s.win = nil
		return
	}
	s.win = &domain.ActiveWindow{Name: app, Title: app + " window"}
}

func (s *mockSampler) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *mockSampler) ActiveWindow(ctx context.Context) (*domain.ActiveWindow, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.win == nil {
		return nil, nil
	}
	w := *s.win
	return &w, nil
}

func (s *mockSampler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// memoryStore is a domain.DayStore holding JSON copies so callers can't alias it.
type memoryStore struct {
	mu      sync.Mutex
	days    map[string][]byte
	saveErr error
	loadErr error
	saves   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{days: make(map[string][]byte)}
}

func (m *memoryStore) Load(date string) (*domain.DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.days[date]
	if !ok {
		return nil, domain.ErrDayNotFound
	}
	var day domain.DayRecord
	if err := json.Unmarshal(data, &day); err != nil {
		return nil, err
	}
	return &day, nil
}

func (m *memoryStore) Save(day *domain.DayRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := json.Marshal(day)
	if err != nil {
		return err
	}
	m.days[day.Date] = data
	m.saves++
	return nil
}

func (m *memoryStore) Dates() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dates := make([]string, 0, len(m.days))
	for d := range m.days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) put(day *domain.DayRecord) {
	data, _ := json.Marshal(day)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days[day.Date] = data
}

func (m *memoryStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// staticCategorizer puts every app in one category.
type staticCategorizer struct{ category string }

func (c staticCategorizer) Categorize(string) string { return c.category }

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	findResult map[string][]int
	findErr    error
	killErr    error
	killedPIDs []int
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if m.findResult != nil {
		return m.findResult[pattern], nil
	}
	return nil, nil
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockProcessManager) Kill(pid int) error {
	if m.killErr != nil {
		return m.killErr
	}
	m.killedPIDs = append(m.killedPIDs, pid)
	return nil
}

func (m *mockProcessManager) Terminate(pid int) error {
	return m.Kill(pid)
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return false
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

// mockTableSink records rows per table.
type mockTableSink struct {
	rows      map[string][]domain.TableRow
	appendErr error
	pingErr   error
}

func newMockTableSink() *mockTableSink {
	return &mockTableSink{rows: make(map[string][]domain.TableRow)}
}

func (m *mockTableSink) AppendRows(ctx context.Context, table string, rows []domain.TableRow) (int, error) {
	if m.appendErr != nil {
		return 0, m.appendErr
	}
	m.rows[table] = append(m.rows[table], rows...)
	return len(rows), nil
}

func (m *mockTableSink) Ping(ctx context.Context) error {
	return m.pingErr
}

var (
	_ domain.Clock          = (*fakeClock)(nil)
	_ domain.WindowSampler  = (*mockSampler)(nil)
	_ domain.DayStore       = (*memoryStore)(nil)
	_ domain.ProcessManager = (*mockProcessManager)(nil)
	_ domain.TableSink      = (*mockTableSink)(nil)
)
