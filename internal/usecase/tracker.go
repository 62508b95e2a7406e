package usecase

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// topAppsLimit is the number of apps reported by TodayStats.
const topAppsLimit = 5

// TrackerConfig holds attribution engine timing.
type TrackerConfig struct {
	TickInterval  time.Duration // Sampling period (default 1s)
	SampleTimeout time.Duration // Upper bound for one OS query
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		TickInterval:  time.Second,
		SampleTimeout: 800 * time.Millisecond,
	}
}

// Tracker is the attribution engine. It turns sampler ticks into session
// boundaries and ledger credits, and answers live (committed + in-progress)
// queries without writing anything.
//
// All state is guarded by mu, so a tick (including its synchronous write)
// completes before any concurrent read observes the day.
type Tracker struct {
	config  TrackerConfig
	sampler domain.WindowSampler
	ledger  *Ledger
	clock   domain.Clock
	logger  *zap.Logger

	mu           sync.Mutex
	tracking     bool
	hasSession   bool
	currentApp   string
	currentTitle string
	sessionStart time.Time
	workMode     bool

	// busy makes overlapping ticks skip instead of queueing.
	busy atomic.Bool

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewTracker creates a stopped tracker.
func NewTracker(
	config TrackerConfig,
	sampler domain.WindowSampler,
	ledger *Ledger,
	clock domain.Clock,
	logger *zap.Logger,
) *Tracker {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTrackerConfig().TickInterval
	}
	if config.SampleTimeout <= 0 {
		config.SampleTimeout = DefaultTrackerConfig().SampleTimeout
	}
	return &Tracker{
		config:  config,
		sampler: sampler,
		ledger:  ledger,
		clock:   clock,
		logger:  logger,
	}
}

// Start begins periodic sampling. No-op if already running.
// Time missed while stopped is not replayed.
func (t *Tracker) Start() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if t.tracking {
		t.mu.Unlock()
		return
	}
	t.tracking = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan struct{})
	ticker := t.clock.NewTicker(t.config.TickInterval)

	go t.loop(ctx, ticker, t.done)

	t.logger.Info("app tracking started",
		zap.Duration("tick_interval", t.config.TickInterval),
		zap.String("date", t.ledger.Date()))
}

func (t *Tracker) loop(ctx context.Context, ticker domain.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			t.Tick(ctx)
		}
	}
}

// Stop flushes the in-progress session into the ledger and halts sampling.
// Safe to call repeatedly and when no session exists.
func (t *Tracker) Stop() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.hasSession {
		now := t.clock.Now()
		t.rolloverLocked(now)
		t.creditSessionLocked(now, t.currentApp)
	}
	t.tracking = false
	t.hasSession = false
	t.currentApp = ""
	t.currentTitle = ""
	t.sessionStart = time.Time{}

	t.logger.Info("app tracking stopped", zap.String("date", t.ledger.Date()))
}

// Tick runs one sampling step. The ticker loop calls it; tests call it directly.
// A tick that arrives while the previous one is still in flight is skipped.
func (t *Tracker) Tick(ctx context.Context) {
	if !t.busy.CompareAndSwap(false, true) {
		t.logger.Debug("previous tick still running, skipping")
		return
	}
	defer t.busy.Store(false)

	win := t.sample(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.tracking {
		return
	}

	now := t.clock.Now()
	t.rolloverLocked(now)

	if win == nil || win.Name == "" {
		return
	}

	if t.hasSession && t.currentApp != win.Name {
		t.creditSessionLocked(now, win.Name)
	}

	if !t.hasSession || t.currentApp != win.Name {
		t.hasSession = true
		t.currentApp = win.Name
		t.sessionStart = now
		// First observation of an app creates no launch; only a return to a known app counts.
		t.ledger.RecordLaunch(win.Name)
		t.logger.Debug("app switched",
			zap.String("app", win.Name),
			zap.String("title", win.Title))
	}
	t.currentTitle = win.Title
}

func (t *Tracker) sample(ctx context.Context) *domain.ActiveWindow {
	sctx, cancel := context.WithTimeout(ctx, t.config.SampleTimeout)
	defer cancel()

	win, err := t.sampler.ActiveWindow(sctx)
	if err != nil {
		t.logger.Debug("failed to sample active window", zap.Error(err))
		return nil
	}
	return win
}

// creditSessionLocked credits the session's elapsed time to the current app,
// exactly as a switch-out does: empty title, non-positive elapsed suppressed.
func (t *Tracker) creditSessionLocked(now time.Time, focused string) {
	elapsed := now.Sub(t.sessionStart).Milliseconds()
	if elapsed <= 0 {
		t.logger.Debug("non-positive elapsed time, credit suppressed",
			zap.String("app", t.currentApp),
			zap.Int64("elapsed_ms", elapsed))
		return
	}
	t.ledger.Credit(Credit{
		App:        t.currentApp,
		Title:      "",
		DurationMs: elapsed,
		At:         now,
		WorkMode:   t.workMode,
		CurrentApp: focused,
	})
}

// rolloverLocked opens a new day when the local date moves forward. The part of
// the running session up to the end of its own day is credited to the old day
// first. Whole days skipped by a gap between ticks are credited to nobody.
func (t *Tracker) rolloverLocked(now time.Time) {
	date := now.Format(domain.DateLayout)
	old := t.ledger.Date()
	if date <= old {
		return
	}

	if t.hasSession {
		today := startOfDay(now)
		if t.sessionStart.Before(today) {
			endOfSessionDay := startOfDay(t.sessionStart).AddDate(0, 0, 1)
			t.creditSessionLocked(endOfSessionDay.Add(-time.Millisecond), t.currentApp)
			t.sessionStart = today
		}
	}

	t.ledger.Open(date)
	t.logger.Info("day rolled over",
		zap.String("from", old),
		zap.String("to", date))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SetWorkModeActive toggles work-mode accounting. The running session is
// flushed at each transition so time before and after lands in the right bucket.
func (t *Tracker) SetWorkModeActive(active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.workMode == active {
		return
	}
	if t.hasSession {
		now := t.clock.Now()
		t.rolloverLocked(now)
		t.creditSessionLocked(now, t.currentApp)
		t.sessionStart = now
	}
	t.workMode = active

	t.logger.Info("work mode changed",
		zap.Bool("active", active),
		zap.Int64("work_mode_time_ms", t.ledger.Today().WorkModeTime))
}

// WorkModeActive reports whether work-mode accounting is on.
func (t *Tracker) WorkModeActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.workMode
}

// IsTracking reports whether sampling is running.
func (t *Tracker) IsTracking() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracking
}

// CurrentApp returns the app of the running session.
func (t *Tracker) CurrentApp() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentApp, t.hasSession
}

// CurrentTitle returns the last sampled window title of the running session.
func (t *Tracker) CurrentTitle() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentTitle
}

// CurrentAppStartTime returns when the running session began, zero if none.
func (t *Tracker) CurrentAppStartTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionStart
}

// Subscribe forwards to the ledger's credit notifications.
func (t *Tracker) Subscribe(buffer int) (<-chan domain.UsageUpdate, func()) {
	return t.ledger.Subscribe(buffer)
}

// --- live projection ---

// CurrentSessionElapsed is now minus the session start, 0 without a session.
func (t *Tracker) CurrentSessionElapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.MsToDuration(t.elapsedLocked(t.clock.Now()))
}

func (t *Tracker) elapsedLocked(now time.Time) int64 {
	if !t.hasSession {
		return 0
	}
	if ms := now.Sub(t.sessionStart).Milliseconds(); ms > 0 {
		return ms
	}
	return 0
}

// LiveDayTotal is the committed total plus the running session, in ms.
func (t *Tracker) LiveDayTotal() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ledger.Today().TotalTime + t.elapsedLocked(t.clock.Now())
}

// LiveAppRecord returns the committed record for app, with the running session
// added when app is the current one.
func (t *Tracker) LiveAppRecord(app string) (domain.AppUsageRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var rec domain.AppUsageRecord
	committed := t.ledger.Record(app)
	if committed != nil {
		rec = *committed
	}
	if t.hasSession && app == t.currentApp {
		if committed == nil {
			rec = t.syntheticRecordLocked(now)
		}
		rec.Duration += t.elapsedLocked(now)
		return rec, true
	}
	return rec, committed != nil
}

// syntheticRecordLocked stands in for a current app that has no committed
// record yet, so the live day keeps TotalTime equal to the sum of durations.
func (t *Tracker) syntheticRecordLocked(now time.Time) domain.AppUsageRecord {
	return domain.AppUsageRecord{
		Name:       t.currentApp,
		LastActive: now.UnixMilli(),
		Category:   t.ledger.categorizer.Categorize(t.currentApp),
	}
}

// UsageData returns the committed record for date ("" means today by the clock).
// Today's record is the in-memory one, other dates come from storage.
func (t *Tracker) UsageData(date string) (*domain.DayRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if date == "" {
		t.rolloverLocked(t.clock.Now())
		date = t.ledger.Date()
	}
	day, ok := t.ledger.Load(date)
	if !ok {
		return nil, false
	}
	return day.Clone(), true
}

// RealTimeUsageData returns today's record with the running session folded
// into TotalTime, the current app's Duration and WorkModeTime.
func (t *Tracker) RealTimeUsageData() *domain.DayRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rolloverLocked(now)
	return t.realTimeLocked(now)
}

func (t *Tracker) realTimeLocked(now time.Time) *domain.DayRecord {
	day := t.ledger.Today().Clone()
	elapsed := t.elapsedLocked(now)
	if elapsed == 0 {
		return day
	}

	rec, ok := day.Apps[t.currentApp]
	if !ok {
		synthetic := t.syntheticRecordLocked(now)
		rec = &synthetic
		day.Apps[t.currentApp] = rec
	}
	rec.Duration += elapsed
	day.TotalTime += elapsed
	if t.workMode {
		day.WorkModeTime += elapsed
	}
	return day
}

// TodayStats summarizes today from the live view.
func (t *Tracker) TodayStats() domain.TodayStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rolloverLocked(now)
	day := t.realTimeLocked(now)

	apps := make([]domain.AppUsageRecord, 0, len(day.Apps))
	for _, a := range day.Apps {
		apps = append(apps, *a)
	}
	SortByDuration(apps)
	top := apps
	if len(top) > topAppsLimit {
		top = top[:topAppsLimit]
	}

	return domain.TodayStats{
		TotalTime:           day.TotalTime,
		TotalApps:           len(apps),
		TopApps:             top,
		CurrentApp:          t.currentApp,
		CurrentAppDuration:  t.elapsedLocked(now),
		CurrentAppStartTime: t.sessionStart,
		WorkModeActive:      t.workMode,
		WorkModeTime:        day.WorkModeTime,
		Date:                day.Date,
	}
}

// SortByDuration orders apps by duration, longest first, ties by name.
func SortByDuration(apps []domain.AppUsageRecord) {
	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Duration != apps[j].Duration {
			return apps[i].Duration > apps[j].Duration
		}
		return apps[i].Name < apps[j].Name
	})
}
