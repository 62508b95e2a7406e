package usecase

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// Credit is one ledger mutation request.
type Credit struct {
	App        string
	Title      string
	DurationMs int64
	At         time.Time
	WorkMode   bool
	CurrentApp string // app in focus when the credit was made, for subscribers
}

// Ledger owns the open day's DayRecord and its persistence.
// Not safe for concurrent mutation; Tracker serializes all calls.
type Ledger struct {
	store         domain.DayStore
	categorizer   domain.Categorizer
	logger        *zap.Logger
	timelineLimit int

	day *domain.DayRecord

	subMu  sync.Mutex
	subs   map[int]chan domain.UsageUpdate
	nextID int
}

// NewLedger opens the record for today (loaded from store, or empty).
func NewLedger(
	store domain.DayStore,
	categorizer domain.Categorizer,
	today string,
	timelineLimit int,
	logger *zap.Logger,
) *Ledger {
	if timelineLimit <= 0 {
		timelineLimit = domain.DefaultTimelineLimit
	}
	l := &Ledger{
		store:         store,
		categorizer:   categorizer,
		logger:        logger,
		timelineLimit: timelineLimit,
		subs:          make(map[int]chan domain.UsageUpdate),
	}
	l.Open(today)
	return l
}

// Open makes date the open day. The previous day is left as persisted.
func (l *Ledger) Open(date string) {
	day, err := l.store.Load(date)
	if err != nil {
		if !errors.Is(err, domain.ErrDayNotFound) {
			l.logger.Warn("failed to load day record, starting empty",
				zap.String("date", date),
				zap.Error(err))
		}
		day = domain.NewDayRecord(date)
	}
	day.Normalize(date)
	l.day = day
}

// Today returns the open record itself. Callers must not mutate it.
func (l *Ledger) Today() *domain.DayRecord {
	return l.day
}

// Date returns the open day key.
func (l *Ledger) Date() string {
	return l.day.Date
}

// Load returns the record for date: the open record when date is today,
// otherwise whatever the store holds. The bool is false when no data exists.
func (l *Ledger) Load(date string) (*domain.DayRecord, bool) {
	if date == l.day.Date {
		return l.day, true
	}
	day, err := l.store.Load(date)
	if err != nil {
		if !errors.Is(err, domain.ErrDayNotFound) {
			l.logger.Warn("failed to load day record",
				zap.String("date", date),
				zap.Error(err))
		}
		return nil, false
	}
	day.Normalize(date)
	return day, true
}

// Dates lists the stored day keys.
func (l *Ledger) Dates() ([]string, error) {
	return l.store.Dates()
}

// Record returns the committed record for app, nil if absent.
func (l *Ledger) Record(app string) *domain.AppUsageRecord {
	return l.day.Apps[app]
}

// RecordLaunch increments launches for an existing app. Unknown apps are left alone.
func (l *Ledger) RecordLaunch(app string) bool {
	rec, ok := l.day.Apps[app]
	if !ok {
		return false
	}
	rec.Launches++
	return true
}

// Credit adds c.DurationMs to c.App, appends a timeline event, persists the day
// and notifies subscribers. Non-positive durations are ignored.
// Persistence failures are logged; the in-memory record stays authoritative.
func (l *Ledger) Credit(c Credit) (domain.AppUsageRecord, bool) {
	if c.DurationMs <= 0 {
		return domain.AppUsageRecord{}, false
	}
	at := c.At.UnixMilli()

	rec, ok := l.day.Apps[c.App]
	if !ok {
		rec = &domain.AppUsageRecord{
			Name:       c.App,
			Title:      c.Title,
			LastActive: at,
			Category:   l.categorizer.Categorize(c.App),
		}
		l.day.Apps[c.App] = rec
	}
	rec.Duration += c.DurationMs
	rec.LastActive = at
	rec.Title = c.Title

	l.day.TotalTime += c.DurationMs
	var workModeDelta int64
	if c.WorkMode {
		workModeDelta = c.DurationMs
		l.day.WorkModeTime += workModeDelta
	}

	l.day.Timeline = append(l.day.Timeline, domain.TimelineEvent{
		Timestamp:  at,
		App:        c.App,
		Title:      c.Title,
		IsWorkMode: c.WorkMode,
	})
	if over := len(l.day.Timeline) - l.timelineLimit; over > 0 {
		trimmed := make([]domain.TimelineEvent, l.timelineLimit)
		copy(trimmed, l.day.Timeline[over:])
		l.day.Timeline = trimmed
	}

	l.persist()

	snapshot := *rec
	l.publish(domain.UsageUpdate{
		AppName:           c.App,
		Record:            snapshot,
		DurationDelta:     c.DurationMs,
		CurrentApp:        c.CurrentApp,
		TotalTimeDelta:    c.DurationMs,
		WorkModeTimeDelta: workModeDelta,
	})
	return snapshot, true
}

func (l *Ledger) persist() {
	if err := l.store.Save(l.day); err != nil {
		l.logger.Warn("failed to persist day record",
			zap.String("date", l.day.Date),
			zap.Error(err))
	}
}

// Subscribe registers a listener for credit updates. Sends never block:
// when the buffer is full the update is dropped for that subscriber.
func (l *Ledger) Subscribe(buffer int) (<-chan domain.UsageUpdate, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan domain.UsageUpdate, buffer)

	l.subMu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.subMu.Lock()
			delete(l.subs, id)
			l.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (l *Ledger) publish(u domain.UsageUpdate) {
	l.subMu.Lock()
	defer l.subMu.Unlock()
	for id, ch := range l.subs {
		select {
		case ch <- u:
		default:
			l.logger.Debug("subscriber buffer full, update dropped",
				zap.Int("subscriber", id),
				zap.String("app", u.AppName))
		}
	}
}
