// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"time"
)

// DateLayout is the day key format (local calendar date).
const DateLayout = "2006-01-02"

// DefaultTimelineLimit caps DayRecord.Timeline; oldest events are evicted first.
const DefaultTimelineLimit = 1000

// ErrDayNotFound is returned by stores when no record exists for a date.
var ErrDayNotFound = errors.New("no usage data for date")

// AppUsageRecord is the per-application aggregate for a single day.
// Durations and timestamps are milliseconds so the persisted JSON stays compact
// and readable by other tools.
type AppUsageRecord struct {
	Name       string `json:"name"`
	Title      string `json:"title"`
	Duration   int64  `json:"duration"` // ms attributed today
	Launches   int    `json:"launches"` // transitions into this app
	LastActive int64  `json:"lastActive"`
	Category   string `json:"category,omitempty"`
}

// TimelineEvent is one attribution event. Display aid only, not accounting.
type TimelineEvent struct {
	Timestamp  int64  `json:"timestamp"`
	App        string `json:"app"`
	Title      string `json:"title"`
	IsWorkMode bool   `json:"isWorkMode,omitempty"`
}

// DayRecord is the aggregate for one calendar day.
// Invariant: TotalTime equals the sum of Apps[*].Duration.
type DayRecord struct {
	Date         string                     `json:"date"`
	TotalTime    int64                      `json:"totalTime"`
	Apps         map[string]*AppUsageRecord `json:"apps"`
	Timeline     []TimelineEvent            `json:"timeline"`
	WorkModeTime int64                      `json:"workModeTime"`
}

// NewDayRecord returns an empty record for date.
func NewDayRecord(date string) *DayRecord {
	return &DayRecord{
		Date:     date,
		Apps:     make(map[string]*AppUsageRecord),
		Timeline: make([]TimelineEvent, 0),
	}
}

// Normalize fills fields that older or hand-edited files may omit.
func (d *DayRecord) Normalize(date string) {
	if d.Date == "" {
		d.Date = date
	}
	if d.Apps == nil {
		d.Apps = make(map[string]*AppUsageRecord)
	}
	for name, app := range d.Apps {
		if app == nil {
			delete(d.Apps, name)
			continue
		}
		if app.Name == "" {
			app.Name = name
		}
	}
	if d.Timeline == nil {
		d.Timeline = make([]TimelineEvent, 0)
	}
}

// Clone returns a deep copy, safe to hand to readers outside the engine.
func (d *DayRecord) Clone() *DayRecord {
	if d == nil {
		return nil
	}
	c := &DayRecord{
		Date:         d.Date,
		TotalTime:    d.TotalTime,
		Apps:         make(map[string]*AppUsageRecord, len(d.Apps)),
		Timeline:     make([]TimelineEvent, len(d.Timeline)),
		WorkModeTime: d.WorkModeTime,
	}
	for k, v := range d.Apps {
		app := *v
		c.Apps[k] = &app
	}
	copy(c.Timeline, d.Timeline)
	return c
}

// SumDurations returns the sum of all app durations.
func (d *DayRecord) SumDurations() int64 {
	var sum int64
	for _, app := range d.Apps {
		sum += app.Duration
	}
	return sum
}

// ActiveWindow is one sampler observation of the foreground window.
type ActiveWindow struct {
	Name  string // owning application, as reported by the OS
	Title string
	PID   int
}

// UsageUpdate is published on every ledger credit.
type UsageUpdate struct {
	AppName           string
	Record            AppUsageRecord
	DurationDelta     int64
	CurrentApp        string
	TotalTimeDelta    int64
	WorkModeTimeDelta int64
}

// TodayStats is the derived summary combining committed and live data.
type TodayStats struct {
	TotalTime           int64
	TotalApps           int
	TopApps             []AppUsageRecord
	CurrentApp          string
	CurrentAppDuration  int64
	CurrentAppStartTime time.Time
	WorkModeActive      bool
	WorkModeTime        int64
	Date                string
}

// BlockedApp is a distraction that a work mode terminates.
type BlockedApp struct {
	Name        string
	ProcessName string
	Enabled     bool
}

// WorkMode is a named focus profile.
type WorkMode struct {
	ID          string
	Name        string
	Description string
	BlockedApps []BlockedApp
}

// EnforcementResult captures what happened during a single blocking sweep.
type EnforcementResult struct {
	ModeID     string
	KilledPIDs []int
	Errors     []error
	ExecutedAt time.Time
	DurationMs int64
}

// TableRow is one record pushed to the remote table service.
type TableRow struct {
	Fields map[string]any `json:"fields"`
}

// ExportSummary describes one export call.
type ExportSummary struct {
	Date       string
	AppRecords int
	Rows       int
	Success    bool
	Error      string
}

// Instance describes the running tracker process.
type Instance struct {
	PID        int       `json:"pid"`
	StartedAt  time.Time `json:"started_at"`
	Heartbeat  time.Time `json:"heartbeat"`
	AppVersion string    `json:"app_version,omitempty"`
	DataDir    string    `json:"data_dir,omitempty"`
}

// MsToDuration converts stored milliseconds to a time.Duration.
func MsToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
