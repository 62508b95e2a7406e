package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// Remote table column names.
const (
	FieldDate          = "Date"
	FieldAppName       = "App"
	FieldHours         = "Hours"
	FieldShare         = "Share"
	FieldTotalHours    = "Total Hours"
	FieldAppCount      = "Apps"
	FieldTopApp        = "Top App"
	FieldWorkModeHours = "Work Mode Hours"
	FieldTotalTime     = "Total Time"
)

// UsageSource is the read side of the tracker used by exports and views.
type UsageSource interface {
	UsageData(date string) (*domain.DayRecord, bool)
	RealTimeUsageData() *domain.DayRecord
}

// ExporterConfig names the destination tables.
type ExporterConfig struct {
	TableID        string
	SummaryTableID string // optional; empty skips the summary row
}

// Exporter pushes a day's usage to a remote table service.
type Exporter struct {
	config ExporterConfig
	source UsageSource
	sink   domain.TableSink
	logger *zap.Logger
}

// NewExporter creates an exporter.
func NewExporter(config ExporterConfig, source UsageSource, sink domain.TableSink, logger *zap.Logger) *Exporter {
	return &Exporter{
		config: config,
		source: source,
		sink:   sink,
		logger: logger,
	}
}

// ExportToday exports today's live view.
func (e *Exporter) ExportToday(ctx context.Context) (*domain.ExportSummary, error) {
	return e.ExportDate(ctx, "")
}

// ExportDate exports one day. Today ("" or its date) includes the running session.
func (e *Exporter) ExportDate(ctx context.Context, date string) (*domain.ExportSummary, error) {
	day, err := e.dayFor(date)
	if err != nil {
		return &domain.ExportSummary{Date: date, Error: err.Error()}, err
	}

	summary := &domain.ExportSummary{Date: day.Date, AppRecords: len(day.Apps)}

	rows, err := BuildAppRows(day)
	if err != nil {
		summary.Error = err.Error()
		return summary, err
	}

	n, err := e.sink.AppendRows(ctx, e.config.TableID, rows)
	summary.Rows += n
	if err != nil {
		summary.Error = err.Error()
		return summary, fmt.Errorf("export app rows: %w", err)
	}

	if e.config.SummaryTableID != "" {
		row, err := BuildSummaryRow(day)
		if err != nil {
			summary.Error = err.Error()
			return summary, err
		}
		n, err := e.sink.AppendRows(ctx, e.config.SummaryTableID, []domain.TableRow{row})
		summary.Rows += n
		if err != nil {
			summary.Error = err.Error()
			return summary, fmt.Errorf("export summary row: %w", err)
		}
	}

	summary.Success = true
	e.logger.Info("usage exported",
		zap.String("date", day.Date),
		zap.Int("apps", summary.AppRecords),
		zap.Int("rows", summary.Rows))

	return summary, nil
}

// dayFor uses the live view for today, whether named or "".
func (e *Exporter) dayFor(date string) (*domain.DayRecord, error) {
	if date == "" {
		return e.source.RealTimeUsageData(), nil
	}
	if live := e.source.RealTimeUsageData(); live != nil && live.Date == date {
		return live, nil
	}
	day, ok := e.source.UsageData(date)
	if !ok {
		return nil, fmt.Errorf("%s: %w", date, domain.ErrDayNotFound)
	}
	return day, nil
}

// BuildAppRows produces one row per app, longest first.
func BuildAppRows(day *domain.DayRecord) ([]domain.TableRow, error) {
	dateMs, err := dateMillis(day.Date)
	if err != nil {
		return nil, err
	}

	apps := make([]domain.AppUsageRecord, 0, len(day.Apps))
	for _, a := range day.Apps {
		apps = append(apps, *a)
	}
	SortByDuration(apps)

	rows := make([]domain.TableRow, 0, len(apps))
	for _, a := range apps {
		share := 0.0
		if day.TotalTime > 0 {
			share = round(float64(a.Duration)/float64(day.TotalTime), 3)
		}
		rows = append(rows, domain.TableRow{Fields: map[string]any{
			FieldDate:    dateMs,
			FieldAppName: a.Name,
			FieldHours:   msToHours(a.Duration),
			FieldShare:   share,
		}})
	}
	return rows, nil
}

// BuildSummaryRow produces the per-day totals row.
func BuildSummaryRow(day *domain.DayRecord) (domain.TableRow, error) {
	dateMs, err := dateMillis(day.Date)
	if err != nil {
		return domain.TableRow{}, err
	}

	top := ""
	var topDur int64 = -1
	for _, a := range day.Apps {
		if a.Duration > topDur || (a.Duration == topDur && a.Name < top) {
			top, topDur = a.Name, a.Duration
		}
	}

	return domain.TableRow{Fields: map[string]any{
		FieldDate:          dateMs,
		FieldTotalHours:    round(msToHours(day.TotalTime), 2),
		FieldAppCount:      len(day.Apps),
		FieldTopApp:        top,
		FieldWorkModeHours: round(msToHours(day.WorkModeTime), 2),
		FieldTotalTime:     FormatClock(day.TotalTime),
	}}, nil
}

// FormatClock renders milliseconds as HH:MM:SS.
func FormatClock(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

func dateMillis(date string) (int64, error) {
	t, err := time.ParseInLocation(domain.DateLayout, date, time.Local)
	if err != nil {
		return 0, fmt.Errorf("invalid day key %q: %w", date, err)
	}
	return t.UnixMilli(), nil
}

func msToHours(ms int64) float64 {
	return float64(ms) / float64(time.Hour/time.Millisecond)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

var _ UsageSource = (*Tracker)(nil)
