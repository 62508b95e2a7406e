package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
)

// stubSource serves fixed records.
type stubSource struct {
	today *domain.DayRecord
	days  map[string]*domain.DayRecord
}

func (s *stubSource) UsageData(date string) (*domain.DayRecord, bool) {
	d, ok := s.days[date]
	return d, ok
}

func (s *stubSource) RealTimeUsageData() *domain.DayRecord { return s.today }

func sampleDay(date string) *domain.DayRecord {
	day := domain.NewDayRecord(date)
	day.Apps["Code"] = &domain.AppUsageRecord{Name: "Code", Duration: 3 * 3600 * 1000}
	day.Apps["Slack"] = &domain.AppUsageRecord{Name: "Slack", Duration: 3600 * 1000}
	day.TotalTime = 4 * 3600 * 1000
	day.WorkModeTime = 90 * 60 * 1000
	return day
}

func TestBuildAppRows(t *testing.T) {
	rows, err := BuildAppRows(sampleDay(testDate))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	wantDate := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local).UnixMilli()
	assert.Equal(t, map[string]any{
		FieldDate: wantDate, FieldAppName: "Code", FieldHours: 3.0, FieldShare: 0.75,
	}, rows[0].Fields)
	assert.Equal(t, "Slack", rows[1].Fields[FieldAppName])
	assert.Equal(t, 0.25, rows[1].Fields[FieldShare])
}

func TestBuildAppRows_ShareRoundedAndZeroTotal(t *testing.T) {
	day := domain.NewDayRecord(testDate)
	day.Apps["A"] = &domain.AppUsageRecord{Name: "A", Duration: 1}
	day.Apps["B"] = &domain.AppUsageRecord{Name: "B", Duration: 2}
	day.TotalTime = 3

	rows, err := BuildAppRows(day)
	require.NoError(t, err)
	assert.Equal(t, 0.667, rows[0].Fields[FieldShare])
	assert.Equal(t, 0.333, rows[1].Fields[FieldShare])

	day.TotalTime = 0
	rows, err = BuildAppRows(day)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rows[0].Fields[FieldShare])
}

func TestBuildAppRows_InvalidDate(t *testing.T) {
	_, err := BuildAppRows(domain.NewDayRecord("not-a-date"))
	assert.Error(t, err)
}

func TestBuildSummaryRow(t *testing.T) {
	row, err := BuildSummaryRow(sampleDay(testDate))
	require.NoError(t, err)

	assert.Equal(t, 4.0, row.Fields[FieldTotalHours])
	assert.Equal(t, 2, row.Fields[FieldAppCount])
	assert.Equal(t, "Code", row.Fields[FieldTopApp])
	assert.Equal(t, 1.5, row.Fields[FieldWorkModeHours])
	assert.Equal(t, "04:00:00", row.Fields[FieldTotalTime])
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00"},
		{-10, "00:00:00"},
		{59_999, "00:00:59"},
		{3_723_000, "01:02:03"},
		{100 * 3600 * 1000, "100:00:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatClock(tt.ms))
	}
}

func TestExporter_ExportTodayUsesLiveView(t *testing.T) {
	sink := newMockTableSink()
	source := &stubSource{today: sampleDay(testDate)}
	e := NewExporter(ExporterConfig{TableID: "tbl", SummaryTableID: "sum"}, source, sink, zap.NewNop())

	summary, err := e.ExportToday(context.Background())

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, testDate, summary.Date)
	assert.Equal(t, 2, summary.AppRecords)
	assert.Equal(t, 3, summary.Rows)
	assert.Len(t, sink.rows["tbl"], 2)
	assert.Len(t, sink.rows["sum"], 1)
}

func TestExporter_SkipsSummaryWithoutTable(t *testing.T) {
	sink := newMockTableSink()
	source := &stubSource{today: sampleDay(testDate)}
	e := NewExporter(ExporterConfig{TableID: "tbl"}, source, sink, zap.NewNop())

	summary, err := e.ExportToday(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows)
	assert.Empty(t, sink.rows[""])
}

func TestExporter_HistoricalDate(t *testing.T) {
	sink := newMockTableSink()
	source := &stubSource{days: map[string]*domain.DayRecord{"2026-03-01": sampleDay("2026-03-01")}}
	e := NewExporter(ExporterConfig{TableID: "tbl"}, source, sink, zap.NewNop())

	summary, err := e.ExportDate(context.Background(), "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", summary.Date)

	summary, err = e.ExportDate(context.Background(), "2020-01-01")
	assert.ErrorIs(t, err, domain.ErrDayNotFound)
	assert.False(t, summary.Success)
}

func TestExporter_NamedTodayUsesLiveView(t *testing.T) {
	f := newTrackerFixture(t, testNow)
	f.observe("Code", 2)
	f.observe("Slack", 3) // Slack is still running, not yet committed

	sink := newMockTableSink()
	e := NewExporter(ExporterConfig{TableID: "tbl"}, f.tracker, sink, zap.NewNop())

	summary, err := e.ExportDate(context.Background(), testDate)

	require.NoError(t, err)
	assert.Equal(t, testDate, summary.Date)
	assert.Equal(t, 2, summary.AppRecords)
	require.Len(t, sink.rows["tbl"], 2)
	assert.Equal(t, "Slack", sink.rows["tbl"][0].Fields[FieldAppName])
}

func TestExporter_SinkFailure(t *testing.T) {
	sink := newMockTableSink()
	sink.appendErr = errors.New("code 99991663: invalid token")
	e := NewExporter(ExporterConfig{TableID: "tbl"}, &stubSource{today: sampleDay(testDate)}, sink, zap.NewNop())

	summary, err := e.ExportToday(context.Background())

	require.Error(t, err)
	assert.False(t, summary.Success)
	assert.Contains(t, summary.Error, "invalid token")
}

func TestExporter_WorksAgainstTracker(t *testing.T) {
	f := newTrackerFixture(t, testNow)
	f.observe("Code", 2)
	f.observe("Slack", 1)

	sink := newMockTableSink()
	e := NewExporter(ExporterConfig{TableID: "tbl"}, f.tracker, sink, zap.NewNop())

	summary, err := e.ExportToday(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.AppRecords)
	require.Len(t, sink.rows["tbl"], 2)
	assert.Equal(t, "Code", sink.rows["tbl"][0].Fields[FieldAppName])
}
