// Package tui renders the live usage dashboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/eliteGoblin/focusd/app_usage/internal/domain"
	"github.com/eliteGoblin/focusd/app_usage/internal/usecase"
)

// RefreshInterval is how often the dashboard re-reads the live view.
const RefreshInterval = 100 * time.Millisecond

const barWidth = 24

// StatsSource is the live projection the dashboard reads.
type StatsSource interface {
	TodayStats() domain.TodayStats
	CurrentTitle() string
}

// WorkModeController switches work mode on the running tracker.
type WorkModeController interface {
	WorkMode() *domain.WorkMode
	SetWorkMode(mode *domain.WorkMode)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4A90E2")).
			Padding(0, 1).
			MarginBottom(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(0, 2)

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))

	barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7DC6F"))
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model is the dashboard's bubbletea model.
type Model struct {
	source   StatsSource
	control  WorkModeController // nil disables the work mode key
	mode     domain.WorkMode    // activated by the work mode key
	stats    domain.TodayStats
	title    string
	activeID string
	width    int
}

// New creates a dashboard model. control may be nil.
func New(source StatsSource, control WorkModeController, mode domain.WorkMode) Model {
	m := Model{source: source, control: control, mode: mode}
	m.refresh()
	return m
}

func (m *Model) refresh() {
	m.stats = m.source.TodayStats()
	m.title = m.source.CurrentTitle()
	m.activeID = ""
	if m.control != nil {
		if wm := m.control.WorkMode(); wm != nil {
			m.activeID = wm.ID
		}
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "w":
			if m.control != nil {
				if m.control.WorkMode() != nil {
					m.control.SetWorkMode(nil)
				} else {
					mode := m.mode
					m.control.SetWorkMode(&mode)
				}
				m.refresh()
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.refresh()
		return m, tickCmd()
	}
	return m, nil
}

func (m Model) View() string {
	s := m.stats
	var b strings.Builder

	header := fmt.Sprintf("App Usage - %s", s.Date)
	if m.width > 0 {
		b.WriteString(headerStyle.Width(m.width).Render(header))
	} else {
		b.WriteString(headerStyle.Render(header))
	}
	b.WriteString("\n")

	var current string
	if s.CurrentApp == "" {
		current = idleStyle.Render("● idle")
	} else {
		current = fmt.Sprintf("%s %s  %s",
			activeStyle.Render("●"), s.CurrentApp, usecase.FormatClock(s.CurrentAppDuration))
		if m.title != "" {
			current += "\n" + dimStyle.Render(m.title)
		}
	}
	b.WriteString(boxStyle.Render("NOW\n\n" + current))
	b.WriteString("\n")

	work := dimStyle.Render("off")
	if s.WorkModeActive {
		label := "on"
		if m.activeID != "" {
			label = m.activeID
		}
		work = activeStyle.Render(label)
	}
	b.WriteString(boxStyle.Render(fmt.Sprintf(
		"TODAY\n\nTotal:     %s\nApps:      %d\nWork mode: %s  %s",
		usecase.FormatClock(s.TotalTime), s.TotalApps, work, usecase.FormatClock(s.WorkModeTime))))
	b.WriteString("\n")

	b.WriteString(boxStyle.Render("TOP APPS\n\n" + topApps(s)))
	b.WriteString("\n")

	footer := "q quit"
	if m.control != nil {
		footer += " • w toggle work mode"
	}
	b.WriteString(dimStyle.Render(footer))
	return b.String()
}

func topApps(s domain.TodayStats) string {
	if len(s.TopApps) == 0 {
		return dimStyle.Render("no usage yet")
	}

	nameWidth := 0
	for _, a := range s.TopApps {
		nameWidth = max(nameWidth, len(a.Name))
	}

	lines := make([]string, 0, len(s.TopApps))
	for _, a := range s.TopApps {
		lines = append(lines, fmt.Sprintf("%-*s %s %s",
			nameWidth, a.Name, bar(a.Duration, s.TotalTime), usecase.FormatClock(a.Duration)))
	}
	return strings.Join(lines, "\n")
}

func bar(part, total int64) string {
	filled := 0
	if total > 0 {
		filled = int(part * barWidth / total)
	}
	filled = min(max(filled, 0), barWidth)
	return barStyle.Render(strings.Repeat("█", filled)) + strings.Repeat("░", barWidth-filled)
}

// Run shows the dashboard until the user quits or ctx is canceled.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
