package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds scan statistics for display.
type Stats struct {
	Ticks         int64
	Opportunities int64
	Alerts        int64
	Fatal         int64
	LastDuration  time.Duration
	NextIn        time.Duration
	LastTick      time.Time
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Add folds one tick into the totals.
func (s *StatsComponent) Add(opportunities, alerts, fatal int, duration, nextIn time.Duration, at time.Time) {
	s.stats.Ticks++
	s.stats.Opportunities += int64(opportunities)
	s.stats.Alerts += int64(alerts)
	s.stats.Fatal += int64(fatal)
	s.stats.LastDuration = duration
	s.stats.NextIn = nextIn
	s.stats.LastTick = at
}

// Stats returns the current totals.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	fatal := valueStyle.Render(fmt.Sprintf("%d", s.stats.Fatal))
	if s.stats.Fatal > 0 {
		fatal = errorStyle.Render(fmt.Sprintf("%d", s.stats.Fatal))
	}

	last := "-"
	if !s.stats.LastTick.IsZero() {
		last = s.stats.LastTick.Format("15:04:05")
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Ticks: %s  │  Opportunities: %s  │  Alerts: %s  │  Fatal: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Ticks)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Opportunities)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Alerts)),
			fatal,
		) +
		fmt.Sprintf("Last tick: %s (%s)  │  Next in: %s",
			valueStyle.Render(last),
			valueStyle.Render(s.stats.LastDuration.Round(time.Millisecond).String()),
			valueStyle.Render(s.stats.NextIn.String()),
		)
}
