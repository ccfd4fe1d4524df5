package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fd1az/spread-monitor/pkg/ui/components"
)

const (
	maxOpportunities = 20
	maxLogs          = 6
	sourceWindow     = 2 * time.Minute
)

// refreshMsg redraws relative times.
type refreshMsg time.Time

func refreshCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	prices        *components.PricesComponent
	opportunities *components.OpportunitiesComponent
	status        *components.StatusComponent
	stats         *components.StatsComponent

	keys    KeyMap
	help    help.Model
	spinner spinner.Model

	width    int
	height   int
	paused   bool
	quitting bool
	now      time.Time
	logs     []string
}

// New creates a new TUI model for the given instruments.
func New(instruments []string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorPrimary)

	return Model{
		prices:        components.NewPricesComponent(instruments),
		opportunities: components.NewOpportunitiesComponent(maxOpportunities),
		status:        components.NewStatusComponent(sourceWindow),
		stats:         components.NewStatsComponent(),
		keys:          DefaultKeyMap(),
		help:          help.New(),
		spinner:       sp,
		now:           time.Now(),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refreshCmd())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.Clear):
			m.opportunities.Clear()
			m.status.Clear()
			m.logs = nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		m.now = time.Time(msg)
		return m, refreshCmd()

	case LogMsg:
		m.logs = appendLog(m.logs, msg)
		return m, nil
	}

	if m.paused {
		return m, nil
	}

	switch msg := msg.(type) {
	case PricesMsg:
		rows := make([]components.PriceRow, len(msg.Quotes))
		for i, q := range msg.Quotes {
			rows[i] = components.PriceRow{Source: q.Source, Price: q.Price}
		}
		m.prices.Update(msg.Instrument, rows)

	case OpportunityMsg:
		m.opportunities.Add(components.OpportunityRow{
			Time:       msg.At.Format("15:04:05"),
			Instrument: msg.Instrument,
			Buy:        msg.Buy,
			BuyPrice:   msg.BuyPrice,
			Sell:       msg.Sell,
			SellPrice:  msg.SellPrice,
			Spread:     msg.Spread,
			Notified:   msg.Notified,
		})

	case ScanMsg:
		m.stats.Add(msg.Opportunities, msg.Alerts, msg.Fatal, msg.Duration, msg.NextIn, msg.At)

	case SourceDownMsg:
		m.status.Update(components.SourceStatus{
			Source:     msg.Source,
			Instrument: msg.Instrument,
			Kind:       msg.Kind,
			Reason:     msg.Reason,
			At:         msg.At,
		})
	}
	return m, nil
}

func appendLog(logs []string, msg LogMsg) []string {
	at := msg.At
	if at.IsZero() {
		at = time.Now()
	}
	line := fmt.Sprintf("[%s] %s: %s", at.Format("15:04:05"), msg.Level, msg.Message)
	logs = append(logs, line)
	if len(logs) > maxLogs {
		logs = logs[len(logs)-maxLogs:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Stopping...\n\n"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(" Spread Monitor "))
	b.WriteString(" ")
	b.WriteString(m.spinner.View())
	if m.paused {
		b.WriteString(" ")
		b.WriteString(PausedStyle.Render("PAUSED"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	left := m.prices.View()
	right := m.status.View(m.now) + "\n\n" + m.opportunities.View()

	if m.width > 120 {
		half := m.width/2 - 2
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			BoxStyle.Width(half).Render(left),
			BoxStyle.Width(half).Render(right)))
	} else {
		width := m.width - 4
		if width < 40 {
			width = 80
		}
		b.WriteString(BoxStyle.Width(width).Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(right))
	}
	b.WriteString("\n\n")

	if len(m.logs) > 0 {
		b.WriteString(HeaderStyle.Render("LOG"))
		b.WriteString("\n")
		for _, l := range m.logs {
			style := MutedStyle
			switch {
			case strings.Contains(l, "] ERROR:"):
				style = ErrorStyle
			case strings.Contains(l, "] WARN:"):
				style = WarnStyle
			}
			b.WriteString(style.Render("  " + l))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}
