package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	Time       string
	Instrument string
	Buy        string
	BuyPrice   string
	Sell       string
	SellPrice  string
	Spread     string
	Notified   bool
}

// OpportunitiesComponent renders the most recent opportunities, newest first.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
}

// NewOpportunitiesComponent creates a new opportunities component.
func NewOpportunitiesComponent(maxRows int) *OpportunitiesComponent {
	return &OpportunitiesComponent{maxRows: maxRows}
}

// Add adds a new opportunity to the list.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	o.rows = append([]OpportunityRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
}

// Len returns the number of rows kept.
func (o *OpportunitiesComponent) Len() int {
	return len(o.rows)
}

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = nil
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	sentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (last %d)", o.maxRows)))
	b.WriteString("\n\n")

	if len(o.rows) == 0 {
		b.WriteString(dimStyle.Render("  No opportunities detected yet..."))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-8s %-12s %-22s %-22s %8s  %s\n", "Time", "Instrument", "Buy", "Sell", "Spread", "Alert"))
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", 84)) + "\n")
	for _, r := range o.rows {
		status := dimStyle.Render("suppressed")
		if r.Notified {
			status = sentStyle.Render("sent")
		}
		b.WriteString(fmt.Sprintf("  %-8s %-12s %-22s %-22s %7s%%  %s\n",
			r.Time, r.Instrument,
			r.Buy+"@"+r.BuyPrice,
			r.Sell+"@"+r.SellPrice,
			r.Spread, status))
	}
	return b.String()
}
