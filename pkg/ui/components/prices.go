// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow is one source's quote for an instrument.
type PriceRow struct {
	Source string
	Price  decimal.Decimal
}

// PricesComponent renders the latest quotes per instrument, marking the
// cheapest and the most expensive source.
type PricesComponent struct {
	order []string
	rows  map[string][]PriceRow
}

// NewPricesComponent creates a prices component listing instruments in the
// given order.
func NewPricesComponent(instruments []string) *PricesComponent {
	return &PricesComponent{
		order: instruments,
		rows:  make(map[string][]PriceRow),
	}
}

// Update replaces the quotes for instrument.
func (p *PricesComponent) Update(instrument string, rows []PriceRow) {
	if _, known := p.rows[instrument]; !known && !contains(p.order, instrument) {
		p.order = append(p.order, instrument)
	}
	p.rows[instrument] = rows
}

// Extremes returns the indexes of the lowest and highest price, first seen
// winning ties. Both are -1 for an empty slice.
func Extremes(rows []PriceRow) (lo, hi int) {
	if len(rows) == 0 {
		return -1, -1
	}
	for i := range rows {
		if rows[i].Price.LessThan(rows[lo].Price) {
			lo = i
		}
		if rows[i].Price.GreaterThan(rows[hi].Price) {
			hi = i
		}
	}
	return lo, hi
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	lowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	highStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var b strings.Builder
	b.WriteString(headerStyle.Render("PRICES"))
	b.WriteString("\n")

	if len(p.order) == 0 {
		b.WriteString(dimStyle.Render("  Waiting for price data..."))
		return b.String()
	}

	for _, inst := range p.order {
		rows := p.rows[inst]
		b.WriteString("\n  " + inst + "\n")
		if len(rows) == 0 {
			b.WriteString(dimStyle.Render("    no quotes yet") + "\n")
			continue
		}
		lo, hi := Extremes(rows)
		for i, r := range rows {
			line := fmt.Sprintf("    %-18s %16s", r.Source, r.Price.StringFixed(6))
			switch {
			case i == lo && lo != hi:
				line = lowStyle.Render(line + "  low")
			case i == hi && lo != hi:
				line = highStyle.Render(line + "  high")
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
