package infra

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fd1az/spread-monitor/business/arbitrage/app"
	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	pricingApp "github.com/fd1az/spread-monitor/business/pricing/app"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/pkg/ui"
)

var (
	_ app.Reporter               = (*TUIReporter)(nil)
	_ pricingApp.UnavailableSink = (*TUIReporter)(nil)
)

// Sender delivers messages to a running Bubble Tea program.
type Sender interface {
	Send(msg tea.Msg)
}

// TUIReporter turns scan events into dashboard messages.
type TUIReporter struct {
	out Sender
	now func() time.Time
}

// NewTUIReporter creates a new TUIReporter.
func NewTUIReporter(out Sender) *TUIReporter {
	return &TUIReporter{out: out, now: time.Now}
}

func (r *TUIReporter) OnPrices(_ context.Context, pm pricingDomain.PriceMap) {
	quotes := pm.Quotes()
	rows := make([]ui.QuoteRow, len(quotes))
	for i, q := range quotes {
		rows[i] = ui.QuoteRow{Source: q.SourceID, Price: q.Price}
	}
	r.out.Send(ui.PricesMsg{Instrument: pm.Instrument(), Quotes: rows, At: r.now()})
}

func (r *TUIReporter) OnOpportunity(_ context.Context, opp domain.Opportunity, notified bool) {
	r.out.Send(ui.OpportunityMsg{
		Instrument: opp.Instrument,
		Buy:        opp.BuySource,
		BuyPrice:   opp.BuyPrice.String(),
		Sell:       opp.SellSource,
		SellPrice:  opp.SellPrice.String(),
		Spread:     opp.SpreadPercent.StringFixed(2),
		Notified:   notified,
		At:         opp.DetectedAt,
	})
}

func (r *TUIReporter) OnTick(_ context.Context, tick app.TickReport) {
	r.out.Send(ui.ScanMsg{
		TickID:        tick.ID,
		Duration:      tick.Duration,
		Opportunities: tick.Opportunities,
		Alerts:        tick.Alerts,
		Fatal:         tick.Fatal,
		NextIn:        tick.NextIn,
		At:            tick.StartedAt.Add(tick.Duration),
	})
}

// SourceUnavailable shows dropped sources in the status panel.
func (r *TUIReporter) SourceUnavailable(_ context.Context, instrument string, u *pricingDomain.Unavailable) {
	r.out.Send(ui.SourceDownMsg{
		Source:     u.Source,
		Instrument: instrument,
		Kind:       u.Kind.String(),
		Reason:     u.Reason,
		At:         r.now(),
	})
}
