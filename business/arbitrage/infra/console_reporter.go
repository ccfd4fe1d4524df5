// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fd1az/spread-monitor/business/arbitrage/app"
	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter prints opportunities and tick summaries as plain text.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a ConsoleReporter writing to w, or stdout when
// w is nil.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleReporter{out: w}
}

// OnPrices is a no-op; the console only shows results.
func (r *ConsoleReporter) OnPrices(context.Context, pricingDomain.PriceMap) {}

func (r *ConsoleReporter) OnOpportunity(_ context.Context, opp domain.Opportunity, notified bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := "suppressed"
	if notified {
		status = "ALERT"
	}
	fmt.Fprintf(r.out, "[%s] %-10s %-10s buy %s @ %s  sell %s @ %s  spread %s%%\n",
		opp.DetectedAt.Format("15:04:05"), status, opp.Instrument,
		opp.BuySource, opp.BuyPrice.StringFixed(6),
		opp.SellSource, opp.SellPrice.StringFixed(6),
		opp.SpreadPercent.StringFixed(2))
}

func (r *ConsoleReporter) OnTick(_ context.Context, tick app.TickReport) {
	if tick.Fatal == 0 && tick.Opportunities == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] tick %s: %d instruments, %d opportunities, %d alerts, %d fatal, %s, next in %s\n",
		tick.StartedAt.Format("15:04:05"), shortID(tick.ID), tick.Instruments,
		tick.Opportunities, tick.Alerts, tick.Fatal,
		tick.Duration.Round(time.Millisecond), tick.NextIn)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
