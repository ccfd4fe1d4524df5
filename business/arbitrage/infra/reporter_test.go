package infra

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/business/arbitrage/app"
	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/pkg/ui"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *captureSender) Send(msg tea.Msg) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		Instrument:    "LINK/USDT",
		BuySource:     "C",
		BuyPrice:      decimal.RequireFromString("95"),
		SellSource:    "B",
		SellPrice:     decimal.RequireFromString("102"),
		SpreadPercent: domain.SpreadPercent(decimal.RequireFromString("95"), decimal.RequireFromString("102")),
		DetectedAt:    time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestTUIReporter_Messages(t *testing.T) {
	out := &captureSender{}
	r := NewTUIReporter(out)
	ctx := context.Background()

	pm := pricingDomain.NewPriceMap("LINK/USDT")
	_ = pm.Add(pricingDomain.Quote{SourceID: "binance", Instrument: "LINK/USDT", Price: decimal.RequireFromString("14.5")})
	r.OnPrices(ctx, pm)
	r.OnOpportunity(ctx, testOpportunity(), true)
	r.OnTick(ctx, app.TickReport{ID: "t1", Opportunities: 1, Alerts: 1})
	r.SourceUnavailable(ctx, "LINK/USDT", pricingDomain.NewUnavailable("okx", pricingDomain.KindTimeout, "deadline", nil))

	if len(out.msgs) != 4 {
		t.Fatalf("messages = %d", len(out.msgs))
	}
	prices, ok := out.msgs[0].(ui.PricesMsg)
	if !ok || prices.Instrument != "LINK/USDT" || len(prices.Quotes) != 1 || prices.Quotes[0].Source != "binance" {
		t.Errorf("prices msg = %+v", out.msgs[0])
	}
	opp, ok := out.msgs[1].(ui.OpportunityMsg)
	if !ok || opp.Spread != "7.37" || !opp.Notified || opp.Buy != "C" {
		t.Errorf("opportunity msg = %+v", out.msgs[1])
	}
	if scan, ok := out.msgs[2].(ui.ScanMsg); !ok || scan.TickID != "t1" {
		t.Errorf("scan msg = %+v", out.msgs[2])
	}
	if down, ok := out.msgs[3].(ui.SourceDownMsg); !ok || down.Kind != "timeout" || down.Source != "okx" {
		t.Errorf("source msg = %+v", out.msgs[3])
	}
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporter(&buf)
	ctx := context.Background()

	r.OnOpportunity(ctx, testOpportunity(), true)
	r.OnTick(ctx, app.TickReport{ID: "0123456789", Instruments: 1})
	r.OnTick(ctx, app.TickReport{ID: "abcdef0123", Instruments: 2, Fatal: 1, NextIn: 15 * time.Second})

	got := buf.String()
	for _, want := range []string{"ALERT", "buy C @ 95.000000", "sell B @ 102.000000", "spread 7.37%", "tick abcdef01", "1 fatal"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "01234567") {
		t.Errorf("quiet tick was printed:\n%s", got)
	}
}
