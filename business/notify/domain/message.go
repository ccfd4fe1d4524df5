// Package domain contains the message texts and delivery error types for the
// notify context.
package domain

import (
	"fmt"
	"strings"
	"time"

	arbDomain "github.com/fd1az/spread-monitor/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/asset"
)

// OpportunityText renders an alert with explorer links for every network
// the instrument has a contract on. Networks unknown to reg are listed
// without a link.
func OpportunityText(inst pricingDomain.Instrument, opp arbDomain.Opportunity, reg *asset.Registry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Arbitrage opportunity for %s\n\n", opp.Instrument)
	fmt.Fprintf(&b, "💰 Buy on %s: $%s\n", opp.BuySource, opp.BuyPrice.StringFixed(6))
	fmt.Fprintf(&b, "💸 Sell on %s: $%s\n", opp.SellSource, opp.SellPrice.StringFixed(6))
	fmt.Fprintf(&b, "📊 Spread: %s%%\n", opp.SpreadPercent.StringFixed(2))

	networks := inst.Networks()
	if len(networks) == 0 {
		return b.String()
	}
	b.WriteString("🔗 Contracts:\n")
	for _, name := range networks {
		addr, _ := inst.Contract(name)
		if n, ok := reg.Get(name); ok && n.ExplorerURL != "" {
			fmt.Fprintf(&b, "%s: %s\n", title(name), n.TokenURL(addr))
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", title(name), addr.Hex())
	}
	return b.String()
}

// StartupText announces the monitored set.
func StartupText(instruments, sources []string, interval time.Duration, threshold string) string {
	return fmt.Sprintf("✅ Spread monitor started\nInstruments: %s\nSources: %s\nInterval: %s, threshold: %s%%",
		strings.Join(instruments, ", "), strings.Join(sources, ", "), interval, threshold)
}

// FatalText reports an unexpected scan failure.
func FatalText(err error) string {
	return fmt.Sprintf("🚨 Critical error:\n%v", err)
}

// ShutdownText reports that the monitor stopped.
func ShutdownText(reason string) string {
	return fmt.Sprintf("🛑 Spread monitor stopped: %s", reason)
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
