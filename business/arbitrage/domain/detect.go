package domain

import (
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
)

// Detect returns the widest buy-low/sell-high spread in pm when it reaches
// thresholdPercent. Ties keep the source seen first, so the result only
// depends on the map contents and their order.
//
// A map with fewer than two quotes, all-equal prices, or a non-positive
// minimum yields no opportunity.
func Detect(pm pricingDomain.PriceMap, thresholdPercent decimal.Decimal, now time.Time) (Opportunity, bool) {
	quotes := pm.Quotes()
	if len(quotes) < 2 {
		return Opportunity{}, false
	}

	lo, hi := 0, 0
	for i, q := range quotes[1:] {
		if q.Price.LessThan(quotes[lo].Price) {
			lo = i + 1
		}
		if q.Price.GreaterThan(quotes[hi].Price) {
			hi = i + 1
		}
	}

	buy, sell := quotes[lo], quotes[hi]
	if !buy.Price.IsPositive() || lo == hi {
		return Opportunity{}, false
	}

	spread := SpreadPercent(buy.Price, sell.Price)
	if spread.LessThan(thresholdPercent) {
		return Opportunity{}, false
	}

	return Opportunity{
		Instrument:    pm.Instrument(),
		BuySource:     buy.SourceID,
		BuyPrice:      buy.Price,
		SellSource:    sell.SourceID,
		SellPrice:     sell.Price,
		SpreadPercent: spread,
		DetectedAt:    now,
	}, true
}
