package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
)

const instrument = "LINK/USDT"

type entry struct {
	source string
	price  string
}

func priceMap(t *testing.T, entries ...entry) pricingDomain.PriceMap {
	t.Helper()
	pm := pricingDomain.NewPriceMap(instrument)
	for _, e := range entries {
		q := pricingDomain.Quote{
			SourceID:   e.source,
			Instrument: instrument,
			Price:      decimal.RequireFromString(e.price),
		}
		if err := pm.Add(q); err != nil {
			t.Fatal(err)
		}
	}
	return pm
}

func TestDetect(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name       string
		entries    []entry
		threshold  string
		wantOK     bool
		wantBuy    string
		wantSell   string
		wantSpread string // rounded to 2 places
	}{
		{
			name:       "three_sources_above_threshold",
			entries:    []entry{{"A", "100"}, {"B", "102"}, {"C", "95"}},
			threshold:  "5",
			wantOK:     true,
			wantBuy:    "C",
			wantSell:   "B",
			wantSpread: "7.37",
		},
		{
			name:      "below_threshold",
			entries:   []entry{{"A", "100"}, {"B", "102"}, {"C", "95"}},
			threshold: "8",
		},
		{
			name:       "exactly_at_threshold",
			entries:    []entry{{"A", "100"}, {"B", "105"}},
			threshold:  "5",
			wantOK:     true,
			wantBuy:    "A",
			wantSell:   "B",
			wantSpread: "5",
		},
		{
			name:      "single_source",
			entries:   []entry{{"A", "100"}},
			threshold: "0",
		},
		{
			name:      "empty",
			threshold: "0",
		},
		{
			name:      "all_equal",
			entries:   []entry{{"A", "100"}, {"B", "100"}, {"C", "100"}},
			threshold: "0",
		},
		{
			name:      "zero_price_skipped",
			entries:   []entry{{"A", "0"}, {"B", "100"}},
			threshold: "1",
		},
		{
			name:       "ties_keep_first_seen",
			entries:    []entry{{"A", "95"}, {"B", "102"}, {"C", "95"}, {"D", "102"}},
			threshold:  "1",
			wantOK:     true,
			wantBuy:    "A",
			wantSell:   "B",
			wantSpread: "7.37",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pm := priceMap(t, tt.entries...)
			opp, ok := Detect(pm, decimal.RequireFromString(tt.threshold), now)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (%v)", ok, tt.wantOK, opp)
			}
			if !ok {
				return
			}
			if opp.BuySource != tt.wantBuy || opp.SellSource != tt.wantSell {
				t.Errorf("buy/sell = %s/%s, want %s/%s", opp.BuySource, opp.SellSource, tt.wantBuy, tt.wantSell)
			}
			if got := opp.SpreadPercent.Round(2); !got.Equal(decimal.RequireFromString(tt.wantSpread)) {
				t.Errorf("spread = %s, want %s", got, tt.wantSpread)
			}
			if opp.SpreadPercent.IsNegative() {
				t.Errorf("negative spread %s", opp.SpreadPercent)
			}
			if opp.Instrument != instrument || !opp.DetectedAt.Equal(now) {
				t.Errorf("opportunity = %+v", opp)
			}
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	pm := priceMap(t, entry{"binance", "14.51"}, entry{"0x:bsc", "14.90"}, entry{"okx", "14.20"})
	threshold := decimal.RequireFromString("1")
	now := time.Unix(1_700_000_000, 0)

	first, ok := Detect(pm, threshold, now)
	if !ok {
		t.Fatal("expected an opportunity")
	}
	for i := 0; i < 10; i++ {
		again, _ := Detect(pm, threshold, now)
		if again.BuySource != first.BuySource || again.SellSource != first.SellSource ||
			!again.SpreadPercent.Equal(first.SpreadPercent) {
			t.Fatalf("run %d differs: %v vs %v", i, again, first)
		}
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		spread string
		width  string
		want   int64
	}{
		{"0.99", "1", 0},
		{"1", "1", 1},
		{"7.37", "1", 7},
		{"7.37", "0.5", 14},
		{"7.37", "2.5", 2},
		{"3.2", "0", 3},
	}
	for _, tt := range tests {
		t.Run(tt.spread+"/"+tt.width, func(t *testing.T) {
			got := Bucket(decimal.RequireFromString(tt.spread), decimal.RequireFromString(tt.width))
			if got != tt.want {
				t.Errorf("Bucket = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestOpportunity_Triple(t *testing.T) {
	opp := Opportunity{Instrument: instrument, BuySource: "okx", SellSource: "0x:bsc"}
	tr := opp.Triple()
	if tr.Key() != "LINK/USDT|okx|0x:bsc" {
		t.Errorf("key = %s", tr.Key())
	}
}
