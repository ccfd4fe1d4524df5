package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/spread-monitor/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/spread-monitor/business/pricing/domain"
	"github.com/fd1az/spread-monitor/internal/apperror"
	"github.com/fd1az/spread-monitor/internal/logger"
)

// fakeAggregator returns fixed prices per instrument. fail decides per call
// whether the instrument errors or panics.
type fakeAggregator struct {
	mu     sync.Mutex
	prices map[string][][2]string // instrument -> (source, price)
	fail   func(symbol string, call int) error
	panics map[string]bool
	calls  map[string]int
	ctxs   []context.Context
	block  chan struct{}
}

func (f *fakeAggregator) Aggregate(ctx context.Context, inst pricingDomain.Instrument) (pricingDomain.PriceMap, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[inst.Symbol]++
	call := f.calls[inst.Symbol]
	f.ctxs = append(f.ctxs, ctx)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.panics[inst.Symbol] {
		panic("adapter exploded")
	}
	if f.fail != nil {
		if err := f.fail(inst.Symbol, call); err != nil {
			return pricingDomain.PriceMap{}, err
		}
	}
	pm := pricingDomain.NewPriceMap(inst.Symbol)
	for _, e := range f.prices[inst.Symbol] {
		_ = pm.Add(pricingDomain.Quote{SourceID: e[0], Instrument: inst.Symbol, Price: decimal.RequireFromString(e[1])})
	}
	return pm, nil
}

func (f *fakeAggregator) callCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[symbol]
}

type recordingNotifier struct {
	mu            sync.Mutex
	events        []string
	opportunities []domain.Opportunity
	fatals        []error
}

func (n *recordingNotifier) record(ev string) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) NotifyStartup(context.Context, StartupInfo) bool {
	n.record("startup")
	return true
}

func (n *recordingNotifier) NotifyOpportunity(_ context.Context, _ pricingDomain.Instrument, opp domain.Opportunity) bool {
	n.mu.Lock()
	n.opportunities = append(n.opportunities, opp)
	n.mu.Unlock()
	n.record("opportunity")
	return true
}

func (n *recordingNotifier) NotifyFatal(_ context.Context, err error) bool {
	n.mu.Lock()
	n.fatals = append(n.fatals, err)
	n.mu.Unlock()
	n.record("fatal")
	return true
}

func (n *recordingNotifier) NotifyShutdown(context.Context, string) bool {
	n.record("shutdown")
	return true
}

func (n *recordingNotifier) snapshot() ([]string, []domain.Opportunity, []error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...),
		append([]domain.Opportunity(nil), n.opportunities...),
		append([]error(nil), n.fatals...)
}

type tickRecorder struct {
	NopReporter
	mu    sync.Mutex
	ticks []TickReport
}

func (r *tickRecorder) OnTick(_ context.Context, tr TickReport) {
	r.mu.Lock()
	r.ticks = append(r.ticks, tr)
	r.mu.Unlock()
}

func (r *tickRecorder) snapshot() []TickReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TickReport(nil), r.ticks...)
}

func instruments(t *testing.T, symbols ...string) []pricingDomain.Instrument {
	t.Helper()
	out := make([]pricingDomain.Instrument, 0, len(symbols))
	for _, s := range symbols {
		inst, err := pricingDomain.NewInstrument(s, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, inst)
	}
	return out
}

func newTestScanner(t *testing.T, agg *fakeAggregator, n Notifier, rep Reporter, interval time.Duration, symbols ...string) *Scanner {
	t.Helper()
	s, err := NewScanner(agg, instruments(t, symbols...), newDedup(t, newMapStore()), n, ScannerConfig{
		Interval:           interval,
		ThresholdPercent:   decimal.NewFromInt(5),
		FatalBackoffFactor: 1.5,
		NotifyTimeout:      time.Second,
	}, logger.NewNop(), WithReporter(rep))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestScanner_AlertsOncePerTriple(t *testing.T) {
	agg := &fakeAggregator{prices: map[string][][2]string{
		"LINK/USDT": {{"A", "100"}, {"B", "102"}, {"C", "95"}},
	}}
	n := &recordingNotifier{}
	s := newTestScanner(t, agg, n, nil, 10*time.Millisecond, "LINK/USDT")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return s.Stats().Ticks >= 3 })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}

	events, opps, _ := n.snapshot()
	if events[0] != "startup" || events[len(events)-1] != "shutdown" {
		t.Errorf("events = %v", events)
	}
	if len(opps) != 1 {
		t.Fatalf("opportunity alerts = %d, want 1 (dedup)", len(opps))
	}
	opp := opps[0]
	if opp.BuySource != "C" || opp.SellSource != "B" || !opp.SpreadPercent.Round(2).Equal(decimal.RequireFromString("7.37")) {
		t.Errorf("opportunity = %v", opp)
	}
	st := s.Stats()
	if st.AlertsSent != 1 || st.AlertsSuppressed < 2 || st.Opportunities != st.Ticks {
		t.Errorf("stats = %+v", st)
	}
	if s.State() != StateStopped {
		t.Errorf("state = %s", s.State())
	}
}

func TestScanner_FatalIsolationAndBackoff(t *testing.T) {
	agg := &fakeAggregator{
		prices: map[string][][2]string{
			"LINK/USDT": {{"A", "100"}, {"B", "110"}},
			"ETH/USDT":  {{"A", "3000"}, {"B", "3300"}},
		},
		fail: func(symbol string, call int) error {
			if symbol == "LINK/USDT" && call == 1 {
				return errors.New("aggregator broke")
			}
			return nil
		},
	}
	n := &recordingNotifier{}
	rep := &tickRecorder{}
	s := newTestScanner(t, agg, n, rep, 20*time.Millisecond, "LINK/USDT", "ETH/USDT")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return s.Stats().Ticks >= 2 })
	cancel()
	<-done

	ticks := rep.snapshot()
	if ticks[0].Fatal != 1 || ticks[0].NextIn != 30*time.Millisecond {
		t.Errorf("first tick = %+v, want 1 fatal and 30ms backoff", ticks[0])
	}
	if ticks[1].Fatal != 0 || ticks[1].NextIn != 20*time.Millisecond {
		t.Errorf("second tick = %+v", ticks[1])
	}
	gap := ticks[1].StartedAt.Sub(ticks[0].StartedAt.Add(ticks[0].Duration))
	if gap < 30*time.Millisecond {
		t.Errorf("gap after fatal tick = %s, want >= 30ms", gap)
	}

	// ETH was scanned in the failing tick.
	if agg.callCount("ETH/USDT") < 2 {
		t.Errorf("ETH calls = %d", agg.callCount("ETH/USDT"))
	}

	_, opps, fatals := n.snapshot()
	if len(fatals) != 1 {
		t.Fatalf("fatal alerts = %d, want 1", len(fatals))
	}
	if apperror.GetCode(fatals[0]) != apperror.CodeSchedulerFatal {
		t.Errorf("fatal code = %s", apperror.GetCode(fatals[0]))
	}
	if s.Stats().FatalErrors != 1 {
		t.Errorf("fatal counter = %d", s.Stats().FatalErrors)
	}
	var sawETH bool
	for _, o := range opps {
		if o.Instrument == "ETH/USDT" {
			sawETH = true
		}
	}
	if !sawETH {
		t.Error("ETH opportunity not alerted")
	}
}

func TestScanner_PanicBecomesFatal(t *testing.T) {
	agg := &fakeAggregator{
		prices: map[string][][2]string{"ETH/USDT": {{"A", "1"}, {"B", "1"}}},
		panics: map[string]bool{"LINK/USDT": true},
	}
	n := &recordingNotifier{}
	s := newTestScanner(t, agg, n, nil, 10*time.Millisecond, "LINK/USDT", "ETH/USDT")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return s.Stats().Ticks >= 2 })
	cancel()
	<-done

	if got := s.Stats().FatalErrors; got < 2 {
		t.Errorf("fatal errors = %d, want one per tick", got)
	}
	if agg.callCount("ETH/USDT") < 2 {
		t.Error("loop stopped scanning after panic")
	}
}

func TestScanner_ShutdownWaitsForTick(t *testing.T) {
	agg := &fakeAggregator{
		prices: map[string][][2]string{"LINK/USDT": {{"A", "100"}, {"B", "100"}}},
		block:  make(chan struct{}),
	}
	n := &recordingNotifier{}
	s := newTestScanner(t, agg, n, nil, time.Hour, "LINK/USDT")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool { return agg.callCount("LINK/USDT") == 1 })
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a tick was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	agg.mu.Lock()
	tickCtx := agg.ctxs[0]
	agg.mu.Unlock()
	if tickCtx.Err() != nil {
		t.Errorf("tick context cancelled by shutdown: %v", tickCtx.Err())
	}

	close(agg.block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the tick")
	}

	if s.Stats().Ticks != 1 {
		t.Errorf("ticks = %d, want 1", s.Stats().Ticks)
	}
	events, _, _ := n.snapshot()
	if events[len(events)-1] != "shutdown" {
		t.Errorf("events = %v", events)
	}
}

func TestScanner_HealthCheck(t *testing.T) {
	now := time.Unix(1_000, 0)
	s, err := NewScanner(&fakeAggregator{}, instruments(t, "LINK/USDT"), newDedup(t, newMapStore()), &recordingNotifier{},
		ScannerConfig{Interval: 10 * time.Second, FatalBackoffFactor: 1.5}, logger.NewNop(),
		WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.HealthCheck(context.Background()); ok {
		t.Error("healthy before start")
	}
	s.startedAt.Store(now.UnixNano())
	if ok, msg := s.HealthCheck(context.Background()); !ok {
		t.Errorf("unhealthy right after start: %s", msg)
	}
	s.lastTick.Store(now.UnixNano())
	now = now.Add(44 * time.Second)
	if ok, msg := s.HealthCheck(context.Background()); !ok {
		t.Errorf("unhealthy within allowance: %s", msg)
	}
	now = now.Add(2 * time.Second)
	if ok, _ := s.HealthCheck(context.Background()); ok {
		t.Error("healthy after 46s without a tick")
	}
}

func TestNewScanner_Validation(t *testing.T) {
	d := newDedup(t, newMapStore())
	if _, err := NewScanner(&fakeAggregator{}, nil, d, &recordingNotifier{}, ScannerConfig{}, logger.NewNop()); err == nil {
		t.Error("expected error without instruments")
	}
	if _, err := NewScanner(nil, instruments(t, "LINK/USDT"), d, &recordingNotifier{}, ScannerConfig{}, logger.NewNop()); err == nil {
		t.Error("expected error without aggregator")
	}
}
