package entry

import (
	"math"
	"testing"
	"time"

	"github.com/tradeforge/gexpin/internal/broker"
	"github.com/tradeforge/gexpin/internal/config"
	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/strategy"
)

func testEntryConfig() *config.Config {
	return &config.Config{
		Mode:    "paper",
		Markets: []string{"SPX"},
		Entry: config.EntryConfig{
			WindowStart:         "09:45",
			WindowEnd:           "14:30",
			LastEntryCutoff:     "15:15",
			PostOpenBlackoutMin: 15,
			VolFloor:            10,
			VolCeiling:          28,
			VolSpikeMax:         1.5,
			VolSpikeLookbackMin: 5,
			RSIPeriod:           14,
			RSIMin:              30,
			RSIMax:              70,
			MaxOvernightGapPct:  0.01,
			MaxSlippageFraction: 0.25,
			MaxOpenPositions:    2,
			TargetPct:           0.50,
			Quantity:            1,
		},
	}
}

// eastern builds an instant on 2025-12-10, a regular Wednesday session.
func eastern(t *testing.T, clock *market.Clock, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2025, 12, 10, hour, minute, 0, 0, clock.Location())
}

func passingContext(t *testing.T, hour, minute int) *gateContext {
	t.Helper()
	clock := market.NewClock()
	idx, err := market.Lookup("SPX")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return &gateContext{
		now:   eastern(t, clock, hour, minute),
		clock: clock,
		idx:   idx,
		cfg:   testEntryConfig(),
		live:  false,
		quote: broker.UnderlyingQuote{Symbol: "SPX", Last: 6000, PrevClose: 5990},
		vol:   14,
		volSeries: []broker.VolPoint{
			{Value: 13.8}, {Value: 13.9}, {Value: 14.0},
		},
		openCount: 0,
	}
}

func TestMarketGatesHappyPath(t *testing.T) {
	g := passingContext(t, 11, 0)
	if rej := runGates(marketGates, g); rej != nil {
		t.Fatalf("unexpected rejection at %s: %s", rej.Gate, rej.Reason)
	}
}

func TestTradingDayGate(t *testing.T) {
	g := passingContext(t, 11, 0)
	// Shift to the following Saturday.
	g.now = g.now.AddDate(0, 0, 3)
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "trading_day" {
		t.Fatalf("expected trading_day rejection, got %+v", rej)
	}
}

func TestEntryWindowGate(t *testing.T) {
	for _, tc := range []struct{ hour, minute int }{{8, 0}, {14, 45}} {
		g := passingContext(t, tc.hour, tc.minute)
		rej := runGates(marketGates, g)
		if rej == nil || rej.Gate != "entry_window" {
			t.Errorf("at %02d:%02d: expected entry_window rejection, got %+v", tc.hour, tc.minute, rej)
		}
	}
}

func TestPostOpenBlackoutGate(t *testing.T) {
	g := passingContext(t, 9, 40)
	// Widen the window so the blackout is the binding constraint.
	g.cfg.Entry.WindowStart = "09:30"
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "post_open_blackout" {
		t.Fatalf("expected post_open_blackout rejection, got %+v", rej)
	}
}

func TestVolatilityBoundGates(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.vol = 8
	if rej := runGates(marketGates, g); rej == nil || rej.Gate != "volatility_floor" {
		t.Errorf("vol 8: expected volatility_floor, got %+v", rej)
	}

	g = passingContext(t, 11, 0)
	g.vol = 35
	if rej := runGates(marketGates, g); rej == nil || rej.Gate != "volatility_ceiling" {
		t.Errorf("vol 35: expected volatility_ceiling, got %+v", rej)
	}
}

func TestVolatilitySpikeGate(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.vol = 15.5
	g.volSeries = []broker.VolPoint{{Value: 13.8}, {Value: 13.5}, {Value: 14.2}}
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "volatility_spike" {
		t.Fatalf("expected volatility_spike rejection, got %+v", rej)
	}
}

func TestVolJump(t *testing.T) {
	series := []broker.VolPoint{{Value: 14.0}, {Value: 13.2}, {Value: 13.8}}
	if got := volJump(series, 14.5); math.Abs(got-1.3) > 1e-9 {
		t.Errorf("volJump = %.2f, want 1.30", got)
	}
	if got := volJump(nil, 14.5); got != 0 {
		t.Errorf("volJump with no series = %.2f, want 0", got)
	}
	// Falling volatility is not a spike.
	if got := volJump(series, 13.0); got > 0 {
		t.Errorf("falling volatility reported as jump %.2f", got)
	}
}

func TestExpectedMoveGate(t *testing.T) {
	g := passingContext(t, 11, 0)
	// Floor the vol so the move shrinks below the SPX minimum.
	g.vol = 10
	g.quote.Last = 2000
	g.quote.PrevClose = 2000
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "expected_move" {
		t.Fatalf("expected expected_move rejection, got %+v", rej)
	}
}

func TestExpectedDailyMove(t *testing.T) {
	got := ExpectedDailyMove(6000, 14)
	want := 6000 * 0.14 / math.Sqrt(252)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ExpectedDailyMove = %.4f, want %.4f", got, want)
	}
}

func TestMomentumGateLiveOnly(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.bars = nil // no price history at all
	if rej := runGates(marketGates, g); rej != nil && rej.Gate == "momentum" {
		t.Fatal("momentum gate must not run in paper mode")
	}

	g = passingContext(t, 11, 0)
	g.live = true
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "momentum" {
		t.Fatalf("live mode with no bars: expected momentum rejection, got %+v", rej)
	}
}

func TestWeekdayGateLiveOnly(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.cfg.Entry.ExcludedWeekdays = []string{"Wednesday"}
	if rej := runGates(marketGates, g); rej != nil && rej.Gate == "weekday" {
		t.Fatal("weekday gate must not run in paper mode")
	}

	g = passingContext(t, 11, 0)
	g.live = true
	g.cfg.Entry.ExcludedWeekdays = []string{"Wednesday"}
	// Satisfy the earlier live-only momentum gate with balanced history.
	g.bars = alternatingBars(30, 6000)
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "weekday" {
		t.Fatalf("expected weekday rejection, got %+v", rej)
	}
}

func TestOvernightGapGate(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.quote.PrevClose = 5900 // ~1.7% gap
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "overnight_gap" {
		t.Fatalf("expected overnight_gap rejection, got %+v", rej)
	}
}

func TestOpenPositionsGate(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.openCount = 2
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "open_positions" {
		t.Fatalf("expected open_positions rejection, got %+v", rej)
	}
}

func TestSetupGateSkip(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.setup = strategy.Setup{Kind: strategy.Skip, Pin: 6100, Distance: 100}
	rej := runGates(setupGates, g)
	if rej == nil || rej.Gate != "strategy" {
		t.Fatalf("expected strategy rejection, got %+v", rej)
	}
}

func TestShortStrikeDistanceGate(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.setup = strategy.Setup{
		Kind:    strategy.CallSpread,
		Strikes: []float64{6005, 6030},
	}
	g.credit = 1.20
	rej := runGates(setupGates, g)
	if rej == nil || rej.Gate != "short_strike_distance" {
		t.Fatalf("expected short_strike_distance rejection, got %+v", rej)
	}
}

func TestSpreadQualityGate(t *testing.T) {
	g := passingContext(t, 11, 0)
	g.setup = strategy.Setup{Kind: strategy.CallSpread, Strikes: []float64{6030, 6055}}

	g.credit = 0
	if rej := runGates(setupGates, g); rej == nil || rej.Gate != "spread_quality" {
		t.Errorf("zero credit: expected spread_quality, got %+v", rej)
	}

	g.credit = 1.00
	g.slippage = 0.40 // 40% of credit, limit is 25%
	if rej := runGates(setupGates, g); rej == nil || rej.Gate != "spread_quality" {
		t.Errorf("wide markets: expected spread_quality, got %+v", rej)
	}
}

func TestMinimumCreditMorningAfternoon(t *testing.T) {
	setup := strategy.Setup{Kind: strategy.CallSpread, Strikes: []float64{6030, 6055}}

	// 0.80 fails the 1.00 morning floor at 11:00 ET.
	g := passingContext(t, 11, 0)
	g.setup = setup
	g.credit = 0.80
	g.slippage = 0.10
	rej := runGates(setupGates, g)
	if rej == nil || rej.Gate != "minimum_credit" {
		t.Fatalf("morning: expected minimum_credit rejection, got %+v", rej)
	}

	// The same credit clears the 0.60 afternoon floor at 13:00 ET.
	g = passingContext(t, 13, 0)
	g.setup = setup
	g.credit = 0.80
	g.slippage = 0.10
	if rej := runGates(setupGates, g); rej != nil {
		t.Fatalf("afternoon: unexpected rejection at %s: %s", rej.Gate, rej.Reason)
	}
}

func TestGateOrderShortCircuits(t *testing.T) {
	// Both the floor and the open-position cap are violated; the earlier
	// gate must win.
	g := passingContext(t, 11, 0)
	g.vol = 8
	g.openCount = 5
	rej := runGates(marketGates, g)
	if rej == nil || rej.Gate != "volatility_floor" {
		t.Fatalf("expected first failing gate to win, got %+v", rej)
	}
}

// alternatingBars produce equal gains and losses, pinning RSI at 50.
func alternatingBars(n int, price float64) []broker.Bar {
	bars := make([]broker.Bar, n)
	for i := range bars {
		c := price
		if i%2 == 1 {
			c = price + 1
		}
		bars[i] = broker.Bar{Open: price, High: c + 1, Low: price - 1, Close: c}
	}
	return bars
}
