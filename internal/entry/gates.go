package entry

import (
	"fmt"
	"math"
	"time"

	"github.com/tradeforge/gexpin/internal/broker"
	"github.com/tradeforge/gexpin/internal/chain"
	"github.com/tradeforge/gexpin/internal/config"
	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/strategy"
)

// Rejection identifies the gate that stopped a cycle and why. It is an
// expected outcome, not an error.
type Rejection struct {
	Gate   string
	Reason string
}

// gateContext carries everything the gate battery inspects. Built once per
// cycle; gates never do I/O.
type gateContext struct {
	now   time.Time
	clock *market.Clock
	idx   market.Index
	cfg   *config.Config
	live  bool

	quote     broker.UnderlyingQuote
	vol       float64
	volSeries []broker.VolPoint
	bars      []broker.Bar
	openCount int

	// Populated before the setup gates run.
	setup    strategy.Setup
	snapshot *chain.Snapshot
	credit   float64
	slippage float64
}

type gate struct {
	name  string
	check func(g *gateContext) string // empty string passes
}

// marketGates run before the chain is fetched; first failure wins.
var marketGates = []gate{
	{"trading_day", func(g *gateContext) string {
		if !g.clock.IsTradingDay(g.now) {
			return "not a trading day"
		}
		return ""
	}},
	{"entry_window", func(g *gateContext) string {
		et := g.clock.Eastern(g.now)
		start := clockOn(et, g.cfg.Entry.WindowStart)
		end := clockOn(et, g.cfg.Entry.WindowEnd)
		if et.Before(start) || et.After(end) {
			return fmt.Sprintf("outside entry window %s-%s ET", g.cfg.Entry.WindowStart, g.cfg.Entry.WindowEnd)
		}
		return ""
	}},
	{"last_entry_cutoff", func(g *gateContext) string {
		et := g.clock.Eastern(g.now)
		if !et.Before(clockOn(et, g.cfg.Entry.LastEntryCutoff)) {
			return fmt.Sprintf("past last-entry cutoff %s ET", g.cfg.Entry.LastEntryCutoff)
		}
		return ""
	}},
	{"post_open_blackout", func(g *gateContext) string {
		elapsed := g.clock.MinutesSinceOpen(g.now)
		if elapsed < float64(g.cfg.Entry.PostOpenBlackoutMin) {
			return fmt.Sprintf("within %dm post-open blackout (%.0fm since open)", g.cfg.Entry.PostOpenBlackoutMin, elapsed)
		}
		return ""
	}},
	{"volatility_floor", func(g *gateContext) string {
		if g.vol < g.cfg.Entry.VolFloor {
			return fmt.Sprintf("volatility %.1f below floor %.1f", g.vol, g.cfg.Entry.VolFloor)
		}
		return ""
	}},
	{"volatility_ceiling", func(g *gateContext) string {
		if g.vol > g.cfg.Entry.VolCeiling {
			return fmt.Sprintf("volatility %.1f above ceiling %.1f", g.vol, g.cfg.Entry.VolCeiling)
		}
		return ""
	}},
	{"volatility_spike", func(g *gateContext) string {
		if jump := volJump(g.volSeries, g.vol); jump > g.cfg.Entry.VolSpikeMax {
			return fmt.Sprintf("volatility jumped %.2f in last %dm (max %.2f)", jump, g.cfg.Entry.VolSpikeLookbackMin, g.cfg.Entry.VolSpikeMax)
		}
		return ""
	}},
	{"expected_move", func(g *gateContext) string {
		move := ExpectedDailyMove(g.quote.Last, g.vol)
		if move < g.idx.MinExpectedMove {
			return fmt.Sprintf("expected move %.1f below minimum %.1f", move, g.idx.MinExpectedMove)
		}
		return ""
	}},
	{"momentum", func(g *gateContext) string {
		if !g.live {
			return ""
		}
		rsi, ok := RSI(closes(g.bars), g.cfg.Entry.RSIPeriod)
		if !ok {
			return "insufficient bars for RSI"
		}
		if rsi > g.cfg.Entry.RSIMax || rsi < g.cfg.Entry.RSIMin {
			return fmt.Sprintf("RSI %.1f outside [%.0f, %.0f]", rsi, g.cfg.Entry.RSIMin, g.cfg.Entry.RSIMax)
		}
		return ""
	}},
	{"weekday", func(g *gateContext) string {
		if !g.live {
			return ""
		}
		day := g.clock.Eastern(g.now).Weekday()
		for _, name := range g.cfg.Entry.ExcludedWeekdays {
			if excluded, err := config.ParseWeekday(name); err == nil && day == excluded {
				return fmt.Sprintf("%s is excluded", name)
			}
		}
		return ""
	}},
	{"overnight_gap", func(g *gateContext) string {
		if g.quote.PrevClose <= 0 {
			return "missing previous close"
		}
		gap := math.Abs(g.quote.Last-g.quote.PrevClose) / g.quote.PrevClose
		if gap > g.cfg.Entry.MaxOvernightGapPct {
			return fmt.Sprintf("overnight gap %.2f%% exceeds %.2f%%", gap*100, g.cfg.Entry.MaxOvernightGapPct*100)
		}
		return ""
	}},
	{"open_positions", func(g *gateContext) string {
		if g.openCount >= g.cfg.Entry.MaxOpenPositions {
			return fmt.Sprintf("%d positions already open (max %d)", g.openCount, g.cfg.Entry.MaxOpenPositions)
		}
		return ""
	}},
}

// setupGates run after signal extraction and strike selection.
var setupGates = []gate{
	{"strategy", func(g *gateContext) string {
		if g.setup.Kind == strategy.Skip {
			return fmt.Sprintf("pin %.0f too far from price (distance %.0f), no tradeable edge", g.setup.Pin, g.setup.Distance)
		}
		return ""
	}},
	{"short_strike_distance", func(g *gateContext) string {
		for _, strike := range g.setup.ShortStrikes() {
			if d := math.Abs(strike - g.quote.Last); d < g.idx.MinShortDistance {
				return fmt.Sprintf("short strike %.0f only %.1f points from price (min %.1f)", strike, d, g.idx.MinShortDistance)
			}
		}
		return ""
	}},
	{"spread_quality", func(g *gateContext) string {
		if g.credit <= 0 {
			return "no net credit available at current quotes"
		}
		if g.slippage > g.cfg.Entry.MaxSlippageFraction*g.credit {
			return fmt.Sprintf("slippage %.2f exceeds %.0f%% of credit %.2f", g.slippage, g.cfg.Entry.MaxSlippageFraction*100, g.credit)
		}
		return ""
	}},
	{"minimum_credit", func(g *gateContext) string {
		morning := g.clock.MinutesSinceOpen(g.now) < 150
		floor := g.idx.MinCredit(morning)
		if g.credit < floor {
			return fmt.Sprintf("credit %.2f below minimum %.2f", g.credit, floor)
		}
		return ""
	}},
}

func runGates(gates []gate, g *gateContext) *Rejection {
	for _, gt := range gates {
		if reason := gt.check(g); reason != "" {
			return &Rejection{Gate: gt.name, Reason: reason}
		}
	}
	return nil
}

// ExpectedDailyMove converts an annualized volatility index level into the
// one-day expected move in index points.
func ExpectedDailyMove(price, vol float64) float64 {
	return price * (vol / 100) / math.Sqrt(252)
}

// volJump returns the rise of the current value over the lowest observation
// in the lookback series. Only upward moves count; falling volatility is
// not a spike.
func volJump(series []broker.VolPoint, current float64) float64 {
	if len(series) == 0 {
		return 0
	}
	low := series[0].Value
	for _, p := range series[1:] {
		if p.Value < low {
			low = p.Value
		}
	}
	return current - low
}

func closes(bars []broker.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// clockOn places an "HH:MM" wall-clock time on ref's date in ref's zone.
func clockOn(ref time.Time, clock string) time.Time {
	hour, minute, err := config.ParseClock(clock)
	if err != nil {
		// Validated at startup; an invalid value here means a programming
		// error, fail closed by returning the zero time.
		return time.Time{}
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
}
