// Package exit drives open positions through the multi-stage exit policy
// until each one is closed.
package exit

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/tradeforge/gexpin/internal/broker"
	"github.com/tradeforge/gexpin/internal/config"
	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/notify"
	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/strategy"
	"github.com/tradeforge/gexpin/internal/tradelog"
)

// staleStreamAfter is how old a streamed print may be before the monitor
// falls back to a REST quote.
const staleStreamAfter = 30 * time.Second

// Monitor polls the position store and applies the exit rules to every
// open position each tick. Single-threaded: one synchronous sweep per
// tick, interruptible between ticks.
type Monitor struct {
	broker   broker.Client
	store    *position.Store
	trades   *tradelog.Logger
	notifier notify.Notifier
	clock    *market.Clock
	cfg      *config.Config
	logger   *zap.Logger
	stream   *broker.Stream // optional fast price path, may be nil

	archivedDay string // last session the ledger was rotated for
}

func NewMonitor(b broker.Client, store *position.Store, trades *tradelog.Logger, notifier notify.Notifier, clock *market.Clock, cfg *config.Config, logger *zap.Logger, stream *broker.Stream) *Monitor {
	return &Monitor{
		broker:   b,
		store:    store,
		trades:   trades,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		stream:   stream,
	}
}

// Run loops until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	interval := time.Duration(m.cfg.Exit.TickIntervalSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("monitor started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping")
			return nil
		case <-ticker.C:
			now := time.Now()
			m.Sweep(ctx, now)
			m.archiveLedger(now)
		}
	}
}

// Sweep processes every open position once. A failure on one position is
// logged and never halts the rest of the sweep.
func (m *Monitor) Sweep(ctx context.Context, now time.Time) {
	positions, err := m.store.Load()
	if err != nil {
		m.logger.Error("loading position store", zap.Error(err))
		return
	}
	if len(positions) == 0 {
		return
	}

	// One volatility read serves the whole sweep. When it fails the hold
	// latch simply cannot qualify this tick; exits still run.
	vol, err := m.broker.GetVolatility(ctx)
	if err != nil {
		m.logger.Warn("volatility unavailable this tick", zap.Error(err))
		vol = math.Inf(1)
	}

	for i := range positions {
		pos := positions[i]
		if err := m.process(ctx, &pos, now, vol); err != nil {
			m.logger.Error("processing position",
				zap.String("orderID", pos.OrderID),
				zap.String("market", pos.Market),
				zap.Error(err),
			)
		}
	}
}

func (m *Monitor) process(ctx context.Context, pos *position.Position, now time.Time, vol float64) error {
	idx, err := market.Lookup(pos.Market)
	if err != nil {
		return err
	}

	// The expiry anchors to the entry date: these are same-day options, so
	// a position found in the store after its session settles rather than
	// being re-priced on dead quotes.
	expiry := m.clock.Expiration(pos.EntryTime)
	eodCutoff := m.cutoffOn(pos.EntryTime)

	// Past expiry the contract no longer trades: settle at intrinsic and
	// never run the live-exit rules, which would otherwise read the
	// settlement value as a stop or target breach and try a broker close.
	if !now.Before(expiry) {
		price, err := m.underlyingPrice(ctx, idx)
		if err != nil {
			return fmt.Errorf("settlement price unavailable: %w", err)
		}
		return m.close(ctx, pos, now, SettlementValue(pos, price), ReasonExpiration)
	}

	value, ok, err := m.currentValue(ctx, pos, idx, expiry)
	if err != nil {
		return err
	}
	if !ok {
		// Missing pricing data: skip this position for this tick, no
		// forced exit on blind quotes.
		m.logger.Debug("pricing unavailable, skipping tick", zap.String("orderID", pos.OrderID))
		return nil
	}

	profitPct := (pos.EntryCredit - value) / pos.EntryCredit

	before := *pos
	reason, shouldExit := Advance(pos, Tick{
		ProfitPct:    profitPct,
		Vol:          vol,
		Now:          now,
		Expiry:       expiry,
		EODCutoff:    eodCutoff,
		MinOTMBuffer: idx.MinOTMBuffer,
	}, m.cfg.Exit)

	if !shouldExit {
		if before.PeakProfitPct != pos.PeakProfitPct ||
			before.TrailingArmed != pos.TrailingArmed ||
			before.HoldToExpiry != pos.HoldToExpiry {
			if err := m.store.Update(*pos); err != nil {
				return fmt.Errorf("persisting monitor state: %w", err)
			}
		}
		return nil
	}

	return m.close(ctx, pos, now, value, reason)
}

// close executes the exit, records the trade, and removes the position.
// Exactly one exit fires per position; if the broker close fails the
// position stays in the store and the next tick retries.
func (m *Monitor) close(ctx context.Context, pos *position.Position, now time.Time, value float64, reason Reason) error {
	exitValue := value
	if reason != ReasonExpiration {
		fillPrice, err := m.broker.ClosePosition(ctx, pos.OrderID)
		if err != nil {
			return fmt.Errorf("closing position: %w", err)
		}
		if fillPrice > 0 {
			exitValue = fillPrice
		}
	}

	rec := tradelog.Record{
		OrderID:     pos.OrderID,
		Market:      pos.Market,
		Strategy:    string(pos.Strategy),
		Strikes:     pos.Strikes,
		Quantity:    pos.Quantity,
		EntryTime:   pos.EntryTime,
		ExitTime:    now,
		EntryCredit: pos.EntryCredit,
		ExitValue:   exitValue,
		ExitReason:  string(reason),
		ProfitLoss:  pos.EntryCredit - exitValue,
	}
	if err := m.trades.Append(rec); err != nil {
		m.logger.Error("appending trade log", zap.Error(err))
	}

	if err := m.store.Remove(pos.OrderID); err != nil {
		return fmt.Errorf("removing closed position: %w", err)
	}

	m.logger.Info("position closed",
		zap.String("orderID", pos.OrderID),
		zap.String("market", pos.Market),
		zap.String("reason", string(reason)),
		zap.Float64("entryCredit", pos.EntryCredit),
		zap.Float64("exitValue", exitValue),
		zap.Float64("profitLoss", rec.ProfitLoss),
	)
	m.notifier.SendExit(ctx, rec)
	return nil
}

// archiveLedger rotates the closed-trade ledger into a dated gzip once
// the session is over and every position has settled. At most one
// rotation per session day.
func (m *Monitor) archiveLedger(now time.Time) {
	et := m.clock.Eastern(now)
	if !m.clock.IsTradingDay(et) || now.Before(m.clock.SessionClose(et)) {
		return
	}
	day := et.Format("2006-01-02")
	if day == m.archivedDay {
		return
	}

	positions, err := m.store.Load()
	if err != nil || len(positions) > 0 {
		return
	}
	recs, err := m.trades.ReadAll()
	if err != nil {
		return
	}
	if len(recs) == 0 {
		m.archivedDay = day
		return
	}

	if err := m.trades.Archive(day); err != nil {
		m.logger.Error("archiving trade log", zap.Error(err))
		return
	}
	m.archivedDay = day
	m.logger.Info("trade log archived",
		zap.String("date", day),
		zap.Int("trades", len(recs)),
	)
}

// currentValue prices the cost to close the spread from leg mids. The
// second return is false when any leg quote is unavailable.
func (m *Monitor) currentValue(ctx context.Context, pos *position.Position, idx market.Index, expiry time.Time) (float64, bool, error) {
	setup := strategy.Setup{Kind: pos.Strategy, Strikes: pos.Strikes}

	var value float64
	for _, leg := range setup.Legs() {
		symbol := broker.OptionSymbol(idx.OptionRoot, expiry, leg.Type, leg.Strike)
		q, err := m.broker.GetOptionQuote(ctx, symbol)
		if err != nil {
			// Transient or missing data both mean the same thing for this
			// tick: no reliable mark, so no action.
			m.logger.Debug("leg quote unavailable",
				zap.String("symbol", symbol),
				zap.Error(err),
			)
			return 0, false, nil
		}
		if leg.Side == strategy.Sell {
			value += q.Mid()
		} else {
			value -= q.Mid()
		}
	}
	if value < 0 {
		value = 0
	}
	return value, true, nil
}

func (m *Monitor) underlyingPrice(ctx context.Context, idx market.Index) (float64, error) {
	if m.stream != nil {
		if price, at, ok := m.stream.LatestPrice(idx.Symbol); ok && time.Since(at) < staleStreamAfter {
			return price, nil
		}
	}
	quote, err := m.broker.GetUnderlying(ctx, idx.Symbol)
	if err != nil {
		return 0, err
	}
	return quote.Last, nil
}

func (m *Monitor) cutoffOn(entryDay time.Time) time.Time {
	hour, minute, err := config.ParseClock(m.cfg.Exit.EODCloseTime)
	if err != nil {
		// Validated at startup; fall back to the session close.
		return m.clock.SessionClose(entryDay)
	}
	et := m.clock.Eastern(entryDay)
	return time.Date(et.Year(), et.Month(), et.Day(), hour, minute, 0, 0, m.clock.Location())
}
