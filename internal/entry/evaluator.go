// Package entry runs one scheduled evaluation cycle: signal extraction,
// gate battery, and all-or-none order placement.
package entry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tradeforge/gexpin/internal/broker"
	"github.com/tradeforge/gexpin/internal/chain"
	"github.com/tradeforge/gexpin/internal/config"
	"github.com/tradeforge/gexpin/internal/gex"
	"github.com/tradeforge/gexpin/internal/market"
	"github.com/tradeforge/gexpin/internal/notify"
	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/strategy"
)

// Evaluator orchestrates one entry cycle per market. It is invoked from an
// external scheduler, runs to completion, and exits; the single-instance
// lock is held by the caller for the whole cycle.
type Evaluator struct {
	broker   broker.Client
	store    *position.Store
	notifier notify.Notifier
	clock    *market.Clock
	cfg      *config.Config
	logger   *zap.Logger
	dryRun   bool
	nowFn    func() time.Time
}

func NewEvaluator(b broker.Client, store *position.Store, notifier notify.Notifier, clock *market.Clock, cfg *config.Config, logger *zap.Logger, dryRun bool) *Evaluator {
	return &Evaluator{
		broker:   b,
		store:    store,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
		dryRun:   dryRun,
		nowFn:    time.Now,
	}
}

// Run evaluates one market. A gate rejection returns nil: it is reported
// through the notifier and logged, not treated as a failure. A returned
// error means the cycle aborted on I/O or data problems with no state
// written.
func (e *Evaluator) Run(ctx context.Context, code string) error {
	idx, err := market.Lookup(code)
	if err != nil {
		return err
	}
	now := e.nowFn()
	log := e.logger.With(zap.String("market", code))

	gctx, err := e.buildContext(ctx, idx, now)
	if err != nil {
		e.notifier.SendCycleError(ctx, code, err)
		return fmt.Errorf("preparing cycle for %s: %w", code, err)
	}

	if rej := runGates(marketGates, gctx); rej != nil {
		e.reject(ctx, log, code, rej)
		return nil
	}

	snap, err := e.broker.GetChain(ctx, idx, e.clock.Expiration(now))
	if err != nil {
		if errors.Is(err, broker.ErrMalformed) || errors.Is(err, chain.ErrMalformed) || errors.Is(err, chain.ErrEmptyChain) {
			// Integrity failure: skip the cycle, do not retry.
			e.reject(ctx, log, code, &Rejection{Gate: "chain_integrity", Reason: err.Error()})
			return nil
		}
		e.notifier.SendCycleError(ctx, code, err)
		return fmt.Errorf("fetching chain for %s: %w", code, err)
	}
	gctx.snapshot = snap

	signal, err := gex.Analyze(snap, idx.MoveRangeFraction)
	if err != nil {
		e.reject(ctx, log, code, &Rejection{Gate: "gex_signal", Reason: err.Error()})
		return nil
	}
	log.Info("gex signal",
		zap.Float64("pin", signal.Pin),
		zap.Float64("price", snap.Price),
		zap.Bool("competing", signal.Competing.IsCompeting),
		zap.Int("peaks", len(signal.Peaks)),
	)

	gctx.setup = strategy.Select(signal.Pin, snap.Price, gctx.vol, idx, strategy.DefaultBands(idx))

	pricing, err := PriceSetup(gctx.setup, snap)
	if err != nil && gctx.setup.Kind != strategy.Skip {
		e.reject(ctx, log, code, &Rejection{Gate: "leg_quotes", Reason: err.Error()})
		return nil
	}
	gctx.credit = pricing.Credit
	gctx.slippage = pricing.Slippage

	if rej := runGates(setupGates, gctx); rej != nil {
		e.reject(ctx, log, code, rej)
		return nil
	}

	target, stop := ExitTargets(gctx.credit, e.cfg.Entry.TargetPct, e.cfg.Exit.StopLossPct)
	log.Info("setup passed all gates",
		zap.String("strategy", string(gctx.setup.Kind)),
		zap.String("confidence", string(gctx.setup.Confidence)),
		zap.Float64s("strikes", gctx.setup.Strikes),
		zap.Float64("credit", gctx.credit),
		zap.Float64("target", target),
		zap.Float64("stop", stop),
	)

	if e.dryRun {
		log.Info("dry run, skipping order placement")
		return nil
	}

	pos, err := e.placeAndConfirm(ctx, idx, gctx, now)
	if err != nil {
		e.notifier.SendCycleError(ctx, code, err)
		return fmt.Errorf("placing order for %s: %w", code, err)
	}

	if err := e.store.Append(*pos); err != nil {
		// Order is live but unrecorded; surface loudly.
		e.notifier.SendCycleError(ctx, code, fmt.Errorf("order %s filled but not persisted: %w", pos.OrderID, err))
		return fmt.Errorf("persisting position: %w", err)
	}

	log.Info("position opened",
		zap.String("orderID", pos.OrderID),
		zap.Float64("credit", pos.EntryCredit),
	)
	e.notifier.SendEntry(ctx, *pos)
	return nil
}

func (e *Evaluator) buildContext(ctx context.Context, idx market.Index, now time.Time) (*gateContext, error) {
	quote, err := e.broker.GetUnderlying(ctx, idx.Symbol)
	if err != nil {
		return nil, err
	}
	vol, err := e.broker.GetVolatility(ctx)
	if err != nil {
		return nil, err
	}
	lookback := time.Duration(e.cfg.Entry.VolSpikeLookbackMin) * time.Minute
	volSeries, err := e.broker.GetVolatilitySeries(ctx, lookback)
	if err != nil {
		return nil, err
	}

	var bars []broker.Bar
	if e.cfg.IsLive() {
		bars, err = e.broker.GetPriceBars(ctx, idx.Symbol, 5, e.cfg.Entry.RSIPeriod*3)
		if err != nil {
			return nil, err
		}
	}

	openCount, err := e.store.CountForMarket(idx.Code)
	if err != nil {
		return nil, err
	}

	return &gateContext{
		now:       now,
		clock:     e.clock,
		idx:       idx,
		cfg:       e.cfg,
		live:      e.cfg.IsLive(),
		quote:     quote,
		vol:       vol,
		volSeries: volSeries,
		bars:      bars,
		openCount: openCount,
	}, nil
}

// placeAndConfirm submits the all-or-none spread order and polls until it
// fills or the confirmation window lapses, canceling on timeout. No
// position record exists until the fill is confirmed.
func (e *Evaluator) placeAndConfirm(ctx context.Context, idx market.Index, gctx *gateContext, now time.Time) (*position.Position, error) {
	expiration := e.clock.Expiration(now)

	legs := make([]broker.OrderLeg, 0, len(gctx.setup.Strikes))
	for _, leg := range gctx.setup.Legs() {
		side := broker.BuyToOpen
		if leg.Side == strategy.Sell {
			side = broker.SellToOpen
		}
		legs = append(legs, broker.OrderLeg{
			OptionSymbol: broker.OptionSymbol(idx.OptionRoot, expiration, leg.Type, leg.Strike),
			Side:         side,
			Quantity:     e.cfg.Entry.Quantity,
		})
	}

	order := broker.MultilegOrder{
		ClientID:  uuid.New().String(),
		Symbol:    idx.Symbol,
		Legs:      legs,
		NetCredit: gctx.credit,
		AllOrNone: true, // a partial fill would leave a naked short leg
		Duration:  "day",
	}

	orderID, err := e.broker.PlaceMultileg(ctx, order)
	if err != nil {
		return nil, err
	}

	filled, fillPrice, err := e.awaitFill(ctx, orderID)
	if err != nil {
		// Status polling failed; the order may still be working at the
		// broker. Cancel best-effort so a late fill cannot create a
		// position nothing is tracking.
		if cancelErr := e.broker.CancelOrder(ctx, orderID); cancelErr != nil {
			e.logger.Error("canceling order after status failure",
				zap.String("orderID", orderID),
				zap.Error(cancelErr),
			)
		}
		return nil, err
	}
	if !filled {
		if cancelErr := e.broker.CancelOrder(ctx, orderID); cancelErr != nil {
			return nil, fmt.Errorf("canceling unfilled order %s: %w", orderID, cancelErr)
		}
		return nil, broker.ErrUnfilled
	}

	// Prefer the actual fill over the quoted credit when the broker
	// reports one.
	credit := gctx.credit
	if fillPrice > 0 {
		credit = fillPrice
	}
	target, stop := ExitTargets(credit, e.cfg.Entry.TargetPct, e.cfg.Exit.StopLossPct)

	return &position.Position{
		OrderID:       orderID,
		Market:        idx.Code,
		Strategy:      gctx.setup.Kind,
		Confidence:    gctx.setup.Confidence,
		Strikes:       gctx.setup.Strikes,
		SpreadWidth:   gctx.setup.SpreadWidth,
		Quantity:      e.cfg.Entry.Quantity,
		EntryCredit:   credit,
		EntryTime:     now,
		EntryDistance: entryDistance(gctx.setup, gctx.quote.Last),
		TargetPrice:   target,
		StopPrice:     stop,
	}, nil
}

func (e *Evaluator) awaitFill(ctx context.Context, orderID string) (bool, float64, error) {
	deadline := time.Now().Add(time.Duration(e.cfg.Entry.FillTimeoutSec) * time.Second)
	poll := time.Duration(e.cfg.Entry.FillPollSec) * time.Second

	for {
		status, err := e.broker.GetOrderStatus(ctx, orderID)
		if err != nil {
			return false, 0, err
		}
		switch status.State {
		case broker.OrderFilled:
			return true, status.FillPrice, nil
		case broker.OrderRejected, broker.OrderCanceled:
			return false, 0, nil
		}

		if time.Now().After(deadline) {
			return false, 0, nil
		}
		select {
		case <-ctx.Done():
			return false, 0, ctx.Err()
		case <-time.After(poll):
		}
	}
}

func (e *Evaluator) reject(ctx context.Context, log *zap.Logger, code string, rej *Rejection) {
	log.Info("entry rejected",
		zap.String("gate", rej.Gate),
		zap.String("reason", rej.Reason),
	)
	e.notifier.SendRejection(ctx, code, rej.Gate, rej.Reason)
}

// entryDistance is the signed points out-of-the-money of the nearest short
// strike at entry. Positive means safely OTM.
func entryDistance(setup strategy.Setup, price float64) float64 {
	nearest := math.Inf(1)
	for _, strike := range setup.ShortStrikes() {
		if d := math.Abs(strike - price); d < nearest {
			nearest = d
		}
	}
	if math.IsInf(nearest, 1) {
		return 0
	}
	// A short strike through the money counts negative.
	for _, leg := range setup.Legs() {
		if leg.Side != strategy.Sell {
			continue
		}
		if (leg.Type == chain.Call && price > leg.Strike) || (leg.Type == chain.Put && price < leg.Strike) {
			return -nearest
		}
	}
	return nearest
}
