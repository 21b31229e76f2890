package exit

import (
	"time"

	"github.com/tradeforge/gexpin/internal/config"
	"github.com/tradeforge/gexpin/internal/position"
)

// Reason names the exit condition that closed a position. Written to the
// trade log and the exit notification.
type Reason string

const (
	ReasonEmergencyStop Reason = "Emergency Stop"
	ReasonStopLoss      Reason = "Stop Loss"
	ReasonTrailingStop  Reason = "Trailing Stop"
	ReasonProfitTarget  Reason = "Profit Target"
	ReasonEndOfDay      Reason = "End of Day Close"
	ReasonExpiration    Reason = "Expiration"
)

// Tick carries the per-tick observations the rules need. Assembled by the
// monitor; the rules themselves do no I/O.
type Tick struct {
	ProfitPct    float64
	Vol          float64
	Now          time.Time
	Expiry       time.Time
	EODCutoff    time.Time
	MinOTMBuffer float64 // index-specific hold qualification distance
}

// Advance updates the position's monotone state (high-water mark, trailing
// arm, hold-to-expiry latch) for this tick and then evaluates the exit
// conditions in fixed priority order. At most one condition fires per
// tick; the first applicable reason is returned.
func Advance(pos *position.Position, t Tick, cfg config.ExitConfig) (Reason, bool) {
	pos.RecordProfit(t.ProfitPct)

	// Hold-to-expiry qualification. One-way: once a position has earned
	// its keep and the market is calm, it rides to settlement.
	if !pos.HoldToExpiry &&
		t.ProfitPct >= cfg.HoldProfitPct &&
		t.Vol < cfg.HoldMaxVol &&
		t.Expiry.Sub(t.Now) >= time.Duration(cfg.HoldMinRemainingMin)*time.Minute &&
		pos.EntryDistance >= t.MinOTMBuffer {
		pos.HoldToExpiry = true
	}

	// Trailing arm. One-way as well.
	if !pos.TrailingArmed && t.ProfitPct >= cfg.TrailingArmPct {
		pos.TrailingArmed = true
	}

	age := pos.Age(t.Now)
	grace := time.Duration(cfg.GracePeriodSec) * time.Second

	switch {
	case t.ProfitPct <= -cfg.EmergencyStopPct:
		// Bypasses the grace period regardless of age.
		return ReasonEmergencyStop, true

	case t.ProfitPct <= -cfg.StopLossPct && age > grace:
		return ReasonStopLoss, true

	case pos.TrailingArmed && t.ProfitPct < LockLevel(pos.PeakProfitPct, cfg):
		return ReasonTrailingStop, true

	case !pos.HoldToExpiry && t.ProfitPct >= ProgressiveTarget(age):
		return ReasonProfitTarget, true

	case !pos.HoldToExpiry && !t.Now.Before(t.EODCutoff):
		return ReasonEndOfDay, true

	case !t.Now.Before(t.Expiry):
		return ReasonExpiration, true
	}

	return "", false
}
