package exit

import (
	"math"

	"github.com/tradeforge/gexpin/internal/config"
)

// LockLevel returns the trailing lock-in level for a given peak profit.
// Zero while below the arming threshold. Once armed the lock starts at the
// configured base and tightens by one step for every equal step of
// additional peak profit; because the peak itself never decreases, the
// lock never loosens.
func LockLevel(peakProfitPct float64, cfg config.ExitConfig) float64 {
	if peakProfitPct < cfg.TrailingArmPct {
		return 0
	}
	// Nudge before flooring so exact step boundaries land on the higher
	// step despite binary rounding of the percentages.
	steps := math.Floor((peakProfitPct-cfg.TrailingArmPct)/cfg.TrailingStepPct + 1e-9)
	return cfg.TrailingLockPct + steps*cfg.TrailingStepPct
}
