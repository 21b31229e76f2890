package exit

import (
	"math"

	"github.com/tradeforge/gexpin/internal/position"
	"github.com/tradeforge/gexpin/internal/strategy"
)

// SettlementValue is the cost to settle a spread at expiration: zero when
// every short strike finishes out-of-the-money, intrinsic value otherwise.
// Strikes follow the ascending order used throughout.
func SettlementValue(pos *position.Position, underlying float64) float64 {
	switch pos.Strategy {
	case strategy.CallSpread:
		return callSpreadIntrinsic(pos.Strikes[0], pos.Strikes[1], underlying)
	case strategy.PutSpread:
		return putSpreadIntrinsic(pos.Strikes[1], pos.Strikes[0], underlying)
	case strategy.IronCondor:
		put := putSpreadIntrinsic(pos.Strikes[1], pos.Strikes[0], underlying)
		call := callSpreadIntrinsic(pos.Strikes[2], pos.Strikes[3], underlying)
		return put + call
	default:
		return 0
	}
}

// callSpreadIntrinsic values a short call at shortK hedged by a long call
// at longK (shortK < longK).
func callSpreadIntrinsic(shortK, longK, price float64) float64 {
	return math.Max(0, price-shortK) - math.Max(0, price-longK)
}

// putSpreadIntrinsic values a short put at shortK hedged by a long put at
// longK (longK < shortK).
func putSpreadIntrinsic(shortK, longK, price float64) float64 {
	return math.Max(0, shortK-price) - math.Max(0, longK-price)
}
