package entry

import (
	"fmt"

	"github.com/tradeforge/gexpin/internal/chain"
	"github.com/tradeforge/gexpin/internal/strategy"
)

// SpreadPricing is the executable economics of a proposed setup at current
// quotes.
type SpreadPricing struct {
	Credit   float64 // net premium collected: short bids minus long asks
	Slippage float64 // half-spread cost summed across legs
}

// PriceSetup computes the expected net credit for the setup from the chain
// snapshot, selling at bid and buying at ask. A leg missing from the chain
// is a data-integrity failure for this cycle.
func PriceSetup(setup strategy.Setup, snap *chain.Snapshot) (SpreadPricing, error) {
	var pricing SpreadPricing
	for _, leg := range setup.Legs() {
		q, ok := snap.Find(leg.Strike, leg.Type)
		if !ok {
			return SpreadPricing{}, fmt.Errorf("%w: no quote for %.0f %s", chain.ErrMalformed, leg.Strike, leg.Type)
		}
		if leg.Side == strategy.Sell {
			pricing.Credit += q.Bid
		} else {
			pricing.Credit -= q.Ask
		}
		pricing.Slippage += q.Spread() / 2
	}
	return pricing, nil
}

// ExitTargets derives the stored profit-target and stop prices from the
// entry credit. The stop percentage is the one the monitor enforces; the
// same configured value feeds both so the advertised and enforced stops
// can never disagree.
func ExitTargets(credit, targetPct, stopPct float64) (target, stop float64) {
	return credit * (1 - targetPct), credit * (1 + stopPct)
}
