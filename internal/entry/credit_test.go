package entry

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tradeforge/gexpin/internal/chain"
	"github.com/tradeforge/gexpin/internal/strategy"
)

func condorChain() *chain.Snapshot {
	return &chain.Snapshot{
		Symbol:     "SPX",
		Expiration: time.Date(2025, 12, 10, 16, 0, 0, 0, time.UTC),
		Price:      6000,
		Quotes: []chain.Quote{
			{Strike: 5965, Type: chain.Put, Bid: 0.35, Ask: 0.45, OpenInterest: 100},
			{Strike: 5975, Type: chain.Put, Bid: 0.80, Ask: 0.90, OpenInterest: 100},
			{Strike: 6015, Type: chain.Call, Bid: 0.85, Ask: 0.95, OpenInterest: 100},
			{Strike: 6025, Type: chain.Call, Bid: 0.40, Ask: 0.50, OpenInterest: 100},
		},
	}
}

func TestPriceSetupIronCondor(t *testing.T) {
	setup := strategy.Setup{
		Kind:    strategy.IronCondor,
		Strikes: []float64{5965, 5975, 6015, 6025},
	}
	pricing, err := PriceSetup(setup, condorChain())
	if err != nil {
		t.Fatalf("PriceSetup: %v", err)
	}
	// Sell 5975P at 0.80 and 6015C at 0.85, buy 5965P at 0.45 and
	// 6025C at 0.50.
	wantCredit := 0.80 + 0.85 - 0.45 - 0.50
	if math.Abs(pricing.Credit-wantCredit) > 1e-9 {
		t.Errorf("credit = %.4f, want %.4f", pricing.Credit, wantCredit)
	}
	// Four legs, each 0.10 wide.
	if math.Abs(pricing.Slippage-0.20) > 1e-9 {
		t.Errorf("slippage = %.4f, want 0.20", pricing.Slippage)
	}
}

func TestPriceSetupMissingLeg(t *testing.T) {
	setup := strategy.Setup{
		Kind:    strategy.PutSpread,
		Strikes: []float64{5950, 5975},
	}
	_, err := PriceSetup(setup, condorChain())
	if !errors.Is(err, chain.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing leg, got %v", err)
	}
}

func TestExitTargets(t *testing.T) {
	target, stop := ExitTargets(1.35, 0.50, 0.10)
	if math.Abs(target-0.675) > 1e-9 {
		t.Errorf("target = %.4f, want 0.6750", target)
	}
	if math.Abs(stop-1.485) > 1e-9 {
		t.Errorf("stop = %.4f, want 1.4850", stop)
	}
}
