package position

import (
	"time"

	"github.com/tradeforge/gexpin/internal/strategy"
)

// Position is an open credit spread under management. Identity fields
// (order id, strikes, entry credit) are immutable after creation; the
// monitor mutates only the latch/high-water fields below.
type Position struct {
	OrderID     string              `json:"order_id"`
	Market      string              `json:"market"` // index discriminator for multi-market deployments
	Strategy    strategy.Kind       `json:"strategy"`
	Confidence  strategy.Confidence `json:"confidence"`
	Strikes     []float64           `json:"strikes"`
	SpreadWidth float64             `json:"spread_width"`
	Quantity    int                 `json:"quantity"`

	EntryCredit   float64   `json:"entry_credit"`
	EntryTime     time.Time `json:"entry_time"`
	EntryDistance float64   `json:"entry_distance"` // signed points OTM at entry
	TargetPrice   float64   `json:"target_price"`
	StopPrice     float64   `json:"stop_price"`

	// Mutable monitor state. PeakProfitPct only rises, and the two flags
	// are one-way latches: once set they stay set for the position's life.
	PeakProfitPct float64 `json:"peak_profit_pct"`
	TrailingArmed bool    `json:"trailing_armed"`
	HoldToExpiry  bool    `json:"hold_to_expiry"`
}

// Age returns time since entry.
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// RecordProfit updates the high-water mark. It never decreases.
func (p *Position) RecordProfit(profitPct float64) {
	if profitPct > p.PeakProfitPct {
		p.PeakProfitPct = profitPct
	}
}
