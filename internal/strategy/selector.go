// Package strategy maps a pinning signal to a concrete credit-spread setup.
package strategy

import (
	"math"

	"github.com/tradeforge/gexpin/internal/chain"
	"github.com/tradeforge/gexpin/internal/market"
)

type Kind string

const (
	IronCondor Kind = "iron_condor"
	CallSpread Kind = "call_spread"
	PutSpread  Kind = "put_spread"
	Skip       Kind = "skip"
)

type Confidence string

const (
	High   Confidence = "HIGH"
	Medium Confidence = "MEDIUM"
)

type Side string

const (
	Sell Side = "sell"
	Buy  Side = "buy"
)

// Leg is one option of a spread order.
type Leg struct {
	Strike float64
	Type   chain.OptionType
	Side   Side
}

// Setup is the selector's output: a strategy variant with concrete strikes.
// Strikes are sorted ascending; Legs derives the sell/buy roles.
type Setup struct {
	Kind        Kind
	Confidence  Confidence
	Strikes     []float64
	SpreadWidth float64
	Pin         float64
	Distance    float64 // |price - pin| rounded to the strike increment
}

// Bands are the distance thresholds and strike buffers, in index points.
// First matching band wins; a boundary value falls in the nearer band.
type Bands struct {
	NearMax     float64 // at or below: iron condor
	ModerateMax float64 // at or below: directional, high confidence
	FarMax      float64 // at or below: directional, medium confidence

	ICWingBuffer float64 // short strikes this far beyond the pin, both sides

	ModeratePinBuffer   float64 // directional short-strike buffers, HIGH band
	ModeratePriceBuffer float64
	FarPinBuffer        float64 // wider buffers for the weaker MEDIUM band
	FarPriceBuffer      float64
}

// DefaultBands scales the band layout off the index strike increment so the
// same shape applies to differently priced underlyings.
func DefaultBands(idx market.Index) Bands {
	inc := idx.StrikeIncrement
	return Bands{
		NearMax:             2 * inc,
		ModerateMax:         5 * inc,
		FarMax:              8 * inc,
		ICWingBuffer:        3 * inc,
		ModeratePinBuffer:   3 * inc,
		ModeratePriceBuffer: 2 * inc,
		FarPinBuffer:        5 * inc,
		FarPriceBuffer:      4 * inc,
	}
}

// SpreadWidth is a step function of the volatility index: richer premium at
// higher volatility pays for a wider protective wing.
func SpreadWidth(vol float64, idx market.Index) float64 {
	inc := idx.StrikeIncrement
	switch {
	case vol < 15:
		return 2 * inc
	case vol < 20:
		return 3 * inc
	case vol < 25:
		return 4 * inc
	default:
		return 5 * inc
	}
}

// Select chooses the strategy variant for a pin/price pair. Pure: no I/O,
// deterministic, and exhaustively partitioned over distance.
func Select(pin, price, vol float64, idx market.Index, bands Bands) Setup {
	distance := idx.RoundToIncrement(math.Abs(price - pin))
	width := SpreadWidth(vol, idx)

	setup := Setup{
		Pin:         pin,
		Distance:    distance,
		SpreadWidth: width,
	}

	switch {
	case distance <= bands.NearMax:
		putShort := idx.RoundToIncrement(pin - bands.ICWingBuffer)
		callShort := idx.RoundToIncrement(pin + bands.ICWingBuffer)
		setup.Kind = IronCondor
		setup.Confidence = High
		setup.Strikes = []float64{putShort - width, putShort, callShort, callShort + width}

	case distance <= bands.ModerateMax:
		setup.Confidence = High
		fillDirectional(&setup, pin, price, width, bands.ModeratePinBuffer, bands.ModeratePriceBuffer, idx)

	case distance <= bands.FarMax:
		setup.Confidence = Medium
		fillDirectional(&setup, pin, price, width, bands.FarPinBuffer, bands.FarPriceBuffer, idx)

	default:
		setup.Kind = Skip
		setup.Confidence = Medium
		setup.SpreadWidth = 0
	}

	return setup
}

// fillDirectional places the short strike at the more conservative of two
// candidates: one buffered off the pin, one off the current price.
func fillDirectional(setup *Setup, pin, price, width, pinBuffer, priceBuffer float64, idx market.Index) {
	if price > pin {
		// Price above the pin: expect a pullback, sell calls overhead.
		short := idx.RoundToIncrement(math.Max(pin+pinBuffer, price+priceBuffer))
		setup.Kind = CallSpread
		setup.Strikes = []float64{short, short + width}
	} else {
		// Price below the pin: expect a rally, sell puts underneath.
		short := idx.RoundToIncrement(math.Min(pin-pinBuffer, price-priceBuffer))
		setup.Kind = PutSpread
		setup.Strikes = []float64{short - width, short}
	}
}

// Legs expands the setup strikes into per-option order legs.
func (s Setup) Legs() []Leg {
	switch s.Kind {
	case IronCondor:
		return []Leg{
			{Strike: s.Strikes[0], Type: chain.Put, Side: Buy},
			{Strike: s.Strikes[1], Type: chain.Put, Side: Sell},
			{Strike: s.Strikes[2], Type: chain.Call, Side: Sell},
			{Strike: s.Strikes[3], Type: chain.Call, Side: Buy},
		}
	case CallSpread:
		return []Leg{
			{Strike: s.Strikes[0], Type: chain.Call, Side: Sell},
			{Strike: s.Strikes[1], Type: chain.Call, Side: Buy},
		}
	case PutSpread:
		return []Leg{
			{Strike: s.Strikes[0], Type: chain.Put, Side: Buy},
			{Strike: s.Strikes[1], Type: chain.Put, Side: Sell},
		}
	default:
		return nil
	}
}

// ShortStrikes returns the strikes sold, nearest-the-money legs first.
func (s Setup) ShortStrikes() []float64 {
	var out []float64
	for _, leg := range s.Legs() {
		if leg.Side == Sell {
			out = append(out, leg.Strike)
		}
	}
	return out
}
