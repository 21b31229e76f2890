package market

import (
	"fmt"
	"math"
)

// Index holds the per-market parameters that differ between the supported
// underlyings. Everything else (gate thresholds, exit schedule) lives in
// config and applies across markets.
type Index struct {
	Code               string  // market code, e.g. "SPX"
	Symbol             string  // underlying quote symbol
	OptionRoot         string  // OCC option root for 0DTE contracts, e.g. "SPXW"
	StrikeIncrement    float64 // listed strike spacing
	MoveRangeFraction  float64 // intraday-plausible range as a fraction of price
	MinOTMBuffer       float64 // entry distance required for hold-to-expiry, points
	MinShortDistance   float64 // short strike must be at least this far from price, points
	MinExpectedMove    float64 // expected daily move floor, points
	MorningMinCredit   float64 // minimum credit before the midday cutover
	AfternoonMinCredit float64 // minimum credit after it
}

var indexes = map[string]Index{
	"SPX": {
		Code:               "SPX",
		Symbol:             "SPX",
		OptionRoot:         "SPXW",
		StrikeIncrement:    5,
		MoveRangeFraction:  0.015,
		MinOTMBuffer:       10,
		MinShortDistance:   10,
		MinExpectedMove:    15,
		MorningMinCredit:   1.00,
		AfternoonMinCredit: 0.60,
	},
	"NDX": {
		Code:               "NDX",
		Symbol:             "NDX",
		OptionRoot:         "NDXP",
		StrikeIncrement:    25,
		MoveRangeFraction:  0.020,
		MinOTMBuffer:       40,
		MinShortDistance:   50,
		MinExpectedMove:    60,
		MorningMinCredit:   4.00,
		AfternoonMinCredit: 2.50,
	},
	"XSP": {
		Code:               "XSP",
		Symbol:             "XSP",
		OptionRoot:         "XSP",
		StrikeIncrement:    1,
		MoveRangeFraction:  0.015,
		MinOTMBuffer:       1,
		MinShortDistance:   2,
		MinExpectedMove:    1.5,
		MorningMinCredit:   0.10,
		AfternoonMinCredit: 0.06,
	},
}

// Lookup resolves a market code. An unknown code is a configuration error
// and must abort startup before any position is touched.
func Lookup(code string) (Index, error) {
	idx, ok := indexes[code]
	if !ok {
		return Index{}, fmt.Errorf("unsupported market code %q", code)
	}
	return idx, nil
}

// Supported lists the known market codes.
func Supported() []string {
	codes := make([]string, 0, len(indexes))
	for c := range indexes {
		codes = append(codes, c)
	}
	return codes
}

// RoundToIncrement snaps a price to the nearest listed strike.
func (i Index) RoundToIncrement(price float64) float64 {
	return math.Round(price/i.StrikeIncrement) * i.StrikeIncrement
}

// MinCredit returns the credit floor for the given session phase.
func (i Index) MinCredit(morning bool) float64 {
	if morning {
		return i.MorningMinCredit
	}
	return i.AfternoonMinCredit
}
