// Package gex extracts pinning signals from an options chain snapshot.
//
// Dealers hedging short gamma concentrate flow around strikes with large
// open interest; the per-strike signed gamma exposure, weighted steeply by
// proximity to spot, identifies the strike the underlying is most likely
// to gravitate toward into a same-day expiration.
package gex

import (
	"errors"
	"math"
	"sort"

	"github.com/tradeforge/gexpin/internal/chain"
)

// epsilon keeps the proximity score finite when a strike sits exactly at
// the money. It must stay far below the smallest realistic dist_frac^5
// (one increment on SPX is about 4e-16) or it would flatten the distance
// penalty for near strikes.
const epsilon = 1e-18

// distancePower is the exponent on the distance fraction. Gamma influence
// on a same-day expiration decays very steeply with distance from spot; the
// fifth power is deliberate, not a tuning knob.
const distancePower = 5

// ErrNoPeak is returned when the chain has no scoreable strike inside the
// plausible intraday range. The caller must skip the cycle, not retry.
var ErrNoPeak = errors.New("no gex peak found")

// Peak is one proximity-ranked gamma exposure concentration.
type Peak struct {
	Strike    float64
	SignedGex float64
	Distance  float64 // |strike - price|, points
	Score     float64
}

// CompetingResult describes two comparably strong peaks straddling spot.
// When IsCompeting is true the tradeable pin is AdjustedPin, the midpoint.
type CompetingResult struct {
	IsCompeting bool
	Peak1       Peak
	Peak2       Peak
	ScoreRatio  float64
	AdjustedPin float64
}

// Result is the full engine output for one snapshot.
type Result struct {
	Peaks     []Peak // ranked by |score| descending, at most 3
	Competing CompetingResult
	Pin       float64 // dominant peak strike, or AdjustedPin when competing
}

// SignedGexByStrike aggregates gamma exposure per strike across the chain.
// Calls contribute positive exposure, puts negative:
//
//	gex = gamma * open_interest * 100 * price^2
func SignedGexByStrike(snap *chain.Snapshot) map[float64]float64 {
	out := make(map[float64]float64)
	for _, q := range snap.Quotes {
		gex := q.Gamma * float64(q.OpenInterest) * 100 * snap.Price * snap.Price
		if q.Type == chain.Put {
			gex = -gex
		}
		out[q.Strike] += gex
	}
	return out
}

// Analyze runs the full peak extraction for one snapshot. Pure: no side
// effects, deterministic for a given snapshot.
func Analyze(snap *chain.Snapshot, moveRangeFraction float64) (*Result, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	byStrike := SignedGexByStrike(snap)
	maxDistance := snap.Price * moveRangeFraction

	peaks := make([]Peak, 0, len(byStrike))
	for strike, gex := range byStrike {
		distance := math.Abs(strike - snap.Price)
		if distance > maxDistance {
			continue
		}
		if gex == 0 {
			continue
		}
		distFrac := distance / snap.Price
		score := gex / (math.Pow(distFrac, distancePower) + epsilon)
		peaks = append(peaks, Peak{
			Strike:    strike,
			SignedGex: gex,
			Distance:  distance,
			Score:     score,
		})
	}

	if len(peaks) == 0 {
		return nil, ErrNoPeak
	}

	sort.Slice(peaks, func(i, j int) bool {
		return math.Abs(peaks[i].Score) > math.Abs(peaks[j].Score)
	})
	if len(peaks) > 3 {
		peaks = peaks[:3]
	}

	result := &Result{
		Peaks: peaks,
		Pin:   peaks[0].Strike,
	}
	if len(peaks) >= 2 {
		result.Competing = DetectCompeting(peaks[0], peaks[1], snap.Price)
		if result.Competing.IsCompeting {
			result.Pin = result.Competing.AdjustedPin
		}
	}
	return result, nil
}

// DetectCompeting checks whether two top peaks straddle spot with
// comparable strength. Symmetric in its first two arguments.
//
// All three conditions must hold: the peaks lie on opposite sides of spot,
// the weaker score is more than half the stronger, and spot is reasonably
// centered between them (distance ratio above 0.4).
func DetectCompeting(p1, p2 Peak, price float64) CompetingResult {
	// Normalize so peak1 is the stronger, making the result independent of
	// argument order.
	if math.Abs(p2.Score) > math.Abs(p1.Score) {
		p1, p2 = p2, p1
	}

	result := CompetingResult{Peak1: p1, Peak2: p2}

	s1, s2 := math.Abs(p1.Score), math.Abs(p2.Score)
	if s1 == 0 {
		return result
	}
	result.ScoreRatio = s2 / s1

	oppositeSides := (p1.Strike-price)*(p2.Strike-price) < 0
	if !oppositeSides {
		return result
	}
	if result.ScoreRatio <= 0.5 {
		return result
	}

	minDist := math.Min(p1.Distance, p2.Distance)
	maxDist := math.Max(p1.Distance, p2.Distance)
	if maxDist == 0 || minDist/maxDist <= 0.4 {
		return result
	}

	result.IsCompeting = true
	result.AdjustedPin = (p1.Strike + p2.Strike) / 2
	return result
}
