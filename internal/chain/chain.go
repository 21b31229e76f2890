package chain

import (
	"errors"
	"fmt"
	"time"
)

type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

var (
	ErrEmptyChain = errors.New("options chain is empty")
	ErrMalformed  = errors.New("options chain is malformed")
)

// Quote is one side of the chain at a single strike.
type Quote struct {
	Strike       float64    `json:"strike"`
	Type         OptionType `json:"option_type"`
	Bid          float64    `json:"bid"`
	Ask          float64    `json:"ask"`
	OpenInterest int64      `json:"open_interest"`
	Gamma        float64    `json:"gamma"`
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// Spread returns the full bid/ask spread width.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// Snapshot is a point-in-time options chain for a single expiration,
// together with the underlying price. Immutable once fetched.
type Snapshot struct {
	Symbol     string    `json:"symbol"`
	Expiration time.Time `json:"expiration"`
	Price      float64   `json:"price"`
	Quotes     []Quote   `json:"quotes"`
	Timestamp  time.Time `json:"timestamp"`
}

// Validate reports whether the snapshot is usable for signal extraction.
// A validation failure is a data-integrity problem, not a transport one:
// the caller should skip the current cycle rather than retry.
func (s *Snapshot) Validate() error {
	if s == nil || len(s.Quotes) == 0 {
		return ErrEmptyChain
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: underlying price %.2f", ErrMalformed, s.Price)
	}
	for _, q := range s.Quotes {
		if q.Type != Call && q.Type != Put {
			return fmt.Errorf("%w: unknown option type %q at strike %.2f", ErrMalformed, q.Type, q.Strike)
		}
		if q.Strike <= 0 {
			return fmt.Errorf("%w: non-positive strike %.2f", ErrMalformed, q.Strike)
		}
		if q.Bid < 0 || q.Ask < 0 || q.Ask < q.Bid {
			return fmt.Errorf("%w: crossed quote at strike %.2f (bid %.2f ask %.2f)", ErrMalformed, q.Strike, q.Bid, q.Ask)
		}
		if q.Gamma < 0 || q.OpenInterest < 0 {
			return fmt.Errorf("%w: negative gamma or open interest at strike %.2f", ErrMalformed, q.Strike)
		}
	}
	return nil
}

// Find returns the quote for a strike/type pair.
func (s *Snapshot) Find(strike float64, typ OptionType) (Quote, bool) {
	for _, q := range s.Quotes {
		if q.Type == typ && q.Strike == strike {
			return q, true
		}
	}
	return Quote{}, false
}
