package broker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tradeforge/gexpin/internal/chain"
	"github.com/tradeforge/gexpin/internal/market"
)

const volatilitySymbol = "VIX"

type chainResponse struct {
	Symbol     string  `json:"symbol"`
	Underlying float64 `json:"underlying_price"`
	Timestamp  int64   `json:"timestamp"`
	Options    []struct {
		Strike       float64 `json:"strike"`
		OptionType   string  `json:"option_type"`
		Bid          float64 `json:"bid"`
		Ask          float64 `json:"ask"`
		OpenInterest int64   `json:"open_interest"`
		Greeks       struct {
			Gamma float64 `json:"gamma"`
		} `json:"greeks"`
	} `json:"options"`
}

// GetChain fetches the full 0DTE chain snapshot for an index.
func (c *HTTPClient) GetChain(ctx context.Context, idx market.Index, expiration time.Time) (*chain.Snapshot, error) {
	q := url.Values{}
	q.Set("symbol", idx.OptionRoot)
	q.Set("expiration", expiration.Format("2006-01-02"))
	q.Set("greeks", "true")

	var resp chainResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/markets/options/chains", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching chain for %s: %w", idx.Code, err)
	}

	snap := &chain.Snapshot{
		Symbol:     idx.Symbol,
		Expiration: expiration,
		Price:      resp.Underlying,
		Timestamp:  time.Unix(resp.Timestamp, 0),
		Quotes:     make([]chain.Quote, 0, len(resp.Options)),
	}
	for _, o := range resp.Options {
		snap.Quotes = append(snap.Quotes, chain.Quote{
			Strike:       o.Strike,
			Type:         chain.OptionType(o.OptionType),
			Bid:          o.Bid,
			Ask:          o.Ask,
			OpenInterest: o.OpenInterest,
			Gamma:        o.Greeks.Gamma,
		})
	}

	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return snap, nil
}

type quoteResponse struct {
	Quotes []struct {
		Symbol    string  `json:"symbol"`
		Last      float64 `json:"last"`
		PrevClose float64 `json:"prevclose"`
		Bid       float64 `json:"bid"`
		Ask       float64 `json:"ask"`
	} `json:"quotes"`
}

// GetUnderlying fetches the spot quote and previous close for a symbol.
func (c *HTTPClient) GetUnderlying(ctx context.Context, symbol string) (UnderlyingQuote, error) {
	q := url.Values{}
	q.Set("symbols", symbol)

	var resp quoteResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/markets/quotes", q, nil, &resp); err != nil {
		return UnderlyingQuote{}, fmt.Errorf("fetching quote for %s: %w", symbol, err)
	}
	if len(resp.Quotes) == 0 || resp.Quotes[0].Last <= 0 {
		return UnderlyingQuote{}, fmt.Errorf("%w: empty quote for %s", ErrMalformed, symbol)
	}
	return UnderlyingQuote{
		Symbol:    symbol,
		Last:      resp.Quotes[0].Last,
		PrevClose: resp.Quotes[0].PrevClose,
	}, nil
}

// GetVolatility fetches the current volatility index value.
func (c *HTTPClient) GetVolatility(ctx context.Context) (float64, error) {
	quote, err := c.GetUnderlying(ctx, volatilitySymbol)
	if err != nil {
		return 0, err
	}
	return quote.Last, nil
}

type seriesResponse struct {
	Points []struct {
		Time  int64   `json:"time"`
		Value float64 `json:"value"`
	} `json:"points"`
}

// GetVolatilitySeries fetches recent volatility index observations, most
// recent last. Used by the volatility-spike gate.
func (c *HTTPClient) GetVolatilitySeries(ctx context.Context, lookback time.Duration) ([]VolPoint, error) {
	q := url.Values{}
	q.Set("symbol", volatilitySymbol)
	q.Set("start", time.Now().Add(-lookback).Format(time.RFC3339))

	var resp seriesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/markets/timesales", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching volatility series: %w", err)
	}

	points := make([]VolPoint, 0, len(resp.Points))
	for _, p := range resp.Points {
		points = append(points, VolPoint{Time: time.Unix(p.Time, 0), Value: p.Value})
	}
	return points, nil
}

type barsResponse struct {
	Bars []struct {
		Time  int64   `json:"time"`
		Open  float64 `json:"open"`
		High  float64 `json:"high"`
		Low   float64 `json:"low"`
		Close float64 `json:"close"`
	} `json:"bars"`
}

// GetPriceBars fetches recent OHLC bars for the underlying, oldest first.
func (c *HTTPClient) GetPriceBars(ctx context.Context, symbol string, intervalMinutes, count int) ([]Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", strconv.Itoa(intervalMinutes)+"min")
	q.Set("count", strconv.Itoa(count))

	var resp barsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/markets/history", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}

	bars := make([]Bar, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		bars = append(bars, Bar{
			Time:  time.Unix(b.Time, 0),
			Open:  b.Open,
			High:  b.High,
			Low:   b.Low,
			Close: b.Close,
		})
	}
	return bars, nil
}

type optionQuoteResponse struct {
	Quotes []struct {
		Symbol       string  `json:"symbol"`
		Bid          float64 `json:"bid"`
		Ask          float64 `json:"ask"`
		Strike       float64 `json:"strike"`
		OptionType   string  `json:"option_type"`
		OpenInterest int64   `json:"open_interest"`
	} `json:"quotes"`
}

// GetOptionQuote fetches the current bid/ask for one option contract.
func (c *HTTPClient) GetOptionQuote(ctx context.Context, optionSymbol string) (chain.Quote, error) {
	q := url.Values{}
	q.Set("symbols", optionSymbol)

	var resp optionQuoteResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/markets/quotes", q, nil, &resp); err != nil {
		return chain.Quote{}, fmt.Errorf("fetching option quote %s: %w", optionSymbol, err)
	}
	if len(resp.Quotes) == 0 {
		return chain.Quote{}, fmt.Errorf("%w: no quote for %s", ErrMalformed, optionSymbol)
	}
	o := resp.Quotes[0]
	return chain.Quote{
		Strike:       o.Strike,
		Type:         chain.OptionType(o.OptionType),
		Bid:          o.Bid,
		Ask:          o.Ask,
		OpenInterest: o.OpenInterest,
	}, nil
}
