package broker

import (
	"fmt"
	"time"

	"github.com/tradeforge/gexpin/internal/chain"
)

// LegSide is the broker-side action for one option leg.
type LegSide string

const (
	SellToOpen  LegSide = "sell_to_open"
	BuyToOpen   LegSide = "buy_to_open"
	SellToClose LegSide = "sell_to_close"
	BuyToClose  LegSide = "buy_to_close"
)

// OrderLeg is one option of a multileg order.
type OrderLeg struct {
	OptionSymbol string  `json:"option_symbol"`
	Side         LegSide `json:"side"`
	Quantity     int     `json:"quantity"`
}

// MultilegOrder is a net-credit spread order. AllOrNone must stay true for
// opening orders: a partial fill would leave a naked short leg.
type MultilegOrder struct {
	ClientID  string     `json:"client_id"`
	Symbol    string     `json:"symbol"`
	Legs      []OrderLeg `json:"legs"`
	NetCredit float64    `json:"net_credit"`
	AllOrNone bool       `json:"all_or_none"`
	Duration  string     `json:"duration"`
}

// OrderState is the broker's lifecycle state for a placed order.
type OrderState string

const (
	OrderOpen     OrderState = "open"
	OrderFilled   OrderState = "filled"
	OrderCanceled OrderState = "canceled"
	OrderRejected OrderState = "rejected"
)

// OrderStatus is a fill-status query result.
type OrderStatus struct {
	ID        string     `json:"id"`
	State     OrderState `json:"state"`
	FillPrice float64    `json:"fill_price"`
}

// UnderlyingQuote is a spot quote with the prior session close, used by the
// overnight-gap gate.
type UnderlyingQuote struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	PrevClose float64 `json:"prev_close"`
}

// VolPoint is one observation of the volatility index.
type VolPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Bar is one OHLC interval of the underlying.
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// OptionSymbol builds the OCC contract symbol for a root, expiration,
// type, and strike, e.g. SPXW251121P05980000.
func OptionSymbol(root string, expiration time.Time, typ chain.OptionType, strike float64) string {
	cp := "C"
	if typ == chain.Put {
		cp = "P"
	}
	// Strike is encoded as eight digits in thousandths of a point.
	return fmt.Sprintf("%s%s%s%08d", root, expiration.Format("060102"), cp, int64(strike*1000+0.5))
}
