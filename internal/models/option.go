// Package models defines the value objects shared by the pricing,
// selection, and presentation layers.
package models

// OptionType distinguishes calls from puts.
type OptionType string

const (
	// Call is a call option.
	Call OptionType = "Call"
	// Put is a put option.
	Put OptionType = "Put"
)

// Valid returns true if the OptionType is one of the defined constants
func (t OptionType) Valid() bool {
	return t == Call || t == Put
}

// Action is the side of a leg: buy to open or sell to open.
type Action string

const (
	// Buy opens a long leg.
	Buy Action = "BUY"
	// Sell opens a short leg.
	Sell Action = "SELL"
)

// Valid returns true if the Action is one of the defined constants
func (a Action) Valid() bool {
	return a == Buy || a == Sell
}

// Sign returns +1 for a bought leg and -1 for a sold leg.
func (a Action) Sign() float64 {
	if a == Sell {
		return -1
	}
	return 1
}

// Bias is the user's directional view on the underlying.
type Bias string

const (
	// Neutral expects the underlying to stay range-bound.
	Neutral Bias = "Neutral"
	// Bullish expects the underlying to rise.
	Bullish Bias = "Bullish"
	// Bearish expects the underlying to fall.
	Bearish Bias = "Bearish"
)

// Valid returns true if the Bias is one of the defined constants
func (b Bias) Valid() bool {
	switch b {
	case Neutral, Bullish, Bearish:
		return true
	default:
		return false
	}
}

// Biases lists every directional bias, in presentation order.
func Biases() []Bias {
	return []Bias{Neutral, Bullish, Bearish}
}

// OptionQuote is one row of an options chain as delivered by a market
// data provider. Immutable once read; ImpliedVol is 0 when the feed
// omits it.
type OptionQuote struct {
	Strike       float64 `json:"strike"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	OpenInterest int64   `json:"open_interest"`
	ImpliedVol   float64 `json:"implied_volatility,omitempty"`
}

// Chain holds one expiration's calls and puts.
type Chain struct {
	Expiration string        `json:"expiration"` // YYYY-MM-DD
	DTE        int           `json:"dte"`
	Calls      []OptionQuote `json:"calls"`
	Puts       []OptionQuote `json:"puts"`
}
