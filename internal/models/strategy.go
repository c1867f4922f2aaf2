package models

import (
	"fmt"
	"strings"
	"time"
)

// Leg is one contract within a multi-leg structure. Legs are immutable
// value objects; Price is the mid (or fallback) price captured at
// construction time.
type Leg struct {
	Action     Action     `json:"action"`
	Type       OptionType `json:"type"`
	Strike     float64    `json:"strike"`
	Expiration string     `json:"expiration"` // YYYY-MM-DD
	DTE        int        `json:"dte"`
	Price      float64    `json:"price"`
}

// String renders the leg in broker-ticket form, e.g. "SELL 1x 450 Put (2025-10-17)".
func (l Leg) String() string {
	return fmt.Sprintf("%s 1x %g %s (%s)", l.Action, l.Strike, l.Type, l.Expiration)
}

// Greeks carries net first-order sensitivities in dollar terms: delta,
// gamma, theta, and vega are scaled by 100 x quantity; IV is the
// representative implied volatility in percent.
type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	IV    float64 `json:"iv"`
}

// ProbabilityResult is the output of the log-normal integrator. The four
// percentages are clamped to [0.1, 99.9]; ExpectedPnL is unclamped, in
// dollars.
type ProbabilityResult struct {
	PTakeProfit  float64 `json:"p_take_profit"`
	PBreakeven   float64 `json:"p_breakeven"`
	PPartialLoss float64 `json:"p_partial_loss"`
	PMaxLoss     float64 `json:"p_max_loss"`
	ExpectedPnL  float64 `json:"expected_pnl"`
}

// ExitPlan fixes the two exit triggers decided at construction time: a
// dollar take-profit target and a calendar time-stop 21 days before
// expiration, honored regardless of P&L on that date.
type ExitPlan struct {
	TakeProfit   float64   `json:"take_profit"`
	TimeStopDate time.Time `json:"time_stop_date"`
	TimeStopDTE  int       `json:"time_stop_dte"`
}

// Strategy is the central aggregate: a fully specified multi-leg
// position with risk-bounded sizing. Built once per (ticker, bias,
// budget) analysis call and immutable afterwards. CreditDebit, MaxRisk,
// MaxProfit, ExpectedPnL, the Greeks, and the take-profit target are all
// dollar amounts already scaled by Quantity.
type Strategy struct {
	ID            string            `json:"id"`
	Ticker        string            `json:"ticker"`
	Name          string            `json:"name"`
	Rationale     string            `json:"rationale"`
	Legs          []Leg             `json:"legs"`
	Expiration    string            `json:"expiration"`
	DTE           int               `json:"dte"`
	CreditDebit   float64           `json:"credit_or_debit"` // >0 credit, <0 debit
	MaxRisk       float64           `json:"max_risk"`
	MaxProfit     float64           `json:"max_profit"`
	Quantity      int               `json:"quantity"`
	Sigma         float64           `json:"sigma"` // chain-wide implied vol, decimal
	Greeks        Greeks            `json:"greeks"`
	Probabilities ProbabilityResult `json:"probabilities"`
	ExitPlan      ExitPlan          `json:"exit_plan"`
}

// IsCredit reports whether the structure collects premium at open.
func (s *Strategy) IsCredit() bool {
	return s.CreditDebit > 0
}

// Pop returns the probability of closing at breakeven or better at the
// time-stop, in percent.
func (s *Strategy) Pop() float64 {
	return s.Probabilities.PBreakeven
}

// CollateralRequired returns the cash needed to carry the position, i.e.
// the defined max risk for spreads or the secured amount for a naked
// short put.
func (s *Strategy) CollateralRequired() float64 {
	return s.MaxRisk
}

// Summary renders a one-line human-readable description for logs.
func (s *Strategy) Summary() string {
	legs := make([]string, 0, len(s.Legs))
	for _, l := range s.Legs {
		legs = append(legs, l.String())
	}
	return fmt.Sprintf("%s %s x%d [%s] risk=%.2f profit=%.2f pop=%.1f%%",
		s.Ticker, s.Name, s.Quantity, strings.Join(legs, ", "), s.MaxRisk, s.MaxProfit, s.Pop())
}

// Validate checks the aggregate invariants that must hold after
// construction.
func (s *Strategy) Validate() error {
	if s.MaxRisk <= 0 {
		return fmt.Errorf("strategy %q: max risk must be positive, got %.2f", s.Name, s.MaxRisk)
	}
	if s.Quantity < 1 {
		return fmt.Errorf("strategy %q: quantity must be >= 1, got %d", s.Name, s.Quantity)
	}
	if n := len(s.Legs); n < 1 || n > 4 {
		return fmt.Errorf("strategy %q: expected 1-4 legs, got %d", s.Name, n)
	}
	for i, l := range s.Legs {
		if !l.Action.Valid() || !l.Type.Valid() {
			return fmt.Errorf("strategy %q: leg %d has invalid action/type", s.Name, i)
		}
		if l.Strike <= 0 {
			return fmt.Errorf("strategy %q: leg %d has non-positive strike", s.Name, i)
		}
	}
	if s.Probabilities.PTakeProfit > s.Probabilities.PBreakeven {
		return fmt.Errorf("strategy %q: p_take_profit %.1f exceeds p_breakeven %.1f",
			s.Name, s.Probabilities.PTakeProfit, s.Probabilities.PBreakeven)
	}
	return nil
}
