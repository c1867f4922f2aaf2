package models

import (
	"strings"
	"testing"
)

func validStrategy() *Strategy {
	s := &Strategy{
		Ticker:   "SPY",
		Name:     "Bull Put Spread",
		Quantity: 2,
		MaxRisk:  736,
		Legs: []Leg{
			{Action: Sell, Type: Put, Strike: 95, Expiration: "2026-10-15", DTE: 45, Price: 1.32},
			{Action: Buy, Type: Put, Strike: 90, Expiration: "2026-10-15", DTE: 45, Price: 0.40},
		},
	}
	s.Probabilities.PTakeProfit = 40.0
	s.Probabilities.PBreakeven = 65.0
	return s
}

func TestStrategyValidate(t *testing.T) {
	if err := validStrategy().Validate(); err != nil {
		t.Fatalf("valid strategy rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Strategy)
	}{
		{"zero risk", func(s *Strategy) { s.MaxRisk = 0 }},
		{"zero quantity", func(s *Strategy) { s.Quantity = 0 }},
		{"no legs", func(s *Strategy) { s.Legs = nil }},
		{"five legs", func(s *Strategy) { s.Legs = append(s.Legs, s.Legs[0], s.Legs[0], s.Legs[0]) }},
		{"bad action", func(s *Strategy) { s.Legs[0].Action = "HOLD" }},
		{"bad type", func(s *Strategy) { s.Legs[0].Type = "Warrant" }},
		{"zero strike", func(s *Strategy) { s.Legs[0].Strike = 0 }},
		{"profit prob above breakeven", func(s *Strategy) { s.Probabilities.PTakeProfit = 70 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validStrategy()
			tt.mutate(s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestStrategyIsCredit(t *testing.T) {
	s := validStrategy()
	s.CreditDebit = 92
	if !s.IsCredit() {
		t.Error("positive CreditDebit should read as credit")
	}
	s.CreditDebit = -150
	if s.IsCredit() {
		t.Error("negative CreditDebit should read as debit")
	}
}

func TestStrategySummary(t *testing.T) {
	got := validStrategy().Summary()
	for _, want := range []string{"SPY", "Bull Put Spread", "x2", "SELL 1x 95 Put (2026-10-15)"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary %q missing %q", got, want)
		}
	}
}

func TestBiasValid(t *testing.T) {
	for _, b := range Biases() {
		if !b.Valid() {
			t.Errorf("%s should be valid", b)
		}
	}
	if Bias("Sideways").Valid() {
		t.Error("unknown bias should be invalid")
	}
}

func TestActionSign(t *testing.T) {
	if Buy.Sign() != 1 || Sell.Sign() != -1 {
		t.Errorf("unexpected signs: buy %v sell %v", Buy.Sign(), Sell.Sign())
	}
}
