package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlaurent/spreadwright/internal/chain"
	"github.com/mlaurent/spreadwright/internal/models"
)

// testInput assembles the filtered ~45 DTE buildInput the engine would
// hand to a builder, so drafts can be inspected before the finalize
// pipeline (and its kill-switch) runs.
func testInput(t *testing.T, b *Builder, req Request) buildInput {
	t.Helper()
	ch, err := b.provider.OptionsChain(req.Ticker, b.cfg.Strategy.TargetDTE)
	require.NoError(t, err)
	calls := chain.FilterLiquid(ch.Calls, b.filter)
	puts := chain.FilterLiquid(ch.Puts, b.filter)
	combined := make([]models.OptionQuote, 0, len(calls)+len(puts))
	combined = append(combined, calls...)
	combined = append(combined, puts...)
	return buildInput{
		req:    req,
		chain:  ch,
		calls:  calls,
		puts:   puts,
		sigma:  chain.EstimateSigma(combined),
		tYears: float64(ch.DTE) / 365.0,
	}
}

func TestCalendarSpreadDraft(t *testing.T) {
	b := testBuilder(syntheticAt(100, 0.25))
	in := testInput(t, b, Request{Ticker: "SPY", Spot: 100, VolIndex: 12, IVRank: 10, Bias: models.Neutral, Budget: 1000})

	d, err := b.calendarSpread(in)
	require.NoError(t, err)

	assert.Equal(t, "Calendar Spread", d.name)
	require.Len(t, d.legs, 2)
	assert.Equal(t, models.Buy, d.legs[0].Action)
	assert.Equal(t, models.Call, d.legs[0].Type)
	assert.Equal(t, 100.0, d.legs[0].Strike)
	assert.Equal(t, "2026-10-15", d.legs[0].Expiration)
	assert.Equal(t, 45, d.legs[0].DTE)
	assert.InDelta(t, 3.80, d.legs[0].Price, 1e-9)
	assert.Equal(t, models.Leg{Action: models.Sell, Type: models.Call, Strike: 100, Expiration: "2026-09-21", DTE: 21, Price: 2.54}, d.legs[1])

	assert.InDelta(t, -126.0, d.creditDebit, 1e-9)
	assert.InDelta(t, 126.0, d.maxRisk, 1e-9)
	assert.InDelta(t, 63.0, d.maxProfit, 1e-9, "half the debit is the planning estimate")
}

func TestPoorMansCoveredCallDraft(t *testing.T) {
	b := testBuilder(syntheticAt(100, 0.25))
	in := testInput(t, b, Request{Ticker: "SPY", Spot: 100, VolIndex: 12, IVRank: 10, Bias: models.Bullish, Budget: 3000})

	d, err := b.poorMansCoveredCall(in)
	require.NoError(t, err)

	assert.Equal(t, "PMCC (Diagonal Spread)", d.name)
	require.Len(t, d.legs, 2)
	assert.Equal(t, models.Leg{Action: models.Buy, Type: models.Call, Strike: 90, Expiration: "2027-08-31", DTE: 365, Price: 18.14}, d.legs[0])
	assert.Equal(t, models.Leg{Action: models.Sell, Type: models.Call, Strike: 105, Expiration: "2026-10-15", DTE: 45, Price: 1.82}, d.legs[1])

	assert.Equal(t, -1632.0, d.creditDebit)
	assert.Equal(t, 1632.0, d.maxRisk)
	// With a flat smile the 15-point diagonal costs more than its
	// width, so the theoretical max profit floors at zero.
	assert.Equal(t, 0.0, d.maxProfit)
}

func TestCashSecuredPutWalksDownToAffordableStrike(t *testing.T) {
	b := testBuilder(syntheticAt(100, 0.25))
	// The -0.25 delta strike (95) secures $9368; a $9000 budget walks
	// down to the 90 strike at $8960.
	in := testInput(t, b, Request{Ticker: "SPY", Spot: 100, VolIndex: 17, IVRank: 35, Bias: models.Neutral, Budget: 9000})

	d, err := b.cashSecuredPut(in)
	require.NoError(t, err)

	require.Len(t, d.legs, 1)
	assert.Equal(t, 90.0, d.legs[0].Strike)
	assert.Equal(t, 0.40, d.legs[0].Price)
	assert.Equal(t, 8960.0, d.maxRisk)
	assert.Equal(t, 40.0, d.creditDebit)
	assert.Equal(t, 40.0, d.maxProfit)
}

func TestCashSecuredPutUnaffordable(t *testing.T) {
	b := testBuilder(syntheticAt(100, 0.25))
	in := testInput(t, b, Request{Ticker: "SPY", Spot: 100, VolIndex: 17, IVRank: 35, Bias: models.Neutral, Budget: 5000})

	_, err := b.cashSecuredPut(in)
	r, ok := AsRejection(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, CategoryBudget, r.Category)
}

func TestBearCallSpreadDraft(t *testing.T) {
	b := testBuilder(syntheticAt(100, 0.25))
	in := testInput(t, b, Request{Ticker: "SPY", Spot: 100, VolIndex: 22, IVRank: 60, Bias: models.Bearish, Budget: 1000})

	d, err := b.bearCallSpread(in)
	require.NoError(t, err)

	require.Len(t, d.legs, 2)
	assert.Equal(t, 110.0, d.legs[0].Strike)
	assert.Equal(t, 115.0, d.legs[1].Strike)
	assert.Equal(t, 48.0, d.creditDebit)
	assert.Equal(t, 452.0, d.maxRisk)
	assert.Equal(t, 48.0, d.maxProfit)
}
