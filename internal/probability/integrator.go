// Package probability estimates outcome probabilities and expected
// value for a multi-leg position by integrating its P&L against a
// log-normal terminal-price distribution.
//
// The evaluation date is the time-stop, 21 calendar days before
// expiration. Two volatilities play distinct roles: sigmaMove (realized
// volatility when available) drives how far the underlying may travel
// during the holding window, while the chain's implied sigma prices the
// options once it gets there. All legs are repriced at that single
// chain-wide sigma; real chains exhibit strike-dependent skew, but the
// flat-sigma treatment is deliberate, documented behavior.
package probability

import (
	"math"

	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/position"
	"github.com/mlaurent/spreadwright/internal/pricing"
	"github.com/mlaurent/spreadwright/internal/util"
)

// Integrator holds the numerical parameters of the Riemann sum.
type Integrator struct {
	// RiskFreeRate is the constant annual rate used for both drift and
	// option repricing.
	RiskFreeRate float64
	// Points is the grid resolution over z.
	Points int
	// ZRange integrates z over [-ZRange, +ZRange] standard deviations.
	ZRange float64
	// TimeStopDays is how many calendar days before expiration the
	// position is evaluated (and closed).
	TimeStopDays int
	// MaxLossFraction classifies P&L at or below -MaxLossFraction*maxRisk
	// as a max-loss outcome.
	MaxLossFraction float64
	// ClampLo and ClampHi bound the reported percentages so the output
	// never displays impossible certainty.
	ClampLo, ClampHi float64
}

// NewIntegrator returns an Integrator with the reference parameters:
// 500 points over z in [-4, 4], a 21-day time-stop, and 95% of max risk
// as the max-loss threshold.
func NewIntegrator(riskFreeRate float64) *Integrator {
	return &Integrator{
		RiskFreeRate:    riskFreeRate,
		Points:          500,
		ZRange:          4,
		TimeStopDays:    21,
		MaxLossFraction: 0.95,
		ClampLo:         0.1,
		ClampHi:         99.9,
	}
}

// Compute integrates the position's P&L at the time-stop over the
// log-normal terminal distribution. sigmaMove <= 0 falls back to sigma.
// Probabilities come back as clamped percentages; ExpectedPnL is the
// unclamped integral in dollars.
//
// Invariant: PTakeProfit <= PBreakeven (reaching the take-profit target
// implies breakeven or better), for every payoff shape.
func (it *Integrator) Compute(legs []models.Leg, spot float64, dte int, sigma float64, qty int, takeProfit, maxRisk, sigmaMove float64) models.ProbabilityResult {
	if sigmaMove <= 0 {
		sigmaMove = sigma
	}

	holdingDays := math.Max(1, float64(dte-it.TimeStopDays))
	remainingDTE := dte
	if it.TimeStopDays < remainingDTE {
		remainingDTE = it.TimeStopDays
	}
	tHolding := holdingDays / 365.0

	drift := (it.RiskFreeRate - 0.5*sigmaMove*sigmaMove) * tHolding
	vol := sigmaMove * math.Sqrt(tHolding)

	dz := 2 * it.ZRange / float64(it.Points-1)
	var pTakeProfit, pBreakeven, pMaxLoss, expectedPnL float64
	for i := 0; i < it.Points; i++ {
		z := -it.ZRange + float64(i)*dz
		sT := spot * math.Exp(drift+vol*z)
		prob := pricing.NormPDF(z) * dz
		pnl := position.SimulatePnL(legs, sT, remainingDTE, it.RiskFreeRate, sigma, qty)

		expectedPnL += pnl * prob
		if pnl >= takeProfit {
			pTakeProfit += prob
		}
		if pnl >= 0 {
			pBreakeven += prob
		}
		if pnl <= -maxRisk*it.MaxLossFraction {
			pMaxLoss += prob
		}
	}

	res := models.ProbabilityResult{
		PTakeProfit: it.clampPct(pTakeProfit),
		PBreakeven:  it.clampPct(pBreakeven),
		PMaxLoss:    it.clampPct(pMaxLoss),
		ExpectedPnL: util.RoundCents(expectedPnL),
	}
	res.PPartialLoss = util.RoundPlaces(math.Max(0, 100-res.PBreakeven-res.PMaxLoss), 1)
	return res
}

func (it *Integrator) clampPct(p float64) float64 {
	return util.RoundPlaces(util.Clamp(p*100, it.ClampLo, it.ClampHi), 1)
}
