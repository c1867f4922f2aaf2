// Package position aggregates per-leg Black-Scholes values into net
// position P&L and Greeks. SimulatePnL is the hot path: it runs
// hundreds of times per analysis (probability integration, take-profit
// sweeps), so it stays pure arithmetic with no chain lookups.
package position

import (
	"math"

	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/pricing"
	"github.com/mlaurent/spreadwright/internal/util"
)

const contractMultiplier = 100.0

// LegGreeks computes delta, gamma, theta, vega, and IV for one leg at
// the given spot and tenor. Short legs have inverted exposure, so every
// Greek is sign-flipped for SELL.
func LegGreeks(leg models.Leg, spot, tYears, r, sigma float64) models.Greeks {
	sign := leg.Action.Sign()
	return models.Greeks{
		Delta: util.RoundPlaces(pricing.Delta(spot, leg.Strike, tYears, r, sigma, leg.Type)*sign, 4),
		Gamma: util.RoundPlaces(pricing.Gamma(spot, leg.Strike, tYears, r, sigma)*sign, 4),
		Theta: util.RoundPlaces(pricing.Theta(spot, leg.Strike, tYears, r, sigma, leg.Type)*sign, 4),
		Vega:  util.RoundPlaces(pricing.Vega(spot, leg.Strike, tYears, r, sigma)*sign, 4),
		IV:    util.RoundPlaces(sigma*100, 1),
	}
}

// NetGreeks sums the per-leg Greeks, each evaluated at its own
// time-to-expiry, then scales by the contract multiplier to dollar
// sensitivity per 1-unit move. Quantity scaling is the caller's job and
// happens exactly once, at the end of strategy construction.
func NetGreeks(legs []models.Leg, spot, r, sigma float64) models.Greeks {
	net := models.Greeks{IV: util.RoundPlaces(sigma*100, 1)}
	for _, leg := range legs {
		g := LegGreeks(leg, spot, float64(leg.DTE)/365.0, r, sigma)
		net.Delta += g.Delta
		net.Gamma += g.Gamma
		net.Theta += g.Theta
		net.Vega += g.Vega
	}
	net.Delta = util.RoundPlaces(net.Delta*contractMultiplier, 2)
	net.Gamma = util.RoundPlaces(net.Gamma*contractMultiplier, 2)
	net.Theta = util.RoundPlaces(net.Theta*contractMultiplier, 2)
	net.Vega = util.RoundPlaces(net.Vega*contractMultiplier, 2)
	return net
}

// SimulatePnL revalues the position at targetSpot with daysToTarget of
// tenor remaining and returns the P&L in dollars against the opening
// cost basis. All legs are repriced at the same representative sigma.
func SimulatePnL(legs []models.Leg, targetSpot float64, daysToTarget int, r, sigma float64, qty int) float64 {
	tTarget := math.Max(float64(daysToTarget), 1) / 365.0

	initial := 0.0
	revalued := 0.0
	for _, leg := range legs {
		sign := leg.Action.Sign()
		initial += sign * leg.Price
		revalued += sign * pricing.Price(targetSpot, leg.Strike, tTarget, r, sigma, leg.Type)
	}
	return util.RoundCents((revalued - initial) * contractMultiplier * float64(qty))
}

// EstimateTakeProfitSpot searches for the underlying price at which the
// position's P&L reaches targetPnL: a coarse 401-point sweep over
// [0.80*spot, 1.20*spot], refined by 30 bisection iterations within
// +/-0.5% of the best candidate. Returns false when no spot within 25%
// of current gets within 10% of the target, which guards against
// spurious convergence when the target is unreachable (e.g. beyond a
// spread's max width).
//
// The bisection assumes near-monotone P&L in the window. For genuinely
// non-monotone payoffs (iron condors) use FindThresholdCrossings.
func EstimateTakeProfitSpot(legs []models.Leg, spot float64, daysToTarget int, r, sigma float64, qty int, targetPnL float64) (float64, bool) {
	bestSpot := 0.0
	bestDiff := math.MaxFloat64
	for pct := -200; pct <= 200; pct++ {
		testSpot := spot * (1 + float64(pct)/1000.0)
		pnl := SimulatePnL(legs, testSpot, daysToTarget, r, sigma, qty)
		if diff := math.Abs(pnl - targetPnL); diff < bestDiff {
			bestDiff = diff
			bestSpot = testSpot
		}
	}

	lo := bestSpot * 0.995
	hi := bestSpot * 1.005
	for i := 0; i < 30; i++ {
		mid := (lo + hi) / 2
		pnlMid := SimulatePnL(legs, mid, daysToTarget, r, sigma, qty)
		if pnlMid < targetPnL {
			pnlLo := SimulatePnL(legs, lo, daysToTarget, r, sigma, qty)
			if pnlLo < pnlMid {
				lo = mid
			} else {
				hi = mid
			}
		} else {
			hi = mid
		}
	}

	finalSpot := (lo + hi) / 2
	finalPnL := SimulatePnL(legs, finalSpot, daysToTarget, r, sigma, qty)
	if math.Abs(finalPnL-targetPnL) >= math.Abs(targetPnL)*0.10 {
		return 0, false
	}
	if math.Abs(finalSpot-spot)/spot >= 0.25 {
		return 0, false
	}
	return util.RoundCents(finalSpot), true
}

// FindThresholdCrossings evaluates P&L minus target on an n-point spot
// grid over [lo, hi] and returns every sign-change crossing, located by
// linear interpolation, in ascending spot order. Shared by the
// take-profit display sweep and any non-monotone payoff analysis.
func FindThresholdCrossings(legs []models.Leg, lo, hi float64, n int, daysToTarget int, r, sigma float64, qty int, targetPnL float64) []float64 {
	if n < 2 || hi <= lo {
		return nil
	}
	var crossings []float64
	step := (hi - lo) / float64(n-1)
	prevSpot := lo
	prevDiff := SimulatePnL(legs, lo, daysToTarget, r, sigma, qty) - targetPnL
	for i := 1; i < n; i++ {
		s := lo + float64(i)*step
		diff := SimulatePnL(legs, s, daysToTarget, r, sigma, qty) - targetPnL
		if diff == 0 {
			crossings = append(crossings, s)
		} else if prevDiff != 0 && (diff > 0) != (prevDiff > 0) {
			// Linear interpolation between the bracketing grid points.
			frac := prevDiff / (prevDiff - diff)
			crossings = append(crossings, prevSpot+frac*(s-prevSpot))
		}
		prevSpot, prevDiff = s, diff
	}
	return crossings
}

// NearestCrossing returns the threshold crossing closest to spot, if any.
func NearestCrossing(crossings []float64, spot float64) (float64, bool) {
	if len(crossings) == 0 {
		return 0, false
	}
	best := crossings[0]
	for _, c := range crossings[1:] {
		if math.Abs(c-spot) < math.Abs(best-spot) {
			best = c
		}
	}
	return best, true
}
