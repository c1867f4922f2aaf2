// Package chain provides strike-selection and quote-hygiene helpers
// over a fetched options chain. Chains are small (tens of rows), so
// every helper is a plain linear scan.
package chain

import (
	"math"
	"sort"

	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/pricing"
	"github.com/mlaurent/spreadwright/internal/util"
)

// DefaultSigma is the implied-volatility fallback when a chain carries
// no usable IV column.
const DefaultSigma = 0.25

// LiquidityFilter holds the thresholds applied by FilterLiquid.
type LiquidityFilter struct {
	// MinOpenInterest drops rows with OI below this value.
	MinOpenInterest int64
	// MaxSpreadPct drops rows whose (ask-bid)/mid exceeds this ratio.
	MaxSpreadPct float64
	// SyntheticSpreadPct, when >0, synthesizes a bid/ask around the last
	// traded price for rows missing a live bid. Delayed-quote feeds omit
	// bid/ask outside market hours.
	SyntheticSpreadPct float64
}

// DefaultLiquidityFilter mirrors the standard hygiene rules: OI >= 10,
// spread <= 40% of mid, +/-2% synthetic quotes.
func DefaultLiquidityFilter() LiquidityFilter {
	return LiquidityFilter{
		MinOpenInterest:    10,
		MaxSpreadPct:       0.40,
		SyntheticSpreadPct: 0.02,
	}
}

// MidPrice returns (bid+ask)/2 rounded to cents when both sides are
// live, falling back to the last traded price, then to 0 (untradeable,
// rejected downstream).
func MidPrice(q models.OptionQuote) float64 {
	if q.Bid > 0 && q.Ask > 0 {
		return util.RoundCents((q.Bid + q.Ask) / 2)
	}
	if q.Last > 0 {
		return util.RoundCents(q.Last)
	}
	return 0.0
}

// FilterLiquid returns the rows of a chain side that survive the
// liquidity rules. This is the primary defense against building a
// strategy on a phantom quote.
func FilterLiquid(quotes []models.OptionQuote, f LiquidityFilter) []models.OptionQuote {
	out := make([]models.OptionQuote, 0, len(quotes))
	for _, q := range quotes {
		if q.Bid <= 0 && q.Last > 0 && f.SyntheticSpreadPct > 0 {
			q.Bid = util.RoundCents(q.Last * (1 - f.SyntheticSpreadPct))
			q.Ask = util.RoundCents(q.Last * (1 + f.SyntheticSpreadPct))
		}
		if q.Bid <= 0 {
			continue
		}
		if q.OpenInterest < f.MinOpenInterest {
			continue
		}
		mid := (q.Bid + q.Ask) / 2
		if mid <= 0 || (q.Ask-q.Bid)/mid > f.MaxSpreadPct {
			continue
		}
		out = append(out, q)
	}
	return out
}

// EstimateSigma returns the median of the chain's positive implied
// volatilities, or DefaultSigma when none are present.
func EstimateSigma(quotes []models.OptionQuote) float64 {
	ivs := make([]float64, 0, len(quotes))
	for _, q := range quotes {
		if q.ImpliedVol > 0 {
			ivs = append(ivs, q.ImpliedVol)
		}
	}
	if len(ivs) == 0 {
		return DefaultSigma
	}
	sort.Float64s(ivs)
	n := len(ivs)
	if n%2 == 1 {
		return ivs[n/2]
	}
	return (ivs[n/2-1] + ivs[n/2]) / 2
}

// FindStrikeByDelta returns the row whose Black-Scholes |delta| is
// closest to |targetDelta|, computed at the chain-wide sigma.
func FindStrikeByDelta(quotes []models.OptionQuote, spot, tYears, r, sigma, targetDelta float64, typ models.OptionType) (models.OptionQuote, bool) {
	if len(quotes) == 0 {
		return models.OptionQuote{}, false
	}
	targetAbs := math.Abs(targetDelta)
	best := quotes[0]
	bestDiff := math.MaxFloat64
	for _, q := range quotes {
		d := math.Abs(pricing.Delta(spot, q.Strike, tYears, r, sigma, typ))
		if diff := math.Abs(d - targetAbs); diff < bestDiff {
			bestDiff = diff
			best = q
		}
	}
	return best, true
}

// Strikes returns the sorted unique strikes of a chain side.
func Strikes(quotes []models.OptionQuote) []float64 {
	seen := make(map[float64]struct{}, len(quotes))
	out := make([]float64, 0, len(quotes))
	for _, q := range quotes {
		if _, ok := seen[q.Strike]; ok {
			continue
		}
		seen[q.Strike] = struct{}{}
		out = append(out, q.Strike)
	}
	sort.Float64s(out)
	return out
}

// NearestStrike returns the candidate closest to target. Ties resolve
// to the lower strike because candidates are scanned in ascending order.
func NearestStrike(candidates []float64, target float64) (float64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	bestDiff := math.Abs(best - target)
	for _, s := range candidates[1:] {
		if diff := math.Abs(s - target); diff < bestDiff {
			bestDiff = diff
			best = s
		}
	}
	return best, true
}

// QuoteAtStrike returns the first row at exactly the given strike.
func QuoteAtStrike(quotes []models.OptionQuote, strike float64) (models.OptionQuote, bool) {
	for _, q := range quotes {
		if q.Strike == strike {
			return q, true
		}
	}
	return models.OptionQuote{}, false
}

// TargetWidth returns the protective-leg distance in dollars:
// widthPct of spot, floored at $1.
func TargetWidth(spot, widthPct float64) float64 {
	return math.Max(1.0, math.Round(spot*widthPct))
}

// Below returns the candidates strictly below limit, ascending.
func Below(strikes []float64, limit float64) []float64 {
	out := make([]float64, 0, len(strikes))
	for _, s := range strikes {
		if s < limit {
			out = append(out, s)
		}
	}
	return out
}

// Above returns the candidates strictly above limit, ascending.
func Above(strikes []float64, limit float64) []float64 {
	out := make([]float64, 0, len(strikes))
	for _, s := range strikes {
		if s > limit {
			out = append(out, s)
		}
	}
	return out
}

// SymmetrizeShorts centers an iron condor body: both short strikes are
// re-snapped to a common OTM distance, the smaller of the two initial
// distances from spot. Returns the input strikes unchanged when either
// side has no OTM candidates.
func SymmetrizeShorts(putStrikes, callStrikes []float64, spot, putStrike, callStrike float64) (float64, float64) {
	dist := math.Min(spot-putStrike, callStrike-spot)
	putCandidates := Below(putStrikes, spot)
	callCandidates := Above(callStrikes, spot)
	if len(putCandidates) == 0 || len(callCandidates) == 0 {
		return putStrike, callStrike
	}
	newPut, _ := NearestStrike(putCandidates, spot-dist)
	newCall, _ := NearestStrike(callCandidates, spot+dist)
	return newPut, newCall
}
