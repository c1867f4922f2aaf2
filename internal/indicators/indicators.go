// Package indicators computes the historical annotations that surround
// a recommendation: an IV-rank proxy from realized volatility, the
// realized volatility feeding the probability integrator's movement
// sigma, plus SMA/RSI trend checks and trade-quality ratios. Everything
// operates on caller-supplied closing bars; fetching history is the
// surrounding system's job.
package indicators

import (
	"errors"
	"math"
)

// tradingSessions is the annualization base for daily volatility.
const tradingSessions = 252

// ErrInsufficientHistory is returned when too few bars are supplied to
// compute an indicator.
var ErrInsufficientHistory = errors.New("insufficient price history")

// LogReturns converts a closing series into log returns. Bars with a
// non-positive close are skipped to keep the logs finite.
func LogReturns(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			continue
		}
		out = append(out, math.Log(closes[i]/closes[i-1]))
	}
	return out
}

// sampleStd is the n-1 denominator standard deviation.
func sampleStd(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// RollingVol returns the annualized volatility of each window-sized
// span of returns, in percent. Element i covers returns [i, i+window).
func RollingVol(returns []float64, window int) []float64 {
	if window < 2 || len(returns) < window {
		return nil
	}
	out := make([]float64, 0, len(returns)-window+1)
	for i := 0; i+window <= len(returns); i++ {
		out = append(out, sampleStd(returns[i:i+window])*math.Sqrt(tradingSessions)*100)
	}
	return out
}

// IVRank positions the current 20-day realized volatility within its
// range over the supplied history (nominally one year of closes),
// 0-100. Realized volatility stands in for implied when the data source
// does not carry historical IV. Returns 50 when the range is flat or
// the series is too short for a rolling window.
func IVRank(closes []float64) (float64, error) {
	if len(closes) < 30 {
		return 0, ErrInsufficientHistory
	}
	rolling := RollingVol(LogReturns(closes), 20)
	if len(rolling) == 0 {
		return 50, nil
	}
	current := rolling[len(rolling)-1]
	lo, hi := rolling[0], rolling[0]
	for _, v := range rolling[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return 50, nil
	}
	rank := 100 * (current - lo) / (hi - lo)
	return math.Round(math.Max(0, math.Min(100, rank))*10) / 10, nil
}

// RealizedVol is the annualized volatility of the last 30 log returns,
// as a decimal. This is the sigma-move input of the probability
// integrator. ok is false when history is too short or the volatility
// degenerates to zero.
func RealizedVol(closes []float64) (float64, bool) {
	if len(closes) < 30 {
		return 0, false
	}
	returns := LogReturns(closes)
	if len(returns) > 30 {
		returns = returns[len(returns)-30:]
	}
	v := sampleStd(returns) * math.Sqrt(tradingSessions)
	if v <= 0 {
		return 0, false
	}
	return v, true
}

// SMA returns the mean of the last window closes. A series shorter than
// the window falls back to the mean of what is available.
func SMA(closes []float64, window int) (float64, bool) {
	if len(closes) == 0 {
		return 0, false
	}
	if len(closes) > window {
		closes = closes[len(closes)-window:]
	}
	var sum float64
	for _, c := range closes {
		sum += c
	}
	return sum / float64(len(closes)), true
}

// RSI computes the exponentially smoothed relative strength index over
// the given period (smoothing factor 2/(period+1), seeded with the
// first gain/loss).
func RSI(closes []float64, period int) (float64, bool) {
	if period < 1 || len(closes) < period+1 {
		return 0, false
	}
	alpha := 2.0 / float64(period+1)
	var avgGain, avgLoss float64
	for i := 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		if i == 1 {
			avgGain, avgLoss = gain, loss
			continue
		}
		avgGain = alpha*gain + (1-alpha)*avgGain
		avgLoss = alpha*loss + (1-alpha)*avgLoss
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}
