// Package pricing implements the closed-form Black-Scholes-Merton model
// for European options: theoretical price and the four first-order
// Greeks. All functions are pure and side-effect free.
//
// Degenerate inputs (T <= 0 or sigma <= 0) return the expiry boundary:
// intrinsic value for Price, zero for the Greeks. That boundary is hit
// constantly when positions are revalued at a forward horizon with a
// shorter remaining tenor, so it is a supported code path, not an error.
package pricing

import (
	"math"

	"github.com/mlaurent/spreadwright/internal/models"
)

// normCDF is the standard normal cumulative distribution function.
func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

// NormCDF exposes the standard normal CDF for callers that integrate
// against the terminal-price distribution.
func NormCDF(x float64) float64 { return normCDF(x) }

// NormPDF exposes the standard normal density.
func NormPDF(x float64) float64 { return normPDF(x) }

func d1(s, k, t, r, sigma float64) float64 {
	return (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
}

// Intrinsic returns the exercise value of an option at expiry.
func Intrinsic(s, k float64, typ models.OptionType) float64 {
	if typ == models.Call {
		return math.Max(0, s-k)
	}
	return math.Max(0, k-s)
}

// Price returns the Black-Scholes theoretical price of a European
// option. S and K in dollars, T in years, r and sigma as decimals.
func Price(s, k, t, r, sigma float64, typ models.OptionType) float64 {
	if t <= 0 || sigma <= 0 {
		return Intrinsic(s, k, typ)
	}
	sqrtT := math.Sqrt(t)
	du := d1(s, k, t, r, sigma)
	dd := du - sigma*sqrtT
	if typ == models.Call {
		return s*normCDF(du) - k*math.Exp(-r*t)*normCDF(dd)
	}
	return k*math.Exp(-r*t)*normCDF(-dd) - s*normCDF(-du)
}

// Delta returns the option's sensitivity to a $1 move in the
// underlying: N(d1) for calls, N(d1)-1 for puts.
func Delta(s, k, t, r, sigma float64, typ models.OptionType) float64 {
	if t <= 0 || sigma <= 0 {
		return 0
	}
	nd1 := normCDF(d1(s, k, t, r, sigma))
	if typ == models.Call {
		return nd1
	}
	return nd1 - 1
}

// Gamma returns the rate of change of delta per $1 move in the
// underlying. Identical for calls and puts.
func Gamma(s, k, t, r, sigma float64) float64 {
	if t <= 0 || sigma <= 0 {
		return 0
	}
	return normPDF(d1(s, k, t, r, sigma)) / (s * sigma * math.Sqrt(t))
}

// Theta returns the option's time decay per calendar day (annual theta
// divided by 365), for one share.
func Theta(s, k, t, r, sigma float64, typ models.OptionType) float64 {
	if t <= 0 || sigma <= 0 {
		return 0
	}
	sqrtT := math.Sqrt(t)
	du := d1(s, k, t, r, sigma)
	dd := du - sigma*sqrtT
	common := -(s * normPDF(du) * sigma) / (2 * sqrtT)
	var theta float64
	if typ == models.Call {
		theta = common - r*k*math.Exp(-r*t)*normCDF(dd)
	} else {
		theta = common + r*k*math.Exp(-r*t)*normCDF(-dd)
	}
	return theta / 365
}

// Vega returns the option's sensitivity to a 1 percentage-point change
// in implied volatility (annual vega divided by 100). Identical for
// calls and puts.
func Vega(s, k, t, r, sigma float64) float64 {
	if t <= 0 || sigma <= 0 {
		return 0
	}
	return s * normPDF(d1(s, k, t, r, sigma)) * math.Sqrt(t) / 100
}
