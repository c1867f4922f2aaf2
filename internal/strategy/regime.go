package strategy

import "github.com/mlaurent/spreadwright/internal/config"

// Regime is the volatility classification that drives structure
// selection. It is computed once per analysis from the IV rank and the
// underlying's volatility-index level, then dispatched together with
// the directional bias.
type Regime int

const (
	// RegimeHigh favors premium selling: inflated option prices revert.
	RegimeHigh Regime = iota
	// RegimeLow favors buying time: cheap long premium, calendars, PMCC.
	RegimeLow
	// RegimeMid is everything in between: wheel or classic directional
	// spreads.
	RegimeMid
)

func (r Regime) String() string {
	switch r {
	case RegimeHigh:
		return "high-vol"
	case RegimeLow:
		return "low-vol"
	default:
		return "mid-vol"
	}
}

// ClassifyRegime applies the regime boundaries: high when either the IV
// rank or the vol index exceeds its high threshold, low when both sit
// under their low thresholds, mid otherwise.
func ClassifyRegime(ivRank, volIndex float64, rc config.RegimeConfig) Regime {
	switch {
	case ivRank > rc.IVRankHigh || volIndex > rc.VolIndexHigh:
		return RegimeHigh
	case ivRank < rc.IVRankLow && volIndex < rc.VolIndexLow:
		return RegimeLow
	default:
		return RegimeMid
	}
}
