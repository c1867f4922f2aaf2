package indicators

import (
	"math"
	"time"

	"github.com/mlaurent/spreadwright/internal/models"
)

// Alignment grades how a directional bias sits against the current
// trend picture.
type Alignment string

const (
	// AlignmentUnknown applies when not enough history was supplied.
	AlignmentUnknown Alignment = "n/a"
	// AlignmentConfirmed means price action supports the bias.
	AlignmentConfirmed Alignment = "confirmed"
	// AlignmentCounterTrend means the bias fights the trend.
	AlignmentCounterTrend Alignment = "counter-trend"
	// AlignmentOverbought flags a bullish entry into an overextended move.
	AlignmentOverbought Alignment = "overbought"
	// AlignmentOversold flags a bearish entry into an overextended drop.
	AlignmentOversold Alignment = "oversold"
	// AlignmentBuyTheDip marks a bullish bias on a washed-out RSI.
	AlignmentBuyTheDip Alignment = "buy-the-dip"
	// AlignmentMeanReversion marks a bearish bias on a stretched rally.
	AlignmentMeanReversion Alignment = "mean-reversion"
	// AlignmentStretched flags a neutral structure when RSI left its range.
	AlignmentStretched Alignment = "stretched"
	// AlignmentRangeBound confirms a neutral structure inside the range.
	AlignmentRangeBound Alignment = "range-bound"
)

// Favorable reports whether the alignment argues for taking the trade.
func (a Alignment) Favorable() bool {
	switch a {
	case AlignmentConfirmed, AlignmentBuyTheDip, AlignmentMeanReversion, AlignmentRangeBound:
		return true
	}
	return false
}

// EarningsRisk grades an upcoming earnings date against the position's
// time stop.
type EarningsRisk string

const (
	// EarningsUnknown means no earnings date was supplied.
	EarningsUnknown EarningsRisk = "n/a"
	// EarningsClear means earnings fall after the time stop.
	EarningsClear EarningsRisk = "clear"
	// EarningsDanger means earnings land inside the holding window.
	EarningsDanger EarningsRisk = "danger"
)

// QualityInput carries everything AssessQuality needs. Closes and
// EarningsDate are optional; the corresponding fields degrade to their
// unknown values when absent.
type QualityInput struct {
	Bias         models.Bias
	Spot         float64
	ExpectedPnL  float64
	MaxRisk      float64
	MaxProfit    float64
	DTE          int
	Closes       []float64
	EarningsDate time.Time
	TimeStop     time.Time
}

// Quality is the post-validation annotation set for a recommended
// structure.
type Quality struct {
	EVYield       float64
	AnnualizedROC float64
	SMA50         float64
	HasSMA        bool
	RSI14         float64
	HasRSI        bool
	DistSMAPct    float64
	Alignment     Alignment
	EarningsRisk  EarningsRisk
}

const (
	rsiOverbought  = 70
	rsiOversold    = 30
	stretchedPct   = 10.0
	holdingCapDays = 21
)

// AssessQuality computes the trade-quality annotations for a validated
// structure: expected-value yield, annualized return on capital, the
// 50-session trend read and its alignment with the bias, and whether an
// earnings event lands before the time stop.
func AssessQuality(in QualityInput) Quality {
	q := Quality{Alignment: AlignmentUnknown, EarningsRisk: EarningsUnknown}

	if in.MaxRisk != 0 {
		q.EVYield = in.ExpectedPnL / in.MaxRisk * 100
		holding := math.Max(1, float64(in.DTE-holdingCapDays))
		q.AnnualizedROC = in.MaxProfit / in.MaxRisk * (365 / holding) * 100
	}

	if sma, ok := SMA(in.Closes, 50); ok && sma != 0 {
		q.SMA50, q.HasSMA = sma, true
		q.DistSMAPct = (in.Spot - sma) / sma * 100
	}
	if rsi, ok := RSI(in.Closes, 14); ok {
		q.RSI14, q.HasRSI = rsi, true
	}
	if q.HasSMA && q.HasRSI {
		q.Alignment = classifyAlignment(in.Bias, in.Spot, q.SMA50, q.RSI14, q.DistSMAPct)
	}

	if !in.EarningsDate.IsZero() && !in.TimeStop.IsZero() {
		if !in.EarningsDate.After(in.TimeStop) {
			q.EarningsRisk = EarningsDanger
		} else {
			q.EarningsRisk = EarningsClear
		}
	}
	return q
}

func classifyAlignment(bias models.Bias, spot, sma, rsi, dist float64) Alignment {
	switch bias {
	case models.Bullish:
		switch {
		case rsi > rsiOverbought || dist > stretchedPct:
			return AlignmentOverbought
		case rsi < rsiOversold:
			return AlignmentBuyTheDip
		case spot > sma:
			return AlignmentConfirmed
		default:
			return AlignmentCounterTrend
		}
	case models.Bearish:
		switch {
		case rsi < rsiOversold || dist < -stretchedPct:
			return AlignmentOversold
		case rsi > rsiOverbought || dist > stretchedPct:
			return AlignmentMeanReversion
		case spot < sma:
			return AlignmentConfirmed
		default:
			return AlignmentCounterTrend
		}
	default:
		if rsi > rsiOverbought || rsi < rsiOversold {
			return AlignmentStretched
		}
		return AlignmentRangeBound
	}
}
