package marketdata

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/pricing"
	"github.com/mlaurent/spreadwright/internal/util"
)

// Synthetic generates model-priced chains for tests and demo runs.
// Deterministic on purpose: identical inputs must yield bit-identical
// strategies, so there is no random jitter anywhere.
type Synthetic struct {
	Spot           float64
	Sigma          float64 // chain-wide implied volatility, decimal
	StrikeStep     float64
	OpenInterest   int64
	RiskFreeRate   float64
	VolIndexValue  float64
	VolIndexSymbol string
	// Now anchors expiration labels; tests pin it for reproducibility.
	Now time.Time
}

// NewSynthetic returns a provider quoting a $5-strike-step chain around
// the given spot at a flat sigma.
func NewSynthetic(spot, sigma float64) *Synthetic {
	return &Synthetic{
		Spot:           spot,
		Sigma:          sigma,
		StrikeStep:     5,
		OpenInterest:   500,
		RiskFreeRate:   0.05,
		VolIndexValue:  sigma * 100,
		VolIndexSymbol: "^VIX",
		Now:            time.Now().UTC().Truncate(24 * time.Hour),
	}
}

// SpotPrice implements Provider.
func (s *Synthetic) SpotPrice(string) (float64, error) {
	return s.Spot, nil
}

// VolIndex implements Provider.
func (s *Synthetic) VolIndex(string) (float64, string, error) {
	return s.VolIndexValue, s.VolIndexSymbol, nil
}

// OptionsChain implements Provider.
func (s *Synthetic) OptionsChain(_ string, targetDTE int) (*models.Chain, error) {
	if targetDTE <= 0 {
		targetDTE = 45
	}
	return s.chain(targetDTE), nil
}

// LeapsChain implements Provider.
func (s *Synthetic) LeapsChain(string) (*models.Chain, error) {
	return s.chain(365), nil
}

// ShortTermChain implements Provider.
func (s *Synthetic) ShortTermChain(string) (*models.Chain, error) {
	return s.chain(21), nil
}

// ClosingPrices implements HistoryProvider with a drifting sine wave
// ending at the configured spot. Deterministic per ticker: the wave is
// phase-shifted by a ticker hash so different symbols rank differently.
func (s *Synthetic) ClosingPrices(ticker string, sessions int) ([]float64, error) {
	if sessions < 1 {
		return nil, fmt.Errorf("%w: %d sessions requested", ErrNoData, sessions)
	}
	var phase float64
	for _, r := range strings.ToUpper(ticker) {
		phase += float64(r)
	}
	amp := s.Spot * s.Sigma * 0.25
	closes := make([]float64, sessions)
	for i := range closes {
		back := float64(sessions - 1 - i)
		closes[i] = s.Spot - back*s.Spot*0.0002 + amp*math.Sin((phase+back)/7.0)
	}
	// anchor the last bar on the quoted spot
	closes[sessions-1] = s.Spot
	return closes, nil
}

func (s *Synthetic) chain(dte int) *models.Chain {
	exp := s.Now.AddDate(0, 0, dte).Format("2006-01-02")
	c := &models.Chain{Expiration: exp, DTE: dte}

	t := float64(dte) / 365.0
	lo := math.Floor(s.Spot * 0.70 / s.StrikeStep) * s.StrikeStep
	hi := math.Ceil(s.Spot * 1.30 / s.StrikeStep) * s.StrikeStep
	for k := lo; k <= hi; k += s.StrikeStep {
		c.Calls = append(c.Calls, s.quote(k, t, models.Call))
		c.Puts = append(c.Puts, s.quote(k, t, models.Put))
	}
	return c
}

// quote prices one row at the model mid with a 2% half-spread. Deep OTM
// rows round to a zero bid and get dropped by the liquidity filter,
// which mirrors how real chains thin out at the wings.
func (s *Synthetic) quote(strike, t float64, typ models.OptionType) models.OptionQuote {
	mid := pricing.Price(s.Spot, strike, t, s.RiskFreeRate, s.Sigma, typ)
	return models.OptionQuote{
		Strike:       strike,
		Bid:          util.RoundCents(mid * 0.98),
		Ask:          util.RoundCents(mid * 1.02),
		Last:         util.RoundCents(mid),
		OpenInterest: s.OpenInterest,
		ImpliedVol:   s.Sigma,
	}
}

// NoData is a Provider that always reports missing data; tests use it
// to drive the no-data rejection paths.
type NoData struct{}

// SpotPrice implements Provider.
func (NoData) SpotPrice(ticker string) (float64, error) {
	return 0, noDataFor(ticker)
}

// VolIndex implements Provider.
func (NoData) VolIndex(ticker string) (float64, string, error) {
	return 0, "", noDataFor(ticker)
}

// OptionsChain implements Provider.
func (NoData) OptionsChain(ticker string, _ int) (*models.Chain, error) {
	return nil, noDataFor(ticker)
}

// LeapsChain implements Provider.
func (NoData) LeapsChain(ticker string) (*models.Chain, error) {
	return nil, noDataFor(ticker)
}

// ShortTermChain implements Provider.
func (NoData) ShortTermChain(ticker string) (*models.Chain, error) {
	return nil, noDataFor(ticker)
}

// ClosingPrices implements HistoryProvider.
func (NoData) ClosingPrices(ticker string, _ int) ([]float64, error) {
	return nil, noDataFor(ticker)
}

func noDataFor(ticker string) error {
	return fmt.Errorf("%w for %s", ErrNoData, strings.ToUpper(ticker))
}
