// Package strategy is the decision engine: it classifies the volatility
// regime, dispatches to one of eight structure builders, and runs every
// draft through a shared finalize pipeline (exit plan, probabilities,
// Greeks, position sizing, expected-value kill-switch). A Build call is
// pure computation over provider-supplied chains; any market condition
// that makes a safe recommendation impossible comes back as a
// categorized RejectionError.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mlaurent/spreadwright/internal/chain"
	"github.com/mlaurent/spreadwright/internal/config"
	"github.com/mlaurent/spreadwright/internal/marketdata"
	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/position"
	"github.com/mlaurent/spreadwright/internal/probability"
	"github.com/mlaurent/spreadwright/internal/util"
)

// Request carries one analysis call's inputs. Spot, VolIndex, and
// IVRank come from the caller (fetched or computed upstream) so a Build
// stays deterministic for a given tuple.
type Request struct {
	Ticker    string
	Spot      float64
	VolIndex  float64
	VolSymbol string
	IVRank    float64 // 0-100
	Bias      models.Bias
	Budget    float64
	// SigmaMove is the externally computed realized volatility driving
	// price movement in the probability integral; zero falls back to
	// the chain's implied sigma.
	SigmaMove float64
}

// Builder constructs strategies from market data. Safe for concurrent
// use: it holds no per-call state.
type Builder struct {
	cfg        *config.Config
	provider   marketdata.Provider
	integrator *probability.Integrator
	filter     chain.LiquidityFilter
	now        func() time.Time
}

// New returns a Builder over the given provider. The probability
// integrator inherits the configured risk-free rate and time-stop.
func New(cfg *config.Config, provider marketdata.Provider) *Builder {
	integrator := probability.NewIntegrator(cfg.Pricing.RiskFreeRate)
	integrator.TimeStopDays = cfg.Strategy.TimeStopDays
	return &Builder{
		cfg:        cfg,
		provider:   provider,
		integrator: integrator,
		filter: chain.LiquidityFilter{
			MinOpenInterest:    cfg.Liquidity.MinOpenInterest,
			MaxSpreadPct:       cfg.Liquidity.MaxSpreadPct,
			SyntheticSpreadPct: cfg.Liquidity.SyntheticSpreadPct,
		},
		now: time.Now,
	}
}

// Build selects and constructs the strategy for the request, or returns
// a RejectionError naming why no safe recommendation exists.
func (b *Builder) Build(req Request) (*models.Strategy, error) {
	if !req.Bias.Valid() {
		return nil, fmt.Errorf("invalid bias %q", req.Bias)
	}
	if req.Budget <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %.2f", req.Budget)
	}

	ch, err := b.provider.OptionsChain(req.Ticker, b.cfg.Strategy.TargetDTE)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			return nil, reject(CategoryNoData, "no options chain for %s: %v", req.Ticker, err)
		}
		return nil, fmt.Errorf("fetching options chain for %s: %w", req.Ticker, err)
	}

	calls := chain.FilterLiquid(ch.Calls, b.filter)
	puts := chain.FilterLiquid(ch.Puts, b.filter)
	if minSide := b.cfg.Liquidity.MinQuotesPerSide; len(calls) < minSide || len(puts) < minSide {
		return nil, reject(CategoryLiquidity,
			"options on %s too illiquid: %d puts and %d calls usable after filtering (bid>0, OI>=%d, spread<=%.0f%%), need %d per side",
			req.Ticker, len(puts), len(calls), b.cfg.Liquidity.MinOpenInterest, b.cfg.Liquidity.MaxSpreadPct*100, minSide)
	}

	if req.Spot < b.cfg.Risk.MinSpot {
		return nil, reject(CategoryPolicy,
			"spot price $%.2f is below the $%.0f floor: options on cheap underlyings carry a poor risk/reward", req.Spot, b.cfg.Risk.MinSpot)
	}

	combined := make([]models.OptionQuote, 0, len(calls)+len(puts))
	combined = append(combined, calls...)
	combined = append(combined, puts...)

	in := buildInput{
		req:    req,
		chain:  ch,
		calls:  calls,
		puts:   puts,
		sigma:  chain.EstimateSigma(combined),
		tYears: float64(ch.DTE) / 365.0,
	}

	d, err := b.dispatch(ClassifyRegime(req.IVRank, req.VolIndex, b.cfg.Regime), in)
	if err != nil {
		return nil, err
	}
	return b.finalize(in, d)
}

func (b *Builder) dispatch(regime Regime, in buildInput) (*draft, error) {
	switch regime {
	case RegimeHigh:
		switch in.req.Bias {
		case models.Bullish:
			return b.bullPutSpread(in)
		case models.Bearish:
			return b.bearCallSpread(in)
		default:
			return b.ironCondor(in, fmt.Sprintf(
				"Implied volatility is elevated (IV rank %.0f%%, %s %.1f), inflating option premium. The iron condor sells that excess premium on both sides of the market, capturing volatility's statistical reversion to the mean.",
				in.req.IVRank, b.cfg.VolIndexName(in.req.VolSymbol), in.req.VolIndex))
		}
	case RegimeLow:
		switch in.req.Bias {
		case models.Bullish:
			return b.poorMansCoveredCall(in)
		case models.Bearish:
			return b.bearPutSpread(in, b.cfg.Strategy.Deltas.LowVolBearPut,
				"Low volatility with a bearish bias. A debit bear put spread profits from a decline while capping the loss at the debit paid.")
		default:
			return b.calendarSpread(in)
		}
	default:
		if in.req.Budget >= in.req.Spot*100 && in.req.Bias != models.Bearish {
			return b.cashSecuredPut(in)
		}
		switch in.req.Bias {
		case models.Bullish:
			return b.bullCallSpread(in)
		case models.Bearish:
			return b.bearPutSpread(in, b.cfg.Strategy.Deltas.DirectionalSpread, fmt.Sprintf(
				"Moderate volatility (IV rank %.0f%%). A debit bear put spread profits from the anticipated decline with a strictly defined maximum loss.",
				in.req.IVRank))
		default:
			return b.ironCondor(in,
				"Moderate volatility and a neutral bias. The iron condor collects time decay on both sides, betting the underlying stays inside a defined channel through expiration.")
		}
	}
}

// finalize runs the shared pipeline on a per-contract draft: exit plan,
// probability integration, net Greeks, position sizing, and the EV
// kill-switch. Probabilities and Greeks are computed once at the qty=1
// baseline; the integrator is the dominant cost and must not be
// repeated per unit.
func (b *Builder) finalize(in buildInput, d *draft) (*models.Strategy, error) {
	expDate, err := time.Parse("2006-01-02", in.chain.Expiration)
	if err != nil {
		return nil, fmt.Errorf("malformed expiration %q: %w", in.chain.Expiration, err)
	}
	timeStop := expDate.AddDate(0, 0, -b.cfg.Strategy.TimeStopDays)
	takeProfit := util.RoundCents(math.Abs(d.maxProfit) * b.cfg.Strategy.TakeProfitPct)
	today := b.now().UTC().Truncate(24 * time.Hour)
	timeStopDTE := int(timeStop.Sub(today).Hours() / 24)

	sigmaMove := in.req.SigmaMove
	if sigmaMove <= 0 {
		sigmaMove = in.sigma
	}
	probs := b.integrator.Compute(d.legs, in.req.Spot, in.chain.DTE, in.sigma, 1, takeProfit, d.maxRisk, sigmaMove)
	greeks := position.NetGreeks(d.legs, in.req.Spot, b.cfg.Pricing.RiskFreeRate, in.sigma)

	qty := 1
	if d.maxRisk > 0 {
		qty = int(math.Max(1, math.Floor(in.req.Budget/d.maxRisk)))
	}

	s := &models.Strategy{
		Ticker:      strings.ToUpper(in.req.Ticker),
		Name:        d.name,
		Rationale:   d.rationale,
		Legs:        d.legs,
		Expiration:  in.chain.Expiration,
		DTE:         in.chain.DTE,
		CreditDebit: d.creditDebit,
		MaxRisk:     d.maxRisk,
		MaxProfit:   d.maxProfit,
		Quantity:    qty,
		Sigma:       in.sigma,
		Greeks:      greeks,
		ExitPlan: models.ExitPlan{
			TakeProfit:   takeProfit,
			TimeStopDate: timeStop,
			TimeStopDTE:  timeStopDTE,
		},
	}

	// Dollar-scaled outputs are multiplied by qty exactly once, after
	// the baseline computation above.
	if qty > 1 {
		scale := float64(qty)
		s.CreditDebit = util.RoundCents(s.CreditDebit * scale)
		s.MaxRisk = util.RoundCents(s.MaxRisk * scale)
		s.MaxProfit = util.RoundCents(s.MaxProfit * scale)
		s.ExitPlan.TakeProfit = util.RoundCents(s.ExitPlan.TakeProfit * scale)
		probs.ExpectedPnL = util.RoundCents(probs.ExpectedPnL * scale)
		s.Greeks.Delta = util.RoundCents(s.Greeks.Delta * scale)
		s.Greeks.Gamma = util.RoundCents(s.Greeks.Gamma * scale)
		s.Greeks.Theta = util.RoundCents(s.Greeks.Theta * scale)
		s.Greeks.Vega = util.RoundCents(s.Greeks.Vega * scale)
	}
	s.Probabilities = probs

	if err := checkExpectedValue(probs.ExpectedPnL, s.MaxRisk, b.cfg.Risk.EVCutoffPct); err != nil {
		return nil, err
	}

	s.ID = strategyID(s)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("constructed strategy failed validation: %w", err)
	}
	return s, nil
}

// checkExpectedValue is the kill-switch: a structurally negative-edge
// trade is blocked regardless of every other gate. It runs after
// position sizing, against the scaled max risk.
func checkExpectedValue(ev, maxRisk, cutoffPct float64) error {
	threshold := -cutoffPct * maxRisk
	if ev < threshold {
		return reject(CategoryPolicy,
			"expected P&L $%.2f is below the $%.2f kill-switch threshold: the risk/reward profile is structurally losing", ev, threshold)
	}
	return nil
}

// strategyID derives a stable UUID from the strategy's identity so that
// identical inputs yield bit-identical output.
func strategyID(s *models.Strategy) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s|%s|%s|%d", s.Ticker, s.Name, s.Expiration, s.Quantity)
	for _, l := range s.Legs {
		fmt.Fprintf(&sb, "|%s %s %g %s", l.Action, l.Type, l.Strike, l.Expiration)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sb.String())).String()
}
