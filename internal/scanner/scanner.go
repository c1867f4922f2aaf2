// Package scanner runs the strategy builder across a universe of
// tickers and every directional bias, in parallel. One bad symbol never
// aborts the batch: rejections and provider failures are recorded per
// pair and the rest of the scan keeps going.
package scanner

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mlaurent/spreadwright/internal/config"
	"github.com/mlaurent/spreadwright/internal/indicators"
	"github.com/mlaurent/spreadwright/internal/marketdata"
	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/strategy"
)

// historySessions is roughly one trading year, the window the IV-rank
// proxy expects.
const historySessions = 252

// Result is one (ticker, bias) outcome. Exactly one of Strategy or Err
// is set; Rejection additionally classifies Err when the builder turned
// the pair down rather than failing.
type Result struct {
	Ticker    string
	Bias      models.Bias
	Strategy  *models.Strategy
	Quality   *indicators.Quality
	Rejection *strategy.RejectionError
	Err       error
}

// Rejected reports whether the pair was declined by a gate (as opposed
// to succeeding or failing hard).
func (r Result) Rejected() bool { return r.Rejection != nil }

// snapshot carries the per-ticker inputs shared by all three biases.
type snapshot struct {
	spot      float64
	volIndex  float64
	volSymbol string
	ivRank    float64
	sigmaMove float64
	closes    []float64
	err       error
}

// Scanner fans Build calls out over a bounded worker pool.
type Scanner struct {
	cfg      *config.Config
	provider marketdata.Provider
	builder  *strategy.Builder
	logger   *logrus.Logger
	now      func() time.Time
}

// New returns a Scanner sharing one Builder across all workers.
func New(cfg *config.Config, provider marketdata.Provider, logger *logrus.Logger) *Scanner {
	return &Scanner{
		cfg:      cfg,
		provider: provider,
		builder:  strategy.New(cfg, provider),
		logger:   logger,
		now:      time.Now,
	}
}

// Scan analyzes every configured ticker under every bias with the
// configured budget. Results come back in (ticker, bias) order
// regardless of which worker finished first. The returned error is only
// non-nil when the context is canceled; per-pair failures live in the
// results.
func (s *Scanner) Scan(ctx context.Context) ([]Result, error) {
	return s.ScanUniverse(ctx, s.cfg.Scan.Tickers, s.cfg.Scan.Budget)
}

// ScanUniverse is Scan over an explicit universe.
func (s *Scanner) ScanUniverse(ctx context.Context, tickers []string, budget float64) ([]Result, error) {
	start := s.now()
	biases := models.Biases()

	snaps := s.collectSnapshots(ctx, tickers)

	results := make([]Result, len(tickers)*len(biases))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scan.Parallelism)
	for ti, ticker := range tickers {
		for bi, bias := range biases {
			idx := ti*len(biases) + bi
			ticker, bias := ticker, bias
			snap := snaps[ticker]
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[idx] = s.analyzePair(ticker, bias, budget, snap)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	built, rejected, failed := 0, 0, 0
	for _, r := range results {
		switch {
		case r.Strategy != nil:
			built++
		case r.Rejected():
			rejected++
		default:
			failed++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"tickers":  len(tickers),
		"built":    built,
		"rejected": rejected,
		"failed":   failed,
		"elapsed":  s.now().Sub(start).Round(time.Millisecond),
	}).Info("Scan complete")
	return results, nil
}

// Analyze runs a single (ticker, bias) pair through the same snapshot
// and build path a batch scan uses.
func (s *Scanner) Analyze(ticker string, bias models.Bias, budget float64) Result {
	return s.analyzePair(ticker, bias, budget, s.snapshotTicker(ticker))
}

// Best returns the built strategies ordered by expected P&L per dollar
// of risk, best first. Pairs that produced no strategy are dropped.
func Best(results []Result) []Result {
	kept := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Strategy != nil && r.Strategy.MaxRisk > 0 {
			kept = append(kept, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i].Strategy, kept[j].Strategy
		return a.Probabilities.ExpectedPnL/a.MaxRisk > b.Probabilities.ExpectedPnL/b.MaxRisk
	})
	return kept
}

// collectSnapshots fetches the per-ticker inputs once so the three
// biases of a ticker agree on spot, vol, and indicator values.
func (s *Scanner) collectSnapshots(ctx context.Context, tickers []string) map[string]snapshot {
	snaps := make(map[string]snapshot, len(tickers))
	for _, t := range tickers {
		snaps[t] = snapshot{}
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scan.Parallelism)
	type keyed struct {
		ticker string
		snap   snapshot
	}
	out := make(chan keyed, len(tickers))
	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			out <- keyed{ticker, s.snapshotTicker(ticker)}
			return nil
		})
	}
	_ = g.Wait()
	close(out)
	for k := range out {
		snaps[k.ticker] = k.snap
	}
	return snaps
}

func (s *Scanner) snapshotTicker(ticker string) snapshot {
	var snap snapshot
	snap.spot, snap.err = s.provider.SpotPrice(ticker)
	if snap.err != nil {
		return snap
	}
	snap.volIndex, snap.volSymbol, snap.err = s.provider.VolIndex(ticker)
	if snap.err != nil {
		return snap
	}

	// Historical indicators are best-effort: without bars the scan
	// falls back to a mid-range IV rank and the chain's implied sigma.
	snap.ivRank = 50
	hp, ok := s.provider.(marketdata.HistoryProvider)
	if !ok {
		return snap
	}
	closes, err := hp.ClosingPrices(ticker, historySessions)
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Debug("No price history, using defaults")
		return snap
	}
	snap.closes = closes
	if rank, err := indicators.IVRank(closes); err == nil {
		snap.ivRank = rank
	}
	if vol, ok := indicators.RealizedVol(closes); ok {
		snap.sigmaMove = vol
	}
	return snap
}

func (s *Scanner) analyzePair(ticker string, bias models.Bias, budget float64, snap snapshot) Result {
	res := Result{Ticker: ticker, Bias: bias}
	if snap.err != nil {
		res.Err = snap.err
		s.logger.WithError(snap.err).WithField("ticker", ticker).Warn("Snapshot failed, skipping ticker")
		return res
	}

	st, err := s.builder.Build(strategy.Request{
		Ticker:    ticker,
		Spot:      snap.spot,
		VolIndex:  snap.volIndex,
		VolSymbol: snap.volSymbol,
		IVRank:    snap.ivRank,
		Bias:      bias,
		Budget:    budget,
		SigmaMove: snap.sigmaMove,
	})
	if err != nil {
		res.Err = err
		if rej, ok := strategy.AsRejection(err); ok {
			res.Rejection = rej
			s.logger.WithFields(logrus.Fields{
				"ticker": ticker,
				"bias":   bias,
				"gate":   rej.Category,
			}).Debug(rej.Reason)
		} else {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"ticker": ticker,
				"bias":   bias,
			}).Warn("Analysis failed")
		}
		return res
	}

	res.Strategy = st
	if len(snap.closes) > 0 {
		q := indicators.AssessQuality(indicators.QualityInput{
			Bias:         bias,
			Spot:         snap.spot,
			ExpectedPnL:  st.Probabilities.ExpectedPnL,
			MaxRisk:      st.MaxRisk,
			MaxProfit:    st.MaxProfit,
			DTE:          st.DTE,
			Closes:       snap.closes,
			TimeStop:     st.ExitPlan.TimeStopDate,
		})
		res.Quality = &q
	}
	s.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"bias":   bias,
		"name":   st.Name,
		"ev":     st.Probabilities.ExpectedPnL,
	}).Info("Strategy built")
	return res
}
