package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlaurent/spreadwright/internal/chain"
	"github.com/mlaurent/spreadwright/internal/marketdata"
	"github.com/mlaurent/spreadwright/internal/models"
	"github.com/mlaurent/spreadwright/internal/util"
)

// buildInput carries the per-analysis state shared by every builder:
// the request, the filtered ~45 DTE chain, and the chain-wide sigma.
type buildInput struct {
	req    Request
	chain  *models.Chain
	calls  []models.OptionQuote
	puts   []models.OptionQuote
	sigma  float64
	tYears float64
}

// draft is the immutable output of a structure builder, all dollar
// amounts per single contract. The shared finalize pipeline turns it
// into a sized Strategy.
type draft struct {
	name        string
	rationale   string
	legs        []models.Leg
	creditDebit float64 // >0 credit, <0 debit
	maxRisk     float64
	maxProfit   float64
}

func midAtStrike(quotes []models.OptionQuote, strike float64) float64 {
	q, ok := chain.QuoteAtStrike(quotes, strike)
	if !ok {
		return 0
	}
	return chain.MidPrice(q)
}

// checkWidth rejects spreads whose realized leg spacing exceeds the
// slack multiple of the target width: the chain is too sparse for a
// reliable structure.
func (b *Builder) checkWidth(width, target float64, ticker string) error {
	if width > target*b.cfg.Risk.WidthSlackMult {
		return reject(CategoryPolicy,
			"available strikes on %s are too far apart ($%.0f realized vs $%.0f target): chain too sparse for a reliable spread",
			ticker, width, target)
	}
	return nil
}

// checkCredit rejects credit structures whose net credit falls outside
// (0, width): a crossed or broken quote.
func checkCredit(credit, width float64) error {
	if credit <= 0 || credit >= width {
		return reject(CategoryPriceSanity,
			"net credit %.2f inconsistent with width %.2f: chain prices look crossed or broken", credit, width)
	}
	return nil
}

// checkDebit rejects non-positive debits; width > 0 additionally bounds
// the debit for defined-risk debit spreads. Calendars and diagonals
// pass width 0 because their legs sit on different tenors.
func checkDebit(debit, width float64) error {
	if debit <= 0 {
		return reject(CategoryPriceSanity,
			"net debit %.2f not positive: chain prices look crossed or broken", debit)
	}
	if width > 0 && debit >= width {
		return reject(CategoryPriceSanity,
			"net debit %.2f exceeds width %.2f: chain prices look crossed or broken", debit, width)
	}
	return nil
}

func (b *Builder) checkBudget(maxRisk, budget float64, structure string) error {
	if maxRisk > budget {
		return reject(CategoryBudget,
			"budget $%.0f cannot cover one %s contract: per-contract risk $%.0f", budget, structure, maxRisk)
	}
	return nil
}

func (b *Builder) ironCondor(in buildInput, rationale string) (*draft, error) {
	spot := in.req.Spot
	r := b.cfg.Pricing.RiskFreeRate
	target := b.cfg.Strategy.Deltas.CondorShort

	sellPut, okPut := chain.FindStrikeByDelta(in.puts, spot, in.tYears, r, in.sigma, -target, models.Put)
	sellCall, okCall := chain.FindStrikeByDelta(in.calls, spot, in.tYears, r, in.sigma, target, models.Call)
	if !okPut || !okCall {
		return nil, reject(CategoryLiquidity, "no suitable short strikes for an iron condor on %s", in.req.Ticker)
	}

	putStrikes := chain.Strikes(in.puts)
	callStrikes := chain.Strikes(in.calls)

	// Center the body: both shorts move to a common OTM distance.
	sellPutStrike, sellCallStrike := chain.SymmetrizeShorts(putStrikes, callStrikes, spot, sellPut.Strike, sellCall.Strike)
	if q, ok := chain.QuoteAtStrike(in.puts, sellPutStrike); ok {
		sellPut = q
	}
	if q, ok := chain.QuoteAtStrike(in.calls, sellCallStrike); ok {
		sellCall = q
	}

	width := chain.TargetWidth(spot, b.cfg.Risk.WidthTargetPct)
	buyPutStrike, ok := chain.NearestStrike(chain.Below(putStrikes, sellPutStrike), sellPutStrike-width)
	if !ok {
		return nil, reject(CategoryLiquidity, "no protective put strikes below %.0f for the condor's put side", sellPutStrike)
	}
	buyCallStrike, ok := chain.NearestStrike(chain.Above(callStrikes, sellCallStrike), sellCallStrike+width)
	if !ok {
		return nil, reject(CategoryLiquidity, "no protective call strikes above %.0f for the condor's call side", sellCallStrike)
	}

	sellPutPrice := chain.MidPrice(sellPut)
	sellCallPrice := chain.MidPrice(sellCall)
	buyPutPrice := midAtStrike(in.puts, buyPutStrike)
	buyCallPrice := midAtStrike(in.calls, buyCallStrike)

	netCredit := (sellPutPrice + sellCallPrice) - (buyPutPrice + buyCallPrice)
	putWidth := sellPutStrike - buyPutStrike
	callWidth := buyCallStrike - sellCallStrike
	maxWidth := math.Max(putWidth, callWidth)

	if err := b.checkWidth(putWidth, width, in.req.Ticker); err != nil {
		return nil, err
	}
	if err := b.checkWidth(callWidth, width, in.req.Ticker); err != nil {
		return nil, err
	}
	if err := checkCredit(netCredit, maxWidth); err != nil {
		return nil, err
	}

	maxProfit := netCredit * 100
	maxRisk := maxWidth*100 - maxProfit
	if err := b.checkBudget(maxRisk, in.req.Budget, "iron condor"); err != nil {
		return nil, err
	}

	return &draft{
		name:      "Iron Condor",
		rationale: rationale,
		legs: []models.Leg{
			{Action: models.Sell, Type: models.Put, Strike: sellPutStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: sellPutPrice},
			{Action: models.Buy, Type: models.Put, Strike: buyPutStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: buyPutPrice},
			{Action: models.Sell, Type: models.Call, Strike: sellCallStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: sellCallPrice},
			{Action: models.Buy, Type: models.Call, Strike: buyCallStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: buyCallPrice},
		},
		creditDebit: util.RoundCents(maxProfit),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(maxProfit),
	}, nil
}

func (b *Builder) bullPutSpread(in buildInput) (*draft, error) {
	spot := in.req.Spot
	sellPut, ok := chain.FindStrikeByDelta(in.puts, spot, in.tYears, b.cfg.Pricing.RiskFreeRate, in.sigma,
		-b.cfg.Strategy.Deltas.CreditSpreadShort, models.Put)
	if !ok {
		return nil, reject(CategoryLiquidity, "no suitable short put strike for a bull put spread on %s", in.req.Ticker)
	}
	sellPrice := chain.MidPrice(sellPut)

	width := chain.TargetWidth(spot, b.cfg.Risk.WidthTargetPct)
	below := chain.Below(chain.Strikes(in.puts), sellPut.Strike)
	buyStrike, ok := chain.NearestStrike(below, sellPut.Strike-width)
	if !ok {
		return nil, reject(CategoryLiquidity, "no protective put strikes below %.0f for a bull put spread", sellPut.Strike)
	}
	buyPrice := midAtStrike(in.puts, buyStrike)

	netCredit := sellPrice - buyPrice
	realized := sellPut.Strike - buyStrike
	if err := b.checkWidth(realized, width, in.req.Ticker); err != nil {
		return nil, err
	}
	if err := checkCredit(netCredit, realized); err != nil {
		return nil, err
	}

	maxProfit := netCredit * 100
	maxRisk := realized*100 - maxProfit
	if err := b.checkBudget(maxRisk, in.req.Budget, "bull put spread"); err != nil {
		return nil, err
	}

	return &draft{
		name: "Bull Put Spread",
		rationale: fmt.Sprintf(
			"Elevated volatility (IV rank %.0f%%) inflates put premium. This bullish spread sells an OTM put and buys protection below it, collecting a statistically favorable credit while capping the downside.",
			in.req.IVRank),
		legs: []models.Leg{
			{Action: models.Sell, Type: models.Put, Strike: sellPut.Strike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: sellPrice},
			{Action: models.Buy, Type: models.Put, Strike: buyStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: buyPrice},
		},
		creditDebit: util.RoundCents(maxProfit),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(maxProfit),
	}, nil
}

func (b *Builder) bearCallSpread(in buildInput) (*draft, error) {
	spot := in.req.Spot
	sellCall, ok := chain.FindStrikeByDelta(in.calls, spot, in.tYears, b.cfg.Pricing.RiskFreeRate, in.sigma,
		b.cfg.Strategy.Deltas.CreditSpreadShort, models.Call)
	if !ok {
		return nil, reject(CategoryLiquidity, "no suitable short call strike for a bear call spread on %s", in.req.Ticker)
	}
	sellPrice := chain.MidPrice(sellCall)

	width := chain.TargetWidth(spot, b.cfg.Risk.WidthTargetPct)
	above := chain.Above(chain.Strikes(in.calls), sellCall.Strike)
	buyStrike, ok := chain.NearestStrike(above, sellCall.Strike+width)
	if !ok {
		return nil, reject(CategoryLiquidity, "no protective call strikes above %.0f for a bear call spread", sellCall.Strike)
	}
	buyPrice := midAtStrike(in.calls, buyStrike)

	netCredit := sellPrice - buyPrice
	realized := buyStrike - sellCall.Strike
	if err := b.checkWidth(realized, width, in.req.Ticker); err != nil {
		return nil, err
	}
	if err := checkCredit(netCredit, realized); err != nil {
		return nil, err
	}

	maxProfit := netCredit * 100
	maxRisk := realized*100 - maxProfit
	if err := b.checkBudget(maxRisk, in.req.Budget, "bear call spread"); err != nil {
		return nil, err
	}

	return &draft{
		name: "Bear Call Spread",
		rationale: fmt.Sprintf(
			"Elevated volatility (IV rank %.0f%%) makes OTM calls unusually expensive. This bearish spread sells that excess premium with the loss capped by the long call above.",
			in.req.IVRank),
		legs: []models.Leg{
			{Action: models.Sell, Type: models.Call, Strike: sellCall.Strike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: sellPrice},
			{Action: models.Buy, Type: models.Call, Strike: buyStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: buyPrice},
		},
		creditDebit: util.RoundCents(maxProfit),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(maxProfit),
	}, nil
}

// poorMansCoveredCall buys a deep ITM LEAPS call and sells a near-term
// call against it. Max profit is realized with the underlying at the
// short strike; the debit paid is the entire risk.
func (b *Builder) poorMansCoveredCall(in buildInput) (*draft, error) {
	leaps, err := b.provider.LeapsChain(in.req.Ticker)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			return nil, reject(CategoryNoData, "no LEAPS chain (>%d DTE) available for a PMCC on %s",
				b.cfg.Strategy.LeapsMinDTE, in.req.Ticker)
		}
		return nil, fmt.Errorf("fetching LEAPS chain for %s: %w", in.req.Ticker, err)
	}
	leapsCalls := chain.FilterLiquid(leaps.Calls, b.filter)
	if len(leapsCalls) == 0 {
		return nil, reject(CategoryLiquidity, "no liquid LEAPS calls on %s for a PMCC", in.req.Ticker)
	}

	spot := in.req.Spot
	r := b.cfg.Pricing.RiskFreeRate
	leapsSigma := chain.EstimateSigma(leapsCalls)
	leapsT := float64(leaps.DTE) / 365.0

	buyCall, ok := chain.FindStrikeByDelta(leapsCalls, spot, leapsT, r, leapsSigma,
		b.cfg.Strategy.Deltas.PMCCLong, models.Call)
	if !ok {
		return nil, reject(CategoryLiquidity, "no suitable LEAPS strike for a PMCC on %s", in.req.Ticker)
	}
	sellCall, ok := chain.FindStrikeByDelta(in.calls, spot, in.tYears, r, in.sigma,
		b.cfg.Strategy.Deltas.PMCCShort, models.Call)
	if !ok {
		return nil, reject(CategoryLiquidity, "no suitable short call strike for a PMCC on %s", in.req.Ticker)
	}

	buyPrice := chain.MidPrice(buyCall)
	sellPrice := chain.MidPrice(sellCall)
	netDebit := buyPrice - sellPrice
	if err := checkDebit(netDebit, 0); err != nil {
		return nil, err
	}

	maxRisk := netDebit * 100
	if err := b.checkBudget(maxRisk, in.req.Budget, "PMCC"); err != nil {
		return nil, err
	}
	maxProfit := math.Max(0, (sellCall.Strike-buyCall.Strike-netDebit)*100)

	return &draft{
		name: "PMCC (Diagonal Spread)",
		rationale: fmt.Sprintf(
			"Volatility is historically low (IV rank %.0f%%, %s %.1f). The PMCC replicates a covered call at a fraction of the capital: a deep ITM LEAPS call financed by selling a near-term call for recurring income.",
			in.req.IVRank, b.cfg.VolIndexName(in.req.VolSymbol), in.req.VolIndex),
		legs: []models.Leg{
			{Action: models.Buy, Type: models.Call, Strike: buyCall.Strike, Expiration: leaps.Expiration, DTE: leaps.DTE, Price: buyPrice},
			{Action: models.Sell, Type: models.Call, Strike: sellCall.Strike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: sellPrice},
		},
		creditDebit: util.RoundCents(-maxRisk),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(maxProfit),
	}, nil
}

// calendarSpread sells the ATM near-term call against the same strike
// on the ~45 DTE tenor. Max profit has no closed form for a calendar;
// half the debit is the conventional planning estimate.
func (b *Builder) calendarSpread(in buildInput) (*draft, error) {
	short, err := b.provider.ShortTermChain(in.req.Ticker)
	if err != nil {
		if errors.Is(err, marketdata.ErrNoData) {
			return nil, reject(CategoryNoData, "no near-term expiration available for a calendar spread on %s", in.req.Ticker)
		}
		return nil, fmt.Errorf("fetching short-term chain for %s: %w", in.req.Ticker, err)
	}
	shortCalls := chain.FilterLiquid(short.Calls, b.filter)
	if len(shortCalls) == 0 {
		return nil, reject(CategoryLiquidity, "no liquid near-term calls on %s for a calendar spread", in.req.Ticker)
	}

	atm, ok := chain.NearestStrike(chain.Strikes(in.calls), in.req.Spot)
	if !ok {
		return nil, reject(CategoryLiquidity, "no call strikes on %s for a calendar spread", in.req.Ticker)
	}
	// The front tenor may not list the back tenor's ATM strike; re-snap
	// to the nearest front strike and use it for both legs.
	shortQuote, ok := chain.QuoteAtStrike(shortCalls, atm)
	if !ok {
		atm, _ = chain.NearestStrike(chain.Strikes(shortCalls), atm)
		if shortQuote, ok = chain.QuoteAtStrike(shortCalls, atm); !ok {
			return nil, reject(CategoryLiquidity, "no matching near-term strike on %s for a calendar spread", in.req.Ticker)
		}
	}
	sellPrice := chain.MidPrice(shortQuote)

	longQuote, ok := chain.QuoteAtStrike(in.calls, atm)
	if !ok {
		longStrike, _ := chain.NearestStrike(chain.Strikes(in.calls), atm)
		longQuote, _ = chain.QuoteAtStrike(in.calls, longStrike)
	}
	buyPrice := chain.MidPrice(longQuote)

	netDebit := buyPrice - sellPrice
	if err := checkDebit(netDebit, 0); err != nil {
		return nil, err
	}
	maxRisk := netDebit * 100
	if err := b.checkBudget(maxRisk, in.req.Budget, "calendar spread"); err != nil {
		return nil, err
	}

	return &draft{
		name: "Calendar Spread",
		rationale: fmt.Sprintf(
			"Low volatility (IV rank %.0f%%). The calendar spread harvests the faster time decay of the short near-term leg while the long back-month leg retains its value.",
			in.req.IVRank),
		legs: []models.Leg{
			{Action: models.Buy, Type: models.Call, Strike: longQuote.Strike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: buyPrice},
			{Action: models.Sell, Type: models.Call, Strike: shortQuote.Strike, Expiration: short.Expiration, DTE: short.DTE, Price: sellPrice},
		},
		creditDebit: util.RoundCents(-maxRisk),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(maxRisk * 0.5),
	}, nil
}

// bearPutSpread builds a debit bear put spread: buy a put at the target
// delta, sell a cheaper put one width below it. Used in both the
// low-vol (-0.45 delta) and mid-vol (-0.50 delta) regimes.
func (b *Builder) bearPutSpread(in buildInput, targetDelta float64, rationale string) (*draft, error) {
	spot := in.req.Spot
	buyPut, ok := chain.FindStrikeByDelta(in.puts, spot, in.tYears, b.cfg.Pricing.RiskFreeRate, in.sigma,
		-targetDelta, models.Put)
	if !ok {
		return nil, reject(CategoryLiquidity, "no suitable long put strike for a bear put spread on %s", in.req.Ticker)
	}
	buyPrice := chain.MidPrice(buyPut)

	width := chain.TargetWidth(spot, b.cfg.Risk.WidthTargetPct)
	below := chain.Below(chain.Strikes(in.puts), buyPut.Strike)
	sellStrike, ok := chain.NearestStrike(below, buyPut.Strike-width)
	if !ok {
		return nil, reject(CategoryLiquidity, "no short put strikes below %.0f for a bear put spread", buyPut.Strike)
	}
	sellPrice := midAtStrike(in.puts, sellStrike)

	netDebit := buyPrice - sellPrice
	realized := buyPut.Strike - sellStrike
	if err := b.checkWidth(realized, width, in.req.Ticker); err != nil {
		return nil, err
	}
	if err := checkDebit(netDebit, realized); err != nil {
		return nil, err
	}

	maxRisk := netDebit * 100
	maxProfit := realized*100 - maxRisk
	if err := b.checkBudget(maxRisk, in.req.Budget, "bear put spread"); err != nil {
		return nil, err
	}

	return &draft{
		name:      "Bear Put Spread",
		rationale: rationale,
		legs: []models.Leg{
			{Action: models.Buy, Type: models.Put, Strike: buyPut.Strike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: buyPrice},
			{Action: models.Sell, Type: models.Put, Strike: sellStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: sellPrice},
		},
		creditDebit: util.RoundCents(-maxRisk),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(maxProfit),
	}, nil
}

func (b *Builder) bullCallSpread(in buildInput) (*draft, error) {
	spot := in.req.Spot
	buyCall, ok := chain.FindStrikeByDelta(in.calls, spot, in.tYears, b.cfg.Pricing.RiskFreeRate, in.sigma,
		b.cfg.Strategy.Deltas.DirectionalSpread, models.Call)
	if !ok {
		return nil, reject(CategoryLiquidity, "no suitable long call strike for a bull call spread on %s", in.req.Ticker)
	}
	buyPrice := chain.MidPrice(buyCall)

	width := chain.TargetWidth(spot, b.cfg.Risk.WidthTargetPct)
	above := chain.Above(chain.Strikes(in.calls), buyCall.Strike)
	sellStrike, ok := chain.NearestStrike(above, buyCall.Strike+width)
	if !ok {
		return nil, reject(CategoryLiquidity, "no short call strikes above %.0f for a bull call spread", buyCall.Strike)
	}
	sellPrice := midAtStrike(in.calls, sellStrike)

	netDebit := buyPrice - sellPrice
	realized := sellStrike - buyCall.Strike
	if err := b.checkWidth(realized, width, in.req.Ticker); err != nil {
		return nil, err
	}
	if err := checkDebit(netDebit, realized); err != nil {
		return nil, err
	}

	maxRisk := netDebit * 100
	maxProfit := realized*100 - maxRisk
	if err := b.checkBudget(maxRisk, in.req.Budget, "bull call spread"); err != nil {
		return nil, err
	}

	return &draft{
		name: "Bull Call Spread",
		rationale: fmt.Sprintf(
			"Moderate volatility (IV rank %.0f%%). A debit bull call spread gives a defined risk/reward profile with long exposure.",
			in.req.IVRank),
		legs: []models.Leg{
			{Action: models.Buy, Type: models.Call, Strike: buyCall.Strike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: buyPrice},
			{Action: models.Sell, Type: models.Call, Strike: sellStrike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: sellPrice},
		},
		creditDebit: util.RoundCents(-maxRisk),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(maxProfit),
	}, nil
}

// cashSecuredPut sells a single put backed by cash for assignment. When
// the delta-targeted strike does not fit the budget, the builder walks
// down to the affordable strike nearest budget/100.
func (b *Builder) cashSecuredPut(in buildInput) (*draft, error) {
	spot := in.req.Spot
	sellPut, ok := chain.FindStrikeByDelta(in.puts, spot, in.tYears, b.cfg.Pricing.RiskFreeRate, in.sigma,
		-b.cfg.Strategy.Deltas.CashSecuredPut, models.Put)
	if !ok {
		return nil, reject(CategoryLiquidity, "no suitable put strike for a cash-secured put on %s", in.req.Ticker)
	}
	price := chain.MidPrice(sellPut)
	maxRisk := sellPut.Strike*100 - price*100

	if maxRisk > in.req.Budget {
		var affordable []models.OptionQuote
		for _, q := range in.puts {
			if q.Strike*100-chain.MidPrice(q)*100 <= in.req.Budget {
				affordable = append(affordable, q)
			}
		}
		if len(affordable) == 0 {
			return nil, reject(CategoryBudget, "budget $%.0f cannot secure any put strike on %s", in.req.Budget, in.req.Ticker)
		}
		strike, _ := chain.NearestStrike(chain.Strikes(affordable), in.req.Budget/100)
		sellPut, _ = chain.QuoteAtStrike(affordable, strike)
		price = chain.MidPrice(sellPut)
		maxRisk = sellPut.Strike*100 - price*100
	}

	credit := price * 100
	return &draft{
		name: "Cash-Secured Put (The Wheel)",
		rationale: fmt.Sprintf(
			"Moderate volatility (IV rank %.0f%%). The budget ($%.0f) covers assignment of 100 shares, so the wheel applies: sell a cash-secured put and either keep the premium or buy the stock at a discount.",
			in.req.IVRank, in.req.Budget),
		legs: []models.Leg{
			{Action: models.Sell, Type: models.Put, Strike: sellPut.Strike, Expiration: in.chain.Expiration, DTE: in.chain.DTE, Price: price},
		},
		creditDebit: util.RoundCents(credit),
		maxRisk:     util.RoundCents(maxRisk),
		maxProfit:   util.RoundCents(credit),
	}, nil
}
