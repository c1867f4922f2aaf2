package marketdata

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mlaurent/spreadwright/internal/models"
)

// Client fetches quotes and chains from a Tradier-style REST backend.
// Calls go through a circuit breaker so a flapping upstream fails fast
// instead of stalling a batch scan.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	// volIndexes maps ticker -> volatility index symbol; fallback ^VIX.
	volIndexes map[string]string

	// ShortTermDTE is the target tenor for ShortTermChain; the search
	// window is the target +/- 14 days.
	ShortTermDTE int
	// LeapsMinDTE is the minimum tenor LeapsChain will accept.
	LeapsMinDTE int
}

// NewClient creates a market data client for the given endpoint.
func NewClient(endpoint, apiKey string, volIndexes map[string]string) *Client {
	settings := gobreaker.Settings{
		Name:    "marketdata",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &Client{
		endpoint:     strings.TrimRight(endpoint, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		breaker:      gobreaker.NewCircuitBreaker(settings),
		volIndexes:   volIndexes,
		ShortTermDTE: 21,
		LeapsMinDTE:  200,
	}
}

type quoteItem struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
}

type quoteResponse struct {
	Quotes struct {
		Quote quoteItem `json:"quote"`
	} `json:"quotes"`
}

type expirationsResponse struct {
	Expirations struct {
		Date []string `json:"date"`
	} `json:"expirations"`
}

type chainGreeks struct {
	MidIV float64 `json:"mid_iv"`
}

type chainOption struct {
	Strike       float64      `json:"strike"`
	Bid          float64      `json:"bid"`
	Ask          float64      `json:"ask"`
	Last         float64      `json:"last"`
	OpenInterest int64        `json:"open_interest"`
	OptionType   string       `json:"option_type"` // call | put
	Greeks       *chainGreeks `json:"greeks"`
}

type chainResponse struct {
	Options struct {
		Option []chainOption `json:"option"`
	} `json:"options"`
}

// SpotPrice implements Provider.
func (c *Client) SpotPrice(ticker string) (float64, error) {
	return c.quote(strings.ToUpper(ticker))
}

// VolIndex implements Provider.
func (c *Client) VolIndex(ticker string) (float64, string, error) {
	symbol := "^VIX"
	if s, ok := c.volIndexes[strings.ToUpper(ticker)]; ok {
		symbol = s
	}
	level, err := c.quote(symbol)
	if err != nil {
		return 0, "", err
	}
	return level, symbol, nil
}

// OptionsChain implements Provider.
func (c *Client) OptionsChain(ticker string, targetDTE int) (*models.Chain, error) {
	if targetDTE <= 0 {
		targetDTE = 45
	}
	return c.chainNearest(ticker, func(dtes []int) (int, bool) {
		return nearestDTE(dtes, targetDTE, 0, 0)
	})
}

// LeapsChain implements Provider. Picks the first expiration beyond
// LeapsMinDTE days; LEAPS back legs need the time value.
func (c *Client) LeapsChain(ticker string) (*models.Chain, error) {
	minDTE := c.LeapsMinDTE
	if minDTE <= 0 {
		minDTE = 200
	}
	return c.chainNearest(ticker, func(dtes []int) (int, bool) {
		for _, d := range dtes {
			if d > minDTE {
				return d, true
			}
		}
		return 0, false
	})
}

// ShortTermChain implements Provider. Picks the expiration nearest
// ShortTermDTE days within a window of the target +/- 14 days.
func (c *Client) ShortTermChain(ticker string) (*models.Chain, error) {
	target := c.ShortTermDTE
	if target <= 0 {
		target = 21
	}
	lo := target - 14
	if lo < 1 {
		lo = 1
	}
	return c.chainNearest(ticker, func(dtes []int) (int, bool) {
		return nearestDTE(dtes, target, lo, target+14)
	})
}

// nearestDTE picks the dte closest to target, optionally bounded to
// [lo, hi] (0 bounds disable the window).
func nearestDTE(dtes []int, target, lo, hi int) (int, bool) {
	best, bestDiff, found := 0, 0, false
	for _, d := range dtes {
		if lo > 0 && d < lo {
			continue
		}
		if hi > 0 && d > hi {
			continue
		}
		diff := d - target
		if diff < 0 {
			diff = -diff
		}
		if !found || diff < bestDiff {
			best, bestDiff, found = d, diff, true
		}
	}
	return best, found
}

func (c *Client) chainNearest(ticker string, pick func([]int) (int, bool)) (*models.Chain, error) {
	symbol := strings.ToUpper(ticker)
	expirations, err := c.expirations(symbol)
	if err != nil {
		return nil, err
	}
	if len(expirations) == 0 {
		return nil, fmt.Errorf("%w: no expirations for %s", ErrNoData, symbol)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	byDTE := make(map[int]string, len(expirations))
	dtes := make([]int, 0, len(expirations))
	for _, exp := range expirations {
		d, err := time.Parse("2006-01-02", exp)
		if err != nil {
			continue
		}
		dte := int(d.Sub(today).Hours() / 24)
		if dte <= 0 {
			continue
		}
		if _, dup := byDTE[dte]; !dup {
			byDTE[dte] = exp
			dtes = append(dtes, dte)
		}
	}
	sort.Ints(dtes)

	dte, ok := pick(dtes)
	if !ok {
		return nil, fmt.Errorf("%w: no expiration in range for %s", ErrNoData, symbol)
	}
	return c.chain(symbol, byDTE[dte], dte)
}

func (c *Client) expirations(symbol string) ([]string, error) {
	var resp expirationsResponse
	params := url.Values{"symbol": {symbol}}
	if err := c.get("/markets/options/expirations", params, &resp); err != nil {
		return nil, err
	}
	return resp.Expirations.Date, nil
}

func (c *Client) chain(symbol, expiration string, dte int) (*models.Chain, error) {
	var resp chainResponse
	params := url.Values{
		"symbol":     {symbol},
		"expiration": {expiration},
		"greeks":     {"true"},
	}
	if err := c.get("/markets/options/chains", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Options.Option) == 0 {
		return nil, fmt.Errorf("%w: empty chain for %s %s", ErrNoData, symbol, expiration)
	}

	out := &models.Chain{Expiration: expiration, DTE: dte}
	for _, o := range resp.Options.Option {
		q := models.OptionQuote{
			Strike:       o.Strike,
			Bid:          o.Bid,
			Ask:          o.Ask,
			Last:         o.Last,
			OpenInterest: o.OpenInterest,
		}
		if o.Greeks != nil {
			q.ImpliedVol = o.Greeks.MidIV
		}
		switch strings.ToLower(o.OptionType) {
		case "call":
			out.Calls = append(out.Calls, q)
		case "put":
			out.Puts = append(out.Puts, q)
		}
	}
	return out, nil
}

func (c *Client) quote(symbol string) (float64, error) {
	var resp quoteResponse
	if err := c.get("/markets/quotes", url.Values{"symbols": {symbol}}, &resp); err != nil {
		return 0, err
	}
	if resp.Quotes.Quote.Last <= 0 {
		return 0, fmt.Errorf("%w: no quote for %s", ErrNoData, symbol)
	}
	return resp.Quotes.Quote.Last, nil
}

func (c *Client) get(path string, params url.Values, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequest(http.MethodGet, c.endpoint+path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		return nil, json.Unmarshal(body, out)
	})
	return err
}
