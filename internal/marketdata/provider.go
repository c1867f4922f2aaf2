// Package marketdata defines the data-provider boundary of the core:
// already-fetched snapshots in, never network I/O inside the decision
// engine itself. Implementations are fallible; a provider that cannot
// serve a request returns ErrNoData (or wraps it) and the engine turns
// that into a categorized rejection instead of crashing.
package marketdata

import (
	"errors"
	"fmt"

	"github.com/mlaurent/spreadwright/internal/models"
)

// ErrNoData signals that a provider has no usable data for the request
// (unknown ticker, no expirations in range, empty chain).
var ErrNoData = errors.New("market data unavailable")

// Provider supplies the market snapshots the strategy engine consumes.
type Provider interface {
	// SpotPrice returns the current underlying price.
	SpotPrice(ticker string) (float64, error)

	// VolIndex returns the level and symbol of the volatility index
	// tracked for the ticker (e.g. ^VIX, ^GVZ for gold).
	VolIndex(ticker string) (float64, string, error)

	// OptionsChain returns the chain for the expiration closest to
	// targetDTE days out.
	OptionsChain(ticker string, targetDTE int) (*models.Chain, error)

	// LeapsChain returns a long-dated chain (> ~200 DTE) for PMCC back
	// legs, or ErrNoData.
	LeapsChain(ticker string) (*models.Chain, error)

	// ShortTermChain returns a near-dated chain (~21 DTE) for calendar
	// front legs, or ErrNoData.
	ShortTermChain(ticker string) (*models.Chain, error)
}

// HistoryProvider is an optional capability: providers that can serve
// daily closing bars implement it, and callers that want the historical
// indicators (IV rank, realized vol, trend reads) type-assert for it.
type HistoryProvider interface {
	// ClosingPrices returns up to sessions daily closes, oldest first.
	ClosingPrices(ticker string, sessions int) ([]float64, error)
}

// APIError is a non-2xx response from an HTTP market-data backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market data API error: status %d: %s", e.Status, e.Body)
}

// IsTransient reports whether the error is worth retrying: server-side
// failures and rate limits are, client errors and missing data are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, ErrNoData) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == 429
	}
	// Transport-level failures (timeouts, resets) arrive as plain errors.
	return true
}
