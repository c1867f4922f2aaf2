package marketdata

import (
	"crypto/rand"
	"log"
	"math/big"
	"time"

	"github.com/mlaurent/spreadwright/internal/models"
)

// RetryConfig bounds the backoff loop of a RetryProvider.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig retries three times with 1s initial backoff.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
}

// RetryProvider decorates a Provider with bounded exponential backoff
// on transient failures. ErrNoData and 4xx responses pass through
// immediately; only server-side and transport errors are retried.
type RetryProvider struct {
	next   Provider
	logger *log.Logger
	config RetryConfig
}

// NewRetryProvider wraps next with retry behavior.
func NewRetryProvider(next Provider, logger *log.Logger, config ...RetryConfig) *RetryProvider {
	cfg := DefaultRetryConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &RetryProvider{next: next, logger: logger, config: cfg}
}

// SpotPrice implements Provider.
func (r *RetryProvider) SpotPrice(ticker string) (float64, error) {
	var out float64
	err := r.do("spot "+ticker, func() error {
		var err error
		out, err = r.next.SpotPrice(ticker)
		return err
	})
	return out, err
}

// VolIndex implements Provider.
func (r *RetryProvider) VolIndex(ticker string) (float64, string, error) {
	var level float64
	var symbol string
	err := r.do("vol index "+ticker, func() error {
		var err error
		level, symbol, err = r.next.VolIndex(ticker)
		return err
	})
	return level, symbol, err
}

// OptionsChain implements Provider.
func (r *RetryProvider) OptionsChain(ticker string, targetDTE int) (*models.Chain, error) {
	var out *models.Chain
	err := r.do("chain "+ticker, func() error {
		var err error
		out, err = r.next.OptionsChain(ticker, targetDTE)
		return err
	})
	return out, err
}

// LeapsChain implements Provider.
func (r *RetryProvider) LeapsChain(ticker string) (*models.Chain, error) {
	var out *models.Chain
	err := r.do("leaps chain "+ticker, func() error {
		var err error
		out, err = r.next.LeapsChain(ticker)
		return err
	})
	return out, err
}

// ShortTermChain implements Provider.
func (r *RetryProvider) ShortTermChain(ticker string) (*models.Chain, error) {
	var out *models.Chain
	err := r.do("short-term chain "+ticker, func() error {
		var err error
		out, err = r.next.ShortTermChain(ticker)
		return err
	})
	return out, err
}

func (r *RetryProvider) do(op string, fn func() error) error {
	backoff := r.config.InitialBackoff
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == r.config.MaxRetries {
			return lastErr
		}
		if r.logger != nil {
			r.logger.Printf("%s attempt %d/%d failed: %v (retrying in %v)",
				op, attempt+1, r.config.MaxRetries+1, lastErr, backoff)
		}
		time.Sleep(backoff)
		backoff = r.nextBackoff(backoff)
	}
	return lastErr
}

func (r *RetryProvider) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > r.config.MaxBackoff {
		next = r.config.MaxBackoff
	}
	// Jitter up to a quarter of the backoff to avoid thundering herds.
	maxJitter := int64(next / 4)
	if maxJitter > 0 {
		if jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter)); err == nil {
			next += time.Duration(jitterVal.Int64())
		}
	}
	return next
}
