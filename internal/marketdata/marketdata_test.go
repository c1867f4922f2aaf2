package marketdata

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

// Compile-time interface compliance checks
var (
	_ Provider = (*Synthetic)(nil)
	_ Provider = (*Client)(nil)
	_ Provider = (*RetryProvider)(nil)
	_ Provider = NoData{}
)

func TestSyntheticDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	a := NewSynthetic(100, 0.25)
	a.Now = now
	b := NewSynthetic(100, 0.25)
	b.Now = now

	ca, err := a.OptionsChain("SPY", 45)
	if err != nil {
		t.Fatal(err)
	}
	cb, _ := b.OptionsChain("SPY", 45)
	if !reflect.DeepEqual(ca, cb) {
		t.Error("synthetic chains differ across identical providers")
	}
	if ca.DTE != 45 || ca.Expiration != "2026-10-15" {
		t.Errorf("chain dte/expiration = %d/%s", ca.DTE, ca.Expiration)
	}
	if len(ca.Calls) == 0 || len(ca.Puts) == 0 {
		t.Fatal("empty synthetic chain")
	}
	// Calls cheapen with strike, puts richen.
	mid := len(ca.Calls) / 2
	if ca.Calls[0].Last <= ca.Calls[mid].Last {
		t.Error("deep ITM call should cost more than ATM")
	}
	if ca.Puts[len(ca.Puts)-1].Last <= ca.Puts[mid].Last {
		t.Error("deep ITM put should cost more than ATM")
	}
}

func TestSyntheticChainTenors(t *testing.T) {
	s := NewSynthetic(100, 0.25)
	leaps, err := s.LeapsChain("SPY")
	if err != nil || leaps.DTE != 365 {
		t.Errorf("leaps dte = %v err = %v", leaps.DTE, err)
	}
	short, err := s.ShortTermChain("SPY")
	if err != nil || short.DTE != 21 {
		t.Errorf("short-term dte = %v err = %v", short.DTE, err)
	}
}

func TestNoDataProvider(t *testing.T) {
	var p Provider = NoData{}
	if _, err := p.SpotPrice("spy"); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
	if _, err := p.OptionsChain("spy", 45); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestClientOptionsChain(t *testing.T) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	near := today.AddDate(0, 0, 44).Format("2006-01-02")
	far := today.AddDate(0, 0, 80).Format("2006-01-02")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/markets/options/expirations":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"expirations": map[string]any{"date": []string{near, far}},
			})
		case "/markets/options/chains":
			if r.URL.Query().Get("expiration") != near {
				t.Errorf("fetched expiration %q, want %q", r.URL.Query().Get("expiration"), near)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"options": map[string]any{"option": []map[string]any{
					{"strike": 100.0, "bid": 2.0, "ask": 2.2, "last": 2.1, "open_interest": 120,
						"option_type": "call", "greeks": map[string]any{"mid_iv": 0.22}},
					{"strike": 100.0, "bid": 1.8, "ask": 2.0, "last": 1.9, "open_interest": 80,
						"option_type": "put"},
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", nil)
	chain, err := c.OptionsChain("spy", 45)
	if err != nil {
		t.Fatalf("OptionsChain: %v", err)
	}
	if chain.Expiration != near || chain.DTE != 44 {
		t.Errorf("chain = %s/%d, want %s/44", chain.Expiration, chain.DTE, near)
	}
	if len(chain.Calls) != 1 || len(chain.Puts) != 1 {
		t.Fatalf("chain sides = %d calls / %d puts", len(chain.Calls), len(chain.Puts))
	}
	if chain.Calls[0].ImpliedVol != 0.22 {
		t.Errorf("call IV = %v, want 0.22", chain.Calls[0].ImpliedVol)
	}
	if chain.Puts[0].ImpliedVol != 0 {
		t.Errorf("put IV = %v, want 0 when greeks absent", chain.Puts[0].ImpliedVol)
	}
}

func TestClientConfiguredTenors(t *testing.T) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	dates := make(map[string]int)
	var expirations []string
	for _, dte := range []int{10, 30, 60, 150, 250} {
		exp := today.AddDate(0, 0, dte).Format("2006-01-02")
		dates[exp] = dte
		expirations = append(expirations, exp)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/options/expirations":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"expirations": map[string]any{"date": expirations},
			})
		case "/markets/options/chains":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"options": map[string]any{"option": []map[string]any{
					{"strike": 100.0, "bid": 1.0, "ask": 1.2, "last": 1.1, "open_interest": 50,
						"option_type": "call"},
				}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil)
	short, err := c.ShortTermChain("SPY")
	if err != nil || dates[short.Expiration] != 30 {
		t.Errorf("default short-term dte = %d err = %v, want 30", dates[short.Expiration], err)
	}
	leaps, err := c.LeapsChain("SPY")
	if err != nil || dates[leaps.Expiration] != 250 {
		t.Errorf("default leaps dte = %d err = %v, want 250", dates[leaps.Expiration], err)
	}

	c.ShortTermDTE = 10
	c.LeapsMinDTE = 100
	short, err = c.ShortTermChain("SPY")
	if err != nil || dates[short.Expiration] != 10 {
		t.Errorf("configured short-term dte = %d err = %v, want 10", dates[short.Expiration], err)
	}
	leaps, err = c.LeapsChain("SPY")
	if err != nil || dates[leaps.Expiration] != 150 {
		t.Errorf("configured leaps dte = %d err = %v, want 150", dates[leaps.Expiration], err)
	}
}

func TestClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exhausted", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", nil)
	_, err := c.SpotPrice("SPY")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 APIError, got %v", err)
	}
	if !IsTransient(err) {
		t.Error("429 should be transient")
	}
}

func TestIsTransient(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil is not transient")
	}
	if IsTransient(ErrNoData) {
		t.Error("ErrNoData is not transient")
	}
	if IsTransient(&APIError{Status: 404}) {
		t.Error("404 is not transient")
	}
	if !IsTransient(&APIError{Status: 503}) {
		t.Error("503 is transient")
	}
	if !IsTransient(errors.New("connection reset")) {
		t.Error("transport errors are transient")
	}
}

// flakyProvider fails n times before succeeding.
type flakyProvider struct {
	NoData
	failures int
	calls    int
}

func (f *flakyProvider) SpotPrice(string) (float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return 0, &APIError{Status: 502, Body: "bad gateway"}
	}
	return 450.25, nil
}

func TestRetryProviderRecovers(t *testing.T) {
	flaky := &flakyProvider{failures: 2}
	rp := NewRetryProvider(flaky, log.New(testWriter{t}, "", 0), RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	spot, err := rp.SpotPrice("SPY")
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if spot != 450.25 || flaky.calls != 3 {
		t.Errorf("spot=%v calls=%d", spot, flaky.calls)
	}
}

func TestRetryProviderGivesUpOnPermanent(t *testing.T) {
	rp := NewRetryProvider(NoData{}, nil, RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	})
	_, err := rp.OptionsChain("XYZ", 45)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData passthrough, got %v", err)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
