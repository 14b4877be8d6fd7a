package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/rs/zerolog"
)

func newTestOracle(pragmaURL, coingeckoURL string) *Oracle {
	o := New(httpx.New(2*time.Second, 0), zerolog.Nop())
	o.pragmaBase = pragmaURL
	o.coingeckoBase = coingeckoURL
	return o
}

func TestPriceFromPragma(t *testing.T) {
	pragma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pair"); got != "ETH/USD" {
			t.Errorf("pair = %q, want ETH/USD", got)
		}
		w.Write([]byte(`{"price":"250000000000","decimals":8}`))
	}))
	defer pragma.Close()

	o := newTestOracle(pragma.URL, "http://unused.invalid")
	price, err := o.Price(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if price != 2500.0 {
		t.Fatalf("price = %v, want 2500", price)
	}
}

func TestPriceFallsBackToCoinGecko(t *testing.T) {
	pragma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer pragma.Close()

	coingecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"starknet":{"usd":0.42}}`))
	}))
	defer coingecko.Close()

	o := newTestOracle(pragma.URL, coingecko.URL)
	price, err := o.Price(context.Background(), "STRK")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if price != 0.42 {
		t.Fatalf("price = %v, want 0.42", price)
	}
}

func TestPriceStablecoinShortCircuit(t *testing.T) {
	// No server configured; a network call would fail.
	o := newTestOracle("http://unused.invalid", "http://unused.invalid")
	for _, asset := range []string{"USDC", "USDT", "DAI"} {
		price, err := o.Price(context.Background(), asset)
		if err != nil {
			t.Fatalf("Price(%s): %v", asset, err)
		}
		if price != 1.0 {
			t.Fatalf("Price(%s) = %v, want 1", asset, price)
		}
	}
}

func TestPriceCacheHitWithinTTL(t *testing.T) {
	calls := 0
	pragma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"price":"100000000","decimals":8}`))
	}))
	defer pragma.Close()

	now := time.Now()
	o := newTestOracle(pragma.URL, "http://unused.invalid")
	o.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := o.Price(context.Background(), "ETH"); err != nil {
			t.Fatalf("Price: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("upstream calls = %d, want 1", calls)
	}

	now = now.Add(31 * time.Second)
	if _, err := o.Price(context.Background(), "ETH"); err != nil {
		t.Fatalf("Price after TTL: %v", err)
	}
	if calls != 2 {
		t.Fatalf("upstream calls after TTL = %d, want 2", calls)
	}
}

func TestPriceUnavailableAfterAllSourcesFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer failing.Close()

	o := newTestOracle(failing.URL, failing.URL)
	_, err := o.Price(context.Background(), "ETH")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	ge, ok := gerr.As(err)
	if !ok || ge.Code != gerr.CodePriceUnavailable {
		t.Fatalf("error = %v, want code %d", err, gerr.CodePriceUnavailable)
	}

	// A failed lookup must not poison the cache.
	recovered := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"300000000000","decimals":8}`))
	}))
	defer recovered.Close()
	o.pragmaBase = recovered.URL

	price, err := o.Price(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("Price after recovery: %v", err)
	}
	if price != 3000.0 {
		t.Fatalf("price = %v, want 3000", price)
	}
}
