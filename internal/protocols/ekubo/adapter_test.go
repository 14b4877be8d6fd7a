package ekubo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/rs/zerolog"
)

type fakePrices map[string]float64

func (f fakePrices) Price(_ context.Context, asset string) (float64, error) {
	if p, ok := f[asset]; ok {
		return p, nil
	}
	return 0, gerr.New(gerr.CodePriceUnavailable, "no price for "+asset)
}

func TestFetchLPPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("owner"); got != "0xlp" {
			t.Errorf("owner = %q, want 0xlp", got)
		}
		w.Write([]byte(`{"positions":[
			{"token0":{"symbol":"ETH"},"token1":{"symbol":"USDC"},
			 "amount0":1.0,"amount1":2500.0,
			 "lower_tick":-100,"upper_tick":100,"in_range":false,"fee":"0.05%"}
		]}`))
	}))
	defer srv.Close()

	a := New(httpx.New(2*time.Second, 0), fakePrices{"ETH": 2500, "USDC": 1}, srv.URL, zerolog.Nop())
	positions, err := a.Fetch(context.Background(), "0xlp")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}

	p := positions[0]
	if p.Kind != model.KindLP {
		t.Errorf("kind = %s, want lp", p.Kind)
	}
	if p.CollateralAsset != "ETH/USDC" {
		t.Errorf("pair = %s, want ETH/USDC", p.CollateralAsset)
	}
	if p.CollateralUSD != 5000 {
		t.Errorf("collateral_usd = %v, want 5000", p.CollateralUSD)
	}
	if p.InRange() {
		t.Error("InRange() = true, want false")
	}
	if p.Extra[model.ExtFeeTier] != "0.05%" {
		t.Errorf("fee_tier = %v", p.Extra[model.ExtFeeTier])
	}
}

func TestFetchDefaultsInRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"positions":[
			{"token0":{"symbol":"STRK"},"token1":{"symbol":"ETH"},"amount0":100,"amount1":0.01}
		]}`))
	}))
	defer srv.Close()

	a := New(httpx.New(2*time.Second, 0), fakePrices{"STRK": 0.5, "ETH": 2500}, srv.URL, zerolog.Nop())
	positions, err := a.Fetch(context.Background(), "0xlp")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(positions) != 1 || !positions[0].InRange() {
		t.Fatalf("expected one in-range position, got %+v", positions)
	}
}
