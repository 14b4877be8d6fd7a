package zklend

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

func TestFetchAppliesDefaultLiquidationThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/0xdef/positions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"positions":[
			{"collateral_token":"wstETH","collateral_amount":4.0,
			 "debt_token":"USDC","debt_amount":5000.0,"health_factor":1.2}
		]}`))
	}))
	defer srv.Close()

	a := New(httpx.New(2*time.Second, 0), fakePrices{"wstETH": 3000, "USDC": 1}, srv.URL, zerolog.Nop())
	positions, err := a.Fetch(context.Background(), "0xdef")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}

	p := positions[0]
	if p.LLTV == nil || *p.LLTV != 0.8 {
		t.Errorf("lltv = %v, want default 0.8", p.LLTV)
	}
	// liq price = 5000 / (4.0 * 0.8) = 1562.5
	if p.LiquidationPrice == nil || *p.LiquidationPrice != 1562.5 {
		t.Errorf("liquidation_price = %v, want 1562.5", p.LiquidationPrice)
	}
	if p.Kind != model.KindBorrowing {
		t.Errorf("kind = %s, want borrowing", p.Kind)
	}
}

func TestFetchSkipsEmptyCollateral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"positions":[
			{"collateral_token":"ETH","collateral_amount":0},
			{"collateral_token":"ETH","collateral_amount":1.5}
		]}`))
	}))
	defer srv.Close()

	a := New(httpx.New(2*time.Second, 0), fakePrices{"ETH": 2000}, srv.URL, zerolog.Nop())
	positions, err := a.Fetch(context.Background(), "0xdef")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	p := positions[0]
	if p.Kind != model.KindLending {
		t.Errorf("kind = %s, want lending", p.Kind)
	}
	if p.CollateralUSD != 3000 {
		t.Errorf("collateral_usd = %v, want 3000", p.CollateralUSD)
	}
	if p.LiquidationPrice != nil {
		t.Errorf("liquidation_price = %v, want nil for debt-free position", p.LiquidationPrice)
	}
}
