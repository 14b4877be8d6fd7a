// Package ekubo scans Ekubo AMM concentrated-liquidity positions.
package ekubo

import (
	"context"
	"fmt"

	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/ethereumdegen/stark-guardian/internal/protocols"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://mainnet-api.ekubo.org"

type Adapter struct {
	http    *httpx.Client
	prices  protocols.PriceSource
	baseURL string
	log     zerolog.Logger
}

func New(httpClient *httpx.Client, prices protocols.PriceSource, baseURL string, log zerolog.Logger) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{http: httpClient, prices: prices, baseURL: baseURL, log: log}
}

func (a *Adapter) Name() string { return "ekubo" }

type positionsResponse struct {
	Positions []lpPosition `json:"positions"`
}

type lpPosition struct {
	Token0 struct {
		Symbol string `json:"symbol"`
	} `json:"token0"`
	Token1 struct {
		Symbol string `json:"symbol"`
	} `json:"token1"`
	Amount0   float64 `json:"amount0"`
	Amount1   float64 `json:"amount1"`
	LowerTick *int64  `json:"lower_tick"`
	UpperTick *int64  `json:"upper_tick"`
	InRange   *bool   `json:"in_range"`
	Fee       *string `json:"fee"`
}

func (a *Adapter) Fetch(ctx context.Context, wallet string) ([]model.Position, error) {
	url := fmt.Sprintf("%s/positions?owner=%s", a.baseURL, wallet)
	var resp positionsResponse
	if err := a.http.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	positions := make([]model.Position, 0, len(resp.Positions))
	for _, lp := range resp.Positions {
		p0, err := a.prices.Price(ctx, lp.Token0.Symbol)
		if err != nil {
			a.log.Warn().Str("asset", lp.Token0.Symbol).Err(err).Msg("skipping LP position, price unavailable")
			continue
		}
		p1, err := a.prices.Price(ctx, lp.Token1.Symbol)
		if err != nil {
			a.log.Warn().Str("asset", lp.Token1.Symbol).Err(err).Msg("skipping LP position, price unavailable")
			continue
		}

		inRange := true
		if lp.InRange != nil {
			inRange = *lp.InRange
		}
		extra := map[string]any{
			model.ExtInRange: inRange,
		}
		if lp.LowerTick != nil {
			extra[model.ExtLowerTick] = *lp.LowerTick
		}
		if lp.UpperTick != nil {
			extra[model.ExtUpperTick] = *lp.UpperTick
		}
		if lp.Fee != nil {
			extra[model.ExtFeeTier] = *lp.Fee
		}

		positions = append(positions, model.Position{
			Protocol:         a.Name(),
			Kind:             model.KindLP,
			CollateralAsset:  lp.Token0.Symbol + "/" + lp.Token1.Symbol,
			CollateralAmount: 1.0,
			CollateralUSD:    lp.Amount0*p0 + lp.Amount1*p1,
			CurrentPrice:     p0,
			Extra:            extra,
		})
	}
	return positions, nil
}
