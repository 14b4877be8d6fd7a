// Package zklend scans zkLend lending and borrowing positions via the
// protocol's REST API.
package zklend

import (
	"context"
	"fmt"

	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/ethereumdegen/stark-guardian/internal/protocols"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://app.zklend.com/api"

// defaultLiquidationThreshold applies when the API omits a market's value.
const defaultLiquidationThreshold = 0.8

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

func (a *Adapter) Name() string { return "zklend" }

type positionsResponse struct {
	Positions []apiPosition `json:"positions"`
}

type apiPosition struct {
	CollateralToken      string   `json:"collateral_token"`
	CollateralAmount     float64  `json:"collateral_amount"`
	DebtToken            string   `json:"debt_token"`
	DebtAmount           float64  `json:"debt_amount"`
	HealthFactor         *float64 `json:"health_factor"`
	LiquidationThreshold *float64 `json:"liquidation_threshold"`
}

func (a *Adapter) Fetch(ctx context.Context, wallet string) ([]model.Position, error) {
	url := fmt.Sprintf("%s/users/%s/positions", a.baseURL, wallet)
	var resp positionsResponse
	if err := a.http.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	positions := make([]model.Position, 0, len(resp.Positions))
	for _, pos := range resp.Positions {
		if pos.CollateralAmount == 0 {
			continue
		}

		colPrice, err := a.prices.Price(ctx, pos.CollateralToken)
		if err != nil {
			a.log.Warn().Str("asset", pos.CollateralToken).Err(err).Msg("skipping position, price unavailable")
			continue
		}
		colUSD := pos.CollateralAmount * colPrice

		dbtUSD := 0.0
		var debtAmount *float64
		if pos.DebtToken != "" && pos.DebtAmount > 0 {
			dbtPrice, err := a.prices.Price(ctx, pos.DebtToken)
			if err != nil {
				a.log.Warn().Str("asset", pos.DebtToken).Err(err).Msg("skipping position, price unavailable")
				continue
			}
			dbtUSD = pos.DebtAmount * dbtPrice
			debtAmount = model.Float64Ptr(pos.DebtAmount)
		}

		lltv := defaultLiquidationThreshold
		if pos.LiquidationThreshold != nil {
			lltv = *pos.LiquidationThreshold
		}

		var liqPrice *float64
		if pos.DebtAmount > 0 {
			liqPrice = model.Float64Ptr(dbtUSD / (pos.CollateralAmount * lltv))
		}

		kind := model.KindLending
		if dbtUSD > 0 {
			kind = model.KindBorrowing
		}

		p := model.Position{
			Protocol:         a.Name(),
			Kind:             kind,
			CollateralAsset:  pos.CollateralToken,
			CollateralAmount: pos.CollateralAmount,
			CollateralUSD:    colUSD,
			DebtAsset:        pos.DebtToken,
			DebtAmount:       debtAmount,
			HealthFactor:     pos.HealthFactor,
			LiquidationPrice: liqPrice,
			CurrentPrice:     colPrice,
			LLTV:             model.Float64Ptr(lltv),
		}
		if dbtUSD > 0 {
			p.DebtUSD = model.Float64Ptr(dbtUSD)
		}
		positions = append(positions, p)
	}
	return positions, nil
}
