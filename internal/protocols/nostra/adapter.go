// Package nostra scans Nostra Finance lending and borrowing positions via
// the protocol's GraphQL API.
package nostra

import (
	"context"
	"encoding/json"

	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/ethereumdegen/stark-guardian/internal/protocols"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://api.nostra.finance/graphql"

const positionsQuery = `
query UserPositions($address: String!) {
  userPositions(address: $address) {
    market { collateralAsset debtAsset lltv }
    collateralAmount
    debtAmount
    healthFactor
  }
}`

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

func (a *Adapter) Name() string { return "nostra" }

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data struct {
		UserPositions []userPosition `json:"userPositions"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type userPosition struct {
	Market struct {
		CollateralAsset string  `json:"collateralAsset"`
		DebtAsset       string  `json:"debtAsset"`
		LLTV            float64 `json:"lltv"`
	} `json:"market"`
	CollateralAmount float64     `json:"collateralAmount"`
	DebtAmount       float64     `json:"debtAmount"`
	HealthFactor     json.Number `json:"healthFactor"`
}

func (a *Adapter) Fetch(ctx context.Context, wallet string) ([]model.Position, error) {
	req := graphqlRequest{
		Query:     positionsQuery,
		Variables: map[string]any{"address": wallet},
	}
	var resp graphqlResponse
	if err := a.http.PostJSON(ctx, a.baseURL, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, gerr.New(gerr.CodeUnavailable, "nostra graphql error: "+resp.Errors[0].Message)
	}

	positions := make([]model.Position, 0, len(resp.Data.UserPositions))
	for _, pos := range resp.Data.UserPositions {
		if pos.CollateralAmount == 0 && pos.DebtAmount == 0 {
			continue
		}

		colPrice, err := a.prices.Price(ctx, pos.Market.CollateralAsset)
		if err != nil {
			a.log.Warn().Str("asset", pos.Market.CollateralAsset).Err(err).Msg("skipping position, price unavailable")
			continue
		}
		dbtPrice, err := a.prices.Price(ctx, pos.Market.DebtAsset)
		if err != nil {
			a.log.Warn().Str("asset", pos.Market.DebtAsset).Err(err).Msg("skipping position, price unavailable")
			continue
		}

		colUSD := pos.CollateralAmount * colPrice
		dbtUSD := pos.DebtAmount * dbtPrice
		hf, _ := pos.HealthFactor.Float64()

		var liqPrice *float64
		if pos.CollateralAmount > 0 && pos.Market.LLTV > 0 {
			liqPrice = model.Float64Ptr(dbtUSD / (pos.CollateralAmount * pos.Market.LLTV))
		}

		kind := model.KindLending
		if pos.DebtAmount > 0 {
			kind = model.KindBorrowing
		}

		positions = append(positions, model.Position{
			Protocol:         a.Name(),
			Kind:             kind,
			CollateralAsset:  pos.Market.CollateralAsset,
			CollateralAmount: pos.CollateralAmount,
			CollateralUSD:    colUSD,
			DebtAsset:        pos.Market.DebtAsset,
			DebtAmount:       model.Float64Ptr(pos.DebtAmount),
			DebtUSD:          model.Float64Ptr(dbtUSD),
			HealthFactor:     model.Float64Ptr(hf),
			LiquidationPrice: liqPrice,
			CurrentPrice:     colPrice,
			LLTV:             model.Float64Ptr(pos.Market.LLTV),
		})
	}
	return positions, nil
}
