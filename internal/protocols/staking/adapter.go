// Package staking scans STRK delegated staking positions.
package staking

import (
	"context"
	"fmt"

	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/ethereumdegen/stark-guardian/internal/protocols"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://staking.starknet.io/api"

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

func (a *Adapter) Name() string { return "strk-staking" }

type delegatorResponse struct {
	Delegations []delegation `json:"delegations"`
}

type delegation struct {
	ValidatorAddress string   `json:"validator_address"`
	StakedAmount     float64  `json:"staked_amount"`
	UptimePct        *float64 `json:"uptime_pct"`
	UnclaimedRewards float64  `json:"unclaimed_rewards"`
}

func (a *Adapter) Fetch(ctx context.Context, wallet string) ([]model.Position, error) {
	url := fmt.Sprintf("%s/delegators/%s", a.baseURL, wallet)
	var resp delegatorResponse
	if err := a.http.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Delegations) == 0 {
		return nil, nil
	}

	strkPrice, err := a.prices.Price(ctx, "STRK")
	if err != nil {
		return nil, err
	}

	positions := make([]model.Position, 0, len(resp.Delegations))
	for _, stake := range resp.Delegations {
		uptime := 100.0
		if stake.UptimePct != nil {
			uptime = *stake.UptimePct
		}
		positions = append(positions, model.Position{
			Protocol:         a.Name(),
			Kind:             model.KindStaking,
			CollateralAsset:  "STRK",
			CollateralAmount: stake.StakedAmount,
			CollateralUSD:    stake.StakedAmount * strkPrice,
			CurrentPrice:     strkPrice,
			Extra: map[string]any{
				model.ExtValidator:        stake.ValidatorAddress,
				model.ExtValidatorUptime:  uptime,
				model.ExtUnclaimedRewards: stake.UnclaimedRewards,
			},
		})
	}
	return positions, nil
}
