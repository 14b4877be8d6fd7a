// Package planner chooses the protective action for a scored position.
// Priority order: repay debt, add collateral, partial exit, with a full
// exit override for emergencies.
package planner

import (
	"fmt"
	"math"

	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/ethereumdegen/stark-guardian/internal/risk"
)

// Config tunes the planner's decisions. Zero values fall back to the
// package defaults used by NewConfig.
type Config struct {
	// CollateralTopUpPct is the top-up size as a percent of current
	// collateral when adding collateral from the wallet.
	CollateralTopUpPct float64

	// EmergencyFullExit enables a full position exit when the risk score
	// reaches the emergency band.
	EmergencyFullExit bool
}

func NewConfig() Config {
	return Config{CollateralTopUpPct: 20}
}

type Planner struct {
	cfg Config
}

func New(cfg Config) *Planner {
	if cfg.CollateralTopUpPct <= 0 {
		cfg.CollateralTopUpPct = 20
	}
	return &Planner{cfg: cfg}
}

const defaultLLTV = 0.8

// Plan decides the protective action for one scored position, given the
// wallet's idle balances in USD per asset.
func (pl *Planner) Plan(sp model.ScoredPosition, walletBalancesUSD map[string]float64) model.PlannedAction {
	pos := sp.Position

	if pos.Kind == model.KindLP {
		if !pos.InRange() {
			return model.PlannedAction{
				Kind:      model.ActionRecenterLP,
				Protocol:  pos.Protocol,
				Asset:     pos.CollateralAsset,
				Amount:    pos.CollateralAmount,
				AmountUSD: pos.CollateralUSD,
				Rationale: "LP position is out of range, collecting fees and recentering.",
			}
		}
		return noop(pos, nil, "LP in range, no action needed.")
	}

	if pos.HealthFactor == nil || *pos.HealthFactor >= risk.TargetHealthFactor {
		return noop(pos, pos.HealthFactor, "Health factor is safe, no action needed.")
	}

	if pl.cfg.EmergencyFullExit && sp.Risk.Score >= 90 {
		return model.PlannedAction{
			Kind:      model.ActionFullExit,
			Protocol:  pos.Protocol,
			Asset:     pos.CollateralAsset,
			Amount:    pos.CollateralAmount,
			AmountUSD: pos.CollateralUSD,
			Rationale: "Emergency: score >= 90 and full_exit enabled.",
		}
	}

	lltv := defaultLLTV
	if pos.LLTV != nil {
		lltv = *pos.LLTV
	}
	price := pos.CurrentPrice
	if price == 0 {
		price = 1.0
	}

	targetDebtUSD := (pos.CollateralUSD * lltv) / risk.TargetHealthFactor
	repayUSD := math.Max(0, pos.DebtUSDValue()-targetDebtUSD)

	if repayUSD > 0 && walletBalancesUSD[pos.DebtAsset] >= repayUSD {
		return model.PlannedAction{
			Kind:          model.ActionRepayDebt,
			Protocol:      pos.Protocol,
			Asset:         pos.DebtAsset,
			Amount:        repayUSD / price,
			AmountUSD:     repayUSD,
			ExpectedNewHF: model.Float64Ptr(risk.TargetHealthFactor),
			Rationale:     fmt.Sprintf("Repay $%.0f %s to reach HF %.1f.", repayUSD, pos.DebtAsset, risk.TargetHealthFactor),
		}
	}

	addColUSD := pos.CollateralUSD * (pl.cfg.CollateralTopUpPct / 100)
	if walletBalancesUSD[pos.CollateralAsset] >= addColUSD {
		debtUSD := pos.DebtUSDValue()
		if debtUSD == 0 {
			debtUSD = 1
		}
		newHF := (pos.CollateralUSD + addColUSD) * lltv / debtUSD
		return model.PlannedAction{
			Kind:          model.ActionAddCollateral,
			Protocol:      pos.Protocol,
			Asset:         pos.CollateralAsset,
			Amount:        addColUSD / price,
			AmountUSD:     addColUSD,
			ExpectedNewHF: model.Float64Ptr(round2(newHF)),
			Rationale: fmt.Sprintf("Add %.0f%% more %s collateral to reach HF ~%.2f.",
				pl.cfg.CollateralTopUpPct, pos.CollateralAsset, newHF),
		}
	}

	// Last resort: sell collateral to repay, 5% extra for gas and slippage.
	partialUSD := repayUSD * 1.05
	newColUSD := pos.CollateralUSD - partialUSD
	newHF := (newColUSD * lltv) / math.Max(pos.DebtUSDValue()-repayUSD, 1)
	return model.PlannedAction{
		Kind:          model.ActionPartialExit,
		Protocol:      pos.Protocol,
		Asset:         pos.CollateralAsset,
		Amount:        partialUSD / price,
		AmountUSD:     partialUSD,
		ExpectedNewHF: model.Float64Ptr(round2(newHF)),
		Rationale:     fmt.Sprintf("Sell $%.0f of collateral to repay debt and reach HF ~%.2f.", partialUSD, newHF),
	}
}

func noop(pos model.Position, hf *float64, rationale string) model.PlannedAction {
	return model.PlannedAction{
		Kind:          model.ActionNoop,
		Protocol:      pos.Protocol,
		Asset:         pos.CollateralAsset,
		ExpectedNewHF: hf,
		Rationale:     rationale,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
