// Package risk scores scanned positions with a multi-factor model and
// assembles portfolio risk reports.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/ethereumdegen/stark-guardian/internal/model"
)

// assetVolatility is approximate 30-day realized volatility (annualized)
// per asset. Unknown assets assume high volatility.
var assetVolatility = map[string]float64{
	"ETH":    0.70,
	"WBTC":   0.65,
	"BTC":    0.65,
	"STRK":   1.20,
	"wstETH": 0.55,
	"LORDS":  1.50,
	"EKUBO":  1.80,
	"USDC":   0.01,
	"USDT":   0.01,
	"DAI":    0.01,
}

const defaultVolatility = 1.0

var actionForCategory = map[model.RiskCategory]string{
	model.CategorySafe:      "No action needed.",
	model.CategoryWatch:     "Monitor closely. Consider reducing exposure if volatility increases.",
	model.CategoryWarning:   "Recommend repaying some debt or adding collateral soon.",
	model.CategoryCritical:  "Act now — repay debt or add collateral to avoid liquidation.",
	model.CategoryEmergency: "IMMEDIATE ACTION REQUIRED — liquidation imminent.",
}

func volatilityFor(asset string) float64 {
	if v, ok := assetVolatility[asset]; ok {
		return v
	}
	return defaultVolatility
}

// timeToLiquidation gives a rough drift estimate of how long until HF
// reaches 1 given one standard deviation of daily movement.
func timeToLiquidation(hf, dailyVol float64) string {
	if hf >= 2.0 {
		return ">30 days"
	}
	if dailyVol <= 0 {
		return "unknown"
	}
	days := (hf - 1.0) / dailyVol
	hours := days * 24
	if hours < 1 {
		return "<1 hour (CRITICAL)"
	}
	if hours < 24 {
		return fmt.Sprintf("~%.0fh at current volatility", hours)
	}
	return fmt.Sprintf("~%.0fd at current volatility", days)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScorePosition computes the multi-factor risk score for one position.
//
// Factors:
//
//	base_score    (0-50): derived from inverse health factor
//	vol_penalty   (0-30): higher for volatile collateral assets
//	concentration (0-10): higher when position dominates the portfolio
//	lp_range      (0-10): extra risk for out-of-range LP positions
//	staking       (0-15): validator uptime below 90%
func ScorePosition(pos model.Position, portfolioTotalUSD float64) model.RiskScore {
	breakdown := make(map[string]float64, 6)

	var base float64
	switch {
	case pos.HealthFactor != nil:
		hf := math.Max(*pos.HealthFactor, 0.01)
		// HF=1.0 scores 50, HF=2.0 scores 25.
		base = math.Min(50, (1.0/hf)*50)
	case pos.Kind == model.KindLP:
		// No liquidation risk, but impermanent loss risk.
		base = 5.0
	case pos.Kind == model.KindStaking:
		base = 3.0
	default:
		base = 20.0
	}
	breakdown["base_score"] = round2(base)

	// LP pairs are noted as "T0/T1"; the first leg sets the volatility.
	colVol := volatilityFor(strings.SplitN(pos.CollateralAsset, "/", 2)[0])
	volPen := math.Min(30, colVol*20)
	if pos.Kind == model.KindLP || pos.Kind == model.KindStaking {
		volPen *= 0.4
	}
	breakdown["vol_penalty"] = round2(volPen)

	var concPen float64
	if portfolioTotalUSD > 0 {
		concPen = math.Min(10, pos.CollateralUSD/portfolioTotalUSD*10)
	} else {
		concPen = 5.0
	}
	breakdown["concentration_penalty"] = round2(concPen)

	lpPen := 0.0
	if pos.Kind == model.KindLP && !pos.InRange() {
		lpPen = 10.0
	}
	breakdown["lp_out_of_range_penalty"] = lpPen

	stakingPen := 0.0
	if pos.Kind == model.KindStaking {
		if uptime := pos.ValidatorUptimePct(); uptime < 90 {
			stakingPen = (90 - uptime) * 1.5
		}
	}
	breakdown["staking_validator_penalty"] = round2(stakingPen)

	raw := base + volPen + concPen + lpPen + stakingPen
	score := int(math.Min(100, math.Max(0, raw)))
	breakdown["total_raw"] = round2(raw)

	category := model.Category(score)

	var distPtr *float64
	if dist, ok := pos.DistanceToLiquidationPct(); ok {
		distPtr = model.Float64Ptr(round2(dist))
	}

	timeEst := ""
	if pos.HealthFactor != nil {
		dailyVol := volatilityFor(pos.CollateralAsset) / math.Sqrt(365)
		timeEst = timeToLiquidation(*pos.HealthFactor, dailyVol)
	}

	actions := []string{actionForCategory[category]}
	if pos.HealthFactor != nil && *pos.HealthFactor < 1.5 && pos.DebtUSDValue() > 0 {
		lltv := 0.8
		if pos.LLTV != nil {
			lltv = *pos.LLTV
		}
		targetDebt := pos.CollateralUSD * lltv / TargetHealthFactor
		if repayUSD := pos.DebtUSDValue() - targetDebt; repayUSD > 0 {
			actions = append(actions,
				fmt.Sprintf("Repay $%.0f of %s to reach HF %.1f.", repayUSD, pos.DebtAsset, TargetHealthFactor))
		}
	}
	if pos.Kind == model.KindLP && !pos.InRange() {
		actions = append(actions, "LP position is out of range — consider recentering or withdrawing.")
	}

	return model.RiskScore{
		Score:              score,
		Category:           category,
		DistanceToLiqPct:   distPtr,
		TimeToLiqEstimate:  timeEst,
		RecommendedActions: actions,
		Breakdown:          breakdown,
	}
}
