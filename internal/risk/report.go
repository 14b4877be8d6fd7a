package risk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/ethereumdegen/stark-guardian/internal/model"
)

// TargetHealthFactor is the health factor protective actions aim to restore.
const TargetHealthFactor = 1.6

// BuildReport scores every position and aggregates a portfolio report.
// The portfolio score is a USD-weighted average of position scores.
func BuildReport(wallet string, positions []model.Position, pollInterval time.Duration, now time.Time) model.RiskReport {
	portfolioTotal := 0.0
	for _, p := range positions {
		portfolioTotal += p.CollateralUSD
	}

	scored := make([]model.ScoredPosition, 0, len(positions))
	for _, p := range positions {
		scored = append(scored, model.ScoredPosition{
			Position: p,
			Risk:     ScorePosition(p, portfolioTotal),
		})
	}

	portfolioScore := 0
	if portfolioTotal > 0 {
		weighted := 0.0
		for _, sp := range scored {
			weighted += float64(sp.Risk.Score) * sp.Position.CollateralUSD
		}
		portfolioScore = int(weighted / portfolioTotal)
	}

	ts := now.UTC()
	return model.RiskReport{
		ReportID:              reportID(wallet, ts),
		Timestamp:             ts,
		Wallet:                wallet,
		PortfolioTotalUSD:     math.Round(portfolioTotal*100) / 100,
		PortfolioRiskScore:    portfolioScore,
		PortfolioRiskCategory: model.Category(portfolioScore),
		Positions:             scored,
		ActionsTaken:          []model.ExecutionResult{},
		NextPoll:              ts.Add(pollInterval),
	}
}

func reportID(wallet string, ts time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s", wallet, ts.Format(time.RFC3339))))
	return "rg-" + hex.EncodeToString(sum[:])[:8]
}
