package model

import (
	"fmt"
	"strings"
	"time"
)

// RiskCategory buckets a 0-100 risk score. Categories are ordered and
// non-overlapping; Category() is the only mapping from score to category.
type RiskCategory string

const (
	CategorySafe      RiskCategory = "safe"
	CategoryWatch     RiskCategory = "watch"
	CategoryWarning   RiskCategory = "warning"
	CategoryCritical  RiskCategory = "critical"
	CategoryEmergency RiskCategory = "emergency"
)

type categoryThreshold struct {
	floor    int
	category RiskCategory
}

// Evaluated high to low; first floor not exceeding the score wins.
var categoryThresholds = []categoryThreshold{
	{90, CategoryEmergency},
	{75, CategoryCritical},
	{56, CategoryWarning},
	{31, CategoryWatch},
	{0, CategorySafe},
}

// Category maps a clamped risk score to its category.
func Category(score int) RiskCategory {
	for _, t := range categoryThresholds {
		if score >= t.floor {
			return t.category
		}
	}
	return CategorySafe
}

// RiskScore is the immutable scoring result for one position.
type RiskScore struct {
	Score              int                `json:"score"`
	Category           RiskCategory       `json:"category"`
	DistanceToLiqPct   *float64           `json:"distance_to_liq_pct,omitempty"`
	TimeToLiqEstimate  string             `json:"time_to_liq_estimate,omitempty"`
	RecommendedActions []string           `json:"recommended_actions"`
	Breakdown          map[string]float64 `json:"score_breakdown"`
}

// ScoredPosition pairs a scanned position with its risk score.
type ScoredPosition struct {
	Position Position  `json:"position"`
	Risk     RiskScore `json:"risk"`
}

// RiskReport aggregates one wallet's scored positions at one point in time.
// ActionsTaken is appended by the executor step before the report is handed
// to the audit log; everything else is immutable after construction.
type RiskReport struct {
	ReportID              string            `json:"report_id"`
	Timestamp             time.Time         `json:"timestamp"`
	Wallet                string            `json:"wallet"`
	PortfolioTotalUSD     float64           `json:"portfolio_total_usd"`
	PortfolioRiskScore    int               `json:"portfolio_risk_score"`
	PortfolioRiskCategory RiskCategory      `json:"portfolio_risk_category"`
	Positions             []ScoredPosition  `json:"positions"`
	ActionsTaken          []ExecutionResult `json:"actions_taken"`
	NextPoll              time.Time         `json:"next_poll"`
}

// CriticalPositions returns the positions in the critical or emergency
// categories, the set the executor acts on.
func (r RiskReport) CriticalPositions() []ScoredPosition {
	out := make([]ScoredPosition, 0)
	for _, sp := range r.Positions {
		if sp.Risk.Category == CategoryCritical || sp.Risk.Category == CategoryEmergency {
			out = append(out, sp)
		}
	}
	return out
}

// SummaryText renders a human-readable snapshot for notifications.
func (r RiskReport) SummaryText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DeFi Risk Guardian — Snapshot Report\n")
	fmt.Fprintf(&b, "Portfolio Risk Score: %d/100 (%s)\n", r.PortfolioRiskScore, r.PortfolioRiskCategory)
	fmt.Fprintf(&b, "Portfolio Value: $%.0f\n\n", r.PortfolioTotalUSD)

	for _, sp := range r.Positions {
		p := sp.Position
		hf := "LP/Staking"
		if p.HealthFactor != nil {
			hf = fmt.Sprintf("HF=%.2f", *p.HealthFactor)
		}
		fmt.Fprintf(&b, "[%s] %s $%.0f  %s  Score:%d/100",
			strings.ToUpper(p.Protocol), p.CollateralAsset, p.CollateralUSD, hf, sp.Risk.Score)
		if sp.Risk.DistanceToLiqPct != nil && p.LiquidationPrice != nil {
			fmt.Fprintf(&b, "  Liq@$%.0f (%.1f%% buffer)", *p.LiquidationPrice, *sp.Risk.DistanceToLiqPct)
		}
		b.WriteString("\n")
		// First recommended action is the generic category message.
		for _, action := range sp.Risk.RecommendedActions[min(1, len(sp.Risk.RecommendedActions)):] {
			fmt.Fprintf(&b, "   -> %s\n", action)
		}
	}
	if len(r.Positions) == 0 {
		b.WriteString("No open positions found.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
