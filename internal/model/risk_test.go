package model

import (
	"strings"
	"testing"
)

func TestCategoryBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  RiskCategory
	}{
		{0, CategorySafe},
		{30, CategorySafe},
		{31, CategoryWatch},
		{55, CategoryWatch},
		{56, CategoryWarning},
		{74, CategoryWarning},
		{75, CategoryCritical},
		{89, CategoryCritical},
		{90, CategoryEmergency},
		{100, CategoryEmergency},
	}
	for _, tt := range tests {
		if got := Category(tt.score); got != tt.want {
			t.Errorf("Category(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestCriticalPositions(t *testing.T) {
	report := RiskReport{
		Positions: []ScoredPosition{
			{Risk: RiskScore{Score: 40, Category: CategoryWatch}},
			{Risk: RiskScore{Score: 80, Category: CategoryCritical}},
			{Risk: RiskScore{Score: 95, Category: CategoryEmergency}},
		},
	}
	got := report.CriticalPositions()
	if len(got) != 2 {
		t.Fatalf("critical positions = %d, want 2", len(got))
	}
}

func TestSummaryTextEmptyPortfolio(t *testing.T) {
	report := RiskReport{PortfolioRiskCategory: CategorySafe}
	if !strings.Contains(report.SummaryText(), "No open positions found.") {
		t.Errorf("summary = %q", report.SummaryText())
	}
}

func TestDistanceToLiquidationPct(t *testing.T) {
	p := Position{CurrentPrice: 2500, LiquidationPrice: Float64Ptr(1875)}
	dist, ok := p.DistanceToLiquidationPct()
	if !ok || dist != 25 {
		t.Errorf("distance = %v/%v, want 25", dist, ok)
	}

	if _, ok := (Position{CurrentPrice: 2500}).DistanceToLiquidationPct(); ok {
		t.Error("distance reported without liquidation price")
	}
}
