package model

import "math"

// PositionKind classifies one open exposure at one protocol.
type PositionKind string

const (
	KindLending   PositionKind = "lending"
	KindBorrowing PositionKind = "borrowing"
	KindLP        PositionKind = "lp"
	KindStaking   PositionKind = "staking"
	KindCDP       PositionKind = "cdp"
)

// Extension map keys populated by individual protocol adapters.
const (
	ExtInRange          = "in_range"
	ExtLowerTick        = "lower_tick"
	ExtUpperTick        = "upper_tick"
	ExtFeeTier          = "fee_tier"
	ExtValidator        = "validator"
	ExtValidatorUptime  = "validator_uptime_pct"
	ExtUnclaimedRewards = "unclaimed_rewards_strk"
)

// Position is one open exposure, rebuilt fresh on every scan cycle. Debt,
// health factor, liquidation price and LLTV are absent for LP and staking
// positions.
type Position struct {
	Protocol         string         `json:"protocol"`
	Kind             PositionKind   `json:"position_type"`
	CollateralAsset  string         `json:"collateral_asset"`
	CollateralAmount float64        `json:"collateral_amount"`
	CollateralUSD    float64        `json:"collateral_usd"`
	DebtAsset        string         `json:"debt_asset,omitempty"`
	DebtAmount       *float64       `json:"debt_amount,omitempty"`
	DebtUSD          *float64       `json:"debt_usd,omitempty"`
	HealthFactor     *float64       `json:"health_factor,omitempty"`
	LiquidationPrice *float64       `json:"liquidation_price,omitempty"`
	CurrentPrice     float64        `json:"current_price"`
	LLTV             *float64       `json:"lltv,omitempty"`
	Extra            map[string]any `json:"extra,omitempty"`
}

// DistanceToLiquidationPct returns the price buffer before liquidation as a
// percentage of the current price, or false when either price is unknown.
func (p Position) DistanceToLiquidationPct() (float64, bool) {
	if p.LiquidationPrice == nil || *p.LiquidationPrice == 0 || p.CurrentPrice == 0 {
		return 0, false
	}
	return math.Abs(p.CurrentPrice-*p.LiquidationPrice) / p.CurrentPrice * 100, true
}

// DebtUSDValue returns the debt value in USD, zero when no debt is recorded.
func (p Position) DebtUSDValue() float64 {
	if p.DebtUSD == nil {
		return 0
	}
	return *p.DebtUSD
}

// InRange reports whether an LP position is inside its fee range. Positions
// without the extension flag default to in range.
func (p Position) InRange() bool {
	if v, ok := p.Extra[ExtInRange]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return true
}

// ValidatorUptimePct returns the staking validator uptime extension,
// defaulting to 100 when absent.
func (p Position) ValidatorUptimePct() float64 {
	if v, ok := p.Extra[ExtValidatorUptime]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return 100
}

// Float64Ptr is a convenience for building positions with optional fields.
func Float64Ptr(v float64) *float64 { return &v }
