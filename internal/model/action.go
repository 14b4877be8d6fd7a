package model

import "time"

// ActionKind names the protective transaction a planner can choose. Exactly
// one kind is chosen per position per cycle.
type ActionKind string

const (
	ActionRepayDebt     ActionKind = "repay_debt"
	ActionAddCollateral ActionKind = "add_collateral"
	ActionPartialExit   ActionKind = "partial_exit"
	ActionFullExit      ActionKind = "full_exit"
	ActionRecenterLP    ActionKind = "recenter_lp"
	ActionWithdrawYield ActionKind = "withdraw_yield"
	ActionNoop          ActionKind = "noop"
)

// PlannedAction is one candidate protective transaction. Calldata is filled
// by the protocol's calldata builder just before simulation.
type PlannedAction struct {
	Kind          ActionKind `json:"action_type"`
	Protocol      string     `json:"protocol"`
	Asset         string     `json:"asset"`
	Amount        float64    `json:"amount"`
	AmountUSD     float64    `json:"amount_usd"`
	ExpectedNewHF *float64   `json:"expected_new_hf,omitempty"`
	Rationale     string     `json:"rationale"`
	Calldata      []string   `json:"calldata,omitempty"`
}

// IsNoop reports whether the action carries nothing to execute.
func (a PlannedAction) IsNoop() bool { return a.Kind == ActionNoop }

// DryRunTxHash is the sentinel hash reported for a successful dry-run
// simulation that was never broadcast.
const DryRunTxHash = "DRY_RUN"

// ExecutionResult is the outcome of attempting one planned action. Created
// by the executor, consumed by the guardian loop; never mutated afterwards.
type ExecutionResult struct {
	Success     bool          `json:"success"`
	Action      PlannedAction `json:"action"`
	TxHash      string        `json:"tx_hash,omitempty"`
	GasUsedGwei float64       `json:"gas_used_gwei"`
	NewHF       *float64      `json:"actual_new_hf,omitempty"`
	Error       string        `json:"error,omitempty"`
	Simulated   bool          `json:"simulated"`
	Timestamp   time.Time     `json:"timestamp"`
}
