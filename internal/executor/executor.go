// Package executor simulates and broadcasts protective actions. Every
// action is simulated first; a transaction that fails simulation or
// exceeds the gas ceiling is never broadcast.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereumdegen/stark-guardian/internal/chain"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/rs/zerolog"
)

// Simulator is the chain client slice the executor needs.
type Simulator interface {
	Simulate(ctx context.Context, tx chain.InvokeTx) (chain.SimulationResult, error)
	Broadcast(ctx context.Context, tx chain.InvokeTx) (string, error)
}

type Config struct {
	// WalletAddress is the sender account for protective transactions.
	WalletAddress string

	// MaxGasGwei aborts any action whose simulated fee exceeds it.
	MaxGasGwei float64

	// Contracts overrides protocol router addresses; empty entries fall
	// back to mainnet defaults.
	Contracts map[string]string
}

type Executor struct {
	chain Simulator
	cfg   Config
	log   zerolog.Logger
	now   func() time.Time
}

func New(chainClient Simulator, cfg Config, log zerolog.Logger) *Executor {
	if cfg.MaxGasGwei <= 0 {
		cfg.MaxGasGwei = 50
	}
	return &Executor{chain: chainClient, cfg: cfg, log: log, now: time.Now}
}

// Execute runs one planned action through simulate-then-broadcast. With
// dryRun set the action is simulated only and reported with a sentinel
// transaction hash.
func (e *Executor) Execute(ctx context.Context, action model.PlannedAction, dryRun bool) model.ExecutionResult {
	ts := e.now().UTC()

	if action.IsNoop() {
		return model.ExecutionResult{
			Success:   true,
			Action:    action,
			NewHF:     action.ExpectedNewHF,
			Simulated: false,
			Timestamp: ts,
		}
	}

	calldata, err := BuildCalldata(action, e.cfg.Contracts)
	if err != nil {
		return model.ExecutionResult{
			Success:   false,
			Action:    action,
			Error:     err.Error(),
			Simulated: false,
			Timestamp: ts,
		}
	}
	action.Calldata = calldata

	tx := chain.NewInvokeTx(e.cfg.WalletAddress, calldata, e.cfg.MaxGasGwei)
	sim, err := e.chain.Simulate(ctx, tx)
	if err != nil {
		return model.ExecutionResult{
			Success:   false,
			Action:    action,
			Error:     fmt.Sprintf("Simulation error: %v", err),
			Simulated: true,
			Timestamp: ts,
		}
	}
	if !sim.OK {
		return model.ExecutionResult{
			Success:     false,
			Action:      action,
			GasUsedGwei: sim.GasGwei,
			Error:       "Simulation failed: " + sim.Reason,
			Simulated:   true,
			Timestamp:   ts,
		}
	}
	if sim.GasGwei > e.cfg.MaxGasGwei {
		return model.ExecutionResult{
			Success:     false,
			Action:      action,
			GasUsedGwei: sim.GasGwei,
			Error:       fmt.Sprintf("Gas too high: %.1f GWEI > %.0f max", sim.GasGwei, e.cfg.MaxGasGwei),
			Simulated:   true,
			Timestamp:   ts,
		}
	}

	if dryRun {
		return model.ExecutionResult{
			Success:     true,
			Action:      action,
			TxHash:      model.DryRunTxHash,
			GasUsedGwei: sim.GasGwei,
			NewHF:       action.ExpectedNewHF,
			Simulated:   true,
			Timestamp:   ts,
		}
	}

	txHash, err := e.chain.Broadcast(ctx, tx)
	if err != nil {
		return model.ExecutionResult{
			Success:     false,
			Action:      action,
			GasUsedGwei: sim.GasGwei,
			Error:       fmt.Sprintf("Broadcast failed: %v", err),
			Simulated:   true,
			Timestamp:   ts,
		}
	}

	e.log.Info().
		Str("action", string(action.Kind)).
		Str("protocol", action.Protocol).
		Str("tx_hash", txHash).
		Float64("gas_gwei", sim.GasGwei).
		Msg("broadcast protective action")

	return model.ExecutionResult{
		Success:     true,
		Action:      action,
		TxHash:      txHash,
		GasUsedGwei: sim.GasGwei,
		NewHF:       action.ExpectedNewHF,
		Simulated:   true,
		Timestamp:   ts,
	}
}
