// Package guardian orchestrates the poll cycle: scan positions, score
// them, alert, take protective actions, and record the audit trail.
package guardian

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereumdegen/stark-guardian/internal/audit"
	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/ethereumdegen/stark-guardian/internal/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// paymentRetryPause is how long the loop waits after a failed poll payment
// before trying again.
const paymentRetryPause = 60 * time.Second

type Scanner interface {
	ScanAll(ctx context.Context, wallet string, protocols []string) []model.Position
}

type Planner interface {
	Plan(sp model.ScoredPosition, walletBalancesUSD map[string]float64) model.PlannedAction
}

type ActionExecutor interface {
	Execute(ctx context.Context, action model.PlannedAction, dryRun bool) model.ExecutionResult
}

type BalanceFetcher interface {
	BalancesUSD(ctx context.Context, wallet string) map[string]float64
}

type Notifier interface {
	Send(ctx context.Context, message string)
}

type AuditRecorder interface {
	Record(ctx context.Context, report model.RiskReport) (audit.Entry, error)
}

type Config struct {
	Wallet         string
	Protocols      []string
	PollInterval   time.Duration
	AlertHF        float64
	ActionHF       float64
	AutonomousMode bool
}

// Guardian runs the protection loop for one wallet.
type Guardian struct {
	cfg      Config
	scanner  Scanner
	planner  Planner
	executor ActionExecutor
	balances BalanceFetcher
	notifier Notifier
	auditor  AuditRecorder
	payer    PollFeePayer
	log      zerolog.Logger
	now      func() time.Time
}

func New(cfg Config, scanner Scanner, planner Planner, executor ActionExecutor,
	balances BalanceFetcher, notifier Notifier, auditor AuditRecorder,
	payer PollFeePayer, log zerolog.Logger) *Guardian {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.AlertHF <= 0 {
		cfg.AlertHF = 1.4
	}
	if cfg.ActionHF <= 0 {
		cfg.ActionHF = 1.2
	}
	return &Guardian{
		cfg:      cfg,
		scanner:  scanner,
		planner:  planner,
		executor: executor,
		balances: balances,
		notifier: notifier,
		auditor:  auditor,
		payer:    payer,
		log:      log,
		now:      time.Now,
	}
}

// RunCycle executes one complete guardian cycle and returns the report.
// A panic anywhere in the cycle is recovered and returned as an error so
// one bad cycle never takes the loop down.
func (g *Guardian) RunCycle(ctx context.Context) (report model.RiskReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Interface("panic", r).Msg("guardian cycle panicked")
			err = gerr.New(gerr.CodeInternal, fmt.Sprintf("guardian cycle panicked: %v", r))
		}
	}()

	positions := g.scanner.ScanAll(ctx, g.cfg.Wallet, g.cfg.Protocols)
	if len(positions) == 0 {
		g.log.Info().Str("wallet", shorten(g.cfg.Wallet)).Msg("no positions found")
	}

	report = risk.BuildReport(g.cfg.Wallet, positions, g.cfg.PollInterval, g.now())

	if g.needsAlert(report) {
		g.notifier.Send(ctx, report.SummaryText())
	} else {
		g.log.Info().
			Int("portfolio_score", report.PortfolioRiskScore).
			Str("category", string(report.PortfolioRiskCategory)).
			Msg("poll complete, all safe")
	}

	if g.needsAction(report) {
		// Only successful actions become part of the report; failures are
		// still notified via the action summary.
		for _, r := range g.protect(ctx, report) {
			if r.Success {
				report.ActionsTaken = append(report.ActionsTaken, r)
			}
		}
	}

	if _, err := g.auditor.Record(ctx, report); err != nil {
		g.log.Error().Err(err).Msg("audit record failed")
	}
	return report, nil
}

// needsAlert fires when any position's health factor is below the alert
// threshold or the portfolio as a whole has left the watch band.
func (g *Guardian) needsAlert(report model.RiskReport) bool {
	for _, sp := range report.Positions {
		if hf := sp.Position.HealthFactor; hf != nil && *hf < g.cfg.AlertHF {
			return true
		}
	}
	return report.PortfolioRiskScore >= 56
}

// needsAction fires in autonomous mode when a health factor crosses the
// action threshold, and regardless of mode when any position is critical.
func (g *Guardian) needsAction(report model.RiskReport) bool {
	if g.cfg.AutonomousMode {
		for _, sp := range report.Positions {
			if hf := sp.Position.HealthFactor; hf != nil && *hf < g.cfg.ActionHF {
				return true
			}
		}
	}
	return len(report.CriticalPositions()) > 0
}

// protect plans and executes a protective action for each critical
// position. Outside autonomous mode everything runs as a dry run.
func (g *Guardian) protect(ctx context.Context, report model.RiskReport) []model.ExecutionResult {
	targets := report.CriticalPositions()
	if len(targets) == 0 {
		g.log.Info().Msg("no critical positions, no actions needed")
		return nil
	}

	balances := g.balances.BalancesUSD(ctx, g.cfg.Wallet)
	dryRun := !g.cfg.AutonomousMode

	results := make([]model.ExecutionResult, 0, len(targets))
	for _, sp := range targets {
		action := g.planner.Plan(sp, balances)
		g.log.Info().
			Str("action", string(action.Kind)).
			Str("protocol", sp.Position.Protocol).
			Str("rationale", action.Rationale).
			Msg("planning protective action")

		result := g.executor.Execute(ctx, action, dryRun)
		results = append(results, result)

		if result.Success {
			g.log.Info().Str("tx_hash", result.TxHash).Float64("gas_gwei", result.GasUsedGwei).Msg("action succeeded")
		} else {
			g.log.Error().Str("error", result.Error).Msg("action failed")
		}
	}

	g.notifier.Send(ctx, actionSummary(results))
	return results
}

func actionSummary(results []model.ExecutionResult) string {
	var b strings.Builder
	b.WriteString("Guardian Actions Taken:\n")
	for _, r := range results {
		a := r.Action
		if r.Success {
			hf := "n/a"
			if a.ExpectedNewHF != nil {
				hf = fmt.Sprintf("%.2f", *a.ExpectedNewHF)
			}
			fmt.Fprintf(&b, "OK %s on %s: $%.0f %s -> New HF: %s  Tx: %s\n",
				a.Kind, a.Protocol, a.AmountUSD, a.Asset, hf, r.TxHash)
		} else {
			fmt.Fprintf(&b, "FAILED %s on %s: %s\n", a.Kind, a.Protocol, r.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RunLoop polls until ctx is cancelled. The first cycle runs immediately.
// With once set, a single cycle runs and the loop returns.
func (g *Guardian) RunLoop(ctx context.Context, once bool) error {
	g.log.Info().
		Str("wallet", shorten(g.cfg.Wallet)).
		Dur("poll_interval", g.cfg.PollInterval).
		Bool("autonomous", g.cfg.AutonomousMode).
		Msg("guardian starting")

	iteration := 0
	for {
		iteration++
		cycleID := uuid.New().String()
		g.log.Info().Int("poll", iteration).Str("cycle_id", cycleID).Msg("starting poll cycle")

		if g.payer != nil && !g.payer.PayPollFee(ctx, g.cfg.Wallet) {
			g.log.Warn().Dur("pause", paymentRetryPause).Msg("poll payment failed, pausing before retry")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(paymentRetryPause):
			}
			continue
		}

		if _, err := g.RunCycle(ctx); err != nil {
			g.log.Error().Err(err).Msg("poll cycle failed")
			g.notifier.Send(ctx, fmt.Sprintf("Guardian poll error: %v", err))
		}

		if once {
			return nil
		}

		select {
		case <-ctx.Done():
			g.log.Info().Msg("guardian stopped")
			return ctx.Err()
		case <-time.After(g.cfg.PollInterval):
		}
	}
}

func shorten(wallet string) string {
	if len(wallet) <= 12 {
		return wallet
	}
	return wallet[:12] + "..."
}
