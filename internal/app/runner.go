// Package app wires the guardian's components behind the CLI commands.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethereumdegen/stark-guardian/internal/audit"
	"github.com/ethereumdegen/stark-guardian/internal/chain"
	"github.com/ethereumdegen/stark-guardian/internal/config"
	gerr "github.com/ethereumdegen/stark-guardian/internal/errors"
	"github.com/ethereumdegen/stark-guardian/internal/executor"
	"github.com/ethereumdegen/stark-guardian/internal/guardian"
	"github.com/ethereumdegen/stark-guardian/internal/httpx"
	"github.com/ethereumdegen/stark-guardian/internal/logger"
	"github.com/ethereumdegen/stark-guardian/internal/notify"
	"github.com/ethereumdegen/stark-guardian/internal/oracle"
	"github.com/ethereumdegen/stark-guardian/internal/planner"
	"github.com/ethereumdegen/stark-guardian/internal/protocols/registry"
	"github.com/ethereumdegen/stark-guardian/internal/risk"
	"github.com/ethereumdegen/stark-guardian/internal/scanner"
	"github.com/ethereumdegen/stark-guardian/internal/version"
	"github.com/ethereumdegen/stark-guardian/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr, now: time.Now}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings

	http    *httpx.Client
	oracle  *oracle.Oracle
	scanner *scanner.Scanner
}

// Run executes the CLI and returns the process exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(r.stderr, "error: %v\n", err)
		return gerr.ExitCode(err)
	}
	return 0
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.Name,
		Short: "DeFi risk guardian for leveraged Starknet positions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return gerr.Wrap(gerr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			logger.Initialize(settings.LogLevel)

			s.http = httpx.New(settings.HTTPTimeout, settings.HTTPRetries)
			s.oracle = oracle.New(s.http, logger.ForComponent("oracle"))
			adapters := registry.Build(s.http, s.oracle, registry.Endpoints{
				Nostra:  settings.ProtoEndpoints["nostra"],
				ZkLend:  settings.ProtoEndpoints["zklend"],
				Ekubo:   settings.ProtoEndpoints["ekubo"],
				Staking: settings.ProtoEndpoints["strk-staking"],
			}, logger.ForComponent("protocols"))
			s.scanner = scanner.New(adapters, logger.ForComponent("scanner"))
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return gerr.Wrap(gerr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.flags.Wallet, "wallet", "", "Starknet wallet address (0x...)")
	cmd.PersistentFlags().StringSliceVar(&s.flags.Protocols, "protocols", nil, "Protocols to scan (default: all)")
	cmd.PersistentFlags().StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&s.flags.RPCURL, "rpc-url", "", "Starknet JSON-RPC endpoint")

	cmd.AddCommand(s.newScanCommand())
	cmd.AddCommand(s.newReportCommand())
	cmd.AddCommand(s.newRunCommand())
	cmd.AddCommand(s.newAuditCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func (s *runtimeState) requireWallet() (string, error) {
	if s.settings.Wallet != "" {
		return s.settings.Wallet, nil
	}
	if s.settings.WalletAddress != "" {
		return s.settings.WalletAddress, nil
	}
	return "", gerr.New(gerr.CodeUsage, "a wallet address is required (--wallet)")
}

func (s *runtimeState) newScanCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover open positions across protocols",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := s.requireWallet()
			if err != nil {
				return err
			}
			positions := s.scanner.ScanAll(cmd.Context(), wallet, s.settings.Protocols)

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), positions)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Found %d position(s) for %s\n", len(positions), wallet)
			for _, p := range positions {
				hf := "No HF (LP/Staking)"
				if p.HealthFactor != nil {
					hf = fmt.Sprintf("HF=%.2f", *p.HealthFactor)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  [%s] %s $%.0f  %s\n", p.Protocol, p.CollateralAsset, p.CollateralUSD, hf)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

func (s *runtimeState) newReportCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Score positions and print a risk report",
		RunE: func(cmd *cobra.Command, args []string) error {
			wallet, err := s.requireWallet()
			if err != nil {
				return err
			}
			positions := s.scanner.ScanAll(cmd.Context(), wallet, s.settings.Protocols)
			report := risk.BuildReport(wallet, positions, s.settings.PollInterval, s.runner.now())

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.SummaryText())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

func (s *runtimeState) newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the guardian poll loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			walletAddr, err := s.requireWallet()
			if err != nil {
				return err
			}
			log := logger.ForComponent("guardian")

			chainClient, err := chain.Dial(cmd.Context(), s.settings.RPCURL)
			if err != nil {
				return err
			}

			store, err := audit.OpenStore(s.settings.AuditStorePath, s.settings.AuditLockPath)
			if err != nil {
				return gerr.Wrap(gerr.CodeInternal, "open audit store", err)
			}
			defer store.Close()

			sender := s.settings.WalletAddress
			if sender == "" {
				sender = walletAddr
			}

			auditor := audit.NewLogger(store, chainClient, s.settings.AuditContract, sender, logger.ForComponent("audit"))
			notifier := notify.New(s.http, notify.Config{
				Channel:    s.settings.NotifyChannel,
				WebhookURL: s.settings.WebhookURL,
			}, logger.ForComponent("notify"))
			balances := wallet.NewFetcher(chainClient, s.oracle, s.settings.TokenContracts, logger.ForComponent("wallet"))
			exec := executor.New(chainClient, executor.Config{
				WalletAddress: sender,
				MaxGasGwei:    s.settings.MaxGasGwei,
				Contracts:     s.settings.ContractOverrides,
			}, logger.ForComponent("executor"))
			plan := planner.New(planner.Config{
				CollateralTopUpPct: s.settings.TopUpPct,
				EmergencyFullExit:  s.settings.EmergencyExit,
			})
			payer := guardian.NewX402Payer(s.http, s.settings.X402Endpoint, logger.ForComponent("x402"))

			g := guardian.New(guardian.Config{
				Wallet:         walletAddr,
				Protocols:      s.settings.Protocols,
				PollInterval:   s.settings.PollInterval,
				AlertHF:        s.settings.AlertHF,
				ActionHF:       s.settings.ActionHF,
				AutonomousMode: s.settings.AutonomousMode,
			}, s.scanner, plan, exec, balances, notifier, auditor, payer, log)

			err = g.RunLoop(cmd.Context(), s.flags.Once)
			if err == context.Canceled || err == context.DeadlineExceeded {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&s.flags.Once, "once", false, "Run one poll then exit")
	cmd.Flags().BoolVar(&s.flags.DryRun, "dry-run", false, "Alert only, never broadcast")
	cmd.Flags().StringVar(&s.flags.Interval, "interval", "", "Poll interval (e.g. 60s)")
	return cmd
}

func (s *runtimeState) newAuditCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := audit.OpenStore(s.settings.AuditStorePath, s.settings.AuditLockPath)
			if err != nil {
				return gerr.Wrap(gerr.CodeInternal, "open audit store", err)
			}
			defer store.Close()

			entries, err := store.List(s.settings.Wallet, limit)
			if err != nil {
				return gerr.Wrap(gerr.CodeInternal, "read audit log", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No audit log entries found.")
				return nil
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Audit Log (%d entries)\n", len(entries))
			for _, e := range entries {
				actionStr := "no actions"
				if n := len(e.ActionsTaken); n > 0 {
					actionStr = fmt.Sprintf("%d action(s)", n)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  [%-9s] Score:%3d/100  %s  id=%s\n",
					e.Timestamp.Format("2006-01-02 15:04"), e.PortfolioRiskCategory, e.PortfolioRiskScore, actionStr, e.ReportID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return gerr.Wrap(gerr.CodeInternal, "encode output", err)
	}
	return nil
}
