// Package config resolves guardian settings from defaults, a YAML config
// file, environment variables and command-line flags, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GlobalFlags holds values bound to the root command's persistent flags.
type GlobalFlags struct {
	ConfigPath string
	Wallet     string
	Protocols  []string
	DryRun     bool
	Once       bool
	LogLevel   string
	Interval   string
	RPCURL     string
}

type Settings struct {
	Wallet string
	RPCURL string

	PollInterval      time.Duration
	AlertHF           float64
	ActionHF          float64
	MaxGasGwei        float64
	TopUpPct          float64
	EmergencyExit     bool
	AutonomousMode    bool
	Protocols         []string
	NotifyChannel     string
	WebhookURL        string
	X402Endpoint      string
	WalletAddress     string
	AuditContract     string
	AuditStorePath    string
	AuditLockPath     string
	HTTPTimeout       time.Duration
	HTTPRetries       int
	LogLevel          string
	TokenContracts    map[string]string
	ProtoEndpoints    map[string]string
	ContractOverrides map[string]string
}

type fileConfig struct {
	Guardian struct {
		PollIntervalSeconds *int     `yaml:"poll_interval_seconds"`
		AlertThresholdHF    *float64 `yaml:"alert_threshold_health_factor"`
		ActionThresholdHF   *float64 `yaml:"action_threshold_health_factor"`
		MaxGasPerActionGwei *float64 `yaml:"max_gas_per_action_gwei"`
		CollateralTopUpPct  *float64 `yaml:"collateral_top_up_pct"`
		EmergencyFullExit   *bool    `yaml:"emergency_full_exit"`
		AutonomousMode      *bool    `yaml:"autonomous_mode"`
		NotificationChannel string   `yaml:"notification_channel"`
		WebhookURL          string   `yaml:"webhook_url"`
		Protocols           []string `yaml:"protocols"`
	} `yaml:"guardian"`
	Chain struct {
		RPCURL        string            `yaml:"rpc_url"`
		Wallet        string            `yaml:"wallet"`
		AuditContract string            `yaml:"audit_contract"`
		Tokens        map[string]string `yaml:"tokens"`
		Contracts     map[string]string `yaml:"contracts"`
	} `yaml:"chain"`
	Endpoints map[string]string `yaml:"endpoints"`
	Audit     struct {
		StorePath string `yaml:"store_path"`
		LockPath  string `yaml:"lock_path"`
	} `yaml:"audit"`
	HTTP struct {
		Timeout string `yaml:"timeout"`
		Retries *int   `yaml:"retries"`
	} `yaml:"http"`
	LogLevel string `yaml:"log_level"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.PollInterval <= 0 {
		settings.PollInterval = time.Minute
	}
	if settings.HTTPTimeout <= 0 {
		settings.HTTPTimeout = 10 * time.Second
	}
	if settings.HTTPRetries < 0 {
		settings.HTTPRetries = 0
	}
	if settings.MaxGasGwei <= 0 {
		settings.MaxGasGwei = 50
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultAuditPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		PollInterval:   time.Minute,
		AlertHF:        1.4,
		ActionHF:       1.2,
		MaxGasGwei:     50,
		TopUpPct:       20,
		AutonomousMode: true,
		Protocols:      []string{"nostra", "zklend", "ekubo", "strk-staking"},
		NotifyChannel:  "console",
		AuditStorePath: storePath,
		AuditLockPath:  lockPath,
		HTTPTimeout:    10 * time.Second,
		HTTPRetries:    2,
		LogLevel:       "info",
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "guardian", "config.yaml"), nil
}

func defaultAuditPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "guardian")
	return filepath.Join(dir, "audit.db"), filepath.Join(dir, "audit.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	g := cfg.Guardian
	if g.PollIntervalSeconds != nil {
		settings.PollInterval = time.Duration(*g.PollIntervalSeconds) * time.Second
	}
	if g.AlertThresholdHF != nil {
		settings.AlertHF = *g.AlertThresholdHF
	}
	if g.ActionThresholdHF != nil {
		settings.ActionHF = *g.ActionThresholdHF
	}
	if g.MaxGasPerActionGwei != nil {
		settings.MaxGasGwei = *g.MaxGasPerActionGwei
	}
	if g.CollateralTopUpPct != nil {
		settings.TopUpPct = *g.CollateralTopUpPct
	}
	if g.EmergencyFullExit != nil {
		settings.EmergencyExit = *g.EmergencyFullExit
	}
	if g.AutonomousMode != nil {
		settings.AutonomousMode = *g.AutonomousMode
	}
	if g.NotificationChannel != "" {
		settings.NotifyChannel = strings.ToLower(g.NotificationChannel)
	}
	if g.WebhookURL != "" {
		settings.WebhookURL = g.WebhookURL
	}
	if len(g.Protocols) > 0 {
		settings.Protocols = g.Protocols
	}

	if cfg.Chain.RPCURL != "" {
		settings.RPCURL = cfg.Chain.RPCURL
	}
	if cfg.Chain.Wallet != "" {
		settings.WalletAddress = cfg.Chain.Wallet
	}
	if cfg.Chain.AuditContract != "" {
		settings.AuditContract = cfg.Chain.AuditContract
	}
	if len(cfg.Chain.Tokens) > 0 {
		settings.TokenContracts = cfg.Chain.Tokens
	}
	if len(cfg.Chain.Contracts) > 0 {
		settings.ContractOverrides = cfg.Chain.Contracts
	}
	if len(cfg.Endpoints) > 0 {
		settings.ProtoEndpoints = cfg.Endpoints
	}
	if cfg.Audit.StorePath != "" {
		settings.AuditStorePath = cfg.Audit.StorePath
	}
	if cfg.Audit.LockPath != "" {
		settings.AuditLockPath = cfg.Audit.LockPath
	}
	if cfg.HTTP.Timeout != "" {
		d, err := time.ParseDuration(cfg.HTTP.Timeout)
		if err != nil {
			return fmt.Errorf("config http.timeout: %w", err)
		}
		settings.HTTPTimeout = d
	}
	if cfg.HTTP.Retries != nil {
		settings.HTTPRetries = *cfg.HTTP.Retries
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = strings.ToLower(cfg.LogLevel)
	}
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("STARKNET_RPC"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("STARKNET_WALLET"); v != "" {
		settings.WalletAddress = v
	}
	if v := os.Getenv("GUARDIAN_MAX_GAS_GWEI"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.MaxGasGwei = f
		}
	}
	if v := os.Getenv("GUARDIAN_COLLATERAL_TOP_UP_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.TopUpPct = f
		}
	}
	if v := os.Getenv("GUARDIAN_EMERGENCY_FULL_EXIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.EmergencyExit = b
		}
	}
	if v := os.Getenv("GUARDIAN_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.PollInterval = d
		}
	}
	if v := os.Getenv("GUARDIAN_AUDIT_CONTRACT"); v != "" {
		settings.AuditContract = v
	}
	if v := os.Getenv("GUARDIAN_AUDIT_STORE_PATH"); v != "" {
		settings.AuditStorePath = v
	}
	if v := os.Getenv("GUARDIAN_AUDIT_LOCK_PATH"); v != "" {
		settings.AuditLockPath = v
	}
	if v := os.Getenv("GUARDIAN_WEBHOOK_URL"); v != "" {
		settings.WebhookURL = v
	}
	if v := os.Getenv("GUARDIAN_NOTIFY_CHANNEL"); v != "" {
		settings.NotifyChannel = strings.ToLower(v)
	}
	if v := os.Getenv("X402_POLL_ENDPOINT"); v != "" {
		settings.X402Endpoint = v
	}
	if v := os.Getenv("GUARDIAN_LOG_LEVEL"); v != "" {
		settings.LogLevel = strings.ToLower(v)
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if strings.TrimSpace(flags.Wallet) != "" {
		settings.Wallet = strings.TrimSpace(flags.Wallet)
	}
	if len(flags.Protocols) > 0 {
		settings.Protocols = flags.Protocols
	}
	if flags.DryRun {
		settings.AutonomousMode = false
	}
	if flags.Interval != "" {
		d, err := time.ParseDuration(flags.Interval)
		if err != nil {
			return fmt.Errorf("parse --interval: %w", err)
		}
		settings.PollInterval = d
	}
	if flags.RPCURL != "" {
		settings.RPCURL = flags.RPCURL
	}
	if flags.LogLevel != "" {
		settings.LogLevel = strings.ToLower(flags.LogLevel)
	}
	return nil
}
