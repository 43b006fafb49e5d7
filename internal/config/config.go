// Package config loads service configuration from a YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"solana-vault-ledger/internal/address"
	"solana-vault-ledger/internal/roles"
)

// Storage backends
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendBadger     = "badger"
	BackendClickHouse = "clickhouse"
	BackendSQLite     = "sqlite"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig        `yaml:"server"`
	Storage     StorageConfig       `yaml:"storage"`
	Ledger      LedgerConfig        `yaml:"ledger"`
	Log         LogConfig           `yaml:"log"`
	Roles       map[string][]string `yaml:"roles"` // account -> role names
	Accountants []AccountantConfig  `yaml:"accountants"`
	Keeper      KeeperConfig        `yaml:"keeper"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Simulation enables the faucet and pnl endpoints.
	Simulation bool `yaml:"simulation"`
}

// StorageConfig selects the ledger and event backends.
type StorageConfig struct {
	Ledger        string `yaml:"ledger"` // memory, postgres, badger
	Events        string `yaml:"events"` // memory, clickhouse, sqlite
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	BadgerPath    string `yaml:"badger_path"`
	SQLitePath    string `yaml:"sqlite_path"`
	Migrate       bool   `yaml:"migrate"`
}

// LedgerConfig configures the vault engine.
type LedgerConfig struct {
	ProgramID     string `yaml:"program_id"`
	MaxStrategies int    `yaml:"max_strategies"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// AccountantConfig registers a fee accountant at startup.
type AccountantConfig struct {
	Key               string `yaml:"key"`
	Recipient         string `yaml:"recipient"`
	EntryFeeBps       uint16 `yaml:"entry_fee_bps"`
	PerformanceFeeBps uint16 `yaml:"performance_fee_bps"`
}

// KeeperConfig configures the reporting bot.
type KeeperConfig struct {
	ServerURL      string        `yaml:"server_url"`
	Account        string        `yaml:"account"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ReportSchedule and RebalanceSchedule are cron specs. Empty disables the job.
	ReportSchedule    string       `yaml:"report_schedule"`
	RebalanceSchedule string       `yaml:"rebalance_schedule"`
	Targets           []DebtTarget `yaml:"targets"`
}

// DebtTarget is a desired strategy debt the keeper converges to.
type DebtTarget struct {
	Vault    string `yaml:"vault"`
	Strategy string `yaml:"strategy"`
	Debt     uint64 `yaml:"debt"`
}

// Default returns a configuration that runs fully in memory.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Ledger:     BackendMemory,
			Events:     BackendMemory,
			BadgerPath: "data/ledger",
			SQLitePath: "data/events.db",
			Migrate:    true,
		},
		Ledger: LedgerConfig{
			ProgramID:     address.DefaultProgramID.String(),
			MaxStrategies: 10,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Keeper: KeeperConfig{
			ServerURL:      "http://localhost:8080",
			ReportSchedule: "@every 1m",
			RequestTimeout: 10 * time.Second,
		},
	}
}

// Load reads path (optional), then .env, then environment overrides, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getEnv("LEDGER_ADDR", c.Server.Addr)
	c.Server.Simulation = parseBoolEnv("LEDGER_SIMULATION", c.Server.Simulation)

	c.Storage.Ledger = getEnv("LEDGER_STORE", c.Storage.Ledger)
	c.Storage.Events = getEnv("LEDGER_EVENT_STORE", c.Storage.Events)
	c.Storage.PostgresDSN = getEnv("POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.ClickHouseDSN = getEnv("CLICKHOUSE_DSN", c.Storage.ClickHouseDSN)
	c.Storage.BadgerPath = getEnv("BADGER_PATH", c.Storage.BadgerPath)
	c.Storage.SQLitePath = getEnv("SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.Migrate = parseBoolEnv("LEDGER_MIGRATE", c.Storage.Migrate)

	c.Ledger.ProgramID = getEnv("LEDGER_PROGRAM_ID", c.Ledger.ProgramID)
	c.Ledger.MaxStrategies = parseIntEnv("LEDGER_MAX_STRATEGIES", c.Ledger.MaxStrategies)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Log.OutputFile = getEnv("LOG_FILE", c.Log.OutputFile)

	c.Keeper.ServerURL = getEnv("KEEPER_SERVER_URL", c.Keeper.ServerURL)
	c.Keeper.Account = getEnv("KEEPER_ACCOUNT", c.Keeper.Account)
	c.Keeper.ReportSchedule = getEnv("KEEPER_REPORT_SCHEDULE", c.Keeper.ReportSchedule)
	c.Keeper.RebalanceSchedule = getEnv("KEEPER_REBALANCE_SCHEDULE", c.Keeper.RebalanceSchedule)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Ledger {
	case BackendMemory, BackendBadger:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres ledger store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger store %q", c.Storage.Ledger))
	}
	if c.Storage.Ledger == BackendBadger && c.Storage.BadgerPath == "" {
		errs = append(errs, errors.New("storage.badger_path is required for the badger ledger store"))
	}

	switch c.Storage.Events {
	case BackendMemory:
	case BackendClickHouse:
		if c.Storage.ClickHouseDSN == "" {
			errs = append(errs, errors.New("storage.clickhouse_dsn is required for the clickhouse event store"))
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite event store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown event store %q", c.Storage.Events))
	}

	if _, err := address.Parse(c.Ledger.ProgramID); err != nil {
		errs = append(errs, fmt.Errorf("ledger.program_id: %w", err))
	}
	if c.Ledger.MaxStrategies < 0 {
		errs = append(errs, errors.New("ledger.max_strategies must not be negative"))
	}

	for account, names := range c.Roles {
		if _, err := address.Parse(account); err != nil {
			errs = append(errs, fmt.Errorf("roles: account %q: %w", account, err))
		}
		for _, name := range names {
			if _, err := roles.ParseRole(name); err != nil {
				errs = append(errs, fmt.Errorf("roles: account %q: %w", account, err))
			}
		}
	}

	seen := make(map[string]bool, len(c.Accountants))
	for _, a := range c.Accountants {
		switch {
		case a.Key == "":
			errs = append(errs, errors.New("accountants: key is required"))
		case seen[a.Key]:
			errs = append(errs, fmt.Errorf("accountants: duplicate key %q", a.Key))
		}
		seen[a.Key] = true
		if a.Recipient == "" {
			errs = append(errs, fmt.Errorf("accountants: %q has no recipient", a.Key))
		}
	}

	for _, t := range c.Keeper.Targets {
		if t.Vault == "" || t.Strategy == "" {
			errs = append(errs, errors.New("keeper.targets: vault and strategy are required"))
		}
	}

	return errors.Join(errs...)
}

// Grants returns the configured role grants, skipping entries Validate rejects.
func (c *Config) Grants() map[string][]roles.Role {
	out := make(map[string][]roles.Role, len(c.Roles))
	for account, names := range c.Roles {
		for _, name := range names {
			if r, err := roles.ParseRole(name); err == nil {
				out[account] = append(out[account], r)
			}
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
