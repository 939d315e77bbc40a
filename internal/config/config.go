package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendFile     = "file"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"

	ClockSystem = "system"
	ClockChain  = "chain"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	StateBackend  string
	StatePath     string
	StateName     string
	PGDSN         string
	EventsOut     string
	MetricsOut    string
	HistoryOut    string
	HistoryErrors string
	Deployer      string
	RewardPool    string
	Token         string
	Vault         string
	Tax4dBps      uint64
	Tax6dBps      uint64
	Clock         string
	RPCURL        string
	MaxRetries    int
	RetryBackoff  time.Duration
	LogLevel      string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SUSHIBAR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("state-backend", BackendFile)
	v.SetDefault("state-path", "./data/sushibar.json")
	v.SetDefault("state-name", "default")
	v.SetDefault("events-out", "./data/events.jsonl")
	v.SetDefault("history-out", "./data/typed_events.jsonl")
	v.SetDefault("history-errors", "./data/decode_errors.jsonl")
	v.SetDefault("deployer", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	v.SetDefault("reward-pool", "0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	v.SetDefault("tax-4d-bps", uint64(5000))
	v.SetDefault("tax-6d-bps", uint64(2500))
	v.SetDefault("clock", ClockSystem)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		StateBackend:  strings.ToLower(v.GetString("state-backend")),
		StatePath:     v.GetString("state-path"),
		StateName:     v.GetString("state-name"),
		PGDSN:         v.GetString("pg-dsn"),
		EventsOut:     v.GetString("events-out"),
		MetricsOut:    v.GetString("metrics-out"),
		HistoryOut:    v.GetString("history-out"),
		HistoryErrors: v.GetString("history-errors"),
		Deployer:      v.GetString("deployer"),
		RewardPool:    v.GetString("reward-pool"),
		Token:         v.GetString("token"),
		Vault:         v.GetString("vault"),
		Tax4dBps:      v.GetUint64("tax-4d-bps"),
		Tax6dBps:      v.GetUint64("tax-6d-bps"),
		Clock:         strings.ToLower(v.GetString("clock")),
		RPCURL:        v.GetString("rpc"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		LogLevel:      v.GetString("log-level"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that do not depend on the command being run.
func (c Config) Validate() error {
	switch c.StateBackend {
	case BackendFile, BackendLevelDB:
		if c.StatePath == "" {
			return fmt.Errorf("state path is required for %s backend", c.StateBackend)
		}
	case BackendPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required for postgres backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.StateBackend)
	}

	switch c.Clock {
	case ClockSystem:
	case ClockChain:
		if c.RPCURL == "" {
			return fmt.Errorf("rpc url is required for chain clock")
		}
	default:
		return fmt.Errorf("unknown clock %q", c.Clock)
	}

	if c.Tax4dBps > 10000 || c.Tax6dBps > 10000 {
		return fmt.Errorf("tax basis points must be at most 10000")
	}
	if _, err := ParseAddress(c.RewardPool); err != nil {
		return fmt.Errorf("reward pool: %w", err)
	}
	if _, err := ParseAddress(c.Deployer); err != nil {
		return fmt.Errorf("deployer: %w", err)
	}
	return nil
}
