package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "vaultctl",
		Short:        "Pooled staking vault with tiered withdrawal lock and tax",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("state-backend", "file", "state backend (file, leveldb, postgres)")
	flags.String("state-path", "./data/sushibar.json", "state file or LevelDB directory")
	flags.String("state-name", "default", "snapshot name in Postgres")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("events-out", "./data/events.jsonl", "event journal JSONL path (empty disables)")
	flags.String("metrics-out", "", "Prometheus textfile path (empty disables)")
	flags.String("clock", "system", "clock source (system, chain)")
	flags.String("rpc", "", "JSON-RPC URL")
	flags.Int("max-retries", 5, "maximum RPC retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial RPC retry backoff")
	flags.Uint64("tax-4d-bps", 5000, "tax in basis points between 4 and 6 days")
	flags.Uint64("tax-6d-bps", 2500, "tax in basis points between 6 and 8 days")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newDeployCmd(),
		newMintCmd(),
		newApproveCmd(),
		newTransferCmd(),
		newEnterCmd(),
		newLeaveCmd(),
		newSyncCmd(),
		newBalanceCmd(),
		newInfoCmd(),
		newAdvanceCmd(),
		newHistoryCmd(),
		newVerifyCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
