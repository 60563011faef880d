package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liquidityLedger/internal/chain"
	"liquidityLedger/internal/config"
	"liquidityLedger/internal/indexer"
	"liquidityLedger/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Uniswap V2 liquidity ledger",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return config.LoadEnvFile(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "env file loaded before config resolution")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch factory and pair logs into JSONL",
		RunE:  runIndexer,
	}

	runCmd.Flags().String("rpc", "", "RPC URL")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().Uint64("confirmations", 0, "blocks behind the head to stop at when --to is 0")
	runCmd.Flags().String("factory", "", "V2 factory address")
	runCmd.Flags().StringSlice("pair", nil, "pair addresses to follow (comma-separated)")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), defaults to the V2 event topics")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed V2 events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("rpc", "", "RPC URL (needed for --include-tx-gas)")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().Bool("include-tx-gas", false, "add gas used and price from transaction receipts")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Apply typed events to the ledger entity store",
		RunE:  runProcess,
	}

	processCmd.Flags().String("rpc", "", "RPC URL for token metadata and LP balances")
	processCmd.Flags().String("in", "./data/typed_events.jsonl", "input typed events JSONL")
	processCmd.Flags().String("factory", "", "V2 factory address")
	processCmd.Flags().String("native-token", "", "native asset sentinel token address")
	processCmd.Flags().String("store", "postgres", "entity store backend (postgres, redis, memory)")
	processCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	processCmd.Flags().String("redis-addr", "", "Redis address")
	processCmd.Flags().String("redis-password", "", "Redis password")
	processCmd.Flags().Int("redis-db", 0, "Redis database")
	processCmd.Flags().String("redis-prefix", "ledger", "Redis key prefix")
	processCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	processCmd.Flags().String("state-name", "ledger", "progress state name in the store")
	processCmd.Flags().Uint64("recompute-from-block", 0, "replay every event from this block, clearing a recorded fatal error")
	processCmd.Flags().Int("save-every", 1000, "applied events between progress saves")
	processCmd.Flags().Int("max-retries", 3, "retries of transient metadata calls")
	processCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial metadata retry backoff")
	processCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(processCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Report indexing status against the chain head",
		RunE:  runHealth,
	}

	healthCmd.Flags().String("rpc", "", "RPC URL")
	healthCmd.Flags().String("store", "postgres", "state backend (postgres, redis)")
	healthCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	healthCmd.Flags().String("redis-addr", "", "Redis address")
	healthCmd.Flags().String("redis-password", "", "Redis password")
	healthCmd.Flags().Int("redis-db", 0, "Redis database")
	healthCmd.Flags().String("redis-prefix", "ledger", "Redis key prefix")
	healthCmd.Flags().String("state-file", "", "read progress from a local state file instead")
	healthCmd.Flags().String("state-name", "ledger", "progress state name in the store")
	healthCmd.Flags().String("schedule", "", "cron expression with seconds, e.g. */30 * * * * *")
	healthCmd.Flags().String("listen", "", "serve /health on this address, e.g. :3002")
	healthCmd.Flags().Uint64("sync-tolerance", 5, "blocks the ledger may trail the head and count as synced")
	healthCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	healthCmd.Flags().Duration("retry-backoff", time.Second, "initial retry backoff")
	healthCmd.Flags().Duration("timeout", 25*time.Second, "timeout of one scheduled check")
	healthCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(healthCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := indexer.FilterAddresses(cfg.Factory, cfg.Pairs)
	if err != nil {
		return err
	}

	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}
	if len(topic0) == 0 {
		if topic0, err = indexer.DefaultTopic0(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Confirmations:     cfg.Confirmations,
		Factory:           addresses[0],
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, storage.NewJsonlStorage(cfg.Out), logger)

	logger.Info("indexer start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.String("factory", cfg.Factory),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
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

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
