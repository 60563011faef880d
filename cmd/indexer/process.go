package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityLedger/internal/chain"
	"liquidityLedger/internal/config"
	"liquidityLedger/internal/dex"
	"liquidityLedger/internal/ledger"
	"liquidityLedger/internal/processor"
)

func runProcess(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProcess(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	b, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer b.close()

	meta, err := dex.NewTokenMetadata(chainClient, dex.MetadataOptions{
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return err
	}

	l, err := ledger.New(cfg.Ledger, b.entities, meta, logger)
	if err != nil {
		return err
	}

	proc := processor.NewProcessor(processor.Config{
		Recompute:          cfg.Recompute,
		RecomputeFromBlock: cfg.RecomputeFromBlock,
		SaveEvery:          cfg.SaveEvery,
		StateStore:         stateStore(b, cfg.StateFile, cfg.StateName),
	}, l, logger)

	logger.Info("process start",
		zap.String("in", cfg.In),
		zap.String("store", cfg.Store.Backend),
		zap.String("pg_dsn", redactDSN(cfg.Store.PGDSN)),
		zap.String("factory", cfg.Ledger.FactoryAddress),
		zap.String("state_file", cfg.StateFile),
		zap.String("state_name", cfg.StateName),
		zap.Bool("recompute", cfg.Recompute),
		zap.Uint64("recompute_from_block", cfg.RecomputeFromBlock),
	)

	_, err = proc.Run(ctx, cfg.In)
	return err
}
