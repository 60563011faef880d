package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityLedger/internal/chain"
	"liquidityLedger/internal/config"
	"liquidityLedger/internal/health"
	"liquidityLedger/internal/processor"
)

func runHealth(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadHealth(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var states processor.StateStore = &processor.FileStateStore{Path: cfg.StateFile}
	if cfg.StateFile == "" {
		b, err := openBackend(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		defer b.close()
		states = stateStore(b, "", cfg.StateName)
	}

	checker, err := health.NewChecker(states, chainClient, health.Options{
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBackoff,
		SyncTolerance:  cfg.SyncTolerance,
	}, logger)
	if err != nil {
		return err
	}

	if cfg.Schedule == "" && cfg.Listen == "" {
		status, err := checker.Check(ctx)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(cmd.OutOrStdout()).Encode(status); err != nil {
			return err
		}
		if !status.OK() {
			return fmt.Errorf("ledger not healthy: health=%s synced=%t", status.Health, status.Synced)
		}
		return nil
	}

	var reporter health.Reporter = checker
	if cfg.Schedule != "" {
		scheduler, err := health.NewScheduler(ctx, checker, cfg.Schedule, cfg.Timeout, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		reporter = scheduler
	}

	if cfg.Listen == "" {
		<-ctx.Done()
		return nil
	}

	server := &http.Server{Addr: cfg.Listen, Handler: health.NewRouter(reporter, logger)}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("health server listening", zap.String("addr", cfg.Listen))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
