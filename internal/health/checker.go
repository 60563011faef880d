package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/retry"
)

const (
	StatusHealthy = "healthy"
	StatusFailed  = "failed"
)

// StateReader loads processor progress. processor.StateStore satisfies it.
type StateReader interface {
	Load(ctx context.Context) (model.ProcessState, bool, error)
}

// HeadSource reports the chain head. *chain.Client satisfies it.
type HeadSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Status is the indexing status of one ledger deployment.
type Status struct {
	Synced         bool              `json:"synced"`
	Health         string            `json:"health"`
	FatalError     *model.FatalError `json:"fatal_error,omitempty"`
	ChainHeadBlock uint64            `json:"chain_head_block"`
	LatestBlock    uint64            `json:"latest_block"`
	CheckedAt      string            `json:"checked_at"`
}

// OK reports whether the ledger is healthy and caught up.
func (s Status) OK() bool {
	return s.Health == StatusHealthy && s.Synced
}

// Options configures a Checker.
type Options struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	// SyncTolerance is how many blocks the ledger may trail the head and still count as synced.
	SyncTolerance uint64
}

// Checker compares processor progress with the chain head.
type Checker struct {
	state  StateReader
	head   HeadSource
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

func NewChecker(state StateReader, head HeadSource, opts Options, logger *zap.Logger) (*Checker, error) {
	if state == nil {
		return nil, fmt.Errorf("state reader is nil")
	}
	if head == nil {
		return nil, fmt.Errorf("head source is nil")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{state: state, head: head, opts: opts, logger: logger, now: time.Now}, nil
}

// Check reads the state and the head, retrying transient failures of either with backoff.
func (c *Checker) Check(ctx context.Context) (Status, error) {
	var (
		state model.ProcessState
		head  uint64
	)
	err := retry.Do(ctx, c.opts.MaxRetries, c.opts.RetryBaseDelay, func(ctx context.Context) error {
		var err error
		if state, _, err = c.state.Load(ctx); err != nil {
			c.logger.Warn("health state load failed", zap.Error(err))
			return err
		}
		if head, err = c.head.LatestBlockNumber(ctx); err != nil {
			c.logger.Warn("health head fetch failed", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return Status{}, fmt.Errorf("health check: %w", err)
	}

	status := Status{
		Health:         StatusHealthy,
		FatalError:     state.FatalError,
		ChainHeadBlock: head,
		CheckedAt:      c.now().UTC().Format(time.RFC3339),
	}
	if state.LastApplied != nil {
		status.LatestBlock = state.LastApplied.BlockNumber
	}
	if state.FatalError != nil {
		status.Health = StatusFailed
	}
	status.Synced = status.LatestBlock+c.opts.SyncTolerance >= head
	return status, nil
}

// Report runs a fresh check.
func (c *Checker) Report(ctx context.Context) (Status, error) {
	return c.Check(ctx)
}
