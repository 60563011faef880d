package health

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Reporter returns the current status.
type Reporter interface {
	Report(ctx context.Context) (Status, error)
}

// Scheduler runs a Checker on a cron schedule and keeps the latest status.
type Scheduler struct {
	checker *Checker
	cron    *cron.Cron
	spec    string
	timeout time.Duration
	logger  *zap.Logger
	latest  atomic.Pointer[Status]
}

// NewScheduler validates spec, a six-field cron expression with seconds.
func NewScheduler(ctx context.Context, checker *Checker, spec string, timeout time.Duration, logger *zap.Logger) (*Scheduler, error) {
	if checker == nil {
		return nil, fmt.Errorf("checker is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}

	s := &Scheduler{checker: checker, spec: spec, timeout: timeout, logger: logger}
	s.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})))
	if _, err := s.cron.AddFunc(spec, func() { s.run(ctx) }); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	status, err := s.checker.Check(rctx)
	if err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		return
	}
	s.latest.Store(&status)

	fields := []zap.Field{
		zap.Bool("synced", status.Synced),
		zap.String("health", status.Health),
		zap.Uint64("chain_head_block", status.ChainHeadBlock),
		zap.Uint64("latest_block", status.LatestBlock),
	}
	if status.FatalError != nil {
		fields = append(fields, zap.String("fatal_error", status.FatalError.Message), zap.String("handler", status.FatalError.Handler))
	}
	if status.OK() {
		s.logger.Info("health", fields...)
	} else {
		s.logger.Warn("health", fields...)
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("health scheduler started", zap.String("spec", s.spec))
}

// Stop waits for a running check to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Report returns the last scheduled result, or runs a check when none completed yet.
func (s *Scheduler) Report(ctx context.Context) (Status, error) {
	if status := s.latest.Load(); status != nil {
		return *status, nil
	}
	return s.checker.Check(ctx)
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
