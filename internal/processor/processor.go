package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidityLedger/internal/ledger"
	"liquidityLedger/internal/model"
	"liquidityLedger/internal/storage"
)

// ErrHalted means a previous run recorded a fatal error. Recompute clears it.
var ErrHalted = errors.New("processor halted by fatal error")

// Applier applies one ledger event. *ledger.Ledger implements it.
type Applier interface {
	Apply(ctx context.Context, ev ledger.Event) (ledger.Outcome, error)
}

// Config controls replay behavior.
type Config struct {
	// Recompute replays every event from RecomputeFromBlock, ignoring saved progress. Replay is
	// safe because already-applied events are no-ops.
	Recompute          bool
	RecomputeFromBlock uint64
	// SaveEvery is the number of applied events between state saves.
	SaveEvery  int
	StateStore StateStore
}

// Stats counts what a run did.
type Stats struct {
	Total   int
	Applied int
	Skipped int
	Dropped int
	Failed  int
}

// Processor replays a typed events JSONL file through the ledger in file order.
type Processor struct {
	cfg     Config
	applier Applier
	logger  *zap.Logger
	now     func() time.Time
}

func NewProcessor(cfg Config, applier Applier, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = 1000
	}
	if cfg.StateStore == nil {
		cfg.StateStore = &FileStateStore{}
	}
	return &Processor{cfg: cfg, applier: applier, logger: logger, now: time.Now}
}

// Run applies every event of inputPath not yet covered by the saved state. A fatal ledger error
// is recorded in the state and returned; later runs refuse to continue until a recompute.
func (p *Processor) Run(ctx context.Context, inputPath string) (Stats, error) {
	var stats Stats
	if p.applier == nil {
		return stats, fmt.Errorf("applier is nil")
	}

	state, _, err := p.cfg.StateStore.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load state: %w", err)
	}
	if p.cfg.Recompute {
		state.LastApplied = nil
		state.FatalError = nil
		p.logger.Info("recompute", zap.Uint64("from_block", p.cfg.RecomputeFromBlock))
	}
	if state.FatalError != nil {
		return stats, fmt.Errorf("%w: %s at %s", ErrHalted, state.FatalError.Message, state.FatalError.Position)
	}

	var (
		last        *model.EventPosition
		sinceSave   int
		resumeAfter = state.LastApplied
	)
	if resumeAfter != nil {
		p.logger.Info("resume", zap.Stringer("last_applied", *resumeAfter))
	}

	err = storage.ScanJSONL(inputPath, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			p.logger.Warn("decode typed event", zap.Error(err))
			return nil
		}

		pos := record.Position()
		if last != nil {
			switch pos.Compare(*last) {
			case 0:
				stats.Skipped++
				return nil
			case -1:
				return fmt.Errorf("input out of order: %s after %s", pos, *last)
			}
		}
		last = &pos

		if p.cfg.Recompute && record.BlockNumber < p.cfg.RecomputeFromBlock {
			stats.Skipped++
			return nil
		}
		if resumeAfter != nil && pos.Compare(*resumeAfter) <= 0 {
			stats.Skipped++
			return nil
		}

		if err := p.apply(ctx, record, &stats); err != nil {
			state.FatalError = p.fatalError(record, err)
			if saveErr := p.saveState(ctx, &state); saveErr != nil {
				p.logger.Error("save fatal state", zap.Error(saveErr))
			}
			return err
		}

		state.LastApplied = &pos
		sinceSave++
		if sinceSave >= p.cfg.SaveEvery {
			sinceSave = 0
			return p.saveState(ctx, &state)
		}
		return nil
	})
	if err != nil {
		if state.FatalError == nil {
			// keep the progress made before the interruption
			if saveErr := p.saveState(context.WithoutCancel(ctx), &state); saveErr != nil {
				p.logger.Error("save state", zap.Error(saveErr))
			}
		}
		return stats, err
	}

	if err := p.saveState(ctx, &state); err != nil {
		return stats, err
	}

	p.logger.Info("process complete",
		zap.Int("total", stats.Total),
		zap.Int("applied", stats.Applied),
		zap.Int("skipped", stats.Skipped),
		zap.Int("dropped", stats.Dropped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (p *Processor) apply(ctx context.Context, record model.TypedEventRecord, stats *Stats) error {
	ev, err := ToEvent(record)
	if err != nil {
		return &ledger.EventError{
			Kind:     record.EventName,
			Address:  record.Address,
			TxHash:   record.TxHash,
			Position: record.Position(),
			Err:      fmt.Errorf("%w: %v", ledger.ErrMalformedEvent, err),
		}
	}

	outcome, err := p.applier.Apply(ctx, ev)
	if err != nil && ledger.IsFatal(err) {
		p.logger.Error("fatal event",
			zap.String("event", record.EventName),
			zap.String("address", record.Address),
			zap.String("tx_hash", record.TxHash),
			zap.Uint64("log_index", record.LogIndex),
			zap.Error(err),
		)
		return err
	}

	switch outcome {
	case ledger.Applied:
		stats.Applied++
	case ledger.Skipped:
		stats.Skipped++
	default:
		stats.Dropped++
	}
	return nil
}

func (p *Processor) fatalError(record model.TypedEventRecord, err error) *model.FatalError {
	fatal := &model.FatalError{
		Message:    err.Error(),
		Handler:    record.EventName,
		TxHash:     record.TxHash,
		Address:    record.Address,
		Position:   record.Position(),
		OccurredAt: p.now().UTC().Format(time.RFC3339Nano),
	}
	var eventErr *ledger.EventError
	if errors.As(err, &eventErr) {
		fatal.Message = eventErr.Err.Error()
		fatal.Handler = eventErr.Kind
		fatal.Address = eventErr.Address
		fatal.TxHash = eventErr.TxHash
		fatal.Position = eventErr.Position
	}
	return fatal
}

func (p *Processor) saveState(ctx context.Context, state *model.ProcessState) error {
	state.UpdatedAt = p.now().UTC().Format(time.RFC3339Nano)
	if err := p.cfg.StateStore.Save(ctx, *state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
