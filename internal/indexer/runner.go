package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"liquidityLedger/internal/dex"
	"liquidityLedger/internal/model"
	"liquidityLedger/internal/retry"
	"liquidityLedger/internal/storage"
)

// RunConfig holds runtime settings for the log fetcher.
type RunConfig struct {
	FromBlock uint64
	// ToBlock 0 follows the chain head minus Confirmations.
	ToBlock           uint64
	Confirmations     uint64
	// Factory is watched for PairCreated; every pair it creates joins the filter. Zero disables
	// discovery.
	Factory           common.Address
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// LogSource is the chain access the fetcher needs. *chain.Client satisfies it.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// Runner streams factory and pair logs from the chain into a sink, in chain order.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	sink       storage.LogSink
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore

	addresses   []common.Address
	known       map[common.Address]struct{}
	discovered  []string
	decoder     *dex.V2PairDecoder
	pairCreated common.Hash
}

func NewRunner(cfg RunConfig, source LogSource, sink storage.LogSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run fetches every batch of the configured range, resuming after the checkpoint.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("log sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if err := r.initFilter(); err != nil {
		return err
	}
	if len(r.addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chainID(ctx)
	if err != nil {
		return err
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		var latest uint64
		err := r.withRetry(ctx, "latest block", func(ctx context.Context) error {
			var err error
			latest, err = r.source.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = SafeHead(latest, r.cfg.Confirmations)
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		if cp.ChainID != 0 && cp.ChainID != chainID {
			return fmt.Errorf("checkpoint belongs to chain %d, rpc serves chain %d", cp.ChainID, chainID)
		}
		for _, pair := range cp.Pairs {
			if !common.IsHexAddress(pair) {
				return fmt.Errorf("checkpoint pair %q is not an address", pair)
			}
			r.track(common.HexToAddress(pair))
		}
		if cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.fetchRange(ctx, chainID, blockRange); err != nil {
			return err
		}
		if err := r.checkpoint.Save(chainID, blockRange.To, r.discovered); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) fetchRange(ctx context.Context, chainID uint64, blockRange BlockRange) error {
	r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

	var logs []types.Log
	err := r.withRetry(ctx, "filter logs", func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, blockRange.From, blockRange.To, r.addresses, r.cfg.Topic0)
		return err
	})
	if err != nil {
		return fmt.Errorf("filter logs %d-%d: %w", blockRange.From, blockRange.To, err)
	}

	// Pairs created inside the range were not in the filter; fetch the rest of the range for them.
	pairs, firstBlock, err := r.discoverPairs(chainID, logs)
	if err != nil {
		return err
	}
	if len(pairs) > 0 {
		var pairLogs []types.Log
		err := r.withRetry(ctx, "filter new pair logs", func(ctx context.Context) error {
			var err error
			pairLogs, err = r.source.FilterLogs(ctx, firstBlock, blockRange.To, pairs, r.cfg.Topic0)
			return err
		})
		if err != nil {
			return fmt.Errorf("filter new pair logs %d-%d: %w", firstBlock, blockRange.To, err)
		}
		logs = append(logs, pairLogs...)
	}
	sortLogs(logs)

	ingestedAt := time.Now().UTC()
	records := make([]model.LogRecord, 0, len(logs))
	var removed int
	for _, log := range logs {
		if log.Removed {
			removed++
			continue
		}
		if r.isDuplicate(log) {
			continue
		}

		var ts uint64
		err := r.withRetry(ctx, "block timestamp", func(ctx context.Context) error {
			var err error
			ts, err = r.source.BlockTimestamp(ctx, log.BlockNumber)
			return err
		})
		if err != nil {
			return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
		}
		records = append(records, toLogRecord(chainID, log, ts, ingestedAt))
	}

	if err := r.sink.PutLogBatch(records); err != nil {
		return fmt.Errorf("store logs: %w", err)
	}

	r.logger.Info("batch complete",
		zap.Int("logs", len(records)),
		zap.Int("removed", removed),
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
	)
	return nil
}

func (r *Runner) initFilter() error {
	r.addresses = nil
	r.known = make(map[common.Address]struct{}, len(r.cfg.Addresses))
	r.discovered = nil
	for _, addr := range r.cfg.Addresses {
		r.add(addr)
	}
	if r.cfg.Factory == (common.Address{}) {
		return nil
	}
	r.add(r.cfg.Factory)

	decoder, err := dex.NewV2PairDecoder(dex.DecoderConfig{})
	if err != nil {
		return err
	}
	topics, err := dex.V2Topics()
	if err != nil {
		return err
	}
	r.decoder = decoder
	r.pairCreated = common.HexToHash(topics[model.EventPairCreated])
	return nil
}

func (r *Runner) add(addr common.Address) bool {
	if _, ok := r.known[addr]; ok {
		return false
	}
	r.known[addr] = struct{}{}
	r.addresses = append(r.addresses, addr)
	return true
}

// track adds a discovered pair to the filter and to the checkpointed pair list.
func (r *Runner) track(pair common.Address) bool {
	if !r.add(pair) {
		return false
	}
	r.discovered = append(r.discovered, pair.Hex())
	return true
}

// discoverPairs tracks the pairs the factory created in logs. It returns the new ones and the
// earliest block they were created in.
func (r *Runner) discoverPairs(chainID uint64, logs []types.Log) ([]common.Address, uint64, error) {
	if r.decoder == nil {
		return nil, 0, nil
	}
	var (
		pairs []common.Address
		first uint64
	)
	for _, log := range logs {
		if log.Removed || log.Address != r.cfg.Factory || len(log.Topics) == 0 || log.Topics[0] != r.pairCreated {
			continue
		}
		event, err := r.decoder.Decode(toLogRecord(chainID, log, 0, time.Time{}), dex.DecodeContext{})
		if err != nil {
			return nil, 0, fmt.Errorf("decode PairCreated at block %d: %w", log.BlockNumber, err)
		}
		created, ok := event.Decoded.(model.PairCreatedEventData)
		if !ok || !common.IsHexAddress(created.Pair) {
			return nil, 0, fmt.Errorf("PairCreated at block %d has no pair address", log.BlockNumber)
		}
		pair := common.HexToAddress(created.Pair)
		if !r.track(pair) {
			continue
		}
		if len(pairs) == 0 || log.BlockNumber < first {
			first = log.BlockNumber
		}
		pairs = append(pairs, pair)
		r.logger.Info("pair discovered", zap.String("pair", pair.Hex()), zap.Uint64("block", log.BlockNumber))
	}
	return pairs, first, nil
}

func (r *Runner) chainID(ctx context.Context) (uint64, error) {
	var id *big.Int
	err := r.withRetry(ctx, "chain id", func(ctx context.Context) error {
		var err error
		id, err = r.source.GetChainID(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id does not fit in uint64: %s", id)
	}
	return id.Uint64(), nil
}

func (r *Runner) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Warn("rpc call failed", zap.String("op", op), zap.Error(err))
		}
		return err
	})
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
