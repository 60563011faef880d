package processor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityLedger/internal/ledger"
	"liquidityLedger/internal/model"
	"liquidityLedger/internal/storage"
	"liquidityLedger/internal/store"
	"liquidityLedger/internal/store/memory"
)

const (
	factory  = "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"
	tokenA   = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	tokenB   = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	pairAddr = "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
	zero     = "0x0000000000000000000000000000000000000000"
	user     = "0x1111111111111111111111111111111111111111"
)

type staticMetadata struct{}

func (staticMetadata) FetchName(context.Context, string) (string, error)   { return "Token", nil }
func (staticMetadata) FetchSymbol(context.Context, string) (string, error) { return "TKN", nil }
func (staticMetadata) FetchDecimals(context.Context, string) (uint8, bool, error) {
	return 18, true, nil
}
func (staticMetadata) FetchLPBalance(context.Context, string, string, uint64) (*big.Int, bool, error) {
	return nil, false, nil
}

func typed(block, txIndex, logIndex uint64, address, name string, payload interface{}) model.TypedEvent {
	return model.TypedEvent{
		ChainID:     1,
		BlockNumber: block,
		TxHash:      fmt.Sprintf("0x%064x", block),
		TxIndex:     txIndex,
		LogIndex:    logIndex,
		Address:     address,
		EventName:   name,
		Timestamp:   1_600_000_000 + block,
		Decoded:     payload,
	}
}

func mintFlow() []model.TypedEvent {
	return []model.TypedEvent{
		typed(100, 0, 0, factory, model.EventPairCreated, model.PairCreatedEventData{Token0: tokenA, Token1: tokenB, Pair: pairAddr, PairCount: "1"}),
		typed(101, 0, 1, pairAddr, model.EventTransfer, model.TransferEventData{From: zero, To: zero, Value: "1000"}),
		typed(101, 0, 2, pairAddr, model.EventTransfer, model.TransferEventData{From: zero, To: user, Value: "9000"}),
		typed(101, 0, 3, pairAddr, model.EventSync, model.SyncEventData{Reserve0: "50000", Reserve1: "20000"}),
		typed(101, 0, 4, pairAddr, model.EventMint, model.MintEventData{Sender: user, Amount0: "50000", Amount1: "20000"}),
		typed(101, 0, 5, pairAddr, model.EventSwap, model.SwapEventData{Sender: user, Amount0In: "1", Amount1In: "0", Amount0Out: "0", Amount1Out: "1", To: user}),
	}
}

func writeEvents(t *testing.T, events []model.TypedEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed_events.jsonl")
	w, err := storage.OpenJSONL(path, false)
	require.NoError(t, err)
	for _, ev := range events {
		require.NoError(t, w.Write(ev))
	}
	require.NoError(t, w.Close())
	return path
}

func newLedger(t *testing.T) (*ledger.Ledger, *memory.Store) {
	t.Helper()
	s := memory.NewStore()
	l, err := ledger.New(ledger.DefaultConfig(), s, staticMetadata{}, nil)
	require.NoError(t, err)
	return l, s
}

func TestProcessorAppliesAndResumes(t *testing.T) {
	ctx := context.Background()
	l, s := newLedger(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	input := writeEvents(t, mintFlow())

	stats, err := NewProcessor(Config{StateStore: &FileStateStore{Path: statePath}}, l, nil).Run(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 6, Applied: 5, Skipped: 1}, stats)

	var pair model.Pair
	ok, err := s.Load(ctx, store.KindPair, ledger.PairID(pairAddr), &pair)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10000", pair.TotalSupply.String())
	assert.Equal(t, "50000", pair.Reserve0.String())

	state, ok, err := (&FileStateStore{Path: statePath}).Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, state.LastApplied)
	assert.Equal(t, model.EventPosition{BlockNumber: 101, TxIndex: 0, LogIndex: 5}, *state.LastApplied)
	assert.Nil(t, state.FatalError)

	again, err := NewProcessor(Config{StateStore: &FileStateStore{Path: statePath}}, l, nil).Run(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 6, Skipped: 6}, again)
}

func TestProcessorRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, s := newLedger(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	input := writeEvents(t, mintFlow())

	_, err := NewProcessor(Config{StateStore: &FileStateStore{Path: statePath}}, l, nil).Run(ctx, input)
	require.NoError(t, err)
	before := s.Dump()

	stats, err := NewProcessor(Config{
		Recompute:          true,
		RecomputeFromBlock: 101,
		StateStore:         &FileStateStore{Path: statePath},
	}, l, nil).Run(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.Total)
	assert.Equal(t, 2, stats.Skipped, "pair creation before the recompute block and the swap")
	assert.Equal(t, before, s.Dump())
}

type scriptedApplier struct {
	failAt map[uint64]error
	seen   []uint64
}

func (a *scriptedApplier) Apply(_ context.Context, ev ledger.Event) (ledger.Outcome, error) {
	a.seen = append(a.seen, ev.LogIndex)
	if err, ok := a.failAt[ev.LogIndex]; ok {
		if !ledger.IsFatal(err) {
			return ledger.Dropped, nil
		}
		return ledger.Dropped, &ledger.EventError{Kind: ev.Kind, Address: ev.Address, TxHash: ev.TxHash, Position: ev.Position(), Err: err}
	}
	return ledger.Applied, nil
}

func syncAt(logIndex uint64) model.TypedEvent {
	return typed(200, 0, logIndex, pairAddr, model.EventSync, model.SyncEventData{Reserve0: "1", Reserve1: "1"})
}

func TestProcessorRecordsFatalErrorAndHalts(t *testing.T) {
	ctx := context.Background()
	statePath := filepath.Join(t.TempDir(), "state.json")
	input := writeEvents(t, []model.TypedEvent{syncAt(0), syncAt(1), syncAt(2)})
	applier := &scriptedApplier{failAt: map[uint64]error{1: ledger.ErrOrderingViolation}}

	_, err := NewProcessor(Config{StateStore: &FileStateStore{Path: statePath}}, applier, nil).Run(ctx, input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrOrderingViolation))
	assert.Equal(t, []uint64{0, 1}, applier.seen)

	state, _, err := (&FileStateStore{Path: statePath}).Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, state.FatalError)
	assert.Equal(t, model.EventSync, state.FatalError.Handler)
	assert.Equal(t, uint64(1), state.FatalError.Position.LogIndex)
	require.NotNil(t, state.LastApplied)
	assert.Equal(t, uint64(0), state.LastApplied.LogIndex)

	_, err = NewProcessor(Config{StateStore: &FileStateStore{Path: statePath}}, applier, nil).Run(ctx, input)
	assert.ErrorIs(t, err, ErrHalted)
}

func TestProcessorCountsRecoverableDrops(t *testing.T) {
	applier := &scriptedApplier{failAt: map[uint64]error{1: ledger.ErrMetadataUnavailable}}
	input := writeEvents(t, []model.TypedEvent{syncAt(0), syncAt(1), syncAt(2)})

	stats, err := NewProcessor(Config{}, applier, nil).Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Applied: 2, Dropped: 1}, stats)
}

func TestProcessorRejectsOutOfOrderInput(t *testing.T) {
	applier := &scriptedApplier{}
	input := writeEvents(t, []model.TypedEvent{syncAt(2), syncAt(2), syncAt(1)})

	stats, err := NewProcessor(Config{}, applier, nil).Run(context.Background(), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of order")
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []uint64{2}, applier.seen)
}

func TestProcessorMalformedPayloadIsFatal(t *testing.T) {
	applier := &scriptedApplier{}
	bad := typed(300, 0, 0, pairAddr, model.EventTransfer, model.TransferEventData{From: zero, To: user, Value: "not-a-number"})
	input := writeEvents(t, []model.TypedEvent{bad})

	_, err := NewProcessor(Config{}, applier, nil).Run(context.Background(), input)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrMalformedEvent)
	assert.Empty(t, applier.seen)
}

type memoryBackend struct {
	states map[string]model.ProcessState
}

func (m *memoryBackend) LoadState(_ context.Context, name string) (model.ProcessState, bool, error) {
	state, ok := m.states[name]
	return state, ok, nil
}

func (m *memoryBackend) SaveState(_ context.Context, name string, state model.ProcessState) error {
	m.states[name] = state
	return nil
}

func TestDBStateStoreUsesName(t *testing.T) {
	backend := &memoryBackend{states: map[string]model.ProcessState{}}
	input := writeEvents(t, []model.TypedEvent{syncAt(0)})

	_, err := NewProcessor(Config{StateStore: &DBStateStore{Backend: backend, Name: "ledger:1"}}, &scriptedApplier{}, nil).Run(context.Background(), input)
	require.NoError(t, err)
	require.Contains(t, backend.states, "ledger:1")
	assert.NotEmpty(t, backend.states["ledger:1"].UpdatedAt)

	var empty *DBStateStore
	_, ok, err := empty.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
