package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

func TestPairCreatedScenario(t *testing.T) {
	f := newFixture(t)
	f.createPair(t)

	token0 := mustGet[model.Token](t, f.store, store.KindToken, tokenA)
	token1 := mustGet[model.Token](t, f.store, store.KindToken, tokenB)
	assert.Equal(t, "TKA", token0.Symbol)
	assert.Equal(t, "TKB", token1.Symbol)
	assert.Equal(t, uint8(6), token1.Decimals)
	assert.Equal(t, pairAddr, token0.MintedByMarket)

	pair := f.pair(t)
	assert.Equal(t, tokenA, pair.Token0)
	assert.Equal(t, tokenB, pair.Token1)
	assert.Equal(t, DefaultConfig().FactoryAddress, pair.Factory)
	assert.Zero(t, pair.Reserve0.Sign())
	assert.Zero(t, pair.Reserve1.Sign())
	assert.Zero(t, pair.TotalSupply.Sign())

	market := mustGet[model.Market](t, f.store, store.KindMarket, pairAddr)
	assert.Equal(t, []string{tokenA, tokenB}, market.InputTokens)
	assert.Equal(t, pairAddr, market.OutputToken)
	assert.Equal(t, "UNISWAP_V2", market.ProtocolName)
	assert.Equal(t, "EXCHANGE", market.ProtocolType)

	assert.Equal(t, 1, f.store.Count(store.KindPairSnapshot))
	assert.Equal(t, 1, f.store.Count(store.KindAccount))
}

func TestPairCreatedReplayIsNoop(t *testing.T) {
	f := newFixture(t)
	f.createPair(t)
	before := f.store.Dump()
	calls := f.meta.calls

	f.createPair(t)
	assert.Equal(t, before, f.store.Dump())
	assert.Equal(t, calls, f.meta.calls, "existing tokens must not be fetched again")
}

func TestPairCreatedWithUnknownDecimalsIsDropped(t *testing.T) {
	f := newFixture(t)
	delete(f.meta.decimals, tokenB)

	outcome, err := f.ledger.Apply(context.Background(), pairCreated(tokenA, tokenB, pairAddr))
	require.NoError(t, err)
	assert.Equal(t, Dropped, outcome)
	assert.Empty(t, f.store.Dump(), "no partial entities may be written")
}

func TestPairCreatedWithUnknownNameUsesDefault(t *testing.T) {
	f := newFixture(t)
	delete(f.meta.names, tokenA)
	delete(f.meta.symbols, tokenA)
	f.createPair(t)

	token := mustGet[model.Token](t, f.store, store.KindToken, tokenA)
	assert.Equal(t, "unknown", token.Name)
	assert.Equal(t, "unknown", token.Symbol)
	assert.Equal(t, uint8(18), token.Decimals)
}

func TestNativeTokenSentinel(t *testing.T) {
	f := newFixture(t)
	f.apply(t, pairCreated(zeroAddr, tokenB, pairAddr))

	token := mustGet[model.Token](t, f.store, store.KindToken, zeroAddr)
	assert.Equal(t, "Ether", token.Name)
	assert.Equal(t, "ETH", token.Symbol)
	assert.Equal(t, uint8(18), token.Decimals)
}

func TestPairCreatedByOtherFactoryIsSkipped(t *testing.T) {
	f := newFixture(t)
	ev := pairCreated(tokenA, tokenB, pairAddr)
	ev.Address = userY

	outcome, err := f.ledger.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
	assert.Empty(t, f.store.Dump())
}

func TestEventsForUntrackedPairAreSkipped(t *testing.T) {
	f := newFixture(t)
	tr, sy, mi := mintEvents()
	for _, ev := range []Event{tr, sy, mi} {
		outcome, err := f.ledger.Apply(context.Background(), ev)
		require.NoError(t, err)
		assert.Equal(t, Skipped, outcome)
	}
	assert.Empty(t, f.store.Dump())
}

func TestUnknownEventKindIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.createPair(t)
	outcome, err := f.ledger.Apply(context.Background(), baseEvent("Swap", pairAddr, mintTx, 101, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, Skipped, outcome)
}

func TestMalformedEventIsFatal(t *testing.T) {
	f := newFixture(t)
	f.createPair(t)

	_, err := f.ledger.Apply(context.Background(), baseEvent(model.EventTransfer, pairAddr, mintTx, 101, 0, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedEvent))
	assert.True(t, IsFatal(err))
}

func TestEventErrorCarriesPosition(t *testing.T) {
	f := newFixture(t)
	f.createPair(t)
	_, _, mi := mintEvents()

	_, err := f.ledger.Apply(context.Background(), mi)
	require.Error(t, err)

	var evErr *EventError
	require.True(t, errors.As(err, &evErr))
	assert.Equal(t, model.EventMint, evErr.Kind)
	assert.Equal(t, pairAddr, evErr.Address)
	assert.Equal(t, mi.Position(), evErr.Position)
	assert.True(t, errors.Is(err, ErrOrderingViolation))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(&EventError{Err: ErrMetadataUnavailable}))
	assert.True(t, IsFatal(&EventError{Err: ErrSupplyUnderflow}))
	assert.True(t, IsFatal(errors.New("store down")))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "applied", Applied.String())
	assert.Equal(t, "skipped", Skipped.String())
	assert.Equal(t, "dropped", Dropped.String())
}
