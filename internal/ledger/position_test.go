package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

func TestPositionSnapshotsAreGapless(t *testing.T) {
	f := newFixture(t)
	f.createPair(t)
	tr, sy, mi := mintEvents()
	f.apply(t, tr, sy, mi)

	for i := uint64(0); i < 5; i++ {
		txHash := fmt.Sprintf("0x5%063x", i)
		f.apply(t, transferEvent(txHash, 110+i, 0, 0, userX, userY, "10"))
	}

	position := f.position(t, userX, model.PositionInvestment, 0)
	require.Equal(t, uint64(6), position.HistoryCounter)
	for hc := uint64(0); hc < position.HistoryCounter; hc++ {
		snapshot := mustGet[model.PositionSnapshot](t, f.store, store.KindPositionSnapshot, PositionSnapshotID(position.ID, hc))
		assert.Equal(t, hc, snapshot.HistoryCounter)
		assert.Equal(t, position.ID, snapshot.Position)
	}
	assert.Equal(t, "950", position.OutputTokenBalance.String())
	assert.Equal(t, 6+5, f.store.Count(store.KindPositionSnapshot))
}

func TestCreateOrUpdatePositionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := transferEvent(moveTx, 103, 1, 0, userX, userY, "10")
	tx := model.Transaction{ID: moveTx}

	first, err := f.ledger.CreateOrUpdatePosition(ctx, userX, pairAddr, model.PositionInvestment, tx, ev, PositionChange{Delta: bi("42")})
	require.NoError(t, err)
	before := f.store.Dump()

	second, err := f.ledger.CreateOrUpdatePosition(ctx, userX, pairAddr, model.PositionInvestment, tx, ev, PositionChange{Delta: bi("99")})
	require.NoError(t, err)
	assert.Equal(t, before, f.store.Dump())
	assert.Equal(t, first.HistoryCounter, second.HistoryCounter)
	assert.Equal(t, "42", second.OutputTokenBalance.String())
}

func TestCreateOrUpdatePositionRejectsNegativeBalance(t *testing.T) {
	f := newFixture(t)
	ev := transferEvent(moveTx, 103, 1, 0, userX, userY, "10")

	_, err := f.ledger.CreateOrUpdatePosition(context.Background(), userX, pairAddr, model.PositionInvestment, model.Transaction{ID: moveTx}, ev, PositionChange{Delta: bi("-1")})
	require.ErrorIs(t, err, ErrSupplyUnderflow)
	assert.Equal(t, 0, f.store.Count(store.KindPositionSnapshot))
}

func TestDebtPositionNeverCloses(t *testing.T) {
	f := newFixture(t)
	ev := burnEvent(burnTx, 102, 0, 3, "0", "0", userX)

	position, err := f.ledger.CreateOrUpdatePosition(context.Background(), userX, pairAddr, model.PositionDebt, model.Transaction{ID: burnTx}, ev, PositionChange{Delta: bi("0")})
	require.NoError(t, err)
	assert.False(t, position.Closed)
}

func TestPositionKeepsInputBalancesWhenTransactionHasNone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inputs := []model.TokenAmount{{ID: "a", Token: tokenA, Account: userX, Amount: bi("1"), Scaled: "0.000000000000000001"}}

	_, err := f.ledger.CreateOrUpdatePosition(ctx, userX, pairAddr, model.PositionInvestment,
		model.Transaction{ID: mintTx, InputTokenAmounts: inputs}, mintEvent(mintTx, 101, 2, 3, "1", "1"), PositionChange{Delta: bi("5")})
	require.NoError(t, err)

	position, err := f.ledger.CreateOrUpdatePosition(ctx, userX, pairAddr, model.PositionInvestment,
		model.Transaction{ID: moveTx}, transferEvent(moveTx, 103, 1, 0, userX, userY, "1"), PositionChange{Delta: bi("-1")})
	require.NoError(t, err)
	require.Len(t, position.InputTokenBalances, 1)
	assert.Equal(t, tokenA, position.InputTokenBalances[0].Token)
	assert.Equal(t, "4", position.OutputTokenBalance.String())
}
