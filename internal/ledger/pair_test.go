package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityLedger/internal/model"
)

func TestApplySupplyDeltaConservesSupply(t *testing.T) {
	pair := model.Pair{ID: pairAddr, TotalSupply: bi("1000")}

	require.NoError(t, applySupplyDelta(&pair, bi("250")))
	assert.Equal(t, "1250", pair.TotalSupply.String())

	require.NoError(t, applySupplyDelta(&pair, bi("-1250")))
	assert.Equal(t, "0", pair.TotalSupply.String())

	require.NoError(t, applySupplyDelta(&pair, nil))
	assert.Equal(t, "0", pair.TotalSupply.String())
}

func TestApplySupplyDeltaUnderflow(t *testing.T) {
	pair := model.Pair{ID: pairAddr, TotalSupply: bi("10")}
	err := applySupplyDelta(&pair, bi("-11"))
	require.ErrorIs(t, err, ErrSupplyUnderflow)
	assert.Equal(t, "10", pair.TotalSupply.String())
}

func TestApplySupplyDeltaOverflow(t *testing.T) {
	limit := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	pair := model.Pair{ID: pairAddr, TotalSupply: limit}
	require.ErrorIs(t, applySupplyDelta(&pair, big.NewInt(1)), ErrAmountOutOfRange)

	pair.TotalSupply = nil
	require.ErrorIs(t, applySupplyDelta(&pair, new(big.Int).Lsh(big.NewInt(1), 256)), ErrAmountOutOfRange)
}

func TestSyncReserves(t *testing.T) {
	pair := model.Pair{ID: pairAddr}
	require.NoError(t, syncReserves(&pair, bi("7"), bi("9")))
	assert.Equal(t, "7", pair.Reserve0.String())
	assert.Equal(t, "9", pair.Reserve1.String())

	require.ErrorIs(t, syncReserves(&pair, bi("-1"), bi("9")), ErrAmountOutOfRange)
	assert.Equal(t, "7", pair.Reserve0.String())
}
