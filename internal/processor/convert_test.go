package processor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityLedger/internal/model"
)

func record(t *testing.T, name string, payload interface{}) model.TypedEventRecord {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return model.TypedEventRecord{
		BlockNumber: 7,
		TxHash:      "0xabc",
		TxIndex:     1,
		LogIndex:    2,
		Address:     pairAddr,
		EventName:   name,
		Timestamp:   99,
		GasUsed:     "21000",
		Decoded:     data,
	}
}

func TestToEventBurn(t *testing.T) {
	ev, err := ToEvent(record(t, model.EventBurn, model.BurnEventData{
		Sender:  user,
		Amount0: "115792089237316195423570985008687907853269984665640564039457584007913129639935",
		Amount1: "2",
		To:      zero,
	}))
	require.NoError(t, err)

	require.NotNil(t, ev.Burn)
	assert.Equal(t, model.EventPosition{BlockNumber: 7, TxIndex: 1, LogIndex: 2}, ev.Position())
	assert.Equal(t, "115792089237316195423570985008687907853269984665640564039457584007913129639935", ev.Burn.Amount0.String())
	assert.Equal(t, zero, ev.Burn.To)
	assert.Equal(t, "21000", ev.GasUsed.String())
	assert.Nil(t, ev.GasPrice)
}

func TestToEventPassesThroughUnroutedKinds(t *testing.T) {
	ev, err := ToEvent(record(t, model.EventSwap, model.SwapEventData{Amount0In: "1"}))
	require.NoError(t, err)
	assert.Equal(t, model.EventSwap, ev.Kind)
	assert.Nil(t, ev.Transfer)
	assert.Nil(t, ev.Sync)
}

func TestToEventRejectsBadPayloads(t *testing.T) {
	_, err := ToEvent(record(t, model.EventSync, model.SyncEventData{Reserve0: "1"}))
	assert.Error(t, err, "empty reserve")

	_, err = ToEvent(record(t, model.EventMint, model.MintEventData{Amount0: "0x10", Amount1: "1"}))
	assert.Error(t, err, "hex amount")

	missing := record(t, model.EventPairCreated, nil)
	_, err = ToEvent(missing)
	assert.Error(t, err)

	gas := record(t, model.EventSwap, model.SwapEventData{})
	gas.GasPrice = "cheap"
	_, err = ToEvent(gas)
	assert.Error(t, err)
}
