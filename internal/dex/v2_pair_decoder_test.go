package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"liquidityLedger/internal/model"
)

func TestV2DecoderPairCreated(t *testing.T) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	factory := common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	pair := common.HexToAddress("0x1111111111111111111111111111111111111111")

	event := factoryABI.Events["PairCreated"]
	data, err := event.Inputs.NonIndexed().Pack(pair, big.NewInt(42))
	if err != nil {
		t.Fatalf("pack pair created: %v", err)
	}
	logRecord := buildLogRecord(factory, event.ID, data, []common.Hash{
		topicFromAddress(token0),
		topicFromAddress(token1),
	})

	typed, err := decoder.Decode(logRecord, DecodeContext{Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("decode pair created: %v", err)
	}
	created, ok := typed.Decoded.(model.PairCreatedEventData)
	if !ok {
		t.Fatalf("decoded type mismatch")
	}
	if created.Token0 != token0.Hex() || created.Token1 != token1.Hex() || created.Pair != pair.Hex() {
		t.Fatalf("address mismatch: %+v", created)
	}
	if created.PairCount != "42" {
		t.Fatalf("pair count mismatch: %s", created.PairCount)
	}
	if typed.EventName != model.EventPairCreated || typed.TxIndex != 3 {
		t.Fatalf("event envelope mismatch: %+v", typed)
	}
}

func TestV2DecoderPairEvents(t *testing.T) {
	pairABI, err := V2PairABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	ctx := DecodeContext{Logger: zap.NewNop()}

	pair := common.HexToAddress("0x9999999999999999999999999999999999999999")
	from := common.HexToAddress("0x0000000000000000000000000000000000000000")
	to := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	router := common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")

	// 2^200 does not fit in 64 bits and must survive as a decimal string
	large := new(big.Int).Lsh(big.NewInt(1), 200)
	transferData, err := pairABI.Events["Transfer"].Inputs.NonIndexed().Pack(large)
	if err != nil {
		t.Fatalf("pack transfer: %v", err)
	}
	transferEvent, err := decoder.Decode(buildLogRecord(pair, pairABI.Events["Transfer"].ID, transferData, []common.Hash{
		topicFromAddress(from),
		topicFromAddress(to),
	}), ctx)
	if err != nil {
		t.Fatalf("decode transfer: %v", err)
	}
	transfer, ok := transferEvent.Decoded.(model.TransferEventData)
	if !ok {
		t.Fatalf("transfer type mismatch")
	}
	if transfer.From != from.Hex() || transfer.To != to.Hex() || transfer.Value != large.String() {
		t.Fatalf("transfer mismatch: %+v", transfer)
	}

	mintData, err := pairABI.Events["Mint"].Inputs.NonIndexed().Pack(big.NewInt(100), big.NewInt(200))
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}
	mintEvent, err := decoder.Decode(buildLogRecord(pair, pairABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(router),
	}), ctx)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	mint, ok := mintEvent.Decoded.(model.MintEventData)
	if !ok {
		t.Fatalf("mint type mismatch")
	}
	if mint.Sender != router.Hex() || mint.Amount0 != "100" || mint.Amount1 != "200" {
		t.Fatalf("mint mismatch: %+v", mint)
	}

	burnData, err := pairABI.Events["Burn"].Inputs.NonIndexed().Pack(big.NewInt(300), big.NewInt(400))
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}
	burnEvent, err := decoder.Decode(buildLogRecord(pair, pairABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(router),
		topicFromAddress(to),
	}), ctx)
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	burn, ok := burnEvent.Decoded.(model.BurnEventData)
	if !ok {
		t.Fatalf("burn type mismatch")
	}
	if burn.To != to.Hex() || burn.Amount0 != "300" || burn.Amount1 != "400" {
		t.Fatalf("burn mismatch: %+v", burn)
	}

	reserve := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1))
	syncData, err := pairABI.Events["Sync"].Inputs.NonIndexed().Pack(reserve, big.NewInt(7))
	if err != nil {
		t.Fatalf("pack sync: %v", err)
	}
	syncEvent, err := decoder.Decode(buildLogRecord(pair, pairABI.Events["Sync"].ID, syncData, nil), ctx)
	if err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	sync, ok := syncEvent.Decoded.(model.SyncEventData)
	if !ok {
		t.Fatalf("sync type mismatch")
	}
	if sync.Reserve0 != reserve.String() || sync.Reserve1 != "7" {
		t.Fatalf("sync mismatch: %+v", sync)
	}

	swapData, err := pairABI.Events["Swap"].Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(2))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	swapEvent, err := decoder.Decode(buildLogRecord(pair, pairABI.Events["Swap"].ID, swapData, []common.Hash{
		topicFromAddress(router),
		topicFromAddress(to),
	}), ctx)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	swap, ok := swapEvent.Decoded.(model.SwapEventData)
	if !ok {
		t.Fatalf("swap type mismatch")
	}
	if swap.Amount0In != "1" || swap.Amount1Out != "2" {
		t.Fatalf("swap mismatch: %+v", swap)
	}
}

func TestV2DecoderRejectsWrongTopicCount(t *testing.T) {
	pairABI, _ := V2PairABI()
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	data, _ := pairABI.Events["Transfer"].Inputs.NonIndexed().Pack(big.NewInt(1))
	pair := common.HexToAddress("0x9999999999999999999999999999999999999999")

	_, err = decoder.Decode(buildLogRecord(pair, pairABI.Events["Transfer"].ID, data, []common.Hash{
		topicFromAddress(pair),
	}), DecodeContext{})
	if err == nil {
		t.Fatalf("expected topic count error")
	}
}

func TestV2DecoderCanDecode(t *testing.T) {
	decoder, err := NewV2PairDecoder(DecoderConfig{Topic0Map: map[string]string{"0xABCDEF": "sync"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	topics, _ := V2Topics()
	for name, topic0 := range topics {
		if !decoder.CanDecode(topic0) {
			t.Fatalf("cannot decode %s", name)
		}
	}
	if !decoder.CanDecode("0xabcdef") {
		t.Fatalf("topic0 override not applied")
	}
	if decoder.CanDecode("") || decoder.CanDecode("0x1234") {
		t.Fatalf("unexpected decodable topic")
	}

	if _, err := NewV2PairDecoder(DecoderConfig{Topic0Map: map[string]string{"0x01": "Collect"}}); err == nil {
		t.Fatalf("expected unsupported event name error")
	}
}

type fakeGasSource struct {
	calls int
	err   error
}

func (f *fakeGasSource) TransactionGas(_ context.Context, _ common.Hash) (*big.Int, *big.Int, error) {
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return big.NewInt(21000), big.NewInt(30_000_000_000), nil
}

func TestV2DecoderIncludesTransactionGas(t *testing.T) {
	pairABI, _ := V2PairABI()
	decoder, err := NewV2PairDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	gas := &fakeGasSource{}
	ctx := DecodeContext{Gas: gas, GasCache: NewTxGasCache(), IncludeTxGas: true, Logger: zap.NewNop()}

	pair := common.HexToAddress("0x9999999999999999999999999999999999999999")
	data, _ := pairABI.Events["Sync"].Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(2))
	record := buildLogRecord(pair, pairABI.Events["Sync"].ID, data, nil)

	for i := 0; i < 2; i++ {
		event, err := decoder.Decode(record, ctx)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if event.GasUsed != "21000" || event.GasPrice != "30000000000" {
			t.Fatalf("gas mismatch: %s %s", event.GasUsed, event.GasPrice)
		}
	}
	if gas.calls != 1 {
		t.Fatalf("gas lookups = %d, want 1", gas.calls)
	}

	failing := &fakeGasSource{err: errors.New("receipt not found")}
	event, err := decoder.Decode(record, DecodeContext{Gas: failing, IncludeTxGas: true})
	if err != nil {
		t.Fatalf("gas failure must not fail decoding: %v", err)
	}
	if event.GasUsed != "" {
		t.Fatalf("unexpected gas: %s", event.GasUsed)
	}
}

func buildLogRecord(address common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		TxIndex:     3,
		LogIndex:    1,
		Address:     address.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
