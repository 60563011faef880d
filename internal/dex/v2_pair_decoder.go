package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityLedger/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	Topic0Map map[string]string
}

// V2PairDecoder decodes Uniswap V2 factory and pair events.
type V2PairDecoder struct {
	factoryABI  abi.ABI
	pairABI     abi.ABI
	topicToName map[string]string
}

// NewV2PairDecoder builds a V2 factory/pair decoder.
func NewV2PairDecoder(cfg DecoderConfig) (*V2PairDecoder, error) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return nil, err
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, err
	}
	topics, err := V2Topics()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(topics))
	for name, topic0 := range topics {
		topicToName[topic0] = name
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &V2PairDecoder{
		factoryABI:  factoryABI,
		pairABI:     pairABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *V2PairDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent, adding transaction gas when enabled.
func (d *V2PairDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[log.Topic0()]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", log.Address)
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case model.EventPairCreated:
		decoded, err = d.decodePairCreated(log)
	case model.EventTransfer:
		decoded, err = d.decodeTransfer(log)
	case model.EventMint:
		decoded, err = d.decodeMint(log)
	case model.EventBurn:
		decoded, err = d.decodeBurn(log)
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventSync:
		decoded, err = d.decodeSync(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}

	event := buildTypedEvent(log, name, decoded)
	if gas, ok := lookupTxGas(ctx, log.TxHash); ok {
		event.GasUsed = gas.GasUsed
		event.GasPrice = gas.GasPrice
	}
	return event, nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "paircreated":
		return model.EventPairCreated
	case "transfer":
		return model.EventTransfer
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	case "swap":
		return model.EventSwap
	case "sync":
		return model.EventSync
	default:
		return ""
	}
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:     log.ChainID,
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   name,
		Timestamp:   log.Timestamp,
		Decoded:     decoded,
		Raw:         raw,
	}
}

func (d *V2PairDecoder) decodePairCreated(log model.LogRecord) (model.PairCreatedEventData, error) {
	event := d.factoryABI.Events["PairCreated"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.PairCreatedEventData{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.PairCreatedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.PairCreatedEventData{}, err
	}
	if len(values) != 2 {
		return model.PairCreatedEventData{}, fmt.Errorf("unexpected pair created values: %d", len(values))
	}

	pair, err := asAddress(values[0])
	if err != nil {
		return model.PairCreatedEventData{}, err
	}
	count, err := asBigInt(values[1])
	if err != nil {
		return model.PairCreatedEventData{}, err
	}

	return model.PairCreatedEventData{
		Token0:    indexed.Token0.Hex(),
		Token1:    indexed.Token1.Hex(),
		Pair:      pair.Hex(),
		PairCount: count.String(),
	}, nil
}

func (d *V2PairDecoder) decodeTransfer(log model.LogRecord) (model.TransferEventData, error) {
	event := d.pairABI.Events["Transfer"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.TransferEventData{}, err
	}

	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.TransferEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.TransferEventData{}, err
	}
	if len(values) != 1 {
		return model.TransferEventData{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return model.TransferEventData{}, err
	}

	return model.TransferEventData{
		From:  indexed.From.Hex(),
		To:    indexed.To.Hex(),
		Value: value.String(),
	}, nil
}

func (d *V2PairDecoder) decodeMint(log model.LogRecord) (model.MintEventData, error) {
	event := d.pairABI.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.MintEventData{}, err
	}

	var indexed struct {
		Sender common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.MintEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.MintEventData{}, err
	}
	if len(values) != 2 {
		return model.MintEventData{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.MintEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.MintEventData{}, err
	}

	return model.MintEventData{
		Sender:  indexed.Sender.Hex(),
		Amount0: amount0.String(),
		Amount1: amount1.String(),
	}, nil
}

func (d *V2PairDecoder) decodeBurn(log model.LogRecord) (model.BurnEventData, error) {
	event := d.pairABI.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.BurnEventData{}, err
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.BurnEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.BurnEventData{}, err
	}
	if len(values) != 2 {
		return model.BurnEventData{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}
	amount0, err := asBigInt(values[0])
	if err != nil {
		return model.BurnEventData{}, err
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return model.BurnEventData{}, err
	}

	return model.BurnEventData{
		Sender:  indexed.Sender.Hex(),
		Amount0: amount0.String(),
		Amount1: amount1.String(),
		To:      indexed.To.Hex(),
	}, nil
}

func (d *V2PairDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.pairABI.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return model.SwapEventData{}, err
	}

	var indexed struct {
		Sender common.Address
		To     common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 4 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amounts := make([]string, len(values))
	for i, value := range values {
		amount, err := asBigInt(value)
		if err != nil {
			return model.SwapEventData{}, err
		}
		amounts[i] = amount.String()
	}

	return model.SwapEventData{
		Sender:     indexed.Sender.Hex(),
		Amount0In:  amounts[0],
		Amount1In:  amounts[1],
		Amount0Out: amounts[2],
		Amount1Out: amounts[3],
		To:         indexed.To.Hex(),
	}, nil
}

func (d *V2PairDecoder) decodeSync(log model.LogRecord) (model.SyncEventData, error) {
	event := d.pairABI.Events["Sync"]
	if _, err := parseIndexedTopics(event, log.Topics); err != nil {
		return model.SyncEventData{}, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SyncEventData{}, err
	}
	if len(values) != 2 {
		return model.SyncEventData{}, fmt.Errorf("unexpected sync values: %d", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.SyncEventData{}, err
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.SyncEventData{}, err
	}

	return model.SyncEventData{
		Reserve0: reserve0.String(),
		Reserve1: reserve1.String(),
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
