package processor

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"liquidityLedger/internal/ledger"
	"liquidityLedger/internal/model"
)

// ToEvent converts a typed event record into a ledger event. Event names the ledger does not
// route pass through without a payload.
func ToEvent(record model.TypedEventRecord) (ledger.Event, error) {
	ev := ledger.Event{
		Kind:        record.EventName,
		Address:     record.Address,
		BlockNumber: record.BlockNumber,
		Timestamp:   record.Timestamp,
		TxHash:      record.TxHash,
		TxIndex:     record.TxIndex,
		LogIndex:    record.LogIndex,
	}

	var err error
	if ev.GasUsed, err = parseOptionalBig(record.GasUsed); err != nil {
		return ledger.Event{}, fmt.Errorf("gas used: %w", err)
	}
	if ev.GasPrice, err = parseOptionalBig(record.GasPrice); err != nil {
		return ledger.Event{}, fmt.Errorf("gas price: %w", err)
	}

	switch record.EventName {
	case model.EventPairCreated:
		var data model.PairCreatedEventData
		if err := decodePayload(record, &data); err != nil {
			return ledger.Event{}, err
		}
		ev.PairCreated = &ledger.PairCreated{Token0: data.Token0, Token1: data.Token1, Pair: data.Pair}
	case model.EventTransfer:
		var data model.TransferEventData
		if err := decodePayload(record, &data); err != nil {
			return ledger.Event{}, err
		}
		value, err := parseBig("value", data.Value)
		if err != nil {
			return ledger.Event{}, err
		}
		ev.Transfer = &ledger.Transfer{From: data.From, To: data.To, Value: value}
	case model.EventMint:
		var data model.MintEventData
		if err := decodePayload(record, &data); err != nil {
			return ledger.Event{}, err
		}
		amounts, err := parseBigs(map[string]string{"amount0": data.Amount0, "amount1": data.Amount1})
		if err != nil {
			return ledger.Event{}, err
		}
		ev.Mint = &ledger.Mint{Sender: data.Sender, Amount0: amounts["amount0"], Amount1: amounts["amount1"]}
	case model.EventBurn:
		var data model.BurnEventData
		if err := decodePayload(record, &data); err != nil {
			return ledger.Event{}, err
		}
		amounts, err := parseBigs(map[string]string{"amount0": data.Amount0, "amount1": data.Amount1})
		if err != nil {
			return ledger.Event{}, err
		}
		ev.Burn = &ledger.Burn{Sender: data.Sender, Amount0: amounts["amount0"], Amount1: amounts["amount1"], To: data.To}
	case model.EventSync:
		var data model.SyncEventData
		if err := decodePayload(record, &data); err != nil {
			return ledger.Event{}, err
		}
		reserves, err := parseBigs(map[string]string{"reserve0": data.Reserve0, "reserve1": data.Reserve1})
		if err != nil {
			return ledger.Event{}, err
		}
		ev.Sync = &ledger.Sync{Reserve0: reserves["reserve0"], Reserve1: reserves["reserve1"]}
	}

	return ev, nil
}

func decodePayload(record model.TypedEventRecord, dst interface{}) error {
	if len(record.Decoded) == 0 || string(record.Decoded) == "null" {
		return fmt.Errorf("%s payload missing", record.EventName)
	}
	if err := json.Unmarshal(record.Decoded, dst); err != nil {
		return fmt.Errorf("%s payload: %w", record.EventName, err)
	}
	return nil
}

func parseBig(field, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid integer %q", field, value)
	}
	return out, nil
}

func parseBigs(fields map[string]string) (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(fields))
	for field, value := range fields {
		parsed, err := parseBig(field, value)
		if err != nil {
			return nil, err
		}
		out[field] = parsed
	}
	return out, nil
}

func parseOptionalBig(value string) (*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	return parseBig("value", value)
}
