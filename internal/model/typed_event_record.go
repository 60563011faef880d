package model

import "encoding/json"

// TypedEventRecord is the JSON representation read back by the processor.
type TypedEventRecord struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	BlockHash   string          `json:"block_hash"`
	TxHash      string          `json:"tx_hash"`
	TxIndex     uint64          `json:"tx_index"`
	LogIndex    uint64          `json:"log_index"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Timestamp   uint64          `json:"timestamp"`
	GasUsed     string          `json:"gas_used,omitempty"`
	GasPrice    string          `json:"gas_price,omitempty"`
	Decoded     json.RawMessage `json:"decoded"`
	Raw         *RawLogRef      `json:"raw,omitempty"`
}

// Position returns the total-order key of the event.
func (r TypedEventRecord) Position() EventPosition {
	return EventPosition{BlockNumber: r.BlockNumber, TxIndex: r.TxIndex, LogIndex: r.LogIndex}
}
