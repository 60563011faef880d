package ledger

import (
	"math/big"

	"liquidityLedger/internal/model"
)

// Event is one decoded log routed to the ledger.
type Event struct {
	Kind        string
	Address     string
	BlockNumber uint64
	Timestamp   uint64
	TxHash      string
	TxIndex     uint64
	LogIndex    uint64
	GasUsed     *big.Int
	GasPrice    *big.Int

	PairCreated *PairCreated
	Transfer    *Transfer
	Mint        *Mint
	Burn        *Burn
	Sync        *Sync
}

// Position returns the total-order key of the event.
func (e Event) Position() model.EventPosition {
	return model.EventPosition{BlockNumber: e.BlockNumber, TxIndex: e.TxIndex, LogIndex: e.LogIndex}
}

type PairCreated struct {
	Token0 string
	Token1 string
	Pair   string
}

type Transfer struct {
	From  string
	To    string
	Value *big.Int
}

type Mint struct {
	Sender  string
	Amount0 *big.Int
	Amount1 *big.Int
}

type Burn struct {
	Sender  string
	Amount0 *big.Int
	Amount1 *big.Int
	To      string
}

type Sync struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}
