package model

// Event names emitted by the decoder and routed by the ledger dispatcher.
const (
	EventPairCreated = "PairCreated"
	EventTransfer    = "Transfer"
	EventMint        = "Mint"
	EventBurn        = "Burn"
	EventSync        = "Sync"
	// EventSwap is decoded for completeness; the ledger ignores it.
	EventSwap = "Swap"
)

// PairCreatedEventData is the decoded factory PairCreated payload.
type PairCreatedEventData struct {
	Token0    string `json:"token0"`
	Token1    string `json:"token1"`
	Pair      string `json:"pair"`
	PairCount string `json:"pair_count"`
}

// TransferEventData is the decoded LP-token Transfer payload.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// MintEventData is the decoded pair Mint payload.
type MintEventData struct {
	Sender  string `json:"sender"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
}

// BurnEventData is the decoded pair Burn payload.
type BurnEventData struct {
	Sender  string `json:"sender"`
	Amount0 string `json:"amount0"`
	Amount1 string `json:"amount1"`
	To      string `json:"to"`
}

// SyncEventData is the decoded pair Sync payload.
type SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// SwapEventData is the decoded pair Swap payload.
type SwapEventData struct {
	Sender     string `json:"sender"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
	To         string `json:"to"`
}
