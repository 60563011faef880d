package model

import "math/big"

// PositionKind distinguishes provided liquidity from withdrawn liquidity.
type PositionKind string

const (
	PositionInvestment PositionKind = "INVESTMENT"
	PositionDebt       PositionKind = "DEBT"
)

// OperationKind is the kind of a pending liquidity operation.
type OperationKind string

const (
	OperationMint OperationKind = "MINT"
	OperationBurn OperationKind = "BURN"
)

// Account exists once per lowercase address.
type Account struct {
	ID string `json:"id"`
}

// Token is an ERC20 (or the native asset sentinel) first seen in a pair.
type Token struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Decimals       uint8  `json:"decimals"`
	BlockNumber    uint64 `json:"block_number"`
	Timestamp      uint64 `json:"timestamp"`
	MintedByMarket string `json:"minted_by_market"`
}

// Pair is a V2 pool and its current reserves and LP supply.
type Pair struct {
	ID          string        `json:"id"`
	Factory     string        `json:"factory"`
	Token0      string        `json:"token0"`
	Token1      string        `json:"token1"`
	Reserve0    *big.Int      `json:"reserve0"`
	Reserve1    *big.Int      `json:"reserve1"`
	TotalSupply *big.Int      `json:"total_supply"`
	BlockNumber uint64        `json:"block_number"`
	Timestamp   uint64        `json:"timestamp"`
	Applied     AppliedMarker `json:"applied"`
}

// PairSnapshot is an immutable copy of a pair taken at one mutation.
type PairSnapshot struct {
	ID               string   `json:"id"`
	Pair             string   `json:"pair"`
	Reserve0         *big.Int `json:"reserve0"`
	Reserve1         *big.Int `json:"reserve1"`
	TotalSupply      *big.Int `json:"total_supply"`
	BlockNumber      uint64   `json:"block_number"`
	Timestamp        uint64   `json:"timestamp"`
	TransactionHash  string   `json:"transaction_hash"`
	TransactionIndex uint64   `json:"transaction_index"`
	LogIndex         uint64   `json:"log_index"`
}

// TokenAmount describes an amount of one token attributed to an account.
type TokenAmount struct {
	ID      string   `json:"id"`
	Token   string   `json:"token"`
	Account string   `json:"account"`
	Amount  *big.Int `json:"amount"`
	Scaled  string   `json:"scaled"`
}

// Transaction aggregates everything the ledger learned about one transaction hash.
type Transaction struct {
	ID                 string        `json:"id"`
	From               string        `json:"from"`
	To                 string        `json:"to"`
	BlockNumber        uint64        `json:"block_number"`
	Timestamp          uint64        `json:"timestamp"`
	GasUsed            *big.Int      `json:"gas_used"`
	GasPrice           *big.Int      `json:"gas_price"`
	TransactionIndex   uint64        `json:"transaction_index"`
	LogIndex           uint64        `json:"log_index"`
	Market             string        `json:"market"`
	InputTokenAmounts  []TokenAmount `json:"input_token_amounts"`
	OutputTokenAmount  *big.Int      `json:"output_token_amount"`
	RewardTokenAmounts []TokenAmount `json:"reward_token_amounts"`
	SyncedPairs        []string      `json:"synced_pairs,omitempty"`
}

// Synced reports whether a Sync for pair was seen in this transaction.
func (t *Transaction) Synced(pair string) bool {
	for _, p := range t.SyncedPairs {
		if p == pair {
			return true
		}
	}
	return false
}

// LiquidityOperation is the pending Mint or Burn record correlating the Transfer, Sync and
// Mint/Burn logs of one transaction on one pair. OperationApplied is mintApplied for a mint
// and burnApplied for a burn.
type LiquidityOperation struct {
	ID                string        `json:"id"`
	Kind              OperationKind `json:"kind"`
	Pair              string        `json:"pair"`
	Transaction       string        `json:"transaction"`
	Beneficiary       string        `json:"beneficiary"`
	Sender            string        `json:"sender,omitempty"`
	To                string        `json:"to,omitempty"`
	Liquidity         *big.Int      `json:"liquidity"`
	Amount0           *big.Int      `json:"amount0,omitempty"`
	Amount1           *big.Int      `json:"amount1,omitempty"`
	TransferApplied   bool          `json:"transfer_applied"`
	SyncApplied       bool          `json:"sync_applied"`
	OperationApplied  bool          `json:"operation_applied"`
	TransferLogIndex  uint64        `json:"transfer_log_index"`
	OperationLogIndex uint64        `json:"operation_log_index"`
	// Credited is set once the transfer's LP has been credited without a Mint.
	Credited          bool          `json:"credited,omitempty"`
}

// Complete is derived from the three flags on every call.
func (op *LiquidityOperation) Complete() bool {
	return op.TransferApplied && op.SyncApplied && op.OperationApplied
}

// AccountPosition is the aggregate root minting Position identities for one
// (account, market, kind).
type AccountPosition struct {
	ID              string       `json:"id"`
	Account         string       `json:"account"`
	Market          string       `json:"market"`
	PositionType    PositionKind `json:"position_type"`
	PositionCounter uint64       `json:"position_counter"`
}

// Position is an account's stake in a market, updated in place during its lifetime.
type Position struct {
	ID                  string        `json:"id"`
	AccountPosition     string        `json:"account_position"`
	Account             string        `json:"account"`
	Market              string        `json:"market"`
	PositionType        PositionKind  `json:"position_type"`
	OutputTokenBalance  *big.Int      `json:"output_token_balance"`
	InputTokenBalances  []TokenAmount `json:"input_token_balances"`
	RewardTokenBalances []TokenAmount `json:"reward_token_balances"`
	TransferredTo       []string      `json:"transferred_to"`
	HistoryCounter      uint64        `json:"history_counter"`
	Closed              bool          `json:"closed"`
	BlockNumber         uint64        `json:"block_number"`
	Timestamp           uint64        `json:"timestamp"`
	OpenedAt            EventPosition `json:"opened_at"`
	Applied             AppliedMarker `json:"applied"`
}

// Includes reports whether the event at pos has already been applied to the position. Events
// ordered before the position was opened belong to an earlier position.
func (p *Position) Includes(pos EventPosition) bool {
	return pos.Compare(p.OpenedAt) < 0 || p.Applied.Contains(pos)
}

// PositionSnapshot is an immutable copy of a position after one balance change.
type PositionSnapshot struct {
	ID                  string        `json:"id"`
	Position            string        `json:"position"`
	Transaction         string        `json:"transaction"`
	HistoryCounter      uint64        `json:"history_counter"`
	OutputTokenBalance  *big.Int      `json:"output_token_balance"`
	InputTokenBalances  []TokenAmount `json:"input_token_balances"`
	RewardTokenBalances []TokenAmount `json:"reward_token_balances"`
	TransferredTo       []string      `json:"transferred_to"`
	BlockNumber         uint64        `json:"block_number"`
	Timestamp           uint64        `json:"timestamp"`
}

// Market is the consumer view of a pair.
type Market struct {
	ID           string   `json:"id"`
	Account      string   `json:"account"`
	ProtocolName string   `json:"protocol_name"`
	ProtocolType string   `json:"protocol_type"`
	OutputToken  string   `json:"output_token"`
	InputTokens  []string `json:"input_tokens"`
	BlockNumber  uint64   `json:"block_number"`
	Timestamp    uint64   `json:"timestamp"`
}
