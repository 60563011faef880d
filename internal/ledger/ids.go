package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquidityLedger/internal/model"
)

// Identities are derived from content only so that re-delivering an event re-derives the
// same keys.

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// AccountID is the lowercase hex address.
func AccountID(address string) string { return normalizeAddress(address) }

// TokenID is the lowercase token contract address.
func TokenID(address string) string { return normalizeAddress(address) }

// PairID is the lowercase pool contract address.
func PairID(address string) string { return normalizeAddress(address) }

// MarketID is the id of the pair the market is derived from.
func MarketID(pairID string) string { return pairID }

// TransactionID is the lowercase transaction hash.
func TransactionID(txHash string) string { return normalizeAddress(txHash) }

// PairSnapshotID is txHash-logIndex.
func PairSnapshotID(txHash string, logIndex uint64) string {
	return TransactionID(txHash) + "-" + hexutil.EncodeUint64(logIndex)
}

// OperationID keys the one pending Mint or Burn record of a pair within a transaction.
func OperationID(txHash, pairID string) string {
	return TransactionID(txHash) + "-" + pairID
}

// AccountPositionID is account-market-kind.
func AccountPositionID(account, marketID string, kind model.PositionKind) string {
	return account + "-" + marketID + "-" + string(kind)
}

// PositionID is accountPositionId-counter with a hex counter.
func PositionID(accountPositionID string, counter uint64) string {
	return accountPositionID + "-" + hexutil.EncodeUint64(counter)
}

// PositionSnapshotID is positionId-historyCounter with a hex counter.
func PositionSnapshotID(positionID string, historyCounter uint64) string {
	return positionID + "-" + hexutil.EncodeUint64(historyCounter)
}

// TokenAmountID is token-account-amount with a hex amount.
func TokenAmountID(token, account string, amount *big.Int) string {
	if amount == nil {
		amount = new(big.Int)
	}
	return token + "-" + account + "-" + hexutil.EncodeBig(amount)
}
