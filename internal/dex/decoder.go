package dex

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityLedger/internal/model"
)

// Decoder defines a log decoder.
type Decoder interface {
	CanDecode(topic0 string) bool
	Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error)
}

// GasSource resolves the gas used and effective gas price of a transaction.
type GasSource interface {
	TransactionGas(ctx context.Context, txHash common.Hash) (gasUsed *big.Int, gasPrice *big.Int, err error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context      context.Context
	Gas          GasSource
	GasCache     *TxGasCache
	Logger       *zap.Logger
	IncludeTxGas bool
}

// TxGas is the gas usage of one transaction.
type TxGas struct {
	GasUsed  string
	GasPrice string
}

// TxGasCache caches transaction gas by hash. Every log of a transaction shares one receipt.
type TxGasCache struct {
	mu   sync.RWMutex
	data map[common.Hash]TxGas
}

func NewTxGasCache() *TxGasCache {
	return &TxGasCache{data: make(map[common.Hash]TxGas)}
}

func (c *TxGasCache) Get(hash common.Hash) (TxGas, bool) {
	c.mu.RLock()
	gas, ok := c.data[hash]
	c.mu.RUnlock()
	return gas, ok
}

func (c *TxGasCache) Set(hash common.Hash, gas TxGas) {
	c.mu.Lock()
	c.data[hash] = gas
	c.mu.Unlock()
}

func lookupTxGas(ctx DecodeContext, txHash string) (TxGas, bool) {
	if !ctx.IncludeTxGas || ctx.Gas == nil {
		return TxGas{}, false
	}
	hash := common.HexToHash(txHash)
	if ctx.GasCache != nil {
		if gas, ok := ctx.GasCache.Get(hash); ok {
			return gas, true
		}
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}
	used, price, err := ctx.Gas.TransactionGas(callCtx, hash)
	if err != nil {
		if ctx.Logger != nil {
			ctx.Logger.Warn("transaction gas lookup failed", zap.String("tx_hash", txHash), zap.Error(err))
		}
		return TxGas{}, false
	}

	gas := TxGas{GasUsed: bigString(used), GasPrice: bigString(price)}
	if ctx.GasCache != nil {
		ctx.GasCache.Set(hash, gas)
	}
	return gas, true
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
