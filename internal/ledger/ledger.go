package ledger

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"liquidityLedger/internal/store"
)

// Config holds the chain constants the ledger needs.
type Config struct {
	ZeroAddress    string
	FactoryAddress string
	// NativeToken is the sentinel token id of the chain's native asset.
	NativeToken  string
	ProtocolName string
	ProtocolType string
}

// DefaultConfig returns the Uniswap V2 mainnet constants.
func DefaultConfig() Config {
	return Config{
		ZeroAddress:    "0x0000000000000000000000000000000000000000",
		FactoryAddress: "0x5c69bee701ef814a2b6a3edd4b1652cb9cc5aa6f",
		NativeToken:    "0x0000000000000000000000000000000000000000",
		ProtocolName:   "UNISWAP_V2",
		ProtocolType:   "EXCHANGE",
	}
}

// MetadataSource performs the external contract calls the ledger depends on. Reverted calls
// are not errors: name and symbol fall back to "unknown", decimals and balances report
// known=false. Errors are reserved for cancellation.
type MetadataSource interface {
	FetchName(ctx context.Context, token string) (string, error)
	FetchSymbol(ctx context.Context, token string) (string, error)
	FetchDecimals(ctx context.Context, token string) (decimals uint8, known bool, err error)
	FetchLPBalance(ctx context.Context, pair, account string, blockNumber uint64) (balance *big.Int, known bool, err error)
}

// Ledger applies ordered AMM events to the entity store. It is not safe for concurrent use;
// callers serialize events, or shard them by pair with a store whose Create is atomic.
type Ledger struct {
	cfg    Config
	store  store.Store
	meta   MetadataSource
	logger *zap.Logger
}

// New builds a Ledger.
func New(cfg Config, s store.Store, meta MetadataSource, logger *zap.Logger) (*Ledger, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if meta == nil {
		return nil, fmt.Errorf("metadata source is nil")
	}
	if cfg.ZeroAddress == "" || cfg.FactoryAddress == "" {
		return nil, fmt.Errorf("zero and factory addresses are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.ZeroAddress = normalizeAddress(cfg.ZeroAddress)
	cfg.FactoryAddress = normalizeAddress(cfg.FactoryAddress)
	cfg.NativeToken = normalizeAddress(cfg.NativeToken)
	if cfg.ProtocolName == "" {
		cfg.ProtocolName = "UNISWAP_V2"
	}
	if cfg.ProtocolType == "" {
		cfg.ProtocolType = "EXCHANGE"
	}

	return &Ledger{cfg: cfg, store: s, meta: meta, logger: logger}, nil
}
