package dex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"liquidityLedger/internal/retry"
)

// UnknownText is returned for a name or symbol that cannot be read.
const UnknownText = "unknown"

var errReverted = errors.New("call reverted")

// ContractCaller performs eth_call. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// MetadataOptions configures retries of transient call failures.
type MetadataOptions struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// TokenMetadata reads ERC20 metadata and LP balances from chain. A reverted call falls back to
// the bytes32 call form; when that reverts too the value is reported as unknown. Transient
// failures are retried and, once exhausted, treated like a revert. Only context cancellation is
// returned as an error.
type TokenMetadata struct {
	caller ContractCaller
	opts   MetadataOptions
	logger *zap.Logger
}

// NewTokenMetadata builds the metadata adapter.
func NewTokenMetadata(caller ContractCaller, opts MetadataOptions, logger *zap.Logger) (*TokenMetadata, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenMetadata{caller: caller, opts: opts, logger: logger}, nil
}

// FetchName returns the token name or UnknownText.
func (m *TokenMetadata) FetchName(ctx context.Context, token string) (string, error) {
	return m.fetchText(ctx, token, "name")
}

// FetchSymbol returns the token symbol or UnknownText.
func (m *TokenMetadata) FetchSymbol(ctx context.Context, token string) (string, error) {
	return m.fetchText(ctx, token, "symbol")
}

// FetchDecimals returns the token decimals. known is false when neither the uint8 nor the
// uint256 form could be read; decimals is never defaulted.
func (m *TokenMetadata) FetchDecimals(ctx context.Context, token string) (uint8, bool, error) {
	if !common.IsHexAddress(token) {
		return 0, false, nil
	}
	address := common.HexToAddress(token)

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return 0, false, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	values, err := m.call(ctx, address, stringABI, "decimals", nil)
	if err == nil {
		if decimals, err := asUint8(values[0]); err == nil {
			return decimals, true, nil
		}
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, false, ctxErr
	}

	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return 0, false, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	values, err = m.call(ctx, address, bytes32ABI, "decimals", nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, false, ctxErr
		}
		m.logger.Debug("decimals call failed", zap.String("token", address.Hex()), zap.Error(err))
		return 0, false, nil
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		m.logger.Debug("decimals out of range", zap.String("token", address.Hex()), zap.Error(err))
		return 0, false, nil
	}
	return decimals, true, nil
}

// FetchLPBalance returns balanceOf(account) on the pair at blockNumber, or at the latest block
// when blockNumber is zero.
func (m *TokenMetadata) FetchLPBalance(ctx context.Context, pair, account string, blockNumber uint64) (*big.Int, bool, error) {
	if !common.IsHexAddress(pair) || !common.IsHexAddress(account) {
		return nil, false, nil
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, false, fmt.Errorf("parse pair abi: %w", err)
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	values, err := m.call(ctx, common.HexToAddress(pair), pairABI, "balanceOf", block, common.HexToAddress(account))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		m.logger.Debug("balanceOf call failed", zap.String("pair", pair), zap.String("account", account), zap.Error(err))
		return nil, false, nil
	}
	balance, err := asBigInt(values[0])
	if err != nil {
		return nil, false, nil
	}
	return balance, true, nil
}

func (m *TokenMetadata) fetchText(ctx context.Context, token, method string) (string, error) {
	if !common.IsHexAddress(token) {
		return UnknownText, nil
	}
	address := common.HexToAddress(token)

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		return "", fmt.Errorf("parse erc20 string abi: %w", err)
	}
	values, err := m.call(ctx, address, stringABI, method, nil)
	if err == nil {
		if text, ok := values[0].(string); ok && text != "" {
			return text, nil
		}
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}

	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return "", fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	values, err = m.call(ctx, address, bytes32ABI, method, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		m.logger.Debug(method+" call failed", zap.String("token", address.Hex()), zap.Error(err))
		return UnknownText, nil
	}
	if text, ok := bytes32ToString(values[0]); ok && text != "" {
		return text, nil
	}
	return UnknownText, nil
}

// call packs, performs and unpacks one eth_call. Reverts and undecodable results are not
// retried.
func (m *TokenMetadata) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}

	var values []interface{}
	err = retry.Do(ctx, m.opts.MaxRetries, m.opts.RetryBaseDelay, func(ctx context.Context) error {
		resp, err := m.caller.CallContract(ctx, msg, block)
		if err != nil {
			if isRevert(err) {
				return retry.Permanent(fmt.Errorf("%w: %s: %v", errReverted, method, err))
			}
			return fmt.Errorf("call %s: %w", method, err)
		}
		out, err := parsed.Unpack(method, resp)
		if err != nil || len(out) == 0 {
			return retry.Permanent(fmt.Errorf("%w: unpack %s: %v", errReverted, method, err))
		}
		values = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func isRevert(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == 3 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	if v, ok := value.(uint8); ok {
		return v, nil
	}
	n, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if n.Sign() < 0 || n.Cmp(big.NewInt(255)) > 0 {
		return 0, fmt.Errorf("uint8 overflow: %s", n.String())
	}
	return uint8(n.Uint64()), nil
}
