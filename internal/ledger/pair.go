package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative value %s", ErrAmountOutOfRange, v)
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: %s", ErrAmountOutOfRange, v)
	}
	return u, nil
}

// applySupplyDelta adds a signed delta to the pair's LP total supply. A result below zero is
// ErrSupplyUnderflow and leaves the pair untouched.
func applySupplyDelta(pair *model.Pair, delta *big.Int) error {
	supply, err := toUint256(pair.TotalSupply)
	if err != nil {
		return err
	}
	if delta == nil || delta.Sign() == 0 {
		return nil
	}
	magnitude, err := toUint256(new(big.Int).Abs(delta))
	if err != nil {
		return err
	}

	var (
		next  uint256.Int
		wraps bool
	)
	if delta.Sign() > 0 {
		_, wraps = next.AddOverflow(supply, magnitude)
		if wraps {
			return fmt.Errorf("%w: supply %s + %s", ErrAmountOutOfRange, supply.Dec(), magnitude.Dec())
		}
	} else {
		_, wraps = next.SubOverflow(supply, magnitude)
		if wraps {
			return fmt.Errorf("%w: pair %s supply %s - %s", ErrSupplyUnderflow, pair.ID, supply.Dec(), magnitude.Dec())
		}
	}
	pair.TotalSupply = next.ToBig()
	return nil
}

// syncReserves replaces both reserves with the values reported by a Sync.
func syncReserves(pair *model.Pair, reserve0, reserve1 *big.Int) error {
	r0, err := toUint256(reserve0)
	if err != nil {
		return fmt.Errorf("reserve0: %w", err)
	}
	r1, err := toUint256(reserve1)
	if err != nil {
		return fmt.Errorf("reserve1: %w", err)
	}
	pair.Reserve0 = r0.ToBig()
	pair.Reserve1 = r1.ToBig()
	return nil
}

func (l *Ledger) loadPair(ctx context.Context, address string) (model.Pair, bool, error) {
	return load[model.Pair](ctx, l.store, store.KindPair, PairID(address))
}

// commitPair appends the snapshot of the mutated pair, then saves the pair with ev marked as
// applied. A replay after a crash between the two writes finds the snapshot already present.
func (l *Ledger) commitPair(ctx context.Context, pair model.Pair, ev Event) error {
	if err := l.appendPairSnapshot(ctx, pair, ev); err != nil {
		return err
	}
	pair.Applied.Record(ev.Position())
	if err := l.store.Save(ctx, store.KindPair, pair.ID, pair); err != nil {
		return fmt.Errorf("save pair %s: %w", pair.ID, err)
	}
	return nil
}

func (l *Ledger) appendPairSnapshot(ctx context.Context, pair model.Pair, ev Event) error {
	snapshot := model.PairSnapshot{
		ID:               PairSnapshotID(ev.TxHash, ev.LogIndex),
		Pair:             pair.ID,
		Reserve0:         bigOrZero(pair.Reserve0),
		Reserve1:         bigOrZero(pair.Reserve1),
		TotalSupply:      bigOrZero(pair.TotalSupply),
		BlockNumber:      ev.BlockNumber,
		Timestamp:        ev.Timestamp,
		TransactionHash:  TransactionID(ev.TxHash),
		TransactionIndex: ev.TxIndex,
		LogIndex:         ev.LogIndex,
	}
	if _, err := l.store.Create(ctx, store.KindPairSnapshot, snapshot.ID, snapshot); err != nil {
		return fmt.Errorf("pair snapshot %s: %w", snapshot.ID, err)
	}
	return nil
}

// createPair is the only writer of a Pair. It is get-or-create: an existing pair is returned
// unchanged. The creation snapshot is written before the pair itself.
func (l *Ledger) createPair(ctx context.Context, ev Event, pairID, factory, token0, token1 string) (model.Pair, bool, error) {
	fresh := model.Pair{
		ID:          pairID,
		Factory:     factory,
		Token0:      token0,
		Token1:      token1,
		Reserve0:    new(big.Int),
		Reserve1:    new(big.Int),
		TotalSupply: new(big.Int),
		BlockNumber: ev.BlockNumber,
		Timestamp:   ev.Timestamp,
	}
	fresh.Applied.Record(ev.Position())

	if err := l.appendPairSnapshot(ctx, fresh, ev); err != nil {
		return model.Pair{}, false, err
	}
	pair, created, err := getOrCreate(ctx, l.store, store.KindPair, pairID, func() model.Pair { return fresh })
	if err != nil {
		return model.Pair{}, false, err
	}
	if created {
		l.logger.Info("pair created",
			zap.String("pair", pair.ID),
			zap.String("token0", token0),
			zap.String("token1", token1),
			zap.Uint64("block", ev.BlockNumber),
		)
	}
	return pair, created, nil
}
