package ledger

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

// PositionChange is the balance update one event makes to a position. Balances only move by
// the exact LP amount of the event.
type PositionChange struct {
	Delta *big.Int
	// TransferredTo is appended to the transferred-to list when set.
	TransferredTo string
}

// CreateOrUpdatePosition is the single entry point for position mutations. It finds the open
// position of (account, market, kind), opening the next one on the aggregate when there is
// none, applies the change and appends a snapshot at the current history counter before
// incrementing it. Re-applying the same event returns the position unchanged.
func (l *Ledger) CreateOrUpdatePosition(ctx context.Context, account, marketID string, kind model.PositionKind, tx model.Transaction, ev Event, change PositionChange) (model.Position, error) {
	pos := ev.Position()
	apID := AccountPositionID(account, marketID, kind)
	aggregate, _, err := getOrCreate(ctx, l.store, store.KindAccountPosition, apID, func() model.AccountPosition {
		return model.AccountPosition{
			ID:           apID,
			Account:      account,
			Market:       marketID,
			PositionType: kind,
		}
	})
	if err != nil {
		return model.Position{}, err
	}

	position, found, err := l.currentPosition(ctx, aggregate, pos)
	if err != nil {
		return model.Position{}, err
	}
	if !found {
		if position, err = l.openPosition(ctx, aggregate, ev); err != nil {
			return model.Position{}, err
		}
	}
	if position.Includes(pos) {
		return position, nil
	}

	balance := bigOrZero(position.OutputTokenBalance)
	if change.Delta != nil {
		balance.Add(balance, change.Delta)
		if balance.Sign() < 0 {
			return model.Position{}, fmt.Errorf("%w: position %s balance %s", ErrSupplyUnderflow, position.ID, balance)
		}
	}
	if _, err := toUint256(balance); err != nil {
		return model.Position{}, err
	}
	position.OutputTokenBalance = balance

	if len(tx.InputTokenAmounts) > 0 {
		position.InputTokenBalances = append([]model.TokenAmount(nil), tx.InputTokenAmounts...)
	}
	if change.TransferredTo != "" && !contains(position.TransferredTo, change.TransferredTo) {
		position.TransferredTo = append(position.TransferredTo, change.TransferredTo)
	}
	if kind == model.PositionInvestment && balance.Sign() == 0 {
		position.Closed = true
	}

	snapshot := model.PositionSnapshot{
		ID:                  PositionSnapshotID(position.ID, position.HistoryCounter),
		Position:            position.ID,
		Transaction:         tx.ID,
		HistoryCounter:      position.HistoryCounter,
		OutputTokenBalance:  bigOrZero(position.OutputTokenBalance),
		InputTokenBalances:  position.InputTokenBalances,
		RewardTokenBalances: position.RewardTokenBalances,
		TransferredTo:       position.TransferredTo,
		BlockNumber:         ev.BlockNumber,
		Timestamp:           ev.Timestamp,
	}
	if _, err := l.store.Create(ctx, store.KindPositionSnapshot, snapshot.ID, snapshot); err != nil {
		return model.Position{}, fmt.Errorf("position snapshot %s: %w", snapshot.ID, err)
	}

	position.HistoryCounter++
	position.Applied.Record(pos)
	if err := l.store.Save(ctx, store.KindPosition, position.ID, position); err != nil {
		return model.Position{}, fmt.Errorf("save position %s: %w", position.ID, err)
	}
	return position, nil
}

// currentPosition returns the latest position of the aggregate unless it is closed. A closed
// position is still returned when pos was already applied to it.
func (l *Ledger) currentPosition(ctx context.Context, aggregate model.AccountPosition, pos model.EventPosition) (model.Position, bool, error) {
	if aggregate.PositionCounter == 0 {
		return model.Position{}, false, nil
	}
	id := PositionID(aggregate.ID, aggregate.PositionCounter-1)
	position, ok, err := load[model.Position](ctx, l.store, store.KindPosition, id)
	if err != nil || !ok {
		return model.Position{}, false, err
	}
	if position.Closed && !position.Includes(pos) {
		return model.Position{}, false, nil
	}
	return position, true, nil
}

// openPosition creates the position at the aggregate's counter, then advances the counter.
// The first INVESTMENT position of an account starts from its LP balance before the block, so
// holdings from before the indexed range are carried in.
func (l *Ledger) openPosition(ctx context.Context, aggregate model.AccountPosition, ev Event) (model.Position, error) {
	opening, err := l.openingBalance(ctx, aggregate, ev)
	if err != nil {
		return model.Position{}, err
	}
	id := PositionID(aggregate.ID, aggregate.PositionCounter)
	position, _, err := getOrCreate(ctx, l.store, store.KindPosition, id, func() model.Position {
		return model.Position{
			ID:                  id,
			AccountPosition:     aggregate.ID,
			Account:             aggregate.Account,
			Market:              aggregate.Market,
			PositionType:        aggregate.PositionType,
			OutputTokenBalance:  opening,
			InputTokenBalances:  []model.TokenAmount{},
			RewardTokenBalances: []model.TokenAmount{},
			TransferredTo:       []string{},
			BlockNumber:         ev.BlockNumber,
			Timestamp:           ev.Timestamp,
			OpenedAt:            ev.Position(),
		}
	})
	if err != nil {
		return model.Position{}, err
	}

	aggregate.PositionCounter++
	if err := l.store.Save(ctx, store.KindAccountPosition, aggregate.ID, aggregate); err != nil {
		return model.Position{}, fmt.Errorf("save account position %s: %w", aggregate.ID, err)
	}
	return position, nil
}

func (l *Ledger) openingBalance(ctx context.Context, aggregate model.AccountPosition, ev Event) (*big.Int, error) {
	if aggregate.PositionCounter > 0 || aggregate.PositionType != model.PositionInvestment || ev.BlockNumber < 2 {
		return new(big.Int), nil
	}
	balance, known, err := l.meta.FetchLPBalance(ctx, aggregate.Market, aggregate.Account, ev.BlockNumber-1)
	if err != nil {
		return nil, err
	}
	if !known {
		l.logger.Debug("lp balance unavailable, opening position at zero",
			zap.String("pair", aggregate.Market),
			zap.String("account", aggregate.Account),
			zap.Uint64("block", ev.BlockNumber-1),
		)
		return new(big.Int), nil
	}
	if _, err := toUint256(balance); err != nil {
		return nil, err
	}
	return new(big.Int).Set(balance), nil
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
