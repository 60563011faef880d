package ledger

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

// A mint or burn is spread over three logs of one transaction: the LP Transfer from or to the
// zero address, the Sync of the new reserves and the Mint or Burn itself. They are correlated
// through one LiquidityOperation record per (transaction, pair) whose flags only turn on.

func operationKind(kind model.OperationKind) store.Kind {
	if kind == model.OperationBurn {
		return store.KindBurn
	}
	return store.KindMint
}

func (l *Ledger) loadOperation(ctx context.Context, kind model.OperationKind, txHash, pairID string) (model.LiquidityOperation, bool, error) {
	return load[model.LiquidityOperation](ctx, l.store, operationKind(kind), OperationID(txHash, pairID))
}

func (l *Ledger) saveOperation(ctx context.Context, op model.LiquidityOperation) error {
	if err := l.store.Save(ctx, operationKind(op.Kind), op.ID, op); err != nil {
		return fmt.Errorf("save %s %s: %w", op.Kind, op.ID, err)
	}
	return nil
}

func (l *Ledger) handleTransfer(ctx context.Context, ev Event, pair model.Pair) error {
	t := ev.Transfer
	if t == nil || t.Value == nil {
		return ErrMalformedEvent
	}
	from := normalizeAddress(t.From)
	to := normalizeAddress(t.To)
	zero := l.cfg.ZeroAddress

	switch {
	case from == zero && to == zero:
		return l.handleLockTransfer(ctx, ev, pair)
	case from == zero:
		return l.handleSupplyTransfer(ctx, ev, pair, model.OperationMint, from, to, to, t.Value)
	case to == zero && from == pair.ID:
		return l.handleSupplyTransfer(ctx, ev, pair, model.OperationBurn, from, to, from, new(big.Int).Neg(t.Value))
	default:
		return l.handleHolderTransfer(ctx, ev, pair, from, to, t.Value)
	}
}

// handleLockTransfer counts the minimum liquidity minted to the zero address on the first
// deposit. It belongs to nobody, so no record or position is touched.
func (l *Ledger) handleLockTransfer(ctx context.Context, ev Event, pair model.Pair) error {
	if pair.Applied.Contains(ev.Position()) {
		return nil
	}
	if err := applySupplyDelta(&pair, ev.Transfer.Value); err != nil {
		return err
	}
	if _, err := l.getOrCreateTransaction(ctx, ev, "", "", MarketID(pair.ID)); err != nil {
		return err
	}
	return l.commitPair(ctx, pair, ev)
}

// handleSupplyTransfer applies an LP Transfer from the zero address (mint) or from the pair to
// the zero address (burn): the supply changes by delta and the pending record of the kind gets
// its transfer flag.
func (l *Ledger) handleSupplyTransfer(ctx context.Context, ev Event, pair model.Pair, kind model.OperationKind, from, to, beneficiary string, delta *big.Int) error {
	supplyApplied := pair.Applied.Contains(ev.Position())
	if !supplyApplied {
		if err := applySupplyDelta(&pair, delta); err != nil {
			return err
		}
	}

	op, exists, err := l.loadOperation(ctx, kind, ev.TxHash, pair.ID)
	if err != nil {
		return err
	}
	update, err := transferUpdate(op, exists, kind, ev)
	if err != nil {
		return err
	}

	if _, err := l.GetOrCreateAccount(ctx, beneficiary); err != nil {
		return err
	}
	tx, err := l.getOrCreateTransaction(ctx, ev, from, to, MarketID(pair.ID))
	if err != nil {
		return err
	}
	if !supplyApplied {
		if err := l.commitPair(ctx, pair, ev); err != nil {
			return err
		}
	}
	if kind == model.OperationBurn {
		if err := l.creditUnconsumedMint(ctx, ev, pair, tx); err != nil {
			return err
		}
	}
	if !update {
		return nil
	}

	if !exists {
		op = model.LiquidityOperation{
			ID:          OperationID(ev.TxHash, pair.ID),
			Kind:        kind,
			Pair:        pair.ID,
			Transaction: tx.ID,
		}
	} else if op.TransferApplied {
		l.logger.Debug("pending mint superseded by later transfer",
			zap.String("tx_hash", tx.ID),
			zap.String("pair", pair.ID),
			zap.String("previous", op.Beneficiary),
			zap.String("beneficiary", beneficiary),
		)
		if err := l.creditPendingMint(ctx, ev, pair, tx, op); err != nil {
			return err
		}
	}
	op.Credited = false
	op.Beneficiary = beneficiary
	op.Liquidity = new(big.Int).Abs(delta)
	op.TransferApplied = true
	op.TransferLogIndex = ev.LogIndex
	op.SyncApplied = op.SyncApplied || tx.Synced(pair.ID)
	return l.saveOperation(ctx, op)
}

// transferUpdate decides whether a supply transfer writes the pending record. An earlier
// zero-address transfer of a mint is superseded by a later one until the Mint is applied; the
// first of them is usually the protocol fee.
func transferUpdate(op model.LiquidityOperation, exists bool, kind model.OperationKind, ev Event) (bool, error) {
	if !exists || !op.TransferApplied {
		return true, nil
	}
	switch {
	case ev.LogIndex == op.TransferLogIndex:
		return false, nil
	case ev.LogIndex < op.TransferLogIndex:
		return false, nil
	case kind == model.OperationMint && !op.OperationApplied:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s %s transfer at log %d after log %d", ErrMultipleOperations, kind, op.ID, ev.LogIndex, op.TransferLogIndex)
	}
}

// creditPendingMint credits the LP of a zero-address transfer that no Mint will consume, such
// as the protocol fee minted before a deposit or a withdrawal. The position update is keyed by
// that transfer's log index.
func (l *Ledger) creditPendingMint(ctx context.Context, ev Event, pair model.Pair, tx model.Transaction, op model.LiquidityOperation) error {
	if op.Credited || op.Beneficiary == "" {
		return nil
	}
	mintEv := ev
	mintEv.LogIndex = op.TransferLogIndex
	mintEv.Transfer = nil
	tx.InputTokenAmounts = nil
	change := PositionChange{Delta: bigOrZero(op.Liquidity)}
	if _, err := l.CreateOrUpdatePosition(ctx, op.Beneficiary, MarketID(pair.ID), model.PositionInvestment, tx, mintEv, change); err != nil {
		return fmt.Errorf("credit %s %s: %w", op.Kind, op.ID, err)
	}
	return nil
}

// creditUnconsumedMint credits the fee minted ahead of a burn in the same transaction.
func (l *Ledger) creditUnconsumedMint(ctx context.Context, ev Event, pair model.Pair, tx model.Transaction) error {
	op, exists, err := l.loadOperation(ctx, model.OperationMint, ev.TxHash, pair.ID)
	if err != nil {
		return err
	}
	if !exists || !op.TransferApplied || op.OperationApplied || op.Credited {
		return nil
	}
	if err := l.creditPendingMint(ctx, ev, pair, tx, op); err != nil {
		return err
	}
	op.Credited = true
	return l.saveOperation(ctx, op)
}

// handleHolderTransfer moves LP tokens between holders. Each side that is neither the zero
// address nor the pair has its INVESTMENT position moved by the transferred value.
func (l *Ledger) handleHolderTransfer(ctx context.Context, ev Event, pair model.Pair, from, to string, value *big.Int) error {
	if _, err := toUint256(value); err != nil {
		return err
	}
	type side struct {
		account string
		change  PositionChange
	}
	var sides []side
	if from != l.cfg.ZeroAddress && from != pair.ID {
		sides = append(sides, side{account: from, change: PositionChange{Delta: new(big.Int).Neg(value), TransferredTo: to}})
	}
	if to != l.cfg.ZeroAddress && to != pair.ID {
		sides = append(sides, side{account: to, change: PositionChange{Delta: new(big.Int).Set(value)}})
	}

	if _, err := l.GetOrCreateAccount(ctx, from); err != nil {
		return err
	}
	if _, err := l.GetOrCreateAccount(ctx, to); err != nil {
		return err
	}
	tx, err := l.getOrCreateTransaction(ctx, ev, from, to, MarketID(pair.ID))
	if err != nil {
		return err
	}
	for _, s := range sides {
		if _, err := l.CreateOrUpdatePosition(ctx, s.account, MarketID(pair.ID), model.PositionInvestment, tx, ev, s.change); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) handleMint(ctx context.Context, ev Event, pair model.Pair) error {
	m := ev.Mint
	if m == nil {
		return ErrMalformedEvent
	}
	return l.applyOperation(ctx, ev, pair, model.OperationMint, m.Sender, "", m.Amount0, m.Amount1)
}

func (l *Ledger) handleBurn(ctx context.Context, ev Event, pair model.Pair) error {
	b := ev.Burn
	if b == nil {
		return ErrMalformedEvent
	}
	return l.applyOperation(ctx, ev, pair, model.OperationBurn, b.Sender, normalizeAddress(b.To), b.Amount0, b.Amount1)
}

// applyOperation completes the Mint or Burn side of a pending record. The record must exist;
// the position is updated with the amounts carried by this event only, whatever the state of
// the sync flag. The record is saved last so that a replay after a partial failure redoes the
// idempotent steps before it.
func (l *Ledger) applyOperation(ctx context.Context, ev Event, pair model.Pair, kind model.OperationKind, sender, recipient string, amount0, amount1 *big.Int) error {
	op, exists, err := l.loadOperation(ctx, kind, ev.TxHash, pair.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s without pending record in tx %s", ErrOrderingViolation, kind, ev.TxHash)
	}
	if op.OperationApplied {
		if op.OperationLogIndex == ev.LogIndex {
			return nil
		}
		return fmt.Errorf("%w: %s %s at log %d after log %d", ErrMultipleOperations, kind, op.ID, ev.LogIndex, op.OperationLogIndex)
	}
	if _, err := toUint256(amount0); err != nil {
		return err
	}
	if _, err := toUint256(amount1); err != nil {
		return err
	}

	token0, err := mustLoad[model.Token](ctx, l.store, store.KindToken, pair.Token0)
	if err != nil {
		return err
	}
	token1, err := mustLoad[model.Token](ctx, l.store, store.KindToken, pair.Token1)
	if err != nil {
		return err
	}
	tx, err := mustLoad[model.Transaction](ctx, l.store, store.KindTransaction, TransactionID(ev.TxHash))
	if err != nil {
		return err
	}

	positionKind := model.PositionInvestment
	account := op.Beneficiary
	if kind == model.OperationBurn {
		positionKind = model.PositionDebt
		if recipient != "" {
			account = recipient
		}
	}
	if _, err := l.GetOrCreateAccount(ctx, account); err != nil {
		return err
	}

	tx.InputTokenAmounts = []model.TokenAmount{
		tokenAmount(token0, account, amount0),
		tokenAmount(token1, account, amount1),
	}
	tx.OutputTokenAmount = bigOrZero(op.Liquidity)
	if err := l.saveTransaction(ctx, tx); err != nil {
		return err
	}

	change := PositionChange{Delta: bigOrZero(op.Liquidity)}
	if op.Credited {
		change.Delta = new(big.Int)
	}
	if _, err := l.CreateOrUpdatePosition(ctx, account, MarketID(pair.ID), positionKind, tx, ev, change); err != nil {
		return err
	}

	op.Sender = normalizeAddress(sender)
	op.To = recipient
	op.Amount0 = bigOrZero(amount0)
	op.Amount1 = bigOrZero(amount1)
	op.OperationApplied = true
	op.OperationLogIndex = ev.LogIndex
	if err := l.saveOperation(ctx, op); err != nil {
		return err
	}
	if op.Complete() {
		l.logger.Debug("liquidity operation complete",
			zap.String("kind", string(kind)),
			zap.String("tx_hash", tx.ID),
			zap.String("pair", pair.ID),
		)
	}
	return nil
}

// handleSync replaces the pair reserves and flags the pending records of the transaction. The
// pair is remembered on the transaction so a record created later starts with its sync flag on.
func (l *Ledger) handleSync(ctx context.Context, ev Event, pair model.Pair) error {
	s := ev.Sync
	if s == nil {
		return ErrMalformedEvent
	}
	reservesApplied := pair.Applied.Contains(ev.Position())
	if !reservesApplied {
		if err := syncReserves(&pair, s.Reserve0, s.Reserve1); err != nil {
			return err
		}
	}

	tx, err := l.getOrCreateTransaction(ctx, ev, "", "", MarketID(pair.ID))
	if err != nil {
		return err
	}
	if !tx.Synced(pair.ID) {
		tx.SyncedPairs = append(tx.SyncedPairs, pair.ID)
		if err := l.saveTransaction(ctx, tx); err != nil {
			return err
		}
	}

	for _, kind := range []model.OperationKind{model.OperationMint, model.OperationBurn} {
		op, exists, err := l.loadOperation(ctx, kind, ev.TxHash, pair.ID)
		if err != nil {
			return err
		}
		if !exists || op.SyncApplied {
			continue
		}
		op.SyncApplied = true
		if err := l.saveOperation(ctx, op); err != nil {
			return err
		}
	}

	if reservesApplied {
		return nil
	}
	return l.commitPair(ctx, pair, ev)
}
