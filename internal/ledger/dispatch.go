package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"liquidityLedger/internal/model"
)

// Outcome reports what Apply did with an event.
type Outcome int

const (
	// Applied means the event was routed to its handler and committed.
	Applied Outcome = iota
	// Skipped means the event does not concern a tracked factory or pair.
	Skipped
	// Dropped means the event was not applied. Without an error the failure was recoverable
	// and nothing was written.
	Dropped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Dropped:
		return "dropped"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Apply routes one event to its handler. Events must be delivered in (block, tx index, log
// index) order. A returned error is an *EventError; IsFatal tells whether processing must halt.
func (l *Ledger) Apply(ctx context.Context, ev Event) (Outcome, error) {
	address := normalizeAddress(ev.Address)

	var err error
	switch ev.Kind {
	case model.EventPairCreated:
		if address != l.cfg.FactoryAddress {
			l.logger.Debug("pair created by unknown factory", zap.String("address", address), zap.String("tx_hash", ev.TxHash))
			return Skipped, nil
		}
		err = l.handlePairCreated(ctx, ev)
	case model.EventTransfer, model.EventMint, model.EventBurn, model.EventSync:
		pair, ok, loadErr := l.loadPair(ctx, address)
		if loadErr != nil {
			return Dropped, l.eventError(ev, loadErr)
		}
		if !ok {
			l.logger.Debug("event for untracked pair",
				zap.String("event", ev.Kind),
				zap.String("address", address),
				zap.String("tx_hash", ev.TxHash),
			)
			return Skipped, nil
		}
		switch ev.Kind {
		case model.EventTransfer:
			err = l.handleTransfer(ctx, ev, pair)
		case model.EventMint:
			err = l.handleMint(ctx, ev, pair)
		case model.EventBurn:
			err = l.handleBurn(ctx, ev, pair)
		default:
			err = l.handleSync(ctx, ev, pair)
		}
	default:
		return Skipped, nil
	}

	if err == nil {
		return Applied, nil
	}
	if errors.Is(err, ErrMetadataUnavailable) {
		l.logger.Warn("event dropped",
			zap.String("event", ev.Kind),
			zap.String("address", address),
			zap.String("tx_hash", ev.TxHash),
			zap.Uint64("log_index", ev.LogIndex),
			zap.Error(err),
		)
		return Dropped, nil
	}
	return Dropped, l.eventError(ev, err)
}

func (l *Ledger) eventError(ev Event, err error) error {
	return &EventError{
		Kind:     ev.Kind,
		Address:  normalizeAddress(ev.Address),
		TxHash:   TransactionID(ev.TxHash),
		Position: ev.Position(),
		Err:      err,
	}
}

// handlePairCreated registers a pair and its tokens. Both tokens are resolved before anything
// is written, so unknown decimals on either side leave no partial pair behind.
func (l *Ledger) handlePairCreated(ctx context.Context, ev Event) error {
	pc := ev.PairCreated
	if pc == nil {
		return ErrMalformedEvent
	}
	pairID := PairID(pc.Pair)
	marketID := MarketID(pairID)

	token0, exists0, err := l.resolveToken(ctx, pc.Token0, ev.BlockNumber, ev.Timestamp, marketID)
	if err != nil {
		return err
	}
	token1, exists1, err := l.resolveToken(ctx, pc.Token1, ev.BlockNumber, ev.Timestamp, marketID)
	if err != nil {
		return err
	}

	factory, err := l.GetOrCreateAccount(ctx, normalizeAddress(ev.Address))
	if err != nil {
		return err
	}
	if !exists0 {
		if token0, err = l.createToken(ctx, token0); err != nil {
			return err
		}
	}
	if !exists1 {
		if token1, err = l.createToken(ctx, token1); err != nil {
			return err
		}
	}

	pair, _, err := l.createPair(ctx, ev, pairID, factory.ID, token0.ID, token1.ID)
	if err != nil {
		return err
	}
	_, err = l.GetOrCreateMarket(ctx, pair)
	return err
}
