package ledger

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

// getOrCreate returns the stored entity, creating it from build when absent. An existing
// entity is never overwritten.
func getOrCreate[T any](ctx context.Context, s store.Store, kind store.Kind, id string, build func() T) (T, bool, error) {
	value := build()
	created, err := s.Create(ctx, kind, id, value)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if created {
		return value, true, nil
	}

	var existing T
	ok, err := s.Load(ctx, kind, id, &existing)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("%s %s vanished after create conflict", kind, id)
	}
	return existing, false, nil
}

func load[T any](ctx context.Context, s store.Store, kind store.Kind, id string) (T, bool, error) {
	var value T
	ok, err := s.Load(ctx, kind, id, &value)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return value, ok, nil
}

func mustLoad[T any](ctx context.Context, s store.Store, kind store.Kind, id string) (T, error) {
	value, ok, err := load[T](ctx, s, kind, id)
	if err != nil {
		return value, err
	}
	if !ok {
		return value, missing(string(kind), id)
	}
	return value, nil
}

// GetOrCreateAccount returns the account for address.
func (l *Ledger) GetOrCreateAccount(ctx context.Context, address string) (model.Account, error) {
	id := AccountID(address)
	account, _, err := getOrCreate(ctx, l.store, store.KindAccount, id, func() model.Account {
		return model.Account{ID: id}
	})
	return account, err
}

// GetOrCreateToken returns the token for address, fetching metadata only on first sight.
// It returns ErrMetadataUnavailable and writes nothing when decimals cannot be resolved.
func (l *Ledger) GetOrCreateToken(ctx context.Context, address string, blockNumber, timestamp uint64, marketID string) (model.Token, error) {
	token, exists, err := l.resolveToken(ctx, address, blockNumber, timestamp, marketID)
	if err != nil || exists {
		return token, err
	}
	return l.createToken(ctx, token)
}

// resolveToken loads the token or builds an unsaved one from metadata.
func (l *Ledger) resolveToken(ctx context.Context, address string, blockNumber, timestamp uint64, marketID string) (model.Token, bool, error) {
	id := TokenID(address)
	existing, ok, err := load[model.Token](ctx, l.store, store.KindToken, id)
	if err != nil {
		return model.Token{}, false, err
	}
	if ok {
		return existing, true, nil
	}

	token := model.Token{
		ID:             id,
		BlockNumber:    blockNumber,
		Timestamp:      timestamp,
		MintedByMarket: marketID,
	}

	if l.cfg.NativeToken != "" && id == l.cfg.NativeToken {
		token.Name = "Ether"
		token.Symbol = "ETH"
		token.Decimals = 18
		return token, false, nil
	}

	decimals, known, err := l.meta.FetchDecimals(ctx, id)
	if err != nil {
		return model.Token{}, false, err
	}
	if !known {
		return model.Token{}, false, fmt.Errorf("%w: decimals of %s", ErrMetadataUnavailable, id)
	}
	if token.Name, err = l.meta.FetchName(ctx, id); err != nil {
		return model.Token{}, false, err
	}
	if token.Symbol, err = l.meta.FetchSymbol(ctx, id); err != nil {
		return model.Token{}, false, err
	}
	token.Decimals = decimals
	return token, false, nil
}

func (l *Ledger) createToken(ctx context.Context, token model.Token) (model.Token, error) {
	stored, created, err := getOrCreate(ctx, l.store, store.KindToken, token.ID, func() model.Token { return token })
	if err != nil {
		return model.Token{}, err
	}
	if created {
		l.logger.Debug("token created",
			zap.String("token", stored.ID),
			zap.String("symbol", stored.Symbol),
			zap.Uint8("decimals", stored.Decimals),
		)
	}
	return stored, nil
}

// getOrCreateTransaction returns the transaction of ev, creating it on first sight. Later
// events extend it; sender and receiver are only filled when still unknown.
func (l *Ledger) getOrCreateTransaction(ctx context.Context, ev Event, from, to, marketID string) (model.Transaction, error) {
	id := TransactionID(ev.TxHash)
	tx, created, err := getOrCreate(ctx, l.store, store.KindTransaction, id, func() model.Transaction {
		return model.Transaction{
			ID:                 id,
			From:               from,
			To:                 to,
			BlockNumber:        ev.BlockNumber,
			Timestamp:          ev.Timestamp,
			GasUsed:            bigOrZero(ev.GasUsed),
			GasPrice:           bigOrZero(ev.GasPrice),
			TransactionIndex:   ev.TxIndex,
			LogIndex:           ev.LogIndex,
			Market:             marketID,
			InputTokenAmounts:  []model.TokenAmount{},
			OutputTokenAmount:  new(big.Int),
			RewardTokenAmounts: []model.TokenAmount{},
		}
	})
	if err != nil || created {
		return tx, err
	}

	if tx.From == "" && from != "" {
		tx.From = from
		tx.To = to
		if err := l.store.Save(ctx, store.KindTransaction, tx.ID, tx); err != nil {
			return model.Transaction{}, err
		}
	}
	return tx, nil
}

func (l *Ledger) saveTransaction(ctx context.Context, tx model.Transaction) error {
	return l.store.Save(ctx, store.KindTransaction, tx.ID, tx)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
