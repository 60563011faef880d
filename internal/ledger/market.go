package ledger

import (
	"context"

	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

// GetOrCreateMarket derives the market of a pair. It makes no external calls and never
// mutates an existing market.
func (l *Ledger) GetOrCreateMarket(ctx context.Context, pair model.Pair) (model.Market, error) {
	id := MarketID(pair.ID)
	market, _, err := getOrCreate(ctx, l.store, store.KindMarket, id, func() model.Market {
		return model.Market{
			ID:           id,
			Account:      pair.Factory,
			ProtocolName: l.cfg.ProtocolName,
			ProtocolType: l.cfg.ProtocolType,
			OutputToken:  pair.ID,
			InputTokens:  []string{pair.Token0, pair.Token1},
			BlockNumber:  pair.BlockNumber,
			Timestamp:    pair.Timestamp,
		}
	})
	return market, err
}
