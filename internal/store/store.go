package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Kind names an entity collection.
type Kind string

const (
	KindAccount          Kind = "account"
	KindToken            Kind = "token"
	KindPair             Kind = "pair"
	KindPairSnapshot     Kind = "pair_snapshot"
	KindTransaction      Kind = "transaction"
	KindMint             Kind = "mint"
	KindBurn             Kind = "burn"
	KindAccountPosition  Kind = "account_position"
	KindPosition         Kind = "position"
	KindPositionSnapshot Kind = "position_snapshot"
	KindMarket           Kind = "market"
)

// Store persists entities by (kind, id). Every call is atomic for a single entity only.
type Store interface {
	// Load decodes the entity into dst and reports whether it exists.
	Load(ctx context.Context, kind Kind, id string, dst interface{}) (bool, error)
	// Save writes the entity, replacing any previous value.
	Save(ctx context.Context, kind Kind, id string, value interface{}) error
	// Create writes the entity only if absent and reports whether this call created it.
	// Concurrent creators of the same id converge on one winner.
	Create(ctx context.Context, kind Kind, id string, value interface{}) (bool, error)
}

// Encode serializes an entity for a backend.
func Encode(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode entity: %w", err)
	}
	return data, nil
}

// Decode deserializes an entity read from a backend.
func Decode(data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode entity: %w", err)
	}
	return nil
}

// Key joins kind and id into a flat key for key-value backends.
func Key(kind Kind, id string) string {
	return string(kind) + ":" + id
}
