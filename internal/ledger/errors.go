package ledger

import (
	"errors"
	"fmt"

	"liquidityLedger/internal/model"
)

var (
	// ErrMetadataUnavailable means token decimals could not be resolved. The triggering
	// event is dropped and nothing is written.
	ErrMetadataUnavailable = errors.New("token metadata unavailable")
	// ErrOrderingViolation means a Mint or Burn arrived without its pending record.
	ErrOrderingViolation = errors.New("ordering violation")
	// ErrSupplyUnderflow means a supply or reserve decrement would go negative.
	ErrSupplyUnderflow = errors.New("supply underflow")
	// ErrAmountOutOfRange means a value does not fit in an unsigned 256-bit integer.
	ErrAmountOutOfRange = errors.New("amount exceeds uint256")
	// ErrMissingReference means an entity that must already exist is absent.
	ErrMissingReference = errors.New("missing reference entity")
	// ErrMultipleOperations means a second mint or burn of one pair in one transaction.
	ErrMultipleOperations = errors.New("multiple liquidity operations in one transaction")
	// ErrMalformedEvent means the event payload does not match its kind.
	ErrMalformedEvent = errors.New("malformed event")
)

// EventError ties a processing failure to the event that caused it.
type EventError struct {
	Kind     string
	Address  string
	TxHash   string
	Position model.EventPosition
	Err      error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s %s tx %s at %s: %v", e.Kind, e.Address, e.TxHash, e.Position, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// IsFatal reports whether err must halt processing. Only metadata failures are recovered.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrMetadataUnavailable)
}

func missing(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrMissingReference, kind, id)
}
