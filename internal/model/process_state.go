package model

// FatalError describes the event that halted processing.
type FatalError struct {
	Message    string        `json:"message"`
	Handler    string        `json:"handler"`
	TxHash     string        `json:"tx_hash"`
	Address    string        `json:"address,omitempty"`
	Position   EventPosition `json:"position"`
	OccurredAt string        `json:"occurred_at"`
}

// ProcessState is the persisted progress of the ledger processor.
type ProcessState struct {
	LastApplied *EventPosition `json:"last_applied,omitempty"`
	FatalError  *FatalError    `json:"fatal_error,omitempty"`
	UpdatedAt   string         `json:"updated_at"`
}
