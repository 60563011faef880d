package model

import "fmt"

// EventPosition is the (block, transaction index, log index) total order of chain events.
type EventPosition struct {
	BlockNumber uint64 `json:"block_number"`
	TxIndex     uint64 `json:"tx_index"`
	LogIndex    uint64 `json:"log_index"`
}

// Compare returns -1, 0 or 1 when p orders before, equal to or after o.
func (p EventPosition) Compare(o EventPosition) int {
	switch {
	case p.BlockNumber != o.BlockNumber:
		return cmpUint(p.BlockNumber, o.BlockNumber)
	case p.TxIndex != o.TxIndex:
		return cmpUint(p.TxIndex, o.TxIndex)
	default:
		return cmpUint(p.LogIndex, o.LogIndex)
	}
}

// SameTransaction reports whether both positions belong to the same transaction.
func (p EventPosition) SameTransaction(o EventPosition) bool {
	return p.BlockNumber == o.BlockNumber && p.TxIndex == o.TxIndex
}

func (p EventPosition) String() string {
	return fmt.Sprintf("%d:%d:%d", p.BlockNumber, p.TxIndex, p.LogIndex)
}

func cmpUint(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// AppliedMarker remembers which events already mutated an entity. It keeps the most recent
// transaction and the log indexes applied within it. Events of an earlier transaction count as
// applied; events of the current transaction are matched by log index, so disorder inside one
// transaction is tolerated.
type AppliedMarker struct {
	BlockNumber uint64   `json:"block_number"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndexes  []uint64 `json:"log_indexes,omitempty"`
	Set         bool     `json:"set"`
}

// Contains reports whether the event at pos has already been applied.
func (m AppliedMarker) Contains(pos EventPosition) bool {
	if !m.Set {
		return false
	}
	current := EventPosition{BlockNumber: m.BlockNumber, TxIndex: m.TxIndex}
	if !pos.SameTransaction(current) {
		return pos.Compare(current) < 0
	}
	for _, idx := range m.LogIndexes {
		if idx == pos.LogIndex {
			return true
		}
	}
	return false
}

// Record marks pos as applied.
func (m *AppliedMarker) Record(pos EventPosition) {
	current := EventPosition{BlockNumber: m.BlockNumber, TxIndex: m.TxIndex}
	if !m.Set || !pos.SameTransaction(current) {
		m.BlockNumber = pos.BlockNumber
		m.TxIndex = pos.TxIndex
		m.LogIndexes = nil
		m.Set = true
	}
	for _, idx := range m.LogIndexes {
		if idx == pos.LogIndex {
			return
		}
	}
	m.LogIndexes = append(m.LogIndexes, pos.LogIndex)
}
