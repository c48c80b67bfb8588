// Package transcript holds the append-only ledger of realized conversation
// turns. The ledger is written exclusively by the replay engine while a run
// is active and read-only for every downstream component.
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"dossier/internal/scenario"
)

// TurnRecord is the immutable record of one realized turn. Content is the
// literal realized text: generated by the model backend for assistant
// turns, copied verbatim from the scenario for user turns.
type TurnRecord struct {
	TurnIndex int            `json:"turn_index"`
	Role      scenario.Role  `json:"role"`
	Content   string         `json:"content"`
	NodeID    string         `json:"node_id"`
	Phase     scenario.Phase `json:"phase"`
}

// Ledger is an ordered, append-only collection of turn records. Turn
// indices are assigned on append and are always 0..n-1 with no gaps.
type Ledger struct {
	mu      sync.RWMutex
	records []TurnRecord
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds a turn with the next index and returns the stored record.
// The index is assigned by the ledger, never by the caller.
func (l *Ledger) Append(role scenario.Role, content, nodeID string, phase scenario.Phase) TurnRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := TurnRecord{
		TurnIndex: len(l.records),
		Role:      role,
		Content:   content,
		NodeID:    nodeID,
		Phase:     phase,
	}
	l.records = append(l.records, rec)
	return rec
}

// Len returns the number of recorded turns.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of all turns in emission order.
func (l *Ledger) Records() []TurnRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]TurnRecord, len(l.records))
	copy(out, l.records)
	return out
}

// MaxPhase returns the highest-ranked phase reached so far, or
// orientation for an empty ledger.
func (l *Ledger) MaxPhase() scenario.Phase {
	l.mu.RLock()
	defer l.mu.RUnlock()
	max := scenario.PhaseOrientation
	for _, r := range l.records {
		if r.Phase.Rank() > max.Rank() {
			max = r.Phase
		}
	}
	return max
}

// MarshalJSONL renders the ledger as one JSON record per line in turn
// order, the on-disk transcript format.
func (l *Ledger) MarshalJSONL() ([]byte, error) {
	var buf bytes.Buffer
	for _, rec := range l.Records() {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshal turn %d: %w", rec.TurnIndex, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
