package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"dossier/internal/scenario"
)

func TestAppendAssignsGaplessIndices(t *testing.T) {
	l := NewLedger()
	for i := 0; i < 5; i++ {
		rec := l.Append(scenario.RoleUser, "hi", "n", scenario.PhaseOrientation)
		if rec.TurnIndex != i {
			t.Errorf("turn %d assigned index %d", i, rec.TurnIndex)
		}
	}
	if l.Len() != 5 {
		t.Errorf("Len = %d, want 5", l.Len())
	}
	for i, rec := range l.Records() {
		if rec.TurnIndex != i {
			t.Errorf("records[%d].TurnIndex = %d", i, rec.TurnIndex)
		}
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	l := NewLedger()
	l.Append(scenario.RoleUser, "original", "n0", scenario.PhaseOrientation)

	records := l.Records()
	records[0].Content = "mutated"

	if got := l.Records()[0].Content; got != "original" {
		t.Errorf("ledger content changed through the returned slice: %q", got)
	}
}

func TestMaxPhase(t *testing.T) {
	l := NewLedger()
	if l.MaxPhase() != scenario.PhaseOrientation {
		t.Errorf("empty ledger MaxPhase = %q", l.MaxPhase())
	}

	l.Append(scenario.RoleUser, "a", "n0", scenario.PhaseOrientation)
	l.Append(scenario.RoleAssistant, "b", "n1", scenario.PhaseRelationalCue)
	// Phases never regress the maximum.
	l.Append(scenario.RoleUser, "c", "n2", scenario.PhaseClarification)

	if got := l.MaxPhase(); got != scenario.PhaseRelationalCue {
		t.Errorf("MaxPhase = %q, want relational_cue", got)
	}
}

func TestMarshalJSONL(t *testing.T) {
	l := NewLedger()
	l.Append(scenario.RoleUser, "hello there", "t0", scenario.PhaseOrientation)
	l.Append(scenario.RoleAssistant, "hi, how can I help?", "t1", scenario.PhaseOrientation)

	data, err := l.MarshalJSONL()
	if err != nil {
		t.Fatalf("MarshalJSONL failed: %v", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var lines int
	for scanner.Scan() {
		var rec TurnRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines, err)
		}
		if rec.TurnIndex != lines {
			t.Errorf("line %d has turn_index %d", lines, rec.TurnIndex)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("got %d lines, want 2", lines)
	}

	// Field names are part of the on-disk format.
	first := bytes.SplitN(data, []byte("\n"), 2)[0]
	for _, field := range []string{"turn_index", "role", "content", "node_id", "phase"} {
		if !bytes.Contains(first, []byte(`"`+field+`"`)) {
			t.Errorf("JSONL record missing field %q: %s", field, first)
		}
	}
}

func TestConcurrentAppend(t *testing.T) {
	l := NewLedger()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(scenario.RoleUser, "x", "n", scenario.PhaseOrientation)
		}()
	}
	wg.Wait()

	if l.Len() != 50 {
		t.Fatalf("Len = %d, want 50", l.Len())
	}
	seen := map[int]bool{}
	for _, rec := range l.Records() {
		if seen[rec.TurnIndex] {
			t.Errorf("duplicate turn index %d", rec.TurnIndex)
		}
		seen[rec.TurnIndex] = true
	}
}
