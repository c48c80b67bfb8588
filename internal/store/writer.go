// Package store persists run artifacts: the transcript ledger as JSONL,
// each assessment as a single JSON document, the memo as structured text,
// and a sqlite archive indexing past runs. The core pipeline produces the
// data structures; this package owns all file I/O.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dossier/internal/features"
	"dossier/internal/judge"
	"dossier/internal/logging"
	"dossier/internal/report"
	"dossier/internal/rules"
	"dossier/internal/transcript"
)

// Writer writes one run's artifacts under outDir/<runID>/.
type Writer struct {
	outDir string
}

// NewWriter creates an artifact writer rooted at outDir.
func NewWriter(outDir string) *Writer {
	return &Writer{outDir: outDir}
}

// RunDir returns the artifact directory for a run.
func (w *Writer) RunDir(runID string) string {
	return filepath.Join(w.outDir, runID)
}

// WriteAll persists every artifact of a finished run.
func (w *Writer) WriteAll(
	runID string,
	ledger *transcript.Ledger,
	featureMap map[string]features.FeatureResult,
	rule rules.RuleOutput,
	verdict judge.Output,
	memo report.Memo,
) error {
	dir := w.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	jsonl, err := ledger.MarshalJSONL()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "transcript.jsonl"), jsonl, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}

	docs := []struct {
		name string
		v    interface{}
	}{
		{"features.json", featureMap},
		{"rule.json", rule},
		{"judge.json", verdict},
		{"memo.json", memo},
	}
	for _, doc := range docs {
		data, err := json.MarshalIndent(doc.v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", doc.name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, doc.name), append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", doc.name, err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "memo.md"), []byte(memo.Render()), 0o644); err != nil {
		return fmt.Errorf("write memo: %w", err)
	}

	logging.Get(logging.CategoryStore).Infow("artifacts written", "dir", dir, "turns", ledger.Len())
	return nil
}
