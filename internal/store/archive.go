package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Archive indexes finished runs in a SQLite database so past assessments
// can be listed and looked up without rescanning artifact directories.
type Archive struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// RunSummary is one row of the archive index.
type RunSummary struct {
	RunID       string
	BranchLabel string
	RuleFlag    bool
	JudgeScore  string
	ValidJSON   bool
	ArtifactDir string
	CreatedAt   time.Time
}

// OpenArchive opens (or creates) the archive database at the given path.
func OpenArchive(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &Archive{db: db, dbPath: path}
	if err := a.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Archive) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		branch_label TEXT NOT NULL,
		rule_flag INTEGER NOT NULL,
		judge_score TEXT NOT NULL,
		valid_json INTEGER NOT NULL,
		artifact_dir TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

// Record inserts one finished run into the index.
func (a *Archive) Record(s RunSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.db.Exec(
		`INSERT INTO runs (run_id, branch_label, rule_flag, judge_score, valid_json, artifact_dir, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.BranchLabel, boolInt(s.RuleFlag), s.JudgeScore, boolInt(s.ValidJSON),
		s.ArtifactDir, s.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first.
func (a *Archive) List(limit int) ([]RunSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.Query(
		`SELECT run_id, branch_label, rule_flag, judge_score, valid_json, artifact_dir, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		s, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get looks up a single run by id.
func (a *Archive) Get(runID string) (RunSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	rows, err := a.db.Query(
		`SELECT run_id, branch_label, rule_flag, judge_score, valid_json, artifact_dir, created_at
		 FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return RunSummary{}, err
		}
		return RunSummary{}, fmt.Errorf("run not found: %s", runID)
	}
	return scanRun(rows)
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func scanRun(rows *sql.Rows) (RunSummary, error) {
	var (
		s         RunSummary
		flag      int
		valid     int
		createdAt string
	)
	if err := rows.Scan(&s.RunID, &s.BranchLabel, &flag, &s.JudgeScore, &valid, &s.ArtifactDir, &createdAt); err != nil {
		return RunSummary{}, fmt.Errorf("failed to scan run: %w", err)
	}
	s.RuleFlag = flag != 0
	s.ValidJSON = valid != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		s.CreatedAt = t
	}
	return s, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
