// Package store persists reversal progress in SQLite so batch runs can be
// resumed and reported across sessions.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Dryxio/auto-re-agent/internal/core"
	"github.com/Dryxio/auto-re-agent/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS functions (
    address        TEXT PRIMARY KEY,
    raw_address    TEXT NOT NULL,
    class_name     TEXT NOT NULL DEFAULT '',
    function_name  TEXT NOT NULL DEFAULT '',
    success        INTEGER NOT NULL DEFAULT 0,
    rounds_used    INTEGER NOT NULL DEFAULT 0,
    verdict        TEXT NOT NULL DEFAULT '',
    parity_status  TEXT NOT NULL DEFAULT '',
    updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    address        TEXT NOT NULL,
    class_name     TEXT NOT NULL DEFAULT '',
    function_name  TEXT NOT NULL DEFAULT '',
    success        INTEGER NOT NULL DEFAULT 0,
    rounds_used    INTEGER NOT NULL DEFAULT 0,
    verdict        TEXT NOT NULL DEFAULT '',
    parity_status  TEXT NOT NULL DEFAULT '',
    created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_functions_class ON functions(class_name);
CREATE INDEX IF NOT EXISTS idx_runs_address ON runs(address);
`

// FunctionRecord is one row of recorded progress.
type FunctionRecord struct {
	Address      string `json:"address"`
	ClassName    string `json:"class_name"`
	FunctionName string `json:"function_name"`
	Success      bool   `json:"success"`
	RoundsUsed   int    `json:"rounds_used"`
	Verdict      string `json:"verdict"`
	ParityStatus string `json:"parity_status"`
	UpdatedAt    string `json:"updated_at"`
}

// ClassSummary aggregates progress for one class.
type ClassSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summary aggregates progress across the whole store.
type Summary struct {
	TotalFunctions int `json:"total_functions"`
	Passed         int `json:"passed"`
	Failed         int `json:"failed"`
	ClassesTouched int `json:"classes_touched"`
}

// Store is the SQLite-backed progress tracker. One writer at a time; the
// connection pool is pinned to a single connection.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the progress database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open progress db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logging.Get(logging.CategoryStore).Debug("pragma failed (%s): %v", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Get(logging.CategoryStore).Info("progress store opened at %s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordResult upserts the function row and appends a run row.
func (s *Store) RecordResult(result *core.ReversalResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := core.NormalizeAddress(result.Target.Address)
	verdict := ""
	if result.CheckerVerdict != nil {
		verdict = string(result.CheckerVerdict.Verdict)
	}
	now := time.Now().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
INSERT INTO functions (address, raw_address, class_name, function_name, success, rounds_used, verdict, parity_status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
    raw_address = excluded.raw_address,
    class_name = excluded.class_name,
    function_name = excluded.function_name,
    success = excluded.success,
    rounds_used = excluded.rounds_used,
    verdict = excluded.verdict,
    parity_status = excluded.parity_status,
    updated_at = excluded.updated_at`,
		addr, result.Target.Address, result.Target.ClassName, result.Target.FunctionName,
		boolToInt(result.Success), result.RoundsUsed, verdict, string(result.ParityStatus), now)
	if err != nil {
		return fmt.Errorf("upsert function: %w", err)
	}

	_, err = tx.Exec(`
INSERT INTO runs (id, address, class_name, function_name, success, rounds_used, verdict, parity_status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), addr, result.Target.ClassName, result.Target.FunctionName,
		boolToInt(result.Success), result.RoundsUsed, verdict, string(result.ParityStatus), now)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return tx.Commit()
}

// IsCompleted reports whether the address has a successful reversal.
func (s *Store) IsCompleted(address string) (bool, error) {
	var success int
	err := s.db.QueryRow(`SELECT success FROM functions WHERE address = ?`,
		core.NormalizeAddress(address)).Scan(&success)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return success != 0, nil
}

// IsAttempted reports whether the address has any recorded attempt.
func (s *Store) IsAttempted(address string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM functions WHERE address = ?`,
		core.NormalizeAddress(address)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ClassSummary aggregates pass/fail counts for one class.
func (s *Store) ClassSummary(className string) (ClassSummary, error) {
	var cs ClassSummary
	err := s.db.QueryRow(`
SELECT COUNT(*), COALESCE(SUM(success), 0)
FROM functions WHERE class_name = ?`, className).Scan(&cs.Total, &cs.Passed)
	if err != nil {
		return cs, err
	}
	cs.Failed = cs.Total - cs.Passed
	return cs, nil
}

// Summary aggregates progress across all recorded functions.
func (s *Store) Summary() (Summary, error) {
	var sum Summary
	err := s.db.QueryRow(`
SELECT COUNT(*),
       COALESCE(SUM(success), 0),
       COUNT(DISTINCT CASE WHEN class_name != '' THEN class_name END)
FROM functions`).Scan(&sum.TotalFunctions, &sum.Passed, &sum.ClassesTouched)
	if err != nil {
		return sum, err
	}
	sum.Failed = sum.TotalFunctions - sum.Passed
	return sum, nil
}

// AllFunctions returns every function row, most recently updated first.
func (s *Store) AllFunctions() ([]FunctionRecord, error) {
	rows, err := s.db.Query(`
SELECT raw_address, class_name, function_name, success, rounds_used, verdict, parity_status, updated_at
FROM functions ORDER BY updated_at DESC, address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FunctionRecord
	for rows.Next() {
		var rec FunctionRecord
		var success int
		if err := rows.Scan(&rec.Address, &rec.ClassName, &rec.FunctionName,
			&success, &rec.RoundsUsed, &rec.Verdict, &rec.ParityStatus, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Success = success != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
