// Package history persists the Error Handler's classification counters
// and the Recovery Manager's recovery-attempt ring buffer across
// separate invocations of the team-flow binary. team-flow is a CLI,
// not a daemon (spec.md §1 Non-goals), so the in-memory state §4.2/§4.3
// describe for a long-lived process is emulated here with a small
// SQLite file instead.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultRetention is the number of recovery-attempt rows kept per
// operation before the oldest are trimmed.
const DefaultRetention = 200

const schema = `
CREATE TABLE IF NOT EXISTS classification_counts (
	severity TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS recovery_attempts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	operation TEXT NOT NULL,
	strategy TEXT NOT NULL,
	attempt INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recovery_attempts_operation
	ON recovery_attempts(operation, id);
`

// Store is the persisted history backing the Error Handler and
// Recovery Manager.
type Store struct {
	conn      *sql.DB
	retention int
}

// Open creates or opens the history database at path, applying schema
// migrations. The containing directory is created if necessary.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}
	return &Store{conn: conn, retention: DefaultRetention}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.conn.Close() }

// WithRetention overrides the default ring-buffer retention bound.
func (s *Store) WithRetention(n int) *Store {
	s.retention = n
	return s
}

// IncrementClassification bumps the counter for a severity tag
// ("critical", "recoverable", "warning", "unknown").
func (s *Store) IncrementClassification(severity string) error {
	_, err := s.conn.Exec(`
		INSERT INTO classification_counts (severity, count) VALUES (?, 1)
		ON CONFLICT(severity) DO UPDATE SET count = count + 1`, severity)
	if err != nil {
		return fmt.Errorf("incrementing classification count: %w", err)
	}
	return nil
}

// ClassificationCounts returns the current counters keyed by severity.
func (s *Store) ClassificationCounts() (map[string]int, error) {
	rows, err := s.conn.Query(`SELECT severity, count FROM classification_counts`)
	if err != nil {
		return nil, fmt.Errorf("reading classification counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("scanning classification count: %w", err)
		}
		counts[severity] = count
	}
	return counts, rows.Err()
}

// ClearClassificationCounts resets all counters to zero, per §5
// "cleared on success or bound-exceeded".
func (s *Store) ClearClassificationCounts() error {
	if _, err := s.conn.Exec(`DELETE FROM classification_counts`); err != nil {
		return fmt.Errorf("clearing classification counts: %w", err)
	}
	return nil
}

// RecoveryAttempt is one row of the recovery-attempt ring buffer.
type RecoveryAttempt struct {
	ID        int64
	Operation string
	Strategy  string
	Attempt   int
	Outcome   string // "success" or "failed"
	Detail    string
	CreatedAt time.Time
}

// RecordRecoveryAttempt appends an attempt and trims the operation's
// history to the configured retention bound.
func (s *Store) RecordRecoveryAttempt(a RecoveryAttempt) error {
	_, err := s.conn.Exec(`
		INSERT INTO recovery_attempts (operation, strategy, attempt, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Operation, a.Strategy, a.Attempt, a.Outcome, a.Detail, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("recording recovery attempt: %w", err)
	}

	_, err = s.conn.Exec(`
		DELETE FROM recovery_attempts
		WHERE operation = ? AND id NOT IN (
			SELECT id FROM recovery_attempts WHERE operation = ?
			ORDER BY id DESC LIMIT ?
		)`, a.Operation, a.Operation, s.retention)
	if err != nil {
		return fmt.Errorf("trimming recovery attempts: %w", err)
	}
	return nil
}

// RecentRecoveryAttempts returns the most recent attempts for an
// operation, newest first.
func (s *Store) RecentRecoveryAttempts(operation string, limit int) ([]RecoveryAttempt, error) {
	rows, err := s.conn.Query(`
		SELECT id, operation, strategy, attempt, outcome, detail, created_at
		FROM recovery_attempts WHERE operation = ?
		ORDER BY id DESC LIMIT ?`, operation, limit)
	if err != nil {
		return nil, fmt.Errorf("reading recovery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []RecoveryAttempt
	for rows.Next() {
		var a RecoveryAttempt
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Operation, &a.Strategy, &a.Attempt, &a.Outcome, &a.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning recovery attempt: %w", err)
		}
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
