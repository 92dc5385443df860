// Package history journals every role outcome to SQLite so operators can
// see what the loops did and how often a task has bounced.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverPure = "sqlite"  // modernc.org/sqlite, no cgo
	DriverCgo  = "sqlite3" // github.com/mattn/go-sqlite3
)

// Entry is one journaled outcome.
type Entry struct {
	ID        string
	RunID     string
	Loop      string
	Cycle     int
	Role      string
	Outcome   string
	Subject   string
	Detail    string
	Reverted  bool
	CreatedAt time.Time
}

// Store is the cycle journal.
type Store struct {
	db     *sql.DB
	dbPath string
	log    *zap.Logger
}

// Open creates or opens the journal at path.
func Open(driver, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var dsn string
	switch driver {
	case DriverPure:
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	case DriverCgo:
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path, log: log}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	log.Debug("history opened", zap.String("path", path), zap.String("driver", driver))
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycle_outcomes (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		loop TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		role TEXT NOT NULL,
		outcome TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		reverted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_created ON cycle_outcomes(created_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_role_subject ON cycle_outcomes(role, subject);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts an entry, filling in ID and CreatedAt when empty.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycle_outcomes (id, run_id, loop, cycle, role, outcome, subject, detail, reverted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.RunID, e.Loop, e.Cycle, e.Role, e.Outcome, e.Subject, e.Detail, boolToInt(e.Reverted), e.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, loop, cycle, role, outcome, subject, detail, reverted, created_at
		FROM cycle_outcomes
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var reverted int
		var created int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Loop, &e.Cycle, &e.Role, &e.Outcome,
			&e.Subject, &e.Detail, &reverted, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		e.Reverted = reverted != 0
		e.CreatedAt = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FailureCount returns how many failures role has recorded for subject.
func (s *Store) FailureCount(ctx context.Context, role, subject string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cycle_outcomes
		WHERE role = ? AND subject = ? AND outcome = 'failure'`, role, subject).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count failures: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
