// Package storage persists selection history in SQLite. The daemon is the
// only writer; the data feeds the matcher's frecency boost.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// retention is how long selection rows are kept before Prune drops them.
const retention = 180 * 24 * time.Hour

// Selection is one committed selection.
type Selection struct {
	ID         string
	Kind       string // "internal" or "external"
	Source     string // provider name, "eval:<name>", or "dmenu"
	Title      string
	Value      string // the extracted field value or reply payload
	SelectedAt time.Time
}

// Store is a SQLite-backed selection history.
type Store struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the history database at path with WAL enabled.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite behaves better with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS selections (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	source      TEXT NOT NULL,
	title       TEXT NOT NULL,
	value       TEXT NOT NULL,
	selected_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_selections_source ON selections(source, title);
CREATE INDEX IF NOT EXISTS idx_selections_time ON selections(selected_at);
`)
	return err
}

// RecordSelection inserts one selection. An empty ID is assigned a fresh
// UUID and a zero timestamp is stamped with now.
func (s *Store) RecordSelection(ctx context.Context, sel Selection) error {
	if sel.ID == "" {
		sel.ID = uuid.NewString()
	}
	if sel.SelectedAt.IsZero() {
		sel.SelectedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO selections (id, kind, source, title, value, selected_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sel.ID, sel.Kind, sel.Source, sel.Title, sel.Value, sel.SelectedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording selection: %w", err)
	}
	return nil
}

// UsageCounts returns how often each title was selected, across all
// sources when source is empty.
func (s *Store) UsageCounts(ctx context.Context, source string) (map[string]int, error) {
	query := `SELECT title, COUNT(*) FROM selections GROUP BY title`
	args := []any{}
	if source != "" {
		query = `SELECT title, COUNT(*) FROM selections WHERE source = ? GROUP BY title`
		args = append(args, source)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var title string
		var n int
		if err := rows.Scan(&title, &n); err != nil {
			return nil, err
		}
		counts[title] = n
	}
	return counts, rows.Err()
}

// Prune deletes selections older than the retention window and returns how
// many rows were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-retention).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM selections WHERE selected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning selections: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. It is idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}
