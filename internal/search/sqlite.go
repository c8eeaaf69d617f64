package search

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/parser"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	key          TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	body         TEXT NOT NULL DEFAULT '',
	title_folded TEXT NOT NULL DEFAULT '',
	body_folded  TEXT NOT NULL DEFAULT '',
	updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const upsertSQL = `
	INSERT INTO notes (key, title, body, title_folded, body_folded, updated_at)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET
		title        = excluded.title,
		body         = excluded.body,
		title_folded = excluded.title_folded,
		body_folded  = excluded.body_folded,
		updated_at   = excluded.updated_at
`

// SQLite is an Index stored in a SQLite table. Candidate rows are selected
// with instr() on pre-folded columns; scoring is shared with Memory so both
// backends return identical results.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use MemoryDSN for a throwaway index.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path + "?_busy_timeout=5000"
	if path != MemoryDSN {
		dsn += "&_journal_mode=WAL"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("search: open db: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("search: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Rebuild replaces all rows within one transaction.
func (s *SQLite) Rebuild(ctx context.Context, docs []Document) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("search: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("search: clear: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return fmt.Errorf("search: prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, upsertArgs(d)...); err != nil {
			return fmt.Errorf("search: insert %q: %w", d.Title, err)
		}
	}
	return tx.Commit()
}

// Put inserts or replaces one row.
func (s *SQLite) Put(ctx context.Context, doc Document) error {
	if _, err := s.conn.ExecContext(ctx, upsertSQL, upsertArgs(doc)...); err != nil {
		return fmt.Errorf("search: upsert %q: %w", doc.Title, err)
	}
	return nil
}

// Remove deletes one row.
func (s *SQLite) Remove(ctx context.Context, title string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM notes WHERE key = ?`, parser.Normalize(title)); err != nil {
		return fmt.Errorf("search: delete %q: %w", title, err)
	}
	return nil
}

// Search returns ranked hits for query.
func (s *SQLite) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	q := prepareQuery(query)
	if q == "" {
		return []models.SearchHit{}, nil
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT title, body, title_folded, body_folded
		FROM notes
		WHERE instr(body_folded, ?) > 0 OR instr(title_folded, ?) > 0
	`, q, q)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	hits := []models.SearchHit{}
	for rows.Next() {
		var d Document
		var ft, fb string
		if err := rows.Scan(&d.Title, &d.Body, &ft, &fb); err != nil {
			return nil, fmt.Errorf("search: scan: %w", err)
		}
		if hit, ok := score(d, ft, fb, q); ok {
			hits = append(hits, hit)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: rows: %w", err)
	}
	return rank(hits, limit), nil
}

// Count returns the number of indexed rows.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("search: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

func upsertArgs(d Document) []any {
	return []any{parser.Normalize(d.Title), d.Title, d.Body, fold(d.Title), fold(d.Body)}
}

var _ Index = (*SQLite)(nil)
