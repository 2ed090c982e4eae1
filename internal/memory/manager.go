// Package memory implements the Memory component: a key-addressed store
// with BM25 full-text recall over a SQLite FTS5 index (spec §4.4).
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	_ "modernc.org/sqlite"

	"github.com/rrclaw/rrclaw/pkg/models"
)

// Manager coordinates the structured and full-text indices. Writes are
// serialized with a mutex (single-writer); reads may run concurrently
// (spec §4.4, §5, §9).
type Manager struct {
	db *sql.DB
	mu sync.Mutex
}

// Config configures where the backing SQLite database lives.
type Config struct {
	// Path is the database file path. ":memory:" is accepted for tests.
	Path string
}

// Open creates or opens the memory database and ensures its schema exists.
func Open(ctx context.Context, cfg Config) (*Manager, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one handle
	m := &Manager{db: db}
	if err := m.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}

// OpenWithDB wraps an already-open *sql.DB (used by tests with sqlmock,
// where schema migration is skipped and every query is pre-scripted).
func OpenWithDB(db *sql.DB) *Manager {
	return &Manager{db: db}
}

func (m *Manager) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			key TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		// unicode61 splits on Unicode category boundaries, which treats a
		// whole run of CJK ideographs as a single token since nothing in
		// the run is whitespace or punctuation. modernc.org/sqlite does not
		// expose FTS5's C tokenizer-registration API, so content and
		// queries are pre-segmented in Go instead (cjkSegment below) to
		// give CJK text the "whitespace plus a CJK segmenter" behavior
		// spec §4.4 requires, at the granularity of one token per character.
		`CREATE VIRTUAL TABLE IF NOT EXISTS memories_fts USING fts5(
			key UNINDEXED, content, category UNINDEXED, tokenize = 'unicode61'
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_history (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			message_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS routines (
			name TEXT PRIMARY KEY,
			schedule TEXT NOT NULL,
			message TEXT NOT NULL,
			channel TEXT NOT NULL,
			enabled INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS routines_log (
			id TEXT PRIMARY KEY,
			routine_name TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL,
			success INTEGER NOT NULL,
			output TEXT,
			error TEXT
		)`,
	}
	for _, s := range stmts {
		if _, err := m.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (m *Manager) Close() error { return m.db.Close() }

// Store inserts or replaces an entry by key, atomically across the
// structured and full-text indices.
func (m *Manager) Store(ctx context.Context, key, content, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (key, content, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, category = excluded.category, updated_at = excluded.updated_at
	`, key, content, category, now, now)
	if err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO memories_fts (key, content, category) VALUES (?, ?, ?)`, key, cjkSegment(content), category); err != nil {
		return fmt.Errorf("insert fts: %w", err)
	}

	return tx.Commit()
}

// Recall returns up to limit entries matching query, ordered by BM25 score
// descending (FTS5's bm25() is negative-is-better, so results are ordered
// ascending on that raw value and Score is reported as its negation),
// ties broken by recency.
func (m *Manager) Recall(ctx context.Context, query string, limit int) ([]models.MemoryEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := m.db.QueryContext(ctx, `
		SELECT mem.key, mem.content, mem.category, mem.created_at, mem.updated_at, bm25(memories_fts) AS rank
		FROM memories_fts
		JOIN memories mem ON mem.key = memories_fts.key
		WHERE memories_fts MATCH ?
		ORDER BY rank ASC, mem.updated_at DESC
		LIMIT ?
	`, cjkSegment(query), limit)
	if err != nil {
		return nil, fmt.Errorf("recall query: %w", err)
	}
	defer rows.Close()

	var out []models.MemoryEntry
	for rows.Next() {
		var e models.MemoryEntry
		var rank float64
		if err := rows.Scan(&e.Key, &e.Content, &e.Category, &e.CreatedAt, &e.UpdatedAt, &rank); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.Score = -rank
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns a single entry by exact key.
func (m *Manager) Get(ctx context.Context, key string) (*models.MemoryEntry, bool, error) {
	row := m.db.QueryRowContext(ctx, `SELECT key, content, category, created_at, updated_at FROM memories WHERE key = ?`, key)
	var e models.MemoryEntry
	if err := row.Scan(&e.Key, &e.Content, &e.Category, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get: %w", err)
	}
	return &e, true, nil
}

// Forget deletes an entry from both indices.
func (m *Manager) Forget(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete fts: %w", err)
	}
	return tx.Commit()
}

// Count returns the total number of stored entries.
func (m *Manager) Count(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// cjkSegment inserts a space before and after every CJK rune so FTS5's
// unicode61 tokenizer, which splits purely on Unicode category boundaries
// and otherwise treats a whole run of CJK ideographs as a single token,
// indexes and matches each CJK character as its own token.
func cjkSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isCJK(r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

// AppendHistory persists one conversation_history row, used by the agent
// loop and routine engine to keep an audit trail independent of Memory's
// recall index.
func (m *Manager) AppendHistory(ctx context.Context, id, sessionID, messageType, payload string) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO conversation_history (id, session_id, message_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, sessionID, messageType, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}
