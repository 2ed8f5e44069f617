package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"outlookterm/internal/model"

	_ "modernc.org/sqlite"
)

const (
	keyFetchedAt = "fetched_at"
	keyHasMore   = "has_more"
)

// SQLiteStore keeps the last fetched inbox page for the "last refreshed"
// indicator and offline printing. The TUI list never shows it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	position        INTEGER NOT NULL,
	subject         TEXT NOT NULL DEFAULT '',
	from_name       TEXT NOT NULL DEFAULT '',
	from_address    TEXT NOT NULL DEFAULT '',
	received        TEXT,
	body_preview    TEXT NOT NULL DEFAULT '',
	body_type       TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	is_read         INTEGER,
	has_attachments INTEGER,
	importance      TEXT NOT NULL DEFAULT '',
	web_link        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplacePage swaps the stored page for p in one transaction.
func (s *SQLiteStore) ReplacePage(ctx context.Context, p model.Page) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, position, subject, from_name, from_address, received,
			body_preview, body_type, body, is_read, has_attachments, importance, web_link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range p.Messages {
		_, err := stmt.ExecContext(ctx, m.ID, i, m.Subject, m.From.Name, m.From.Address,
			timeArg(m.Received), m.BodyPreview, m.Body.ContentType, m.Body.Content,
			boolArg(m.IsRead), boolArg(m.HasAttachments), m.Importance, m.WebLink)
		if err != nil {
			return err
		}
	}

	if err := setMeta(ctx, tx, keyFetchedAt, p.FetchedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	hasMore := "0"
	if p.HasMore {
		hasMore = "1"
	}
	if err := setMeta(ctx, tx, keyHasMore, hasMore); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadPage returns the stored page in the order it was saved. An empty store
// yields an empty page with a zero FetchedAt.
func (s *SQLiteStore) LoadPage(ctx context.Context) (model.Page, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, from_name, from_address, received, body_preview,
			body_type, body, is_read, has_attachments, importance, web_link
		FROM messages ORDER BY position`)
	if err != nil {
		return model.Page{}, err
	}
	defer rows.Close()

	var p model.Page
	for rows.Next() {
		var (
			m        model.Message
			received sql.NullString
			isRead   sql.NullBool
			hasAtt   sql.NullBool
		)
		if err := rows.Scan(&m.ID, &m.Subject, &m.From.Name, &m.From.Address, &received,
			&m.BodyPreview, &m.Body.ContentType, &m.Body.Content, &isRead, &hasAtt,
			&m.Importance, &m.WebLink); err != nil {
			return model.Page{}, err
		}
		if received.Valid {
			if t, err := time.Parse(time.RFC3339Nano, received.String); err == nil {
				m.Received = &t
			}
		}
		m.IsRead = boolPtr(isRead)
		m.HasAttachments = boolPtr(hasAtt)
		p.Messages = append(p.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return model.Page{}, err
	}

	if p.FetchedAt, err = s.LastFetchedAt(ctx); err != nil {
		return model.Page{}, err
	}
	more, err := s.getMeta(ctx, keyHasMore)
	if err != nil {
		return model.Page{}, err
	}
	p.HasMore = more == "1"
	return p, nil
}

// LastFetchedAt reports when the stored page was fetched, or the zero time
// if nothing has been stored.
func (s *SQLiteStore) LastFetchedAt(ctx context.Context) (time.Time, error) {
	val, err := s.getMeta(ctx, keyFetchedAt)
	if err != nil || val == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", keyFetchedAt, err)
	}
	return t, nil
}

// Clear drops the stored page and its metadata.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM messages; DELETE FROM metadata;")
	return err
}

func (s *SQLiteStore) getMeta(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

func setMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolArg(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func boolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}
