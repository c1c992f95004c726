package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"

	"github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Schema creates the kv table. Used by the migrate command and tests.
func Schema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	after := opts.Prefix
	if opts.Cursor != "" {
		decoded, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		after = decoded
	}

	// Keyset pagination: scan in key order, strictly after the cursor key.
	// The prefix match is a plain LIKE; namespaces contain no wildcards.
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM kv
		WHERE key LIKE ? || '%' AND key > ?
		ORDER BY key
		LIMIT ?
	`, opts.Prefix, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := &ListResult{}
	scanned := 0
	var lastKey string

	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Key, &rec.Value); err != nil {
			return nil, err
		}
		scanned++
		lastKey = rec.Key

		if opts.Filter == nil || opts.Filter(rec) {
			result.Records = append(result.Records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A full page may have more behind it; a short page is the end.
	if scanned == limit {
		result.Cursor = encodeCursor(lastKey)
	}

	return result, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *SQLiteStore) Create(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?)`, key, value)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return ErrExists
	}
	return err
}

func (s *SQLiteStore) Replace(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Cursors are last-seen keys, base64url-encoded so clients treat them as
// opaque tokens.
func encodeCursor(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func decodeCursor(cursor string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", errors.New("store: invalid cursor")
	}
	return string(decoded), nil
}
