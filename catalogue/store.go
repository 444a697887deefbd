package catalogue

import (
	"context"
	"database/sql"
	_ "embed"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// MetaHashSize is meta key holding hash size the fingerprints were computed with
const MetaHashSize = "hash_size"

const queryUpsertCard = `
INSERT INTO cards (id, local_id, set_id, set_name, name, hash)
VALUES (:id, :local_id, :set_id, :set_name, :name, :hash)
ON CONFLICT(id) DO UPDATE SET
    local_id = excluded.local_id,
    set_id = excluded.set_id,
    set_name = excluded.set_name,
    name = excluded.name,
    hash = excluded.hash`

// Store is catalogue persistence backed by SQLite.
// Entries are kept in insertion order, so the earliest entry still wins equal distances after reload.
type Store struct {
	db   *sqlx.DB
	path string
}

// OpenStore opens (or creates) catalogue database
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open sqlite db %s", path)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "Can't apply pragma %q", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "Can't apply schema")
	}
	return &Store{db: db, path: path}, nil
}

// Path returns database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put inserts entries in a single transaction. Existing entries with the same ID are replaced in place
func (s *Store) Put(ctx context.Context, entries []Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "Can't begin transaction")
	}
	stmt, err := tx.PrepareNamedContext(ctx, queryUpsertCard)
	if err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "Can't prepare insert")
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "Can't insert entry %s", e.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "Can't commit entries")
	}
	return nil
}

// All returns every stored entry in insertion order
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	entries := make([]Entry, 0)
	err := s.db.SelectContext(ctx, &entries, `SELECT id, local_id, set_id, set_name, name, hash FROM cards ORDER BY rowid`)
	if err != nil {
		return nil, errors.Wrap(err, "Can't select entries")
	}
	return entries, nil
}

// Count returns number of stored entries
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM cards`); err != nil {
		return 0, errors.Wrap(err, "Can't count entries")
	}
	return count, nil
}

// SetMeta stores catalogue-wide property
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return errors.Wrapf(err, "Can't store meta %s", key)
	}
	return nil
}

// Meta returns catalogue-wide property. Second value is false when property is not set
func (s *Store) Meta(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM meta WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "Can't read meta %s", key)
	}
	return value, true, nil
}

// HashSize returns hash size recorded with the catalogue or zero when unknown
func (s *Store) HashSize(ctx context.Context) (int, error) {
	value, ok, err := s.Meta(ctx, MetaHashSize)
	if err != nil || !ok {
		return 0, err
	}
	size, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "Bad %s meta value %q", MetaHashSize, value)
	}
	return size, nil
}
