package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/portfolio/position"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name    TEXT PRIMARY KEY,
	data    TEXT NOT NULL,
	updated DATETIME NOT NULL
);
`

// SQLiteStore keeps the latest snapshot per name in a single table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, name string, snap position.Snapshot) error {
	if err := checkName(name); err != nil {
		return err
	}
	b, err := snap.Marshal()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO snapshots (name, data, updated) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated = excluded.updated
`, name, string(b), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context, name string) (position.Snapshot, error) {
	if err := checkName(name); err != nil {
		return position.Snapshot{}, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return position.Snapshot{}, nil
	}
	if err != nil {
		return position.Snapshot{}, fmt.Errorf("store: load %s: %w", name, err)
	}
	return position.UnmarshalSnapshot([]byte(data))
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
