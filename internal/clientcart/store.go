package clientcart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/abhijeets54/ankkorwoo-sub001/internal/domain"
)

var (
	ErrNoSnapshot = errors.New("no persisted snapshot")

	// ErrSchemaMismatch means the persisted snapshot was written by a
	// different schema version. The caller discards and refetches; there
	// is no best-effort parse.
	ErrSchemaMismatch = errors.New("snapshot schema version mismatch")
)

// SnapshotStore persists the client cart snapshot across restarts.
type SnapshotStore interface {
	Load(ctx context.Context) (*domain.ClientCartSnapshot, error)
	Save(ctx context.Context, snap *domain.ClientCartSnapshot) error
	Clear(ctx context.Context) error
}

// SQLiteStore keeps the snapshot in a single-row sqlite table, the
// server-side stand-in for the browser's localStorage. Each save is one
// upsert statement, so a crash mid-write can never leave a half-written
// snapshot.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS client_snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL,
	version INTEGER NOT NULL,
	payload TEXT NOT NULL,
	last_synced_at TIMESTAMP NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*domain.ClientCartSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT schema_version, version, payload, last_synced_at FROM client_snapshot WHERE id = 1`)

	var schemaVersion int
	var version int64
	var payload string
	var lastSyncedAt time.Time

	err := row.Scan(&schemaVersion, &version, &payload, &lastSyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	if schemaVersion != domain.SnapshotSchemaVersion {
		return nil, ErrSchemaMismatch
	}

	var snap domain.ClientCartSnapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot payload: %w", err)
	}
	snap.SchemaVersion = schemaVersion
	snap.Version = version
	snap.LastSyncedAt = lastSyncedAt
	return &snap, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *domain.ClientCartSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO client_snapshot (id, schema_version, version, payload, last_synced_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	schema_version = excluded.schema_version,
	version = excluded.version,
	payload = excluded.payload,
	last_synced_at = excluded.last_synced_at`,
		domain.SnapshotSchemaVersion, snap.Version, string(payload), snap.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_snapshot WHERE id = 1`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
