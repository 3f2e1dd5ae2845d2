package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

var ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")

type SessionStatus string

const (
	SessionInitiated SessionStatus = "INITIATED"
	SessionConverted SessionStatus = "CONVERTED"
	SessionFailed    SessionStatus = "FAILED"
)

// Session is one checkout attempt. IdempotencyKey dedupes retries;
// Degraded records that the checkout reference was built through the
// query-string fallback instead of the platform's session bridge.
type Session struct {
	ID             string
	CartID         string
	OwnerKey       string
	IdempotencyKey string
	Status         SessionStatus
	Snapshot       []byte
	CheckoutRef    string
	Degraded       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type RepoInterface interface {
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*Session, error)
	CreateSession(ctx context.Context, session *Session) error
	// CompleteSession marks the session CONVERTED and enqueues the outbox
	// event in the same transaction, so a published checkout always has a
	// matching session row.
	CompleteSession(ctx context.Context, sessionID, checkoutRef string, degraded bool, eventPayload []byte) error
	FailSession(ctx context.Context, sessionID string) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID int64) error
	Close() error
	RunMigrations(cred *Credentials) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host, cred.Port, cred.User, cred.Password, cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *Repository) GetSessionByIdempotencyKey(ctx context.Context, key string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, cart_id, owner_key, idempotency_key, status, cart_snapshot, checkout_ref, degraded, created_at, updated_at
FROM checkout_sessions WHERE idempotency_key = $1`, key)

	var s Session
	var ref sql.NullString
	err := row.Scan(&s.ID, &s.CartID, &s.OwnerKey, &s.IdempotencyKey, &s.Status,
		&s.Snapshot, &ref, &s.Degraded, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query checkout session: %w", err)
	}
	s.CheckoutRef = ref.String
	return &s, nil
}

func (r *Repository) CreateSession(ctx context.Context, session *Session) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO checkout_sessions (id, cart_id, owner_key, idempotency_key, status, cart_snapshot, degraded, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		session.ID, session.CartID, session.OwnerKey, session.IdempotencyKey,
		session.Status, session.Snapshot, session.Degraded)
	if err != nil {
		return fmt.Errorf("failed to insert checkout session: %w", err)
	}
	return nil
}

func (r *Repository) CompleteSession(ctx context.Context, sessionID, checkoutRef string, degraded bool, eventPayload []byte) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
UPDATE checkout_sessions
SET status = $2, checkout_ref = $3, degraded = $4, updated_at = now()
WHERE id = $1`,
		sessionID, SessionConverted, checkoutRef, degraded)
	if err != nil {
		return fmt.Errorf("failed to update checkout session: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO checkout_outbox (aggregate_id, event_type, payload, created_at)
VALUES ($1, $2, $3, now())`,
		sessionID, "checkout.prepared", eventPayload)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	return tx.Commit()
}

func (r *Repository) FailSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE checkout_sessions SET status = $2, updated_at = now() WHERE id = $1`,
		sessionID, SessionFailed)
	if err != nil {
		return fmt.Errorf("failed to mark checkout session failed: %w", err)
	}
	return nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, aggregate_id, event_type, payload, created_at
FROM checkout_outbox
WHERE processed_at IS NULL
ORDER BY id
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, eventID int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE checkout_outbox SET processed_at = now() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
