// Package stats keeps durable per-user activity counters in PostgreSQL,
// separate from the ephemeral Redis state: message totals and warning
// totals survive Redis flushes and feed reporting queries. The store is
// optional; a nil *Store no-ops every call so the bot runs without
// PostgreSQL.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Store records user activity in PostgreSQL.
type Store struct {
	db *sql.DB
}

// UserStats is one user's durable activity record.
type UserStats struct {
	UserID       string
	MessagesSent int64
	Warnings     int64
	LastActive   time.Time
}

// NewStore creates a stats store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, verifies the connection, and applies pending
// migrations from migrationsDir.
func Open(dsn, migrationsDir string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("stats: open: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: ping: %w", err)
	}
	if err := Migrate(db, migrationsDir); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

// Migrate applies pending migrations from dir to db.
func Migrate(db *sql.DB, dir string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("stats: migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("stats: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("stats: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// LogMessage bumps a user's message counter and refreshes last_active.
func (s *Store) LogMessage(ctx context.Context, userID string) error {
	if s == nil {
		return nil
	}
	const query = `
		INSERT INTO user_statistics (user_id, messages_sent, warnings, last_active)
		VALUES ($1, 1, 0, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET messages_sent = user_statistics.messages_sent + 1,
		    last_active = NOW()`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("stats: log message: %w", err)
	}
	return nil
}

// LogWarning bumps a user's warning counter.
func (s *Store) LogWarning(ctx context.Context, userID string) error {
	if s == nil {
		return nil
	}
	const query = `
		INSERT INTO user_statistics (user_id, messages_sent, warnings, last_active)
		VALUES ($1, 0, 1, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET warnings = user_statistics.warnings + 1`
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("stats: log warning: %w", err)
	}
	return nil
}

// Get returns a user's record; absent users read as all-zero.
func (s *Store) Get(ctx context.Context, userID string) (*UserStats, error) {
	if s == nil {
		return &UserStats{UserID: userID}, nil
	}
	const query = `
		SELECT messages_sent, warnings, last_active
		FROM user_statistics
		WHERE user_id = $1`

	us := &UserStats{UserID: userID}
	err := s.db.QueryRowContext(ctx, query, userID).
		Scan(&us.MessagesSent, &us.Warnings, &us.LastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return us, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stats: get %s: %w", userID, err)
	}
	return us, nil
}
