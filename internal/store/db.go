package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// EnsureSchema creates the attendance tables when they do not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS groups (
			group_id BIGINT PRIMARY KEY,
			title    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id         BIGSERIAL PRIMARY KEY,
			group_id   BIGINT NOT NULL,
			name       TEXT NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			user_id          BIGINT NOT NULL,
			session_id       BIGINT NOT NULL,
			user_name        TEXT NOT NULL,
			duration_seconds BIGINT NOT NULL DEFAULT 0,
			UNIQUE (user_id, session_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
