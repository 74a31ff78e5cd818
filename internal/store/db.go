package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx and keeps collections in a kv table.
// Claims live in kv_locks so every process sharing the database sees them.
type DB struct {
	Client *sql.DB
	now    func() time.Time
}

// NewDB creates a Postgres connection with sane defaults and ensures the kv table.
func NewDB(ctx context.Context, connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	d := &DB{Client: db, now: time.Now}
	if err := d.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) migrate(ctx context.Context) error {
	for _, stmt := range []string{`
		CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, `
		CREATE TABLE IF NOT EXISTS kv_locks (
			key        TEXT PRIMARY KEY,
			token      TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
	} {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a value by key.
func (d *DB) Load(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := d.Client.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return val, err
}

// Save upserts a value.
func (d *DB) Save(ctx context.Context, key string, value []byte) error {
	_, err := d.Client.ExecContext(ctx, `
		INSERT INTO kv_store (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	return err
}

// Acquire inserts the claim, or takes over one whose expiry has passed.
func (d *DB) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	now := d.now().UTC()
	res, err := d.Client.ExecContext(ctx, `
		INSERT INTO kv_locks (key, token, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		WHERE kv_locks.expires_at <= $4
	`, key, token, now.Add(ttl), now)
	return claimed(res, err, token)
}

// Release deletes the claim while token still holds it.
func (d *DB) Release(ctx context.Context, key, token string) error {
	_, err := d.Client.ExecContext(ctx, `DELETE FROM kv_locks WHERE key = $1 AND token = $2`, key, token)
	return err
}

func claimed(res sql.Result, err error, token string) (string, bool, error) {
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return "", false, err
	}
	return token, true, nil
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	return d != nil && d.Client != nil && d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
