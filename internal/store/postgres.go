package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	appconfig "github.com/edustack/academy-api/internal/config"
)

// PostgresProvider stores documents in a single jsonb table.
type PostgresProvider struct {
	cfg appconfig.StoreConfig
	db  *sql.DB
}

// NewPostgres returns an uninitialized Postgres provider.
func NewPostgres(cfg appconfig.StoreConfig) *PostgresProvider {
	return &PostgresProvider{cfg: cfg}
}

// Name implements Provider.
func (p *PostgresProvider) Name() string { return "postgres" }

// Initialize opens the pool, verifies connectivity, and ensures the
// documents table exists.
func (p *PostgresProvider) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", p.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, key)
		)`); err != nil {
		db.Close()
		return fmt.Errorf("ensuring documents table: %w", err)
	}

	p.db = db
	return nil
}

// Put implements Provider with an upsert.
func (p *PostgresProvider) Put(ctx context.Context, doc Document) error {
	if err := ValidateRef(doc.Collection, doc.Key); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (collection, key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		doc.Collection, doc.Key, doc.Data)
	if err != nil {
		return fmt.Errorf("upserting document %s/%s: %w", doc.Collection, doc.Key, err)
	}
	return nil
}

// Get implements Provider.
func (p *PostgresProvider) Get(ctx context.Context, collection, key string) (*Document, error) {
	if err := ValidateRef(collection, key); err != nil {
		return nil, err
	}
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND key = $2`,
		collection, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %s/%s: %w", collection, key, err)
	}
	return &Document{Collection: collection, Key: key, Data: data}, nil
}

// Delete implements Provider. Deleting an absent document is not an error.
func (p *PostgresProvider) Delete(ctx context.Context, collection, key string) error {
	if err := ValidateRef(collection, key); err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND key = $2`,
		collection, key); err != nil {
		return fmt.Errorf("deleting document %s/%s: %w", collection, key, err)
	}
	return nil
}

// Probe implements Provider.
func (p *PostgresProvider) Probe(ctx context.Context) error {
	if p.db == nil {
		return fmt.Errorf("postgres not initialized")
	}
	return p.db.PingContext(ctx)
}

// Close implements Provider.
func (p *PostgresProvider) Close() error {
	if p.db == nil {
		return nil
	}
	return p.db.Close()
}
