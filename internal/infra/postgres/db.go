package postgres

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DB wraps the PostgreSQL connection used by the guarded database
// operations. Open does not ping: connectivity failures surface through the
// breaker-wrapped calls, not at startup.
type DB struct {
	*sqlx.DB
}

// Open creates the connection pool.
func Open(cfg Config) (*DB, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	return &DB{DB: db}, nil
}

// Inspection is the row shape the guarded lookups return.
type Inspection struct {
	ID         string    `db:"id"          json:"id"`
	VIN        string    `db:"vin"         json:"vin"`
	CustomerID string    `db:"customer_id" json:"customer_id"`
	Status     string    `db:"status"      json:"status"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// FindInspection looks up one inspection by ID.
func (db *DB) FindInspection(ctx context.Context, id string) (*Inspection, error) {
	var out Inspection
	err := db.GetContext(ctx, &out,
		`SELECT id, vin, customer_id, status, created_at FROM inspections WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("find inspection: %w", err)
	}
	return &out, nil
}

// CountInspections returns the number of inspections in the given status.
func (db *DB) CountInspections(ctx context.Context, status string) (int64, error) {
	var count int64
	err := db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM inspections WHERE status = $1`, status)
	if err != nil {
		return 0, fmt.Errorf("count inspections: %w", err)
	}
	return count, nil
}

// Ping verifies connectivity; used as the guarded health probe.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}
