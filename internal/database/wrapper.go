// Package database wraps the Postgres pool with the query layer.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/snapdish/snapdish/internal/sql"
)

type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Database struct {
	*Queries

	Pool Pool
}

func NewDatabase(pool *pgxpool.Pool) *Database {
	return &Database{
		Queries: New(pool),
		Pool:    pool,
	}
}

// EnsureSchema applies the embedded schema to the database if the recipes
// table is not detected.
func EnsureSchema(ctx context.Context, db *Database) error {
	var exists bool
	err := db.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'recipes')`,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking schema exists: %w", err)
	}

	if exists {
		return nil
	}

	if _, err := db.db.Exec(ctx, sql.Schema()); err != nil {
		return fmt.Errorf("applying database schema: %w", err)
	}

	return nil
}
