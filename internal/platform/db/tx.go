package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// TxRunner abstracts transaction scoping so services can be tested without a database.
type TxRunner interface {
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// Runner implements TxRunner on top of a pgx pool.
type Runner struct {
	Pool *pgxpool.Pool
}

// InTx runs fn inside a single transaction.
func (r Runner) InTx(ctx context.Context, fn func(q Querier) error) error {
	return WithTx(ctx, r.Pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}
