package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionConflict signals that a conditional update lost an optimistic
// concurrency race: the row exists but its version moved since it was read.
var ErrVersionConflict = errors.New("version conflict")

// Querier is the subset of pgx operations shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner executes a function inside a database transaction. Mutations that
// must commit atomically with their outbox event run through it.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type txRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner wraps a pool as a TxRunner.
func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &txRunner{pool: pool}
}

func (r *txRunner) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
