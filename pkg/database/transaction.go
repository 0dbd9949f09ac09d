package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/tracing"
)

// ErrTxSlotTimeout is returned when no connection became available within TxOptions.MaxWait.
var ErrTxSlotTimeout = errors.New("timed out waiting for a transaction slot")

// TxOptions bounds a transaction. Timeout covers the whole transaction including commit,
// MaxWait covers acquiring a connection to run it on. Zero values mean unbounded.
type TxOptions struct {
	Timeout   time.Duration
	MaxWait   time.Duration
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Transaction wraps sqlx.Tx and tracks whether it has been closed.
type Transaction struct {
	*sqlx.Tx
	logger   ectologger.Logger
	isClosed bool
}

func NewTx(tx *sqlx.Tx, logger ectologger.Logger) *Transaction {
	return &Transaction{
		Tx:     tx,
		logger: logger,
	}
}

func (t *Transaction) Rollback(ctx context.Context) error {
	if t.isClosed {
		return nil
	}
	t.isClosed = true

	err := t.Tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while rolling back transaction")
		return fmt.Errorf("error while rolling back transaction: %w", err)
	}
	return nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if t.isClosed {
		return nil
	}
	t.isClosed = true

	if err := t.Tx.Commit(); err != nil {
		t.logger.WithContext(ctx).WithError(err).Errorf("error while committing transaction")
		return fmt.Errorf("error while committing transaction: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction on a dedicated connection. The transaction commits when
// fn returns nil and rolls back otherwise, including when the timeout elapses.
func (db *DatabaseInstance) WithTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx Querier) error) error {
	ctx, span := tracing.StartSpan(ctx, "Database.WithTx")
	defer span.End()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	conn, err := db.acquire(ctx, opts.MaxWait)
	if err != nil {
		tracing.Fail(span, err, "failed to acquire connection")
		return err
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTxx(ctx, &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly})
	if err != nil {
		db.logger.WithContext(ctx).WithError(err).Errorf("error while beginning transaction")
		tracing.Fail(span, err, "failed to begin transaction")
		return fmt.Errorf("error while beginning transaction: %w", err)
	}

	tx := NewTx(sqlTx, db.logger)
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		tracing.Fail(span, err, "transaction body failed")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		tracing.Fail(span, err, "failed to commit")
		return err
	}
	return nil
}

func (db *DatabaseInstance) acquire(ctx context.Context, maxWait time.Duration) (*sqlx.Conn, error) {
	waitCtx := ctx
	if maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, maxWait)
		defer cancel()
	}

	conn, err := db.Connx(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrTxSlotTimeout, maxWait)
		}
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return conn, nil
}
