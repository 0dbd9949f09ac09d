package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monoconsulting/medlemsregistret-crm-sub001/pkg/logging"
)

func newMockDB(t *testing.T) (*DatabaseInstance, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewDatabaseInstance(sqlx.NewDb(mockDB, "sqlmock"), logging.NewNopLogger()), mock
}

func TestWithTx_Commit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO municipalities").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), TxOptions{Timeout: time.Second}, func(ctx context.Context, tx Querier) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO municipalities (name) VALUES ($1)", "Sundsvall")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := db.WithTx(context.Background(), TxOptions{}, func(context.Context, Querier) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = db.WithTx(context.Background(), TxOptions{}, func(context.Context, Querier) error {
			panic("kaboom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := db.WithTx(context.Background(), TxOptions{}, func(context.Context, Querier) error {
		return nil
	})
	assert.ErrorContains(t, err, "error while committing transaction: serialization failure")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := db.WithTx(context.Background(), TxOptions{}, func(context.Context, Querier) error {
		called = true
		return nil
	})
	assert.ErrorContains(t, err, "error while beginning transaction")
	assert.False(t, called)
}

func TestWithTx_SlotTimeout(t *testing.T) {
	db, _ := newMockDB(t)
	db.SetMaxOpenConns(1)

	held, err := db.Connx(context.Background())
	require.NoError(t, err)
	defer held.Close()

	err = db.WithTx(context.Background(), TxOptions{MaxWait: 20 * time.Millisecond}, func(context.Context, Querier) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrTxSlotTimeout)
}

func TestTransaction_CloseIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	sqlTx, err := db.Beginx()
	require.NoError(t, err)

	tx := NewTx(sqlTx, logging.NewNopLogger())
	assert.False(t, tx.isClosed)
	require.NoError(t, tx.Commit(context.Background()))
	assert.True(t, tx.isClosed)
	assert.NoError(t, tx.Rollback(context.Background()))
	assert.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
