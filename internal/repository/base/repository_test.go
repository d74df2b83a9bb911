package base

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, retries uint64) (*TxManager, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewTxManager(mock, TxOptions{
		MaxRetries: retries,
		RetryBase:  time.Millisecond,
	}), mock
}

func touch(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, "UPDATE schedule_slots SET booked_count = booked_count + 1 WHERE id = $1", int64(1))
	return err
}

func TestWithinTx_RetriesSerializationFailure(t *testing.T) {
	m, mock := newManager(t, 3)
	readCommitted := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

	mock.ExpectBeginTx(readCommitted)
	mock.ExpectExec("UPDATE schedule_slots").WithArgs(int64(1)).WillReturnError(&pgconn.PgError{Code: "40001"})
	mock.ExpectRollback()
	mock.ExpectBeginTx(readCommitted)
	mock.ExpectExec("UPDATE schedule_slots").WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := m.WithinTx(context.Background(), touch)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_GivesUpAfterMaxRetries(t *testing.T) {
	m, mock := newManager(t, 1)
	readCommitted := pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

	for i := 0; i < 2; i++ {
		mock.ExpectBeginTx(readCommitted)
		mock.ExpectExec("UPDATE schedule_slots").WithArgs(int64(1)).WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()
	}

	err := m.WithinTx(context.Background(), touch)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTx_DoesNotRetryDomainErrors(t *testing.T) {
	m, mock := newManager(t, 3)
	errFull := errors.New("slot full")

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectRollback()

	calls := 0
	err := m.WithinTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		calls++
		return errFull
	})

	assert.ErrorIs(t, err, errFull)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40001"})))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.False(t, IsRetryable(nil))
}

func TestParseIsoLevel(t *testing.T) {
	level, err := ParseIsoLevel("serializable")
	require.NoError(t, err)
	assert.Equal(t, pgx.Serializable, level)

	level, err = ParseIsoLevel("")
	require.NoError(t, err)
	assert.Equal(t, pgx.ReadCommitted, level)

	_, err = ParseIsoLevel("chaos")
	assert.Error(t, err)
}
