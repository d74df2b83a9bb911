package base

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTimeoutQuerier(t *testing.T, d time.Duration) (Querier, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return WithTimeout(mock, d), mock
}

func TestWithTimeout_SlowStatementIsCancelled(t *testing.T) {
	q, mock := newTimeoutQuerier(t, 20*time.Millisecond)

	mock.ExpectQuery("SELECT id FROM user_packages").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7))).
		WillDelayFor(time.Second)

	started := time.Now()
	var id int64
	err := q.QueryRow(context.Background(), "SELECT id FROM user_packages WHERE id = $1", int64(7)).Scan(&id)

	require.Error(t, err)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestWithTimeout_SlowExecIsCancelled(t *testing.T) {
	q, mock := newTimeoutQuerier(t, 20*time.Millisecond)

	mock.ExpectExec("UPDATE users").
		WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)).
		WillDelayFor(time.Second)

	started := time.Now()
	_, err := q.Exec(context.Background(), "UPDATE users SET phone = NULL WHERE telegram_id = $1", int64(1))

	require.Error(t, err)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestWithTimeout_RowsStayReadableUntilClosed(t *testing.T) {
	q, mock := newTimeoutQuerier(t, time.Second)

	mock.ExpectQuery("SELECT id FROM schedule_slots").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	rows, err := q.Query(context.Background(), "SELECT id FROM schedule_slots WHERE template_id = $1", int64(1))
	require.NoError(t, err)

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	rows.Close()

	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTimeout_ZeroKeepsQuerier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	assert.Same(t, mock, WithTimeout(mock, 0))
}
