package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/Freeeeeet/session_booking/internal/repository/base"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStore_ReadsOutsideTxAreBounded(t *testing.T) {
	mock := newMock(t)
	store := NewPgStore(mock, base.NewTxManager(mock, base.TxOptions{Timeout: 20 * time.Millisecond}))

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_packages WHERE id = $1")).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11))).
		WillDelayFor(time.Second)

	started := time.Now()
	pkg, err := store.Packages().GetByID(context.Background(), 11)

	require.Error(t, err)
	assert.Nil(t, pkg)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}
