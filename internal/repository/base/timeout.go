package base

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// WithTimeout ограничивает каждый запрос вне транзакции сроком d.
// Срок снимается, когда строки закрыты или прочитаны, а не при возврате из Query.
func WithTimeout(q Querier, d time.Duration) Querier {
	if d <= 0 {
		return q
	}
	return timeoutQuerier{q: q, d: d}
}

type timeoutQuerier struct {
	q Querier
	d time.Duration
}

func (t timeoutQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.q.Exec(ctx, sql, args...)
}

func (t timeoutQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	rows, err := t.q.Query(ctx, sql, args...)
	if err != nil {
		cancel()
		return nil, err
	}
	return &cancelRows{Rows: rows, cancel: cancel}, nil
}

func (t timeoutQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	return cancelRow{row: t.q.QueryRow(ctx, sql, args...), cancel: cancel}
}

type cancelRows struct {
	pgx.Rows
	cancel context.CancelFunc
}

func (r *cancelRows) Close() {
	r.Rows.Close()
	r.cancel()
}

type cancelRow struct {
	row    pgx.Row
	cancel context.CancelFunc
}

func (r cancelRow) Scan(dest ...any) error {
	defer r.cancel()
	return r.row.Scan(dest...)
}
