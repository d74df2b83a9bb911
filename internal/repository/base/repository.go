package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
)

// Коды PostgreSQL, после которых транзакцию безопасно повторить целиком
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Querier - общее подмножество *pgxpool.Pool и pgx.Tx.
// Репозитории получают его явно, поэтому граница транзакции видна вызывающему коду.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB - пул соединений: запросы вне транзакции, начало транзакции, проверка связи
type DB interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// TxOptions настройки выполнения транзакций
type TxOptions struct {
	IsoLevel   pgx.TxIsoLevel
	MaxRetries uint64
	RetryBase  time.Duration
	Timeout    time.Duration
}

// TxManager выполняет функцию в транзакции и повторяет её при конфликтах сериализации
type TxManager struct {
	db   DB
	opts TxOptions
}

// NewTxManager создаёт менеджер транзакций
func NewTxManager(db DB, opts TxOptions) *TxManager {
	if opts.IsoLevel == "" {
		opts.IsoLevel = pgx.ReadCommitted
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 20 * time.Millisecond
	}
	return &TxManager{db: db, opts: opts}
}

// Timeout срок одной попытки транзакции
func (m *TxManager) Timeout() time.Duration {
	return m.opts.Timeout
}

// WithinTx выполняет fn в одной транзакции: либо применяются все изменения, либо ни одно.
// Ошибки fn, не являющиеся конфликтом сериализации или взаимоблокировкой, не повторяются.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(m.opts.MaxRetries, retry.NewExponential(m.opts.RetryBase))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := m.runOnce(ctx, fn)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	tx, err := m.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: m.opts.IsoLevel})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// После Commit откат ничего не делает
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// IsRetryable проверяет что ошибка - конфликт сериализации или взаимоблокировка
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// ParseIsoLevel переводит значение из конфигурации в уровень изоляции pgx
func ParseIsoLevel(s string) (pgx.TxIsoLevel, error) {
	switch s {
	case "", "read_committed":
		return pgx.ReadCommitted, nil
	case "repeatable_read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	}
	return "", fmt.Errorf("unknown isolation level %q", s)
}
