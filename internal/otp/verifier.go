package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/redis/go-redis/v9"
)

// Поля хеша, который пишет сервис отправки кодов
const (
	fieldCode      = "code"
	fieldVerified  = "verified"
	fieldExpiresAt = "expires_at" // unix-время в секундах
)

// RedisVerifier читает состояние одноразового кода из Redis по ключу <prefix>:<phone>.
// Сам код генерирует и отправляет внешний сервис.
type RedisVerifier struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisVerifier(rdb redis.UniversalClient, prefix string) *RedisVerifier {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisVerifier{rdb: rdb, prefix: strings.TrimSuffix(prefix, ":")}
}

func (v *RedisVerifier) key(phone string) string {
	return v.prefix + ":" + phone
}

// Verify возвращает Verified=false если кода нет или он не совпал.
// Ошибка возвращается только при недоступности Redis или битых данных.
func (v *RedisVerifier) Verify(ctx context.Context, phone, code string) (model.OTPVerification, error) {
	key := v.key(phone)

	var (
		fields *redis.MapStringStringCmd
		ttl    *redis.DurationCmd
	)
	_, err := v.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.OTPVerification{}, fmt.Errorf("read otp state: %w", err)
	}

	values := fields.Val()
	stored, ok := values[fieldCode]
	if !ok {
		return model.OTPVerification{}, nil
	}

	expiresAt, err := v.expiry(values, ttl.Val())
	if err != nil {
		return model.OTPVerification{}, err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return model.OTPVerification{ExpiresAt: expiresAt}, nil
	}

	return model.OTPVerification{
		Verified:  parseFlag(values[fieldVerified]),
		ExpiresAt: expiresAt,
	}, nil
}

// expiry берёт срок из поля expires_at, а без него - из TTL ключа
func (v *RedisVerifier) expiry(values map[string]string, ttl time.Duration) (time.Time, error) {
	if raw, ok := values[fieldExpiresAt]; ok {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse otp expiry %q: %w", raw, err)
		}
		return time.Unix(sec, 0), nil
	}
	if ttl > 0 {
		return time.Now().Add(ttl), nil
	}
	// Ключ без срока не считается действующим
	return time.Time{}, nil
}

func parseFlag(s string) bool {
	ok, err := strconv.ParseBool(s)
	return err == nil && ok
}
