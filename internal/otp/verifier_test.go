package otp

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerifier(t *testing.T) (*RedisVerifier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisVerifier(rdb, "otp:"), mr
}

func TestVerify_MatchingVerifiedCode(t *testing.T) {
	v, mr := newVerifier(t)
	expires := time.Now().Add(5 * time.Minute).Truncate(time.Second)
	mr.HSet("otp:+15550001111", "code", "123456", "verified", "1", "expires_at", strconv.FormatInt(expires.Unix(), 10))

	res, err := v.Verify(context.Background(), "+15550001111", "123456")
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.True(t, res.ExpiresAt.Equal(expires))
	assert.True(t, res.Valid(time.Now()))
}

func TestVerify_Rejections(t *testing.T) {
	v, mr := newVerifier(t)
	future := strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10)
	past := strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)

	mr.HSet("otp:+1000", "code", "111111", "verified", "0", "expires_at", future)
	mr.HSet("otp:+2000", "code", "222222", "verified", "true", "expires_at", past)
	mr.HSet("otp:+3000", "code", "333333", "verified", "1", "expires_at", future)

	tests := []struct {
		name  string
		phone string
		code  string
	}{
		{"unknown phone", "+9999", "000000"},
		{"not verified", "+1000", "111111"},
		{"expired", "+2000", "222222"},
		{"wrong code", "+3000", "000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Verify(context.Background(), tt.phone, tt.code)
			require.NoError(t, err)
			assert.False(t, res.Valid(time.Now()))
		})
	}
}

func TestVerify_FallsBackToKeyTTL(t *testing.T) {
	v, mr := newVerifier(t)
	mr.HSet("otp:+4000", "code", "444444", "verified", "yes")
	mr.SetTTL("otp:+4000", time.Minute)

	res, err := v.Verify(context.Background(), "+4000", "444444")
	require.NoError(t, err)
	assert.False(t, res.Verified, "only boolean flags count")
	assert.WithinDuration(t, time.Now().Add(time.Minute), res.ExpiresAt, 5*time.Second)

	mr.HSet("otp:+4000", "verified", "1")
	res, err = v.Verify(context.Background(), "+4000", "444444")
	require.NoError(t, err)
	assert.True(t, res.Valid(time.Now()))
}

func TestVerify_StoreUnavailable(t *testing.T) {
	v, mr := newVerifier(t)
	mr.Close()

	_, err := v.Verify(context.Background(), "+1000", "111111")
	assert.Error(t, err)
}

func TestVerify_CorruptExpiry(t *testing.T) {
	v, mr := newVerifier(t)
	mr.HSet("otp:+5000", "code", "555555", "verified", "1", "expires_at", "soon")

	_, err := v.Verify(context.Background(), "+5000", "555555")
	assert.Error(t, err)
}
