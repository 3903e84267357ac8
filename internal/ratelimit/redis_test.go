package ratelimit

import (
	"context"
	"testing"
	"time"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMini(t *testing.T) (*mrd.Miniredis, *redis.Client, func()) {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return s, rdb, func() { _ = rdb.Close(); s.Close() }
}

func TestRedis_WindowSaturation(t *testing.T) {
	_, rdb, done := newMini(t)
	defer done()
	r := NewRedis(rdb, time.Second, 2)
	ctx := context.Background()

	ok, err := r.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = r.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = r.Allow(ctx, "k")
	require.False(t, ok)

	// independent key
	ok, _ = r.Allow(ctx, "other")
	require.True(t, ok)
}

func TestRedis_WindowExpires(t *testing.T) {
	s, rdb, done := newMini(t)
	defer done()
	r := NewRedis(rdb, time.Second, 1)
	ctx := context.Background()

	ok, _ := r.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = r.Allow(ctx, "k")
	require.False(t, ok)

	s.FastForward(1100 * time.Millisecond)
	ok, _ = r.Allow(ctx, "k")
	require.True(t, ok)
}

func TestRedis_Reset(t *testing.T) {
	_, rdb, done := newMini(t)
	defer done()
	r := NewRedis(rdb, time.Minute, 1)
	ctx := context.Background()

	ok, _ := r.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = r.Allow(ctx, "k")
	require.False(t, ok)

	require.NoError(t, r.Reset(ctx, "k"))
	ok, _ = r.Allow(ctx, "k")
	require.True(t, ok)
}

func TestRedis_FailsOpenOnBackendError(t *testing.T) {
	_, rdb, done := newMini(t)
	done() // close the backend up front

	r := NewRedis(rdb, time.Second, 1)
	ok, err := r.Allow(context.Background(), "k")
	require.Error(t, err)
	require.True(t, ok)
}
