package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_WindowSaturation(t *testing.T) {
	m := NewMemory(time.Second, 2)
	ctx := context.Background()

	ok, err := m.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = m.Allow(ctx, "k")
	require.True(t, ok)

	// third request inside the window is rejected
	ok, _ = m.Allow(ctx, "k")
	require.False(t, ok)

	// other keys have independent windows
	ok, _ = m.Allow(ctx, "other")
	require.True(t, ok)
}

func TestMemory_WindowElapses(t *testing.T) {
	m := NewMemory(80*time.Millisecond, 1)
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = m.Allow(ctx, "k")
	require.False(t, ok)

	time.Sleep(120 * time.Millisecond)
	ok, _ = m.Allow(ctx, "k")
	require.True(t, ok)
}

func TestMemory_Reset(t *testing.T) {
	m := NewMemory(time.Minute, 1)
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = m.Allow(ctx, "k")
	require.False(t, ok)

	require.NoError(t, m.Reset(ctx, "k"))
	ok, _ = m.Allow(ctx, "k")
	require.True(t, ok)
}

func TestMemory_SweepDropsExpiredWindows(t *testing.T) {
	m := NewMemory(30*time.Millisecond, 5)
	ctx := context.Background()
	_, _ = m.Allow(ctx, "a")
	_, _ = m.Allow(ctx, "b")
	require.Len(t, m.windows, 2)

	time.Sleep(60 * time.Millisecond)
	m.Sweep()
	require.Len(t, m.windows, 0)
}
