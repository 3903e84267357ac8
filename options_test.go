package qflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOptions_JobDefaultsAndOverrides(t *testing.T) {
	cfg := &options{}
	for _, opt := range []Option{
		JobID("j-1"),
		Priority(7),
		Delay(2 * time.Second),
		MaxAttempts(5),
		RateLimitKey("custom"),
	} {
		opt(cfg)
	}
	require.Equal(t, "j-1", cfg.id)
	require.Equal(t, 7, cfg.priority)
	require.Equal(t, 2*time.Second, cfg.delay)
	require.Equal(t, 5, cfg.maxAttempts)
	require.Equal(t, "custom", cfg.rateLimitKey)
}

func TestOptions_CallerAndResourceFeedDerivedKey(t *testing.T) {
	e := newTestEngine(t, nil)
	id, err := e.Submit(context.Background(), "llm", 1, CallerID("tenant-1"), Resource("gpt-4"))
	require.NoError(t, err)
	j, err := e.GetJob(id)
	require.NoError(t, err)
	require.Equal(t, "llm:tenant-1:gpt-4", j.RateLimitKey)
}

func TestWorkerOptions(t *testing.T) {
	cfg := &workerOptions{concurrency: 1, weight: 1}
	probeCalled := false
	for _, opt := range []WorkerOption{
		Concurrency(4),
		Weight(9),
		HealthProbe(func(context.Context) error { probeCalled = true; return nil }),
	} {
		opt(cfg)
	}
	require.Equal(t, 4, cfg.concurrency)
	require.Equal(t, 9, cfg.weight)
	require.NotNil(t, cfg.probe)
	require.NoError(t, cfg.probe(context.Background()))
	require.True(t, probeCalled)
}
