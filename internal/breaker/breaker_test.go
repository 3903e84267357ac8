package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_OpensAtThreshold(t *testing.T) {
	r := New(Config{FailureThreshold: 3, MonitoringPeriod: time.Minute, ResetTimeout: time.Minute})

	r.RecordFailure("w1")
	r.RecordFailure("w1")
	require.False(t, r.IsOpen("w1"))

	r.RecordFailure("w1")
	require.True(t, r.IsOpen("w1"))
	require.Equal(t, uint64(1), r.Trips())

	// other workers are unaffected
	require.False(t, r.IsOpen("w2"))
}

func TestRegistry_ResetTimeoutElapses(t *testing.T) {
	r := New(Config{FailureThreshold: 2, MonitoringPeriod: time.Minute, ResetTimeout: 80 * time.Millisecond})

	r.RecordFailure("w1")
	r.RecordFailure("w1")
	require.True(t, r.IsOpen("w1"))

	time.Sleep(120 * time.Millisecond)
	// failures are still inside the monitoring window, but the reset
	// timeout since the most recent failure has elapsed
	require.False(t, r.IsOpen("w1"))
}

func TestRegistry_MonitoringWindowPrunes(t *testing.T) {
	r := New(Config{FailureThreshold: 2, MonitoringPeriod: 60 * time.Millisecond, ResetTimeout: time.Minute})

	r.RecordFailure("w1")
	time.Sleep(100 * time.Millisecond)
	r.RecordFailure("w1")
	// the first failure aged out of the window
	require.False(t, r.IsOpen("w1"))
	require.Equal(t, 1, r.FailureCount("w1"))
}

func TestRegistry_SuccessDoesNotClearHistory(t *testing.T) {
	r := New(Config{FailureThreshold: 2, MonitoringPeriod: time.Minute, ResetTimeout: time.Minute})

	r.RecordFailure("w1")
	r.RecordSuccess("w1")
	require.Equal(t, 1, r.FailureCount("w1"))

	r.RecordFailure("w1")
	require.True(t, r.IsOpen("w1"))
}

func TestRegistry_ResetClosesImmediately(t *testing.T) {
	r := New(Config{FailureThreshold: 1, MonitoringPeriod: time.Minute, ResetTimeout: time.Minute})

	r.RecordFailure("w1")
	require.True(t, r.IsOpen("w1"))
	r.Reset("w1")
	require.False(t, r.IsOpen("w1"))
	require.Equal(t, 0, r.FailureCount("w1"))
}

func TestRegistry_RecordFailureReportsTrip(t *testing.T) {
	r := New(Config{FailureThreshold: 3, MonitoringPeriod: time.Minute, ResetTimeout: time.Minute})

	require.False(t, r.RecordFailure("w1"))
	require.False(t, r.RecordFailure("w1"))
	// only the failure that crosses the threshold reports a trip
	require.True(t, r.RecordFailure("w1"))
	require.False(t, r.RecordFailure("w1"))
	require.Equal(t, uint64(1), r.Trips())
}
