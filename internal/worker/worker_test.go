package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndEligible(t *testing.T) {
	r := NewRegistry()
	r.Register(&Worker{ID: "w1", Type: "llm", Concurrency: 2})
	r.Register(&Worker{ID: "w2", Type: "llm", Concurrency: 1})
	r.Register(&Worker{ID: "w3", Type: "cache", Concurrency: 1})

	el := r.Eligible("llm")
	require.Len(t, el, 2)
	require.Equal(t, "w1", el[0].ID)

	// a worker at capacity drops out of the eligible set
	require.True(t, r.Assign("w2", "j1"))
	el = r.Eligible("llm")
	require.Len(t, el, 1)
	require.Equal(t, "w1", el[0].ID)

	require.Empty(t, r.Eligible("unknown"))
}

func TestRegistry_AssignEnforcesConcurrency(t *testing.T) {
	r := NewRegistry()
	r.Register(&Worker{ID: "w1", Type: "llm", Concurrency: 2})

	require.True(t, r.Assign("w1", "j1"))
	require.True(t, r.Assign("w1", "j2"))
	require.False(t, r.Assign("w1", "j3"))

	// double assignment of the same job id is refused
	r.Release("w1", "j2")
	require.False(t, r.Assign("w1", "j1"))

	require.False(t, r.Assign("ghost", "j4"))
}

func TestRegistry_ConcurrencyClampedToOne(t *testing.T) {
	r := NewRegistry()
	r.Register(&Worker{ID: "w1", Type: "llm", Concurrency: 0})
	require.True(t, r.Assign("w1", "j1"))
	require.False(t, r.Assign("w1", "j2"))
}

func TestRegistry_DrainingDefersRemoval(t *testing.T) {
	r := NewRegistry()
	r.Register(&Worker{ID: "w1", Type: "llm", Concurrency: 1})
	require.True(t, r.Assign("w1", "j1"))

	drained, ok := r.MarkDraining("w1")
	require.True(t, ok)
	require.False(t, drained)

	// draining workers take no new work
	require.Empty(t, r.Eligible("llm"))
	require.False(t, r.Assign("w1", "j2"))

	// the in-flight job is not cancelled; releasing it finishes the drain
	require.True(t, r.Release("w1", "j1"))
	require.True(t, r.Remove("w1"))
	require.False(t, r.Remove("w1"))
}

func TestRegistry_MarkDrainingIdleWorker(t *testing.T) {
	r := NewRegistry()
	r.Register(&Worker{ID: "w1", Type: "llm", Concurrency: 1})
	drained, ok := r.MarkDraining("w1")
	require.True(t, ok)
	require.True(t, drained)

	_, ok = r.MarkDraining("ghost")
	require.False(t, ok)
}

func TestRegistry_HoldsAndTotals(t *testing.T) {
	r := NewRegistry()
	r.Register(&Worker{ID: "w1", Type: "llm", Concurrency: 2})
	r.Register(&Worker{ID: "w2", Type: "llm", Concurrency: 2})

	require.False(t, r.Holds("j1"))
	r.Assign("w1", "j1")
	r.Assign("w2", "j2")
	require.True(t, r.Holds("j1"))
	require.Equal(t, 2, r.TotalActive())

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, "w1", snap[0].ID)
	require.Equal(t, 1, snap[0].Active)
}
