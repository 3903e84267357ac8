package balance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cands(active ...int) []Candidate {
	out := make([]Candidate, len(active))
	for i, a := range active {
		out[i] = Candidate{ID: string(rune('a' + i)), Active: a, Weight: 1}
	}
	return out
}

func TestNew_NameMapping(t *testing.T) {
	require.Equal(t, "round-robin", New("round-robin").Name())
	require.Equal(t, "least-connections", New("least-connections").Name())
	// "priority" is an alias of least-connections
	require.Equal(t, "least-connections", New("priority").Name())
	require.Equal(t, "weighted", New("weighted").Name())
	// unknown names fall back to round-robin
	require.Equal(t, "round-robin", New("").Name())
}

func TestRoundRobin_CyclesAndPersistsCursor(t *testing.T) {
	s := &RoundRobin{}
	cs := cands(0, 0, 0)
	require.Equal(t, 0, s.Pick(cs))
	require.Equal(t, 1, s.Pick(cs))
	require.Equal(t, 2, s.Pick(cs))
	require.Equal(t, 0, s.Pick(cs))

	// cursor survives a shrinking candidate set
	require.Equal(t, 0, s.Pick(cands(0, 0)))
	require.Equal(t, -1, s.Pick(nil))
}

func TestLeastConnections_PrefersLeastLoaded(t *testing.T) {
	s := &LeastConnections{}
	require.Equal(t, 2, s.Pick(cands(3, 1, 0)))
	// ties break to first-seen
	require.Equal(t, 0, s.Pick(cands(1, 1, 2)))
	require.Equal(t, -1, s.Pick(nil))
}

func TestWeighted_RespectsWeights(t *testing.T) {
	s := NewWeighted()
	cs := []Candidate{
		{ID: "light", Weight: 1},
		{ID: "heavy", Weight: 9},
	}
	counts := map[int]int{}
	for i := 0; i < 2000; i++ {
		counts[s.Pick(cs)]++
	}
	require.Greater(t, counts[1], counts[0])
	// zero weight counts as 1, never starves
	cs[0].Weight = 0
	picked := map[int]bool{}
	for i := 0; i < 500; i++ {
		picked[s.Pick(cs)] = true
	}
	require.True(t, picked[0])
	require.True(t, picked[1])
}

func BenchmarkLeastConnections_Pick(b *testing.B) {
	s := &LeastConnections{}
	cs := cands(4, 2, 7, 1, 9, 3, 0, 5)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = s.Pick(cs)
	}
}
