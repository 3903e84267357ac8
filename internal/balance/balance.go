package balance

import (
	"math/rand"
	"sync"
	"time"
)

// Candidate is one selectable worker as seen by a strategy: its current
// in-flight job count and its configured weight.
type Candidate struct {
	ID     string
	Active int
	Weight int
}

// Strategy picks one candidate out of a non-empty slice and returns its
// index, or -1 when the slice is empty. Strategies may keep internal state
// (round-robin cursor, RNG) and must be safe for concurrent use.
type Strategy interface {
	Name() string
	Pick(cs []Candidate) int
}

// New returns the strategy registered under the given name.
// "priority" is an alias for least-connections; both express
// "prefer the least loaded worker". Unknown names fall back to round-robin.
func New(name string) Strategy {
	switch name {
	case "least-connections", "priority":
		return &LeastConnections{}
	case "weighted":
		return NewWeighted()
	default:
		return &RoundRobin{}
	}
}

// RoundRobin cycles through the candidate list; the cursor persists across
// calls so consecutive picks rotate even when the candidate set changes size.
type RoundRobin struct {
	mu sync.Mutex
	i  int
}

func (*RoundRobin) Name() string { return "round-robin" }

func (s *RoundRobin) Pick(cs []Candidate) int {
	if len(cs) == 0 {
		return -1
	}
	s.mu.Lock()
	idx := s.i % len(cs)
	s.i++
	s.mu.Unlock()
	return idx
}

// LeastConnections picks the candidate with the fewest in-flight jobs.
// Ties go to the first-seen candidate, keeping selection deterministic.
type LeastConnections struct{}

func (*LeastConnections) Name() string { return "least-connections" }

func (*LeastConnections) Pick(cs []Candidate) int {
	if len(cs) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(cs); i++ {
		if cs[i].Active < cs[best].Active {
			best = i
		}
	}
	return best
}

// Weighted draws a candidate at random with probability proportional to its
// weight. Candidates with weight <= 0 count as weight 1.
type Weighted struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeighted creates a Weighted strategy with its own seeded RNG.
func NewWeighted() *Weighted {
	return &Weighted{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (*Weighted) Name() string { return "weighted" }

func (s *Weighted) Pick(cs []Candidate) int {
	if len(cs) == 0 {
		return -1
	}
	total := 0
	for _, c := range cs {
		total += effWeight(c.Weight)
	}
	s.mu.Lock()
	n := s.rng.Intn(total)
	s.mu.Unlock()
	for i, c := range cs {
		n -= effWeight(c.Weight)
		if n < 0 {
			return i
		}
	}
	return len(cs) - 1
}

func effWeight(w int) int {
	if w <= 0 {
		return 1
	}
	return w
}
