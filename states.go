package qflow

// JobState represents a job lifecycle state used to inspect the store.
// Use the exported constants (StateWaiting, StateActive, etc.) instead of
// raw strings to avoid typos.
type JobState string

const (
	// StateWaiting contains jobs ready for the next dispatch pass.
	StateWaiting JobState = "waiting"
	// StateDelayed contains scheduled jobs and jobs in backoff retry.
	StateDelayed JobState = "delayed"
	// StateActive contains jobs currently assigned to a worker.
	StateActive JobState = "active"
	// StateCompleted contains successfully finished jobs within retention.
	StateCompleted JobState = "completed"
	// StateFailed contains permanently failed jobs within retention.
	StateFailed JobState = "failed"
)

// AllStates lists every valid job state in a stable order.
var AllStates = []JobState{StateWaiting, StateDelayed, StateActive, StateCompleted, StateFailed}

// String returns the raw string value of the state.
func (s JobState) String() string { return string(s) }

// ParseState converts a string into a JobState, returning an error for
// unknown values.
func ParseState(s string) (JobState, error) {
	switch s {
	case string(StateWaiting):
		return StateWaiting, nil
	case string(StateDelayed):
		return StateDelayed, nil
	case string(StateActive):
		return StateActive, nil
	case string(StateCompleted):
		return StateCompleted, nil
	case string(StateFailed):
		return StateFailed, nil
	default:
		return "", ErrUnknownState
	}
}
