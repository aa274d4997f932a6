package engine

import "encoding/json"

// CompletionState is the aggregate puzzle state, recomputed from scratch on
// every observation batch.
type CompletionState int

const (
	// NotStarted: no target has a matching observed piece.
	NotStarted CompletionState = iota
	// InProgress: some but not all targets are matched.
	InProgress
	// Complete: every target is simultaneously matched by its bound,
	// currently stable piece. Dragging any piece away reverts the state.
	Complete
)

func (s CompletionState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its wire spelling.
func (s CompletionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Event is the one-shot edge emitted when the aggregate state changes,
// consumed by persistence and scoring. The evaluator holds no other
// incremental state.
type Event int

const (
	EventNone Event = iota
	// EventStarted fires on the NotStarted -> InProgress edge.
	EventStarted
	// EventCompleted fires on the -> Complete edge.
	EventCompleted
	// EventReverted fires when a previously Complete puzzle loses a match.
	EventReverted
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the event as its wire spelling.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// evaluateCompletion folds per-target match results into the aggregate
// state. matched counts targets whose bound observed piece is currently
// matched and stable; total is the puzzle's target count.
func evaluateCompletion(matched, total int) CompletionState {
	switch {
	case matched == 0:
		return NotStarted
	case matched < total:
		return InProgress
	default:
		return Complete
	}
}

// completionEvent derives the one-shot edge between two aggregate states.
func completionEvent(prev, next CompletionState) Event {
	if prev == next {
		return EventNone
	}
	switch {
	case next == Complete:
		return EventCompleted
	case prev == Complete:
		return EventReverted
	case prev == NotStarted && next == InProgress:
		return EventStarted
	default:
		return EventNone
	}
}
