package pipeline

import "time"

// State is a pipeline state.
type State int

const (
	Idle State = iota
	Encoding
	Extracting
	Parsing
	Persisting
	Refreshing
	Done
	Errored
)

var stateNames = [...]string{
	Idle:       "idle",
	Encoding:   "encoding",
	Extracting: "extracting",
	Parsing:    "parsing",
	Persisting: "persisting",
	Refreshing: "refreshing",
	Done:       "done",
	Errored:    "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Transition is delivered to observers on every state change.
type Transition struct {
	RunID string
	From  State
	To    State
	At    time.Time
}

// Observer receives transitions synchronously, in order. It must not call Run.
type Observer func(Transition)

// allowed lists the legal successors of each state. Errored is reachable from
// every non-Idle state, and cancellation returns any state straight to Idle.
var allowed = map[State][]State{
	Idle:       {Encoding},
	Encoding:   {Extracting, Errored, Idle},
	Extracting: {Parsing, Persisting, Errored, Idle},
	Parsing:    {Persisting, Errored, Idle},
	Persisting: {Refreshing, Errored, Idle},
	Refreshing: {Done, Errored, Idle},
	Done:       {Idle},
	Errored:    {Idle},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
