package core

// State is a step of the handoff state machine. States are strictly ordered;
// each is a precondition for the next.
type State string

const (
	StateNew             State = "NEW"
	StateConfigured      State = "CONFIGURED"
	StateSnapshotStarted State = "SNAPSHOT_STARTED"
	StateSnapshotDone    State = "SNAPSHOT_DONE"
	StateCheckpointed    State = "CHECKPOINTED"
	StateStreamStarted   State = "STREAM_STARTED"
	StateClaimed         State = "CLAIMED"
)

var stateOrder = []State{
	StateNew,
	StateConfigured,
	StateSnapshotStarted,
	StateSnapshotDone,
	StateCheckpointed,
	StateStreamStarted,
	StateClaimed,
}

func (s State) String() string {
	return string(s)
}

// States returns all states in order.
func States() []State {
	out := make([]State, len(stateOrder))
	copy(out, stateOrder)
	return out
}

// Index returns the position of s in the state order, or -1.
func (s State) Index() int {
	for i, st := range stateOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the state following s. The terminal state returns itself.
func (s State) Next() State {
	i := s.Index()
	if i < 0 || i == len(stateOrder)-1 {
		return s
	}
	return stateOrder[i+1]
}

// AtLeast reports whether s is at or beyond other.
func (s State) AtLeast(other State) bool {
	return s.Index() >= other.Index()
}

// Terminal reports whether s ends a successful handoff.
func (s State) Terminal() bool {
	return s == StateClaimed
}

// Recovery describes what an operator should do when a handoff stops
// after completing s.
func (s State) Recovery() string {
	switch {
	case s.Index() < StateConfigured.Index():
		return "no job configuration was accepted; rerun the handoff"
	case s.Index() < StateCheckpointed.Index():
		return "no checkpoint was written; rerun the handoff from scratch with a fresh configuration"
	case s == StateCheckpointed:
		return "checkpoint is written but STREAM was not requested; resume or rerun from scratch"
	case s == StateStreamStarted:
		return "STREAM was requested; resume to await the claim or inspect the control plane workers"
	default:
		return "handoff already complete"
	}
}
