package pipeline

// State is the lifecycle state of a Pipeline.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}

	return "unknown"
}

// Terminal reports whether the pipeline finished.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Status is a snapshot of the pipeline state. Stage is the index of the running, or
// failed, stage; -1 before the first stage and when the workspace could not be prepared.
type Status struct {
	State State
	Stage int
	Err   error
}
