package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAlreadyStarted = errors.New("pipeline already started")
	ErrCancelled      = errors.New("pipeline cancelled")
	ErrDuplicateStage = errors.New("duplicate stage name")
	ErrEmptyPlan      = errors.New("plan has no stage")
	ErrMissingCommand = errors.New("stage has no command")
	ErrMissingInput   = errors.New("required input missing")
	ErrStageFailed    = errors.New("stage failed")
	ErrUnresolvedPath = errors.New("path is neither prepared nor produced by an earlier stage")
	ErrUnknownPathKey = errors.New("path key not in layout")
)

// StageError reports the stage that stopped the pipeline.
type StageError struct {
	Stage    string
	Index    int
	ExitCode int
	Stderr   string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Index+1, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStageFailed) match any StageError.
func (e *StageError) Is(target error) bool {
	return target == ErrStageFailed
}
