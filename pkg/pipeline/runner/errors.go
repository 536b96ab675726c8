package runner

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrExitStatus = errors.New("non-zero exit status")
	ErrLaunch     = errors.New("unable to launch process")
	ErrTimeout    = errors.New("stage timed out")
)

const maxReasonLines = 20

// ExitError reports a process that ran but did not exit with status 0.
// Stderr holds the complete captured standard error.
type ExitError struct {
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	reason := tail(strings.TrimSpace(e.Stderr), maxReasonLines)
	if reason == "" {
		return fmt.Sprintf("exit status %d", e.ExitCode)
	}

	return fmt.Sprintf("exit status %d: %s", e.ExitCode, reason)
}

// Is makes errors.Is(err, ErrExitStatus) match any ExitError.
func (e *ExitError) Is(target error) bool {
	return target == ErrExitStatus
}

func tail(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}

	return strings.Join(lines[len(lines)-n:], "\n")
}
