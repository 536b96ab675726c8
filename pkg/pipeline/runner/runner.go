package runner

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

const defaultWaitDelay = 2 * time.Second

// Invocation is a single attempt at running a stage command.
type Invocation struct {
	Stage string
	Argv  []string
	// Timeout bounds the process lifetime. Zero falls back to the runner default.
	Timeout time.Duration
	// Output receives every non-empty line of stdout and stderr as it is produced.
	// It is called from the goroutines copying the two streams and must be safe for
	// concurrent use.
	Output func(stream model.Stream, line string)
}

// Runner runs a stage command to completion.
type Runner interface {
	Run(ctx context.Context, inv Invocation) model.StageResult
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, inv Invocation) model.StageResult

func (f RunnerFunc) Run(ctx context.Context, inv Invocation) model.StageResult {
	return f(ctx, inv)
}

// ExecRunner runs stages as local processes.
type ExecRunner struct {
	// Dir is the working directory of every process; empty means the current one.
	Dir string
	// Timeout applies to invocations without their own timeout. Zero disables it.
	Timeout time.Duration
	// WaitDelay bounds how long I/O copying may outlive a killed process.
	WaitDelay time.Duration
	Logger    logrus.FieldLogger
}

// New creates an ExecRunner with no timeout.
func New(logger logrus.FieldLogger) *ExecRunner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &ExecRunner{
		WaitDelay: defaultWaitDelay,
		Logger:    logger,
	}
}

// Run launches inv.Argv and blocks until the process exits, the timeout expires or ctx is
// done. The returned result always carries the captured output.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) model.StageResult {
	res := model.StageResult{
		Stage:    inv.Stage,
		Argv:     inv.Argv,
		ExitCode: -1,
	}
	if len(inv.Argv) == 0 {
		res.Err = errors.Wrap(ErrLaunch, "empty command")

		return res
	}

	timeout := inv.Timeout
	if timeout == 0 {
		timeout = r.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := r.logger().WithFields(logrus.Fields{
		"stage":   inv.Stage,
		"command": inv.Argv[0],
	})

	cmd := exec.CommandContext(ctx, inv.Argv[0], inv.Argv[1:]...) //nolint:gosec // argv comes from the stage chain
	cmd.Dir = r.Dir
	cmd.WaitDelay = r.WaitDelay

	var stdout, stderr bytes.Buffer
	outLines := newLineWriter(model.Stdout, inv.Output)
	errLines := newLineWriter(model.Stderr, inv.Output)
	cmd.Stdout = io.MultiWriter(&stdout, outLines)
	cmd.Stderr = io.MultiWriter(&stderr, errLines)

	log.WithField("args", inv.Argv[1:]).Debug("launching stage process")
	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)

	outLines.flush()
	errLines.flush()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	res.ExitCode, res.Err = classify(ctx, err, res.Stderr, timeout)
	log = log.WithFields(logrus.Fields{
		"exit_code": res.ExitCode,
		"duration":  res.Duration,
	})
	if res.Err != nil {
		log.WithError(res.Err).Debug("stage process failed")
	} else {
		log.Debug("stage process succeeded")
	}

	return res
}

func classify(ctx context.Context, err error, stderr string, timeout time.Duration) (int, error) {
	if err == nil {
		return 0, nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && timeout > 0:
		return exitCode, errors.Wrapf(ErrTimeout, "no exit after %s", timeout)
	case ctx.Err() != nil:
		return exitCode, errors.Wrap(ctx.Err(), "stage interrupted")
	case exitErr != nil:
		return exitCode, &ExitError{ExitCode: exitCode, Stderr: stderr}
	default:
		return exitCode, errors.Wrap(ErrLaunch, err.Error())
	}
}

func (r *ExecRunner) logger() logrus.FieldLogger {
	if r.Logger == nil {
		return logrus.StandardLogger()
	}

	return r.Logger
}

var _ Runner = (*ExecRunner)(nil)
