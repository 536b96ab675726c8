package model

import "time"

// StageResult is the outcome of one external process invocation.
// A nil Err means success; otherwise Err carries the failure reason.
type StageResult struct {
	Stage    string
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the stage exited with status 0.
func (r StageResult) Succeeded() bool {
	return r.Err == nil
}
