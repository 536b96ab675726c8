package measure

import (
	"sync"
	"time"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

type DefaultMetric struct {
	mu          sync.Mutex
	elapsed     time.Duration
	endDuration time.Duration
	exitCode    int
	outcome     Outcome
}

// AddResult records a stage invocation. A stage runs at most once per pipeline, so a new
// result replaces the previous one.
func (mt *DefaultMetric) AddResult(result model.StageResult) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	mt.elapsed = result.Duration
	mt.exitCode = result.ExitCode
	if result.Succeeded() {
		mt.outcome = Succeeded
	} else {
		mt.outcome = Failed
	}
}

func (mt *DefaultMetric) Duration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return round(mt.elapsed)
}

func (mt *DefaultMetric) Outcome() Outcome {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.outcome == "" {
		return NotRun
	}

	return mt.outcome
}

// ExitCode is -1 until the stage ran, and when its process never exited on its own.
func (mt *DefaultMetric) ExitCode() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.exitCode
}

func (mt *DefaultMetric) SetTotalDuration(endDuration time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.endDuration = endDuration
}

func (mt *DefaultMetric) GetTotalDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return round(mt.endDuration)
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Hour:
		d = d.Round(time.Minute)
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}

	return d
}

var _ Metric = (*DefaultMetric)(nil)
