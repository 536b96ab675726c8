package measure

import (
	"time"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
)

type Measure interface {
	AddMetric(name string) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
	// Names returns the metric names in the order they were added.
	Names() []string
}

type Metric interface {
	AddResult(result model.StageResult)
	Duration() time.Duration
	Outcome() Outcome
	ExitCode() int
	SetTotalDuration(total time.Duration)
	GetTotalDuration() time.Duration
}

// Outcome is what became of a stage.
type Outcome string

const (
	NotRun    Outcome = "not run"
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
)
