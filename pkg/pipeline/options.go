package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/runner"
)

type Option func(p *Pipeline)

// WithRunner replaces the process runner, mostly for tests.
func WithRunner(r runner.Runner) Option {
	return func(p *Pipeline) {
		p.runner = r
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		p.log = logger
	}
}

// WithStageTimeout bounds every stage without a timeout of its own. It takes precedence
// over the configured stage timeout.
func WithStageTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) {
		p.stageTimeout = timeout
	}
}

// WithStageOutput controls whether stage output lines are published as Output events.
// They are by default.
func WithStageOutput(enabled bool) Option {
	return func(p *Pipeline) {
		p.stageOutput = enabled
	}
}

// WithPipelineOptions attaches options hooked into the pipeline lifecycle, such as
// measure.PipelineMeasure or drawer.PipelineDrawer.
func WithPipelineOptions(opts ...model.PipelineOption) Option {
	return func(p *Pipeline) {
		p.opts = append(p.opts, opts...)
	}
}
