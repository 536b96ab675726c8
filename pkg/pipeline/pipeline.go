package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-reconstruct/internal/store"
	"github.com/askiada/go-reconstruct/pkg/config"
	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/progress"
	"github.com/askiada/go-reconstruct/pkg/pipeline/runner"
)

// Pipeline runs a checked stage chain once.
type Pipeline struct {
	cfg      config.Validated
	plan     Plan
	paths    DerivedPaths
	graph    graph.Graph[string, string]
	vertices store.CustomStore[string, string]
	infos    []*model.StageInfo

	runner       runner.Runner
	log          logrus.FieldLogger
	stageTimeout time.Duration
	stageOutput  bool
	opts         []model.PipelineOption
	progress     *progress.Channel

	mu      sync.Mutex
	started bool
	status  Status
}

// New checks the chain of plan against cfg and returns an idle pipeline.
// Nothing touches the filesystem until Run.
func New(cfg config.Validated, plan Plan, opts ...Option) (*Pipeline, error) {
	gra, vertices, err := checkChain(plan)
	if err != nil {
		return nil, errors.Wrap(err, "invalid stage chain")
	}

	pipe := &Pipeline{
		cfg:          cfg,
		plan:         plan,
		paths:        derivePaths(cfg, plan.Layout),
		graph:        gra,
		vertices:     vertices,
		stageTimeout: cfg.StageTimeout(),
		stageOutput:  true,
		progress:     progress.New(),
		status:       Status{State: StateIdle, Stage: -1},
	}
	for _, opt := range opts {
		opt(pipe)
	}
	if pipe.log == nil {
		pipe.log = logrus.StandardLogger()
	}
	if pipe.runner == nil {
		pipe.runner = runner.New(pipe.log)
	}

	for idx, stage := range plan.Stages {
		links, err := inputs(gra, stage.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to get inputs of stage %s", stage.Name)
		}
		pipe.infos = append(pipe.infos, &model.StageInfo{
			Name:     stage.Name,
			Index:    idx,
			Requires: keyNames(stage.Requires),
			Produces: keyNames(stage.Produces),
			Inputs:   links,
			Status:   model.StageStatusPending,
		})
	}

	for _, opt := range pipe.opts {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
		parent := model.StartStage
		for _, info := range pipe.infos {
			err := opt.PrepareStage(parent, info)
			if err != nil {
				return nil, errors.Wrapf(err, "unable to prepare stage %s", info.Name)
			}
			parent = info
		}
	}

	return pipe, nil
}

// Subscribe attaches an observer. Events published before the call are not replayed.
func (p *Pipeline) Subscribe() *progress.Subscription {
	return p.progress.Subscribe()
}

// Paths returns the locations the stages operate on.
func (p *Pipeline) Paths() DerivedPaths {
	return p.paths
}

// Graph returns the dependency graph of the stages. Once a stage ran, its vertex carries
// "status" and "duration" attributes. It may be read while the pipeline runs.
func (p *Pipeline) Graph() graph.Graph[string, string] {
	return p.graph
}

// Dependencies returns the stages, or the start vertex, providing the inputs of stage.
func (p *Pipeline) Dependencies(stage string) ([]string, error) {
	return dependencies(p.graph, stage)
}

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.status
}

// Artifact returns the location of the final product once the pipeline completed.
func (p *Pipeline) Artifact() (string, bool) {
	if p.plan.Artifact == "" || p.Status().State != StateCompleted {
		return "", false
	}

	return p.paths.Lookup(p.plan.Artifact)
}

// Commands returns the argument vector of every stage, in order, without running anything.
func (p *Pipeline) Commands() [][]string {
	res := make([][]string, len(p.plan.Stages))
	for idx, stage := range p.plan.Stages {
		res[idx] = stage.Command(p.cfg, p.paths)
	}

	return res
}

// Run prepares the workspace and runs every stage in order, stopping at the first failure.
// It returns nil, a *StageError, an error matching ErrCancelled, or the preparation error.
// Cancelling ctx never interrupts a running stage; it prevents the next one from starting.
// The progress channel is closed when Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()

		return ErrAlreadyStarted
	}
	p.started = true
	p.mu.Unlock()

	defer p.progress.Close()

	err := p.run(ctx)
	for _, opt := range p.opts {
		if optErr := opt.Finish(err); optErr != nil {
			p.log.WithError(optErr).Error("unable to finish pipeline option")
		}
	}

	return err
}

func (p *Pipeline) run(ctx context.Context) error {
	p.setStatus(StatePreparing, -1, nil)
	err := p.prepare()
	if err != nil {
		return p.fail(-1, errors.Wrap(err, "unable to prepare workspace"))
	}

	for idx, stage := range p.plan.Stages {
		if ctx.Err() != nil {
			return p.fail(idx, errors.Wrapf(ErrCancelled, "before stage %d (%s): %v", idx+1, stage.Name, ctx.Err()))
		}

		p.setStatus(StateRunning, idx, nil)
		info := p.infos[idx]
		info.Status = model.StageStatusRunning
		p.progress.Publish(model.Info("running: %s", stage.Name))

		res := p.runStage(ctx, stage)
		info.Duration = res.Duration
		if res.Succeeded() {
			info.Status = model.StageStatusSucceeded
		} else {
			info.Status = model.StageStatusFailed
		}
		err := p.vertices.UpdateVertex(stage.Name,
			graph.VertexAttribute("status", string(info.Status)),
			graph.VertexAttribute("duration", res.Duration.String()),
		)
		if err != nil {
			p.log.WithError(err).WithField("stage", stage.Name).Warn("unable to record stage status")
		}
		for _, opt := range p.opts {
			if optErr := opt.OnStageResult(info, res); optErr != nil {
				p.log.WithError(optErr).WithField("stage", stage.Name).Error("pipeline option rejected stage result")
			}
		}

		if !res.Succeeded() {
			stageErr := &StageError{
				Stage:    stage.Name,
				Index:    idx,
				ExitCode: res.ExitCode,
				Stderr:   res.Stderr,
				Err:      res.Err,
			}
			p.progress.Publish(model.StageFailed(stage.Name, res.Err))

			return p.fail(idx, stageErr)
		}
		p.progress.Publish(model.StageCompleted(stage.Name))
	}

	p.setStatus(StateCompleted, len(p.plan.Stages)-1, nil)
	p.progress.Publish(model.PipelineCompleted())

	return nil
}

// prepare creates the workspace directories of the plan. Existing ones are left untouched.
func (p *Pipeline) prepare() error {
	for _, key := range p.plan.Dirs {
		path := p.paths.Path(key)
		err := os.MkdirAll(path, 0o755)
		if err != nil {
			return errors.Wrapf(err, "unable to create %s", path)
		}
	}

	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage) model.StageResult {
	log := p.log.WithField("stage", stage.Name)

	for _, key := range stage.Requires {
		path := p.paths.Path(key)
		if _, err := os.Stat(path); err != nil {
			log.WithError(err).Debug("required input missing")

			return model.StageResult{
				Stage:    stage.Name,
				ExitCode: -1,
				Err:      errors.Wrapf(ErrMissingInput, "%s (%s)", key, path),
			}
		}
	}

	timeout := stage.Timeout
	if timeout == 0 {
		timeout = p.stageTimeout
	}
	inv := runner.Invocation{
		Stage:   stage.Name,
		Argv:    stage.Command(p.cfg, p.paths),
		Timeout: timeout,
	}
	if p.stageOutput {
		inv.Output = func(stream model.Stream, line string) {
			p.progress.Publish(model.Output(stage.Name, stream, line))
		}
	}

	log.Info("running stage")
	// The stage runs to completion or timeout: cancellation only applies between stages.
	res := p.runner.Run(context.WithoutCancel(ctx), inv)
	log.WithFields(logrus.Fields{
		"exit_code": res.ExitCode,
		"duration":  res.Duration,
	}).Info("stage finished")

	return res
}

func (p *Pipeline) fail(idx int, err error) error {
	p.setStatus(StateFailed, idx, err)
	p.progress.Publish(model.PipelineFailed(err))
	p.log.WithError(err).Error("pipeline failed")

	return err
}

func (p *Pipeline) setStatus(state State, idx int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = Status{State: state, Stage: idx, Err: err}
}
