package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-reconstruct/pkg/config"
	"github.com/askiada/go-reconstruct/pkg/pipeline"
	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/runner"
)

const (
	keyScratch pipeline.PathKey = "scratch"
	keyFinal   pipeline.PathKey = "final"
)

func newConfig(t *testing.T) config.Validated {
	t.Helper()

	root := t.TempDir()
	input := filepath.Join(root, "images")
	workspace := filepath.Join(root, "workspace")
	require.NoError(t, os.Mkdir(input, 0o755))
	require.NoError(t, os.Mkdir(workspace, 0o755))

	cfg := config.DefaultConfig()
	cfg.InputFolder = input
	cfg.WorkspaceFolder = workspace
	cfg.ColmapExecutable = "sh"

	valid, err := config.Validate(cfg)
	require.NoError(t, err)

	return valid
}

func productKey(idx int) pipeline.PathKey {
	return pipeline.PathKey(fmt.Sprintf("out%d", idx))
}

// newChain returns a plan of total stages named s1..sN. Stage i writes outI and reads
// the product of stage i-1. The last product is also the artifact.
func newChain(total int) pipeline.Plan {
	plan := pipeline.Plan{
		Layout: map[pipeline.PathKey]string{keyScratch: "scratch"},
		Dirs:   []pipeline.PathKey{keyScratch},
	}
	for i := 1; i <= total; i++ {
		key := productKey(i)
		plan.Layout[key] = filepath.Join("scratch", string(key)+".txt")
		requires := []pipeline.PathKey{pipeline.PathImages}
		if i > 1 {
			requires = append(requires, productKey(i-1))
		}
		plan.Stages = append(plan.Stages, pipeline.Stage{
			Name: fmt.Sprintf("s%d", i),
			Command: func(_ config.Validated, paths pipeline.DerivedPaths) []string {
				return []string{"stage", paths.Path(key)}
			},
			Requires: requires,
			Produces: []pipeline.PathKey{key},
		})
		plan.Artifact = key
	}

	return plan
}

// fakeRunner records invocations and writes argv[1] for every successful stage.
type fakeRunner struct {
	mu        sync.Mutex
	calls     []string
	failAt    string
	noOutput  string
	lines     []string
	afterCall func(stage string)
}

func (f *fakeRunner) Run(_ context.Context, inv runner.Invocation) model.StageResult {
	f.mu.Lock()
	f.calls = append(f.calls, inv.Stage)
	f.mu.Unlock()

	if f.afterCall != nil {
		defer f.afterCall(inv.Stage)
	}
	if inv.Output != nil {
		for _, line := range f.lines {
			inv.Output(model.Stdout, line)
		}
	}
	if inv.Stage == f.failAt {
		return model.StageResult{
			Stage:    inv.Stage,
			Argv:     inv.Argv,
			ExitCode: 2,
			Stderr:   "boom",
			Err:      &runner.ExitError{ExitCode: 2, Stderr: "boom"},
		}
	}
	if inv.Stage != f.noOutput {
		err := os.WriteFile(inv.Argv[1], []byte(inv.Stage), 0o600)
		if err != nil {
			return model.StageResult{Stage: inv.Stage, ExitCode: -1, Err: err}
		}
	}

	return model.StageResult{Stage: inv.Stage, Argv: inv.Argv}
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.calls...)
}

var _ runner.Runner = (*fakeRunner)(nil)

type eventSummary struct {
	Type  model.EventType
	Stage string
	Msg   string
}

func summarize(events []model.Event) []eventSummary {
	res := make([]eventSummary, 0, len(events))
	for _, event := range events {
		res = append(res, eventSummary{Type: event.Type, Stage: event.Stage, Msg: event.Message})
	}

	return res
}

// recordingOption records the calls a pipeline makes to its options.
type recordingOption struct {
	mu       sync.Mutex
	news     int
	prepared [][2]string
	inputs   map[string][]model.StageLink
	results  []string
	finished []error
}

func (r *recordingOption) New() error {
	r.news++

	return nil
}

func (r *recordingOption) PrepareStage(parent, stage *model.StageInfo) error {
	r.prepared = append(r.prepared, [2]string{parent.Name, stage.Name})
	if r.inputs == nil {
		r.inputs = make(map[string][]model.StageLink)
	}
	r.inputs[stage.Name] = stage.Inputs

	return nil
}

func (r *recordingOption) OnStageResult(stage *model.StageInfo, result model.StageResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, fmt.Sprintf("%s:%s", stage.Name, stage.Status))

	return nil
}

func (r *recordingOption) Finish(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, err)

	return nil
}

var _ model.PipelineOption = (*recordingOption)(nil)
