package pipeline_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-reconstruct/pkg/config"
	"github.com/askiada/go-reconstruct/pkg/pipeline"
	"github.com/askiada/go-reconstruct/pkg/pipeline/drawer"
	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/progress"
	"github.com/askiada/go-reconstruct/pkg/pipeline/runner"
)

func quietLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()

	return logger
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{failAt: "s3"}
	pipe, err := pipeline.New(newConfig(t), newChain(7), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	sub := pipe.Subscribe()
	err = pipe.Run(context.Background())
	require.Error(t, err)

	events := progress.Collect(sub)
	assert.Equal(t, []eventSummary{
		{Type: model.InfoEvent, Msg: "running: s1"},
		{Type: model.StageCompletedEvent, Stage: "s1"},
		{Type: model.InfoEvent, Msg: "running: s2"},
		{Type: model.StageCompletedEvent, Stage: "s2"},
		{Type: model.InfoEvent, Msg: "running: s3"},
		{Type: model.StageFailedEvent, Stage: "s3"},
		{Type: model.PipelineFailedEvent},
	}, summarize(events))
	assert.Equal(t, []string{"s1", "s2", "s3"}, fake.Calls())

	var stageErr *pipeline.StageError
	require.True(t, errors.As(err, &stageErr))
	assert.Equal(t, "s3", stageErr.Stage)
	assert.Equal(t, 2, stageErr.Index)
	assert.Equal(t, 2, stageErr.ExitCode)
	assert.Equal(t, "boom", stageErr.Stderr)
	assert.ErrorIs(t, err, pipeline.ErrStageFailed)
	assert.ErrorIs(t, err, runner.ErrExitStatus)
	assert.NotErrorIs(t, err, pipeline.ErrCancelled)
	assert.ErrorIs(t, events[len(events)-1].Err, pipeline.ErrStageFailed)

	for name, want := range map[string]string{"s2": "succeeded", "s3": "failed", "s4": ""} {
		_, props, err := pipe.Graph().VertexWithProperties(name)
		require.NoError(t, err)
		assert.Equal(t, want, props.Attributes["status"], name)
	}

	status := pipe.Status()
	assert.Equal(t, pipeline.StateFailed, status.State)
	assert.Equal(t, 2, status.Stage)
	_, ok := pipe.Artifact()
	assert.False(t, ok)
}

func TestRunCompletes(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{}
	cfg := newConfig(t)
	pipe, err := pipeline.New(cfg, newChain(7), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StateIdle, pipe.Status().State)

	sub := pipe.Subscribe()
	require.NoError(t, pipe.Run(context.Background()))

	events := progress.Collect(sub)
	require.Len(t, events, 15)
	completed := 0
	for _, event := range events {
		if event.Type == model.StageCompletedEvent {
			completed++
		}
		assert.NotEqual(t, model.StageFailedEvent, event.Type)
	}
	assert.Equal(t, 7, completed)
	assert.Equal(t, model.PipelineCompletedEvent, events[len(events)-1].Type)
	assert.True(t, events[len(events)-1].Terminal())

	artifact, ok := pipe.Artifact()
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.Workspace(), "scratch", "out7.txt"), artifact)
	assert.FileExists(t, artifact)
	assert.Equal(t, pipeline.StateCompleted, pipe.Status().State)
}

func TestRunTwice(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(newConfig(t), newChain(2), pipeline.WithRunner(&fakeRunner{}), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, pipe.Run(context.Background()))
	assert.ErrorIs(t, pipe.Run(context.Background()), pipeline.ErrAlreadyStarted)
}

func TestPrepareIsIdempotent(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	scratch := filepath.Join(cfg.Workspace(), "scratch")
	require.NoError(t, os.MkdirAll(filepath.Join(scratch, "keep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scratch, "keep", "file"), []byte("x"), 0o600))

	for i := 0; i < 2; i++ {
		pipe, err := pipeline.New(cfg, newChain(1), pipeline.WithRunner(&fakeRunner{}), pipeline.WithLogger(quietLogger()))
		require.NoError(t, err)
		require.NoError(t, pipe.Run(context.Background()))
	}
	assert.DirExists(t, filepath.Join(scratch, "keep"))
	assert.FileExists(t, filepath.Join(scratch, "keep", "file"))
}

func TestPrepareFailure(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	// A file where the directory should go.
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Workspace(), "scratch"), nil, 0o600))

	fake := &fakeRunner{}
	pipe, err := pipeline.New(cfg, newChain(2), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)
	sub := pipe.Subscribe()
	err = pipe.Run(context.Background())
	require.Error(t, err)

	assert.Empty(t, fake.Calls())
	assert.Equal(t, []eventSummary{{Type: model.PipelineFailedEvent}}, summarize(progress.Collect(sub)))
	assert.Equal(t, pipeline.Status{State: pipeline.StateFailed, Stage: -1, Err: err}, pipe.Status())
}

func TestRunCancelledBetweenStages(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeRunner{afterCall: func(stage string) {
		if stage == "s2" {
			cancel()
		}
	}}
	pipe, err := pipeline.New(newConfig(t), newChain(5), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)
	sub := pipe.Subscribe()

	err = pipe.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrCancelled)
	assert.NotErrorIs(t, err, pipeline.ErrStageFailed)
	assert.Equal(t, []string{"s1", "s2"}, fake.Calls())

	events := progress.Collect(sub)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, model.PipelineFailedEvent, last.Type)
	assert.ErrorIs(t, last.Err, pipeline.ErrCancelled)
	assert.Equal(t, model.StageCompletedEvent, events[len(events)-2].Type)
	assert.Equal(t, "s2", events[len(events)-2].Stage)
}

func TestRunMissingInput(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{noOutput: "s1"}
	pipe, err := pipeline.New(newConfig(t), newChain(3), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	err = pipe.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrMissingInput)
	assert.ErrorIs(t, err, pipeline.ErrStageFailed)
	assert.Equal(t, []string{"s1"}, fake.Calls())
	assert.Equal(t, 1, pipe.Status().Stage)
}

func TestRunStageTimeout(t *testing.T) {
	t.Parallel()

	plan := pipeline.Plan{
		Stages: []pipeline.Stage{{
			Name: "sleep",
			Command: func(cfg config.Validated, _ pipeline.DerivedPaths) []string {
				return []string{cfg.Engine(), "-c", "exec sleep 10"}
			},
			Timeout: 200 * time.Millisecond,
		}},
	}
	pipe, err := pipeline.New(newConfig(t), plan, pipeline.WithLogger(quietLogger()), pipeline.WithStageTimeout(time.Hour))
	require.NoError(t, err)

	start := time.Now()
	err = pipe.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, runner.ErrTimeout)
	assert.ErrorIs(t, err, pipeline.ErrStageFailed)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunStreamsStageOutput(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		enabled bool
		want    int
	}{
		"enabled":  {enabled: true, want: 2},
		"disabled": {enabled: false, want: 0},
	}

	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fake := &fakeRunner{lines: []string{"first", "second"}}
			pipe, err := pipeline.New(newConfig(t), newChain(1),
				pipeline.WithRunner(fake),
				pipeline.WithLogger(quietLogger()),
				pipeline.WithStageOutput(tc.enabled),
			)
			require.NoError(t, err)
			sub := pipe.Subscribe()
			require.NoError(t, pipe.Run(context.Background()))

			var got []string
			for _, event := range progress.Collect(sub) {
				if event.Type == model.OutputEvent {
					assert.Equal(t, "s1", event.Stage)
					assert.Equal(t, model.Stdout, event.Stream)
					got = append(got, event.Message)
				}
			}
			assert.Len(t, got, tc.want)
		})
	}
}

func TestDroppedObserversDoNotChangeOutcome(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{failAt: "s4"}
	pipe, err := pipeline.New(newConfig(t), newChain(5), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	closed := pipe.Subscribe()
	closed.Close()
	_ = pipe.Subscribe() // never read

	err = pipe.Run(context.Background())
	assert.ErrorIs(t, err, pipeline.ErrStageFailed)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, fake.Calls())
}

func TestStart(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(newConfig(t), newChain(3), pipeline.WithRunner(&fakeRunner{}), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)
	sub := pipe.Subscribe()

	run := pipe.Start(context.Background())
	var last model.Event
	progress.Each(context.Background(), sub, func(event model.Event) {
		last = event
	})
	require.NoError(t, run.Wait())
	<-run.Done()
	assert.Equal(t, model.PipelineCompletedEvent, last.Type)
}

func TestGraphReadableDuringRun(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(newConfig(t), newChain(7), pipeline.WithRunner(&fakeRunner{}), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	run := pipe.Start(context.Background())
	seen := map[string]bool{}
	for done := false; !done; {
		select {
		case <-run.Done():
			done = true
		default:
		}
		for i := 1; i <= 7; i++ {
			_, props, err := pipe.Graph().VertexWithProperties(fmt.Sprintf("s%d", i))
			require.NoError(t, err)
			if props.Attributes["status"] != "" {
				seen[props.Attributes["status"]] = true
			}
		}
	}
	require.NoError(t, run.Wait())

	assert.True(t, seen["succeeded"])
	_, props, err := pipe.Graph().VertexWithProperties("s7")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", props.Attributes["status"])
}

func TestStartCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	fake := &fakeRunner{afterCall: func(stage string) {
		if stage == "s1" {
			close(started)
			<-release
		}
	}}
	pipe, err := pipeline.New(newConfig(t), newChain(3), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	run := pipe.Start(context.Background())
	<-started
	run.Cancel()
	close(release)

	assert.ErrorIs(t, run.Wait(), pipeline.ErrCancelled)
	assert.Equal(t, []string{"s1"}, fake.Calls())
}

func TestCommandsDoNotRun(t *testing.T) {
	t.Parallel()

	fake := &fakeRunner{}
	cfg := newConfig(t)
	pipe, err := pipeline.New(cfg, newChain(3), pipeline.WithRunner(fake), pipeline.WithLogger(quietLogger()))
	require.NoError(t, err)

	cmds := pipe.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, []string{"stage", filepath.Join(cfg.Workspace(), "scratch", "out2.txt")}, cmds[1])
	assert.Empty(t, fake.Calls())
	assert.NoDirExists(t, filepath.Join(cfg.Workspace(), "scratch"))
}

func TestPipelineOptionsHooks(t *testing.T) {
	t.Parallel()

	opt := &recordingOption{}
	fake := &fakeRunner{failAt: "s2"}
	pipe, err := pipeline.New(newConfig(t), newChain(3),
		pipeline.WithRunner(fake),
		pipeline.WithLogger(quietLogger()),
		pipeline.WithPipelineOptions(opt),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, opt.news)
	assert.Equal(t, [][2]string{{"start", "s1"}, {"s1", "s2"}, {"s2", "s3"}}, opt.prepared)

	err = pipe.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"s1:succeeded", "s2:failed"}, opt.results)
	require.Len(t, opt.finished, 1)
	assert.Equal(t, err, opt.finished[0])
}

func TestNewChecksChain(t *testing.T) {
	t.Parallel()

	command := func(config.Validated, pipeline.DerivedPaths) []string { return []string{"x"} }
	layout := map[pipeline.PathKey]string{keyFinal: "final", keyScratch: "scratch"}

	tcs := map[string]struct {
		plan    pipeline.Plan
		wantErr error
	}{
		"empty": {
			plan:    pipeline.Plan{},
			wantErr: pipeline.ErrEmptyPlan,
		},
		"duplicate stage": {
			plan: pipeline.Plan{Stages: []pipeline.Stage{
				{Name: "a", Command: command},
				{Name: "a", Command: command},
			}},
			wantErr: pipeline.ErrDuplicateStage,
		},
		"reserved name": {
			plan:    pipeline.Plan{Stages: []pipeline.Stage{{Name: "start", Command: command}}},
			wantErr: pipeline.ErrDuplicateStage,
		},
		"no command": {
			plan:    pipeline.Plan{Stages: []pipeline.Stage{{Name: "a"}}},
			wantErr: pipeline.ErrMissingCommand,
		},
		"requires later product": {
			plan: pipeline.Plan{Layout: layout, Stages: []pipeline.Stage{
				{Name: "a", Command: command, Requires: []pipeline.PathKey{keyFinal}},
				{Name: "b", Command: command, Produces: []pipeline.PathKey{keyFinal}},
			}},
			wantErr: pipeline.ErrUnresolvedPath,
		},
		"requires own product": {
			plan: pipeline.Plan{Layout: layout, Stages: []pipeline.Stage{
				{Name: "a", Command: command, Requires: []pipeline.PathKey{keyFinal}, Produces: []pipeline.PathKey{keyFinal}},
			}},
			wantErr: pipeline.ErrUnresolvedPath,
		},
		"unknown required key": {
			plan: pipeline.Plan{Layout: layout, Stages: []pipeline.Stage{
				{Name: "a", Command: command, Requires: []pipeline.PathKey{"nope"}},
			}},
			wantErr: pipeline.ErrUnknownPathKey,
		},
		"unknown produced key": {
			plan: pipeline.Plan{Layout: layout, Stages: []pipeline.Stage{
				{Name: "a", Command: command, Produces: []pipeline.PathKey{"nope"}},
			}},
			wantErr: pipeline.ErrUnknownPathKey,
		},
		"unknown directory": {
			plan: pipeline.Plan{Layout: layout, Dirs: []pipeline.PathKey{"nope"}, Stages: []pipeline.Stage{
				{Name: "a", Command: command},
			}},
			wantErr: pipeline.ErrUnknownPathKey,
		},
		"unknown artifact": {
			plan: pipeline.Plan{Layout: layout, Artifact: "nope", Stages: []pipeline.Stage{
				{Name: "a", Command: command},
			}},
			wantErr: pipeline.ErrUnknownPathKey,
		},
		"prepared directory": {
			plan: pipeline.Plan{Layout: layout, Dirs: []pipeline.PathKey{keyScratch}, Stages: []pipeline.Stage{
				{Name: "a", Command: command, Requires: []pipeline.PathKey{keyScratch, pipeline.PathImages}},
			}},
		},
	}

	cfg := newConfig(t)
	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := pipeline.New(cfg, tc.plan, pipeline.WithRunner(&fakeRunner{}))
			if tc.wantErr == nil {
				assert.NoError(t, err)

				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDependencies(t *testing.T) {
	t.Parallel()

	pipe, err := pipeline.New(newConfig(t), newChain(3), pipeline.WithRunner(&fakeRunner{}))
	require.NoError(t, err)

	deps, err := pipe.Dependencies("s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"start"}, deps)

	deps, err = pipe.Dependencies("s3")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "start"}, deps)

	_, err = pipe.Dependencies("missing")
	assert.Error(t, err)

	edge, err := pipe.Graph().Edge("s2", "s3")
	require.NoError(t, err)
	assert.Equal(t, "out2", edge.Properties.Attributes["label"])
}

func TestStageInputsFollowGraph(t *testing.T) {
	t.Parallel()

	opt := &recordingOption{}
	var buf bytes.Buffer
	pipe, err := pipeline.New(newConfig(t), newChain(3),
		pipeline.WithRunner(&fakeRunner{}),
		pipeline.WithLogger(quietLogger()),
		pipeline.WithPipelineOptions(opt, drawer.PipelineDrawer(drawer.NewDOTWriterDrawer(&buf), nil)),
	)
	require.NoError(t, err)

	assert.Equal(t, []model.StageLink{{From: "start", Keys: []string{"images"}}}, opt.inputs["s1"])
	assert.Equal(t, []model.StageLink{
		{From: "s2", Keys: []string{"out2"}},
		{From: "start", Keys: []string{"images"}},
	}, opt.inputs["s3"])

	require.NoError(t, pipe.Run(context.Background()))

	edges, err := pipe.Graph().Edges()
	require.NoError(t, err)
	out := buf.String()
	for _, edge := range edges {
		assert.Contains(t, out, fmt.Sprintf("%q -> %q [ label=%q,", edge.Source, edge.Target, edge.Properties.Attributes["label"]))
	}
	// The drawing adds exactly one edge per graph edge plus the link to end.
	assert.Equal(t, len(edges)+1, strings.Count(out, " -> "))
}

func TestDerivedPaths(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t)
	plan := newChain(1)
	plan.Layout[keyFinal] = "/abs/final"
	pipe, err := pipeline.New(cfg, plan, pipeline.WithRunner(&fakeRunner{}))
	require.NoError(t, err)

	paths := pipe.Paths()
	assert.Equal(t, cfg.ImageFolder(), paths.Path(pipeline.PathImages))
	assert.Equal(t, cfg.Workspace(), paths.Path(pipeline.PathWorkspace))
	assert.Equal(t, "/abs/final", paths.Path(keyFinal))
	_, ok := paths.Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, []pipeline.PathKey{keyFinal, pipeline.PathImages, "out1", keyScratch, pipeline.PathWorkspace}, paths.Keys())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", pipeline.StateRunning.String())
	assert.True(t, pipeline.StateFailed.Terminal())
	assert.False(t, pipeline.StatePreparing.Terminal())
}
