// Command reconstruct filters a folder of images and runs the COLMAP reconstruction chain
// on it, from feature extraction to the Poisson mesh.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/askiada/go-reconstruct/internal/logging"
	"github.com/askiada/go-reconstruct/pkg/colmap"
	"github.com/askiada/go-reconstruct/pkg/config"
	"github.com/askiada/go-reconstruct/pkg/imagefilter"
	"github.com/askiada/go-reconstruct/pkg/pipeline"
	"github.com/askiada/go-reconstruct/pkg/pipeline/drawer"
	"github.com/askiada/go-reconstruct/pkg/pipeline/measure"
	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/progress"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitCancelled = 130
)

type options struct {
	skipFilter      bool
	skipReconstruct bool
	dryRun          bool
	quietStages     bool
	showMeasure     bool
	graphFile       string
	viewer          string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reconstruct", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgFlags := config.RegisterFlags(fs)

	var opts options
	fs.BoolVar(&opts.skipFilter, "skip-filter", false, "do not filter the images")
	fs.BoolVar(&opts.skipReconstruct, "skip-reconstruct", false, "only filter the images")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the stage commands without running anything")
	fs.BoolVar(&opts.quietStages, "quiet-stages", false, "do not log the output of the stages")
	fs.BoolVar(&opts.showMeasure, "measure", false, "print stage durations at the end")
	fs.StringVar(&opts.graphFile, "graph", "", "write the stage graph to this DOT file")
	fs.StringVar(&opts.viewer, "viewer", "", "program opening the mesh once reconstructed")

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	// The logger needs the configuration: errors before it exists go to stderr as is.
	cfg, err := cfgFlags.Config()
	if err != nil {
		fmt.Fprintf(stderr, "reconstruct: %v\n", err)

		return exitUsage
	}
	valid, err := config.Validate(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "reconstruct: %v\n", err)

		return exitUsage
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "reconstruct: %v\n", err)

		return exitUsage
	}

	if opts.dryRun {
		return dryRun(valid, stdout, log)
	}

	if !opts.skipFilter {
		code := filterImages(ctx, valid, log)
		if code != exitOK || opts.skipReconstruct {
			return code
		}
	}
	if opts.skipReconstruct {
		return exitOK
	}

	return reconstruct(ctx, valid, opts, stdout, log)
}

func dryRun(cfg config.Validated, stdout io.Writer, log logrus.FieldLogger) int {
	pipe, err := colmap.New(cfg, pipeline.WithLogger(log))
	if err != nil {
		log.WithError(err).Error("unable to build the reconstruction")

		return exitFailure
	}

	filter := imagefilter.OptionsFrom(cfg)
	if filter.Any() && cfg.OutputFolder() != "" {
		jobs, err := imagefilter.Jobs(cfg.InputFolder(), cfg.OutputFolder(), filter)
		if err != nil {
			log.WithError(err).Error("unable to list images")

			return exitFailure
		}
		fmt.Fprintf(stdout, "# filter %d images from %s into %s\n", len(jobs), cfg.InputFolder(), cfg.OutputFolder())
	}
	for _, argv := range pipe.Commands() {
		fmt.Fprintln(stdout, strings.Join(argv, " "))
	}

	return exitOK
}

func filterImages(ctx context.Context, cfg config.Validated, log logrus.FieldLogger) int {
	opts := imagefilter.OptionsFrom(cfg)
	if cfg.OutputFolder() == "" {
		if opts.Any() {
			log.Error("filtering images needs an output folder")

			return exitUsage
		}

		return exitOK
	}

	filter := imagefilter.New(
		imagefilter.WithWorkers(cfg.Workers()),
		imagefilter.WithLogger(log),
		imagefilter.WithPublisher(progress.PublisherFunc(func(event model.Event) {
			if event.Type == model.InfoEvent {
				logging.Event(log, event)
			}
		})),
	)
	summary, err := filter.Process(ctx, cfg.InputFolder(), cfg.OutputFolder(), opts)
	if err != nil {
		log.WithError(err).Error("unable to filter images")

		return exitFailure
	}
	if summary.Skipped > 0 {
		return exitCancelled
	}
	if summary.Processed == 0 {
		log.Error("no image left to reconstruct from")

		return exitFailure
	}

	return exitOK
}

func reconstruct(ctx context.Context, cfg config.Validated, opts options, stdout io.Writer, log logrus.FieldLogger) int {
	var msr *measure.DefaultMeasure
	var pipeOpts []model.PipelineOption
	if opts.showMeasure || opts.graphFile != "" {
		msr = measure.NewDefaultMeasure()
		pipeOpts = append(pipeOpts, measure.PipelineMeasure(msr))
	}
	if opts.graphFile != "" {
		pipeOpts = append(pipeOpts, drawer.PipelineDrawer(drawer.NewDOTDrawer(opts.graphFile), msr))
	}

	pipe, err := colmap.New(cfg,
		pipeline.WithLogger(log),
		pipeline.WithStageOutput(!opts.quietStages),
		pipeline.WithPipelineOptions(pipeOpts...),
	)
	if err != nil {
		log.WithError(err).Error("unable to build the reconstruction")

		return exitFailure
	}

	sub := pipe.Subscribe()
	observed := make(chan struct{})
	go func() {
		defer close(observed)
		logging.Observe(log, sub)
	}()

	err = pipe.Start(ctx).Wait()
	<-observed

	if opts.showMeasure {
		if repErr := measure.Report(stdout, msr); repErr != nil {
			log.WithError(repErr).Warn("unable to print stage durations")
		}
	}

	switch {
	case errors.Is(err, pipeline.ErrCancelled):
		return exitCancelled
	case err != nil:
		return exitFailure
	}

	mesh, _ := pipe.Artifact()
	fmt.Fprintln(stdout, mesh)
	if opts.viewer != "" {
		openViewer(opts.viewer, mesh, log)
	}

	return exitOK
}

// openViewer starts viewer on the mesh and leaves it running.
func openViewer(viewer, mesh string, log logrus.FieldLogger) {
	cmd := exec.Command(viewer, mesh) //nolint:gosec // the viewer is chosen by the user
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		log.WithError(err).WithField("viewer", viewer).Error("unable to open the mesh")

		return
	}
	log.WithField("pid", cmd.Process.Pid).Info("viewer started")
	_ = cmd.Process.Release()
}
