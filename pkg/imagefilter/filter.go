package imagefilter

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-reconstruct/pkg/pipeline/model"
	"github.com/askiada/go-reconstruct/pkg/pipeline/progress"
)

var (
	ErrUnreadable   = errors.New("unable to read image")
	ErrUnwritable   = errors.New("unable to write image")
	ErrInputMissing = errors.New("input folder missing")
)

// Extensions lists the accepted file extensions, matched case-insensitively.
var Extensions = []string{".jpg", ".png"}

// Job filters one file.
type Job struct {
	Source      string
	Destination string
	Options     Options
}

// Outcome is the result of a Job. A nil Err means Destination was written.
type Outcome struct {
	Job Job
	Err error
}

// Summary counts the outcomes of a folder. Skipped counts the jobs never started because
// the context was done.
type Summary struct {
	Found     int
	Processed int
	Failed    int
	Skipped   int
}

// Filter runs jobs on a bounded pool of workers.
type Filter struct {
	workers   int
	log       logrus.FieldLogger
	publisher progress.Publisher
}

type FilterOption func(f *Filter)

// WithWorkers bounds the number of images processed at once. Zero or less keeps the
// default of one worker per CPU minus one.
func WithWorkers(workers int) FilterOption {
	return func(f *Filter) {
		if workers > 0 {
			f.workers = workers
		}
	}
}

func WithLogger(logger logrus.FieldLogger) FilterOption {
	return func(f *Filter) {
		f.log = logger
	}
}

// WithPublisher receives the batch events.
func WithPublisher(publisher progress.Publisher) FilterOption {
	return func(f *Filter) {
		f.publisher = publisher
	}
}

func New(opts ...FilterOption) *Filter {
	f := &Filter{
		workers:   defaultWorkers(),
		log:       logrus.StandardLogger(),
		publisher: progress.Discard,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

func defaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}

	return 1
}

// Workers returns the size of the pool.
func (f *Filter) Workers() int {
	return f.workers
}

// Jobs lists the images of in, in lexical order, with their destination in out.
func Jobs(in, out string, opts Options) ([]Job, error) {
	entries, err := os.ReadDir(in)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrInputMissing, "%s", in)
		}

		return nil, errors.Wrapf(err, "unable to list %s", in)
	}

	var jobs []Job
	for _, entry := range entries {
		if entry.IsDir() || !accepted(entry.Name()) {
			continue
		}
		jobs = append(jobs, Job{
			Source:      filepath.Join(in, entry.Name()),
			Destination: filepath.Join(out, entry.Name()),
			Options:     opts,
		})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Source < jobs[j].Source })

	return jobs, nil
}

func accepted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range Extensions {
		if ext == allowed {
			return true
		}
	}

	return false
}

// ProcessFolder filters every image of in into out, creating out when needed. Outcomes
// arrive in completion order and the channel is closed once the batch is over. Once ctx is
// done no new image is started; the running ones finish.
func (f *Filter) ProcessFolder(ctx context.Context, in, out string, opts Options) (<-chan Outcome, error) {
	jobs, err := f.prepare(in, out, opts)
	if err != nil {
		return nil, err
	}

	return f.start(ctx, jobs), nil
}

// Process is ProcessFolder waiting for the batch and counting its outcomes.
func (f *Filter) Process(ctx context.Context, in, out string, opts Options) (Summary, error) {
	jobs, err := f.prepare(in, out, opts)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Found: len(jobs)}
	for outcome := range f.start(ctx, jobs) {
		if outcome.Err != nil {
			summary.Failed++
		} else {
			summary.Processed++
		}
	}
	summary.Skipped = summary.Found - summary.Processed - summary.Failed

	return summary, nil
}

func (f *Filter) prepare(in, out string, opts Options) ([]Job, error) {
	jobs, err := Jobs(in, out, opts)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(out, 0o755)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create %s", out)
	}

	f.publisher.Publish(model.Info("Found %d images to process.", len(jobs)))
	f.log.WithFields(logrus.Fields{"input": in, "output": out, "images": len(jobs)}).Info("processing images")

	return jobs, nil
}

func (f *Filter) start(ctx context.Context, jobs []Job) <-chan Outcome {
	// Buffered so that workers never wait on a slow reader.
	outcomes := make(chan Outcome, len(jobs))
	go f.run(ctx, jobs, outcomes)

	return outcomes
}

func (f *Filter) run(ctx context.Context, jobs []Job, outcomes chan<- Outcome) {
	defer close(outcomes)

	queue := make(chan Job)
	var processed, failed atomic.Int64

	errGrp := errgroup.Group{}
	errGrp.SetLimit(f.workers + 1)
	errGrp.Go(func() error {
		defer close(queue)
		for _, job := range jobs {
			if ctx.Err() != nil {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case queue <- job:
			}
		}

		return nil
	})
	for goIdx := 0; goIdx < f.workers; goIdx++ {
		errGrp.Go(func() error {
			for job := range queue {
				err := Process(job)
				if err != nil {
					failed.Add(1)
					f.log.WithError(err).WithField("file", job.Source).Warn("image failed")
					f.publisher.Publish(model.FileFailed(job.Source, err))
				} else {
					processed.Add(1)
					f.log.WithField("file", job.Destination).Debug("image processed")
					f.publisher.Publish(model.FileProcessed(job.Destination))
				}
				outcomes <- Outcome{Job: job, Err: err}
			}

			return nil
		})
	}
	_ = errGrp.Wait()

	skipped := int64(len(jobs)) - processed.Load() - failed.Load()
	if skipped > 0 {
		f.publisher.Publish(model.Info("Image processing cancelled: %d processed, %d failed, %d skipped.", processed.Load(), failed.Load(), skipped))
		f.log.WithField("skipped", skipped).Warn("image processing cancelled")

		return
	}
	f.publisher.Publish(model.Info("Image processing completed: %d processed, %d failed.", processed.Load(), failed.Load()))
	f.log.WithFields(logrus.Fields{"processed": processed.Load(), "failed": failed.Load()}).Info("image processing completed")
}

// Process reads job.Source, applies the transforms and writes job.Destination.
func Process(job Job) error {
	src := gocv.IMRead(job.Source, gocv.IMReadColor)
	defer src.Close()
	if src.Empty() {
		return errors.Wrapf(ErrUnreadable, "%s", job.Source)
	}

	dst, err := Apply(src, job.Options)
	if err != nil {
		return errors.Wrapf(err, "%s", job.Source)
	}
	defer dst.Close()

	if !gocv.IMWrite(job.Destination, dst) {
		return errors.Wrapf(ErrUnwritable, "%s", job.Destination)
	}

	return nil
}
