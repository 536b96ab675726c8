package pipeline

import (
	"context"
)

// Run is a pipeline running in the background.
type Run struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs the pipeline on its own goroutine and returns immediately. Subscribe before
// calling Start to observe every event.
func (p *Pipeline) Start(ctx context.Context) *Run {
	ctx, cancel := context.WithCancel(ctx)
	run := &Run{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		defer cancel()
		run.err = p.Run(ctx)
	}()

	return run
}

// Cancel asks the pipeline to stop before its next stage.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed once the pipeline returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the pipeline returned and gives its error.
func (r *Run) Wait() error {
	<-r.done

	return r.err
}
