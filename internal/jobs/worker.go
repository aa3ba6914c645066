package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/cloo-solutions/learnings/internal/logger"
)

// JobProcessor handles whatever work is pending when called
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor until stopped or its context ends
type Worker struct {
	name         string
	processor    JobProcessor
	pollInterval time.Duration
	log          *logger.Logger
	stop         chan struct{}
	stopOnce     sync.Once
	done         chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewWorker(name string, processor JobProcessor, pollInterval time.Duration, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.NewNop()
	}
	return &Worker{
		name:         name,
		processor:    processor,
		pollInterval: pollInterval,
		log:          log.With("worker", name),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start runs one pass immediately so work queued while the server was down
// is picked up, then polls every pollInterval. It blocks until stopped.
// A worker that was already stopped returns at once.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.stopped || w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	defer close(w.done)

	w.log.Info("worker started", "poll_interval", w.pollInterval.String())
	w.runOnce(ctx)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped: context cancelled")
			return
		case <-w.stop:
			w.log.Info("worker stopped: stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		w.log.Error("error processing jobs", "error", err)
	}
}

// Stop signals the loop and waits for the pass in progress to finish.
// It is safe to call more than once, and before Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })

	w.mu.Lock()
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	if started {
		<-w.done
	}
}
