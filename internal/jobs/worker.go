package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor defines the interface for processing jobs
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker drives a JobProcessor on a fixed cadence. Its only processor
// today is the export sweeper, so the poll interval bounds how long an
// expired artifact can outlive its retention window.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// NewWorker creates a new Worker instance
func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is
// called. One sweep runs immediately, before the first tick, to clear
// artifacts that expired while the server was down.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("retention worker started, sweeping every %v", w.pollInterval)

	if err := w.processor.ProcessJobs(ctx); err != nil {
		log.Printf("retention sweep failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("retention worker stopped: context cancelled")
			return
		case <-w.stopChan:
			log.Println("retention worker stopped")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("retention sweep failed: %v", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for it to drain.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}
