package transcriber

import (
	"context"

	"murmur/log"
)

// Job is one transcription request. Done runs on the worker goroutine
// once the engine returns; exactly one of outcome/err is non-nil.
type Job struct {
	Samples  []float32
	Language string
	Done     func(*Outcome, error)
}

// Worker owns the engine and the only goroutine allowed to call
// Transcribe. Inference can block for seconds; running it here keeps
// hotkey handling and capture responsive.
type Worker struct {
	engine Engine
	jobs   chan Job
	done   chan struct{}
}

func NewWorker(engine Engine) *Worker {
	w := &Worker{
		engine: engine,
		jobs:   make(chan Job, 1),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Worker) Engine() Engine { return w.engine }

// Submit queues one job. The channel holds a single job behind an
// in-flight inference; the orchestrator never dispatches deeper.
func (w *Worker) Submit(job Job) {
	w.jobs <- job
}

// Warm loads the model in the background so the first dictation does
// not pay the load cost.
func (w *Worker) Warm() {
	go func() {
		if err := w.engine.EnsureLoaded(context.Background()); err != nil {
			log.Warnf("model pre-warm: %v", err)
		}
	}()
}

func (w *Worker) run() {
	defer close(w.done)
	for job := range w.jobs {
		out, err := w.engine.Transcribe(context.Background(), job.Samples, job.Language)
		if job.Done != nil {
			job.Done(out, err)
		}
	}
}

// Close finishes queued work, then releases the model.
func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
	w.engine.Unload()
}
