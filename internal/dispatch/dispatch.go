// Package dispatch runs enrichment jobs on a fixed pool of workers fed by
// a bounded queue.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/pipeline"
)

var (
	ErrQueueFull = errors.New("dispatch: queue full")
	ErrClosed    = errors.New("dispatch: dispatcher closed")
)

type Runner interface {
	Run(ctx context.Context, job pipeline.Job) pipeline.Result
}

type Dispatcher struct {
	runner  Runner
	workers int
	queue   chan task
	log     *logger.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

type task struct {
	id  string
	job pipeline.Job
}

func New(runner Runner, workers, queueSize int, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		runner:  runner,
		workers: max(workers, 1),
		queue:   make(chan task, max(queueSize, 1)),
		log:     log.With(map[string]any{"component": "dispatch"}),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := range d.workers {
		d.wg.Add(1)
		go d.work(i)
	}
	d.log.WithField("workers", d.workers).WithField("queue", cap(d.queue)).Info("dispatcher started")
}

// Enqueue hands job to the pool without waiting. It returns ErrQueueFull
// when no slot is free.
func (d *Dispatcher) Enqueue(job pipeline.Job) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrClosed
	}
	t := newTask(job)
	select {
	case d.queue <- t:
		return t.id, nil
	default:
		return "", ErrQueueFull
	}
}

// Submit is Enqueue that waits for a free slot. Used by batch replays;
// the dispatcher must be started or Submit only returns on ctx.
func (d *Dispatcher) Submit(ctx context.Context, job pipeline.Job) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return "", ErrClosed
	}
	t := newTask(job)
	select {
	case d.queue <- t:
		return t.id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops accepting jobs and waits for queued ones to finish, or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.log.Info("dispatcher drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) work(n int) {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(n, t)
	}
}

func (d *Dispatcher) run(n int, t task) {
	log := d.log.WithField("task_id", t.id).WithField("worker", n)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("enrichment task panicked")
		}
	}()
	res := d.runner.Run(context.Background(), t.job)
	log.WithField("answer_id", t.job.AnswerID).WithField("state", res.State).Debug("task finished")
}

func newTask(job pipeline.Job) task {
	return task{
		id:  fmt.Sprintf("form_response_%d_%s", job.AnswerID, uuid.NewString()[:8]),
		job: job,
	}
}
