package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/pipeline"
	"voice-forms-go/internal/types"
)

type blockingRunner struct {
	release chan struct{}
	ran     atomic.Int32
}

func (b *blockingRunner) Run(_ context.Context, _ pipeline.Job) pipeline.Result {
	<-b.release
	b.ran.Add(1)
	return pipeline.Result{State: types.StateDone}
}

type countingRunner struct {
	mu   sync.Mutex
	seen []int64
}

func (c *countingRunner) Run(_ context.Context, job pipeline.Job) pipeline.Result {
	if job.AnswerID == 13 {
		panic("unlucky")
	}
	c.mu.Lock()
	c.seen = append(c.seen, job.AnswerID)
	c.mu.Unlock()
	return pipeline.Result{State: types.StateDone}
}

func TestEnqueueDoesNotBlockAndReportsFull(t *testing.T) {
	r := &blockingRunner{release: make(chan struct{})}
	d := New(r, 1, 2, logger.Discard())
	d.Start()

	// one job occupies the worker, two fill the queue
	if _, err := d.Enqueue(pipeline.Job{AnswerID: 1}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for len(d.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	for i := int64(2); i <= 3; i++ {
		if _, err := d.Enqueue(pipeline.Job{AnswerID: i}); err != nil {
			t.Fatalf("Enqueue(%d) = %v", i, err)
		}
	}

	start := time.Now()
	_, err := d.Enqueue(pipeline.Job{AnswerID: 4})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue() on full queue = %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Enqueue blocked on a full queue")
	}

	close(r.release)
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := r.ran.Load(); n != 3 {
		t.Errorf("ran %d jobs, want 3", n)
	}
	if _, err := d.Enqueue(pipeline.Job{AnswerID: 5}); !errors.Is(err, ErrClosed) {
		t.Errorf("Enqueue() after Close = %v", err)
	}
}

func TestWorkersSurvivePanics(t *testing.T) {
	r := &countingRunner{}
	d := New(r, 3, 16, logger.Discard())
	d.Start()
	for i := int64(10); i < 16; i++ {
		if _, err := d.Submit(context.Background(), pipeline.Job{AnswerID: i}); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(r.seen) != 5 {
		t.Errorf("completed %d jobs, want 5 (one panicked)", len(r.seen))
	}
}

func TestCloseTimesOut(t *testing.T) {
	r := &blockingRunner{release: make(chan struct{})}
	defer close(r.release)
	d := New(r, 1, 1, logger.Discard())
	d.Start()
	if _, err := d.Enqueue(pipeline.Job{AnswerID: 1}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() = %v, want deadline exceeded", err)
	}
}

func TestSubmitHonoursContext(t *testing.T) {
	r := &blockingRunner{release: make(chan struct{})}
	defer close(r.release)
	d := New(r, 1, 1, logger.Discard())
	// not started: the single slot fills and Submit must give up on ctx
	if _, err := d.Submit(context.Background(), pipeline.Job{AnswerID: 1}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := d.Submit(ctx, pipeline.Job{AnswerID: 2}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Submit() = %v", err)
	}
}
