package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsJobs(t *testing.T) {
	var handled atomic.Int32
	done := make(chan struct{}, 3)

	q := New(2, func(_ context.Context, job Job) error {
		handled.Add(1)
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx, 2)

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(Job{Kind: KindAnalyze, ProjectID: "p"}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	cancel()
	q.Stop()
	if got := handled.Load(); got != 3 {
		t.Errorf("handled %d jobs, want 3", got)
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	q := New(1, func(_ context.Context, _ Job) error { return nil })

	// Workers not started, so the buffered channel fills up.
	var err error
	for i := 0; i < 10; i++ {
		err = q.Enqueue(Job{Kind: KindDocument})
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Error("expected an error once the queue is full")
	}
}

func TestStopAfterCancel(t *testing.T) {
	q := New(1, func(_ context.Context, _ Job) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx, 1)
	cancel()

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after cancel")
	}
}
