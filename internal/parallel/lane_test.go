package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLaneRunsInSubmissionOrder(t *testing.T) {
	l := NewLane("test")
	defer l.Close()

	var got []int
	for i := range 100 {
		l.Submit(func() { got = append(got, i) })
	}
	if err := l.Barrier(context.Background()); err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want %d", i, v, i)
		}
	}
	if len(got) != 100 {
		t.Fatalf("ran %d tasks, want 100", len(got))
	}
}

func TestLaneNeverRunsConcurrently(t *testing.T) {
	l := NewLane("test")
	defer l.Close()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				l.Submit(func() {
					n := active.Add(1)
					if n > maxActive.Load() {
						maxActive.Store(n)
					}
					time.Sleep(10 * time.Microsecond)
					active.Add(-1)
				})
			}
		}()
	}
	wg.Wait()
	if err := l.Barrier(context.Background()); err != nil {
		t.Fatal(err)
	}
	if maxActive.Load() != 1 {
		t.Errorf("max concurrent tasks = %d, want 1", maxActive.Load())
	}
	if l.Processed() != 8*20+1 {
		t.Errorf("Processed = %d, want %d", l.Processed(), 8*20+1)
	}
}

func TestLaneSubmitDoesNotBlock(t *testing.T) {
	l := NewLane("test")
	defer l.Close()

	release := make(chan struct{})
	l.Submit(func() { <-release })

	done := make(chan struct{})
	go func() {
		for range 1000 {
			l.Submit(func() {})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked behind a running task")
	}
	close(release)
}

func TestLaneCloseDrainsQueue(t *testing.T) {
	l := NewLane("test")
	var n atomic.Int32
	for range 50 {
		l.Submit(func() { n.Add(1) })
	}
	l.Close()
	if n.Load() != 50 {
		t.Errorf("ran %d tasks before close, want 50", n.Load())
	}
	if l.Submit(func() {}) {
		t.Error("Submit after Close returned true")
	}
	if err := l.Barrier(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Barrier after Close = %v, want ErrClosed", err)
	}
	l.Close() // idempotent
}

func TestLaneBarrierContext(t *testing.T) {
	l := NewLane("test")
	defer l.Close()

	release := make(chan struct{})
	defer close(release)
	l.Submit(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Barrier(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Barrier = %v, want deadline exceeded", err)
	}
}

func TestLaneSurvivesPanic(t *testing.T) {
	l := NewLane("test")
	defer l.Close()

	var ran atomic.Bool
	l.Submit(func() { panic("boom") })
	l.Submit(func() { ran.Store(true) })
	if err := l.Barrier(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !ran.Load() {
		t.Error("task after panic did not run")
	}
}
