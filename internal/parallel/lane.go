// Package parallel provides the execution lanes used by docview.
//
// A Lane is a single worker goroutine draining an unbounded FIFO queue.
// Submit never blocks, tasks run one at a time to completion in submission
// order, and nothing runs concurrently on the same lane. Decoder handles are
// not safe for concurrent use, so every decoder call is routed through a lane.
//
// A Pool spreads independent jobs over several workers with work stealing.
package parallel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/docview/internal/logging"
)

// ErrClosed is returned by Barrier when the lane no longer accepts work.
var ErrClosed = errors.New("parallel: lane closed")

// Lane runs submitted functions one at a time, in order.
//
// Thread safety: Lane is safe for concurrent use.
type Lane struct {
	name string

	mu    sync.Mutex
	queue []func()

	// notify wakes the worker after a submit. Buffered so Submit never blocks.
	notify chan struct{}

	// done signals the worker to drain and exit.
	done chan struct{}

	wg sync.WaitGroup

	// running indicates whether the lane is accepting work.
	running atomic.Bool

	processed atomic.Int64
}

// NewLane starts a lane. The name appears in log records.
func NewLane(name string) *Lane {
	l := &Lane{
		name:   name,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	l.running.Store(true)
	l.wg.Add(1)
	go l.worker()
	return l
}

func (l *Lane) worker() {
	defer l.wg.Done()

	for {
		if fn, ok := l.next(); ok {
			l.run(fn)
			continue
		}
		select {
		case <-l.notify:
		case <-l.done:
			for {
				fn, ok := l.next()
				if !ok {
					return
				}
				l.run(fn)
			}
		}
	}
}

func (l *Lane) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Lane) run(fn func()) {
	defer func() {
		l.processed.Add(1)
		if r := recover(); r != nil {
			logging.L().Error("parallel: task panicked", "lane", l.name, "panic", r)
		}
	}()
	fn()
}

// Submit queues fn and returns immediately. It reports false, dropping fn,
// when the lane has been closed.
func (l *Lane) Submit(fn func()) bool {
	if fn == nil {
		return false
	}
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

// Barrier blocks until every function submitted before the call has run,
// or ctx is done.
func (l *Lane) Barrier(ctx context.Context) error {
	reached := make(chan struct{})
	if !l.Submit(func() { close(reached) }) {
		return ErrClosed
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs everything already queued and waits for
// the worker to exit. Close is safe to call multiple times.
func (l *Lane) Close() {
	l.mu.Lock()
	if !l.running.CompareAndSwap(true, false) {
		l.mu.Unlock()
		l.wg.Wait()
		return
	}
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
}

// IsRunning reports whether the lane accepts work.
func (l *Lane) IsRunning() bool { return l.running.Load() }

// Len returns the number of queued functions not yet started.
func (l *Lane) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Processed returns the number of functions run so far.
func (l *Lane) Processed() int64 { return l.processed.Load() }
