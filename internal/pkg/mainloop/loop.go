// Package mainloop provides the owning goroutine the map core runs on.
//
// The core is not safe for concurrent use. Adapters marshal every call onto a Loop with Post
// (fire and forget) or Do (wait for the result), and the engine posts its callbacks the same way.
package mainloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/samirrijal/wavemap/internal/core/ports"
	"github.com/samirrijal/wavemap/internal/pkg/metrics"
)

// ErrStopped is returned by Do once the loop has stopped.
var ErrStopped = errors.New("main loop stopped")

// Loop runs posted tasks one at a time, in post order, on the goroutine that called Run.
type Loop struct {
	diag ports.Diagnostics
	log  *slog.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// New creates a loop. diag may be nil.
func New(diag ports.Diagnostics, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		diag: diag,
		log:  log,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It never blocks, so it is safe to call from a running task. It returns
// false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	metrics.LoopQueueDepth.Set(float64(len(l.queue)))
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it. A panic in fn is returned as an error. Do must
// not be called from a task running on the loop.
//
// If ctx ends before fn has started, fn never runs and Do returns ctx.Err(). Once fn has
// started, Do waits for its result regardless of ctx.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	var claimed atomic.Bool
	if !l.Post(func() {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		var err error
		if p := l.protect(func() { err = fn() }); p != nil {
			err = p
		}
		errc <- err
	}) {
		return ErrStopped
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			metrics.LoopAbandoned.Inc()
			return ctx.Err()
		}
		return <-errc
	case <-l.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	}
}

// Run executes tasks until ctx is cancelled. Tasks already queued when ctx ends still run.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.mu.Unlock()
			l.drain()
			return
		case <-l.wake:
			l.drain()
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		metrics.LoopQueueDepth.Set(float64(len(l.queue)))
		l.mu.Unlock()

		metrics.LoopTasks.Inc()
		l.protect(fn)
	}
}

func (l *Loop) protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			metrics.LoopPanics.Inc()
			l.log.Error("main loop task panicked", "panic", fmt.Sprintf("%v", r), "stack", stack)
			if l.diag != nil {
				l.diag.RecordException(fmt.Sprintf("%v", r), "mainloop", stack)
			}
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	fn()
	return nil
}

var _ ports.MainThread = (*Loop)(nil)
