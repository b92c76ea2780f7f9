// Package loop provides the single goroutine on which all supervisor state is
// mutated. Callbacks posted from any goroutine, including timer expirations,
// run one at a time in submission order.
package loop

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when work is submitted to a loop that is no longer
// running.
var ErrStopped = errors.New("loop: stopped")

// PanicError is returned by Run when a callback panicked. The loop stops at
// that point; nothing else queued runs.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("loop: callback panicked: %v", e.Value)
}

// Loop executes posted callbacks sequentially on the goroutine that called Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped atomic.Bool
	running atomic.Bool
	stopMu  sync.Once
}

// New constructs an idle loop. Callbacks posted before Run are executed once
// Run starts.
func New() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled. It returns ctx.Err() once the
// loop has stopped; callbacks still queued at that point are discarded. A
// panicking callback stops the loop and is returned as a *PanicError.
func (l *Loop) Run(ctx context.Context) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("loop: already running")
	}
	defer l.stop()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}

		for {
			batch := l.take()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fn()
			}
		}
	}
}

// Done is closed after Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post schedules fn to run on the loop. It never blocks and reports false when
// the loop has already stopped.
func (l *Loop) Post(fn func()) bool {
	if fn == nil {
		return true
	}
	if l.stopped.Load() {
		return false
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs fn on the loop and waits for it to finish. It must not be invoked
// from a loop callback.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	if ctx == nil {
		ctx = context.Background()
	}
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
		}
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc runs fn on the loop once d has elapsed. The returned timer can be
// stopped from a loop callback, after which fn is guaranteed not to run.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if !t.fired.CompareAndSwap(false, true) {
				return
			}
			fn()
		})
	})
	return t
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

func (l *Loop) stop() {
	l.stopMu.Do(func() {
		l.stopped.Store(true)
		l.mu.Lock()
		l.queue = nil
		l.mu.Unlock()
		close(l.done)
	})
}

// Timer is a cancellable loop callback created by AfterFunc.
type Timer struct {
	timer *time.Timer
	// fired flips once: either the callback ran or Stop claimed it.
	fired atomic.Bool
}

// Stop prevents the callback from running. It reports false if the callback
// already ran or the timer was already stopped.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	if !t.fired.CompareAndSwap(false, true) {
		return false
	}
	t.timer.Stop()
	return true
}
