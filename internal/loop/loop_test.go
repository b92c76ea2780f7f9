package loop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

func TestPostRunsCallbacksInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("call: %v", err)
	}

	if len(got) != 5 {
		t.Fatalf("expected 5 callbacks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("callback %d ran out of order: %v", i, got)
		}
	}
}

func TestPostFromCallbackDoesNotDeadlock(t *testing.T) {
	l := startLoop(t)

	done := make(chan struct{})
	l.Post(func() {
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestAfterFuncStopPreventsCallback(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Int32
	var timer *Timer
	if err := l.Call(context.Background(), func() {
		timer = l.AfterFunc(20*time.Millisecond, func() { fired.Add(1) })
	}); err != nil {
		t.Fatalf("call: %v", err)
	}
	if err := l.Call(context.Background(), func() {
		if !timer.Stop() {
			t.Errorf("expected first stop to succeed")
		}
	}); err != nil {
		t.Fatalf("call: %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("stopped timer fired %d times", fired.Load())
	}
	if timer.Stop() {
		t.Fatalf("expected second stop to report false")
	}
}

func TestAfterFuncRunsOnLoop(t *testing.T) {
	l := startLoop(t)

	done := make(chan struct{})
	l.AfterFunc(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer callback never ran")
	}
}

func TestPostAfterStopReportsFalse(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if l.Post(func() {}) {
		t.Fatalf("expected post to fail after stop")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestRunReturnsPanicErrorAndStops(t *testing.T) {
	l := New()
	result := make(chan error, 1)
	go func() {
		result <- l.Run(context.Background())
	}()

	var after atomic.Bool
	l.Post(func() { panic("state corrupted") })
	l.Post(func() { after.Store(true) })

	var err error
	select {
	case err = <-result:
	case <-time.After(time.Second):
		t.Fatalf("loop did not return after a panicking callback")
	}
	var perr *PanicError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PanicError, got %v", err)
	}
	if perr.Value != "state corrupted" || len(perr.Stack) == 0 {
		t.Fatalf("unexpected panic error %+v", perr)
	}
	if after.Load() {
		t.Fatalf("callbacks queued behind the panic must not run")
	}
	if l.Post(func() {}) {
		t.Fatalf("post after a panic should report false")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}
