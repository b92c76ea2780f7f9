package probe

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/loop"
)

type countingFinder struct {
	mu      sync.Mutex
	queries int
	matchAt int
	match   desktop.Match
}

func (f *countingFinder) FindByExecutablePrefix(prefix string) []desktop.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.matchAt > 0 && f.queries >= f.matchAt {
		return []desktop.Match{f.match}
	}
	return nil
}

func (f *countingFinder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries
}

func startLoop(t *testing.T) *loop.Loop {
	t.Helper()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

type awaitResult struct {
	matches  []desktop.Match
	attempts int
}

func TestAwaitWindowExhaustsExactlyMaxAttempts(t *testing.T) {
	l := startLoop(t)
	finder := &countingFinder{}
	poller := NewPoller(finder, l)

	results := make(chan awaitResult, 1)
	l.Post(func() {
		poller.AwaitWindow("dwrg", 5, time.Millisecond, func(m []desktop.Match, attempts int) {
			results <- awaitResult{matches: m, attempts: attempts}
		})
	})

	select {
	case res := <-results:
		if res.matches != nil {
			t.Fatalf("expected nil matches, got %+v", res.matches)
		}
		if res.attempts != 5 {
			t.Fatalf("expected 5 attempts, got %d", res.attempts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll never completed")
	}

	time.Sleep(20 * time.Millisecond)
	if got := finder.count(); got != 5 {
		t.Fatalf("expected exactly 5 queries, got %d", got)
	}
}

func TestAwaitWindowStopsAtFirstMatch(t *testing.T) {
	l := startLoop(t)
	win := desktop.Match{Handle: 42, Executable: "dwrg.exe", PID: 4}
	finder := &countingFinder{matchAt: 3, match: win}
	poller := NewPoller(finder, l)

	results := make(chan awaitResult, 1)
	l.Post(func() {
		poller.AwaitWindow("dwrg", 60, time.Millisecond, func(m []desktop.Match, attempts int) {
			results <- awaitResult{matches: m, attempts: attempts}
		})
	})

	select {
	case res := <-results:
		if len(res.matches) != 1 || res.matches[0].Handle != 42 {
			t.Fatalf("unexpected matches: %+v", res.matches)
		}
		if res.attempts != 3 {
			t.Fatalf("expected readiness on attempt 3, got %d", res.attempts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll never completed")
	}

	time.Sleep(20 * time.Millisecond)
	if got := finder.count(); got != 3 {
		t.Fatalf("expected exactly 3 queries, got %d", got)
	}
}

func TestCancelPreventsCompletion(t *testing.T) {
	l := startLoop(t)
	finder := &countingFinder{}
	poller := NewPoller(finder, l)

	var completed atomic.Bool
	var pending *Pending
	if err := l.Call(context.Background(), func() {
		pending = poller.AwaitWindow("idv-login", 1000, 2*time.Millisecond, func([]desktop.Match, int) {
			completed.Store(true)
		})
	}); err != nil {
		t.Fatalf("call: %v", err)
	}

	time.Sleep(15 * time.Millisecond)
	var before int
	if err := l.Call(context.Background(), func() {
		pending.Cancel()
		before = finder.count()
		if pending.Active() {
			t.Errorf("expected cancelled chain to be inactive")
		}
	}); err != nil {
		t.Fatalf("call: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if completed.Load() {
		t.Fatalf("done invoked after cancel")
	}
	if after := finder.count(); after != before {
		t.Fatalf("queries continued after cancel: before=%d after=%d", before, after)
	}
}

func TestInitialDelayPostponesFirstAttempt(t *testing.T) {
	l := startLoop(t)
	finder := &countingFinder{matchAt: 1, match: desktop.Match{Handle: 1}}
	poller := NewPoller(finder, l)

	started := time.Now()
	results := make(chan time.Duration, 1)
	l.Post(func() {
		poller.AwaitWindow("idv-login", 10, time.Millisecond, func([]desktop.Match, int) {
			results <- time.Since(started)
		}, InitialDelay(40*time.Millisecond))
	})

	select {
	case elapsed := <-results:
		if elapsed < 40*time.Millisecond {
			t.Fatalf("first attempt ran before the initial delay: %v", elapsed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poll never completed")
	}
}

func TestWatchReportsLossAfterThreshold(t *testing.T) {
	l := startLoop(t)
	poller := NewPoller(&countingFinder{}, l)

	var checks atomic.Int32
	lost := make(chan int32, 1)
	l.Post(func() {
		poller.Watch(func() bool {
			n := checks.Add(1)
			// alive, dead, alive, dead, dead
			return n == 1 || n == 3
		}, time.Millisecond, 2, func() {
			lost <- checks.Load()
		})
	})

	select {
	case n := <-lost:
		if n != 5 {
			t.Fatalf("expected loss on check 5, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch never reported loss")
	}
}

func TestOnAttemptHookSeesEveryAttempt(t *testing.T) {
	l := startLoop(t)
	poller := NewPoller(&countingFinder{}, l)

	var seen []int
	done := make(chan struct{})
	l.Post(func() {
		poller.Until(func(int) bool { return false }, 3, time.Millisecond, func(bool, int) {
			close(done)
		}, OnAttempt(func(n int) { seen = append(seen, n) }))
	})
	<-done
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected attempt hook calls: %v", seen)
	}
}
