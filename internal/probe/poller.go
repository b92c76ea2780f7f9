// Package probe implements bounded readiness polling and liveness watches as
// chains of cancellable callbacks on the supervisor loop.
package probe

import (
	"time"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/loop"
)

// Finder is the directory query used by window readiness polls.
type Finder interface {
	FindByExecutablePrefix(prefix string) []desktop.Match
}

// Scheduler runs callbacks on the supervisor loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) *loop.Timer
}

// Poller schedules probe chains. All callbacks it invokes, and every Pending
// method, run on the scheduler's loop.
type Poller struct {
	finder Finder
	sched  Scheduler
}

// NewPoller constructs a poller querying finder on sched.
func NewPoller(finder Finder, sched Scheduler) *Poller {
	return &Poller{finder: finder, sched: sched}
}

// Option customises a poll chain.
type Option func(*options)

type options struct {
	initialDelay    time.Duration
	hasInitialDelay bool
	onAttempt       func(attempt int)
}

// InitialDelay sets the delay before the first attempt. Without it the first
// attempt runs one interval after the chain starts.
func InitialDelay(d time.Duration) Option {
	return func(o *options) {
		o.initialDelay = d
		o.hasInitialDelay = true
	}
}

// OnAttempt registers a hook invoked before each attempt with its 1-based
// index.
func OnAttempt(fn func(attempt int)) Option {
	return func(o *options) { o.onAttempt = fn }
}

// Pending is a running poll chain.
type Pending struct {
	timer     *loop.Timer
	attempts  int
	cancelled bool
	finished  bool
}

// Cancel stops the chain. The completion callback is never invoked after
// Cancel returns.
func (p *Pending) Cancel() {
	if p == nil || p.cancelled || p.finished {
		return
	}
	p.cancelled = true
	p.timer.Stop()
}

// Attempts returns how many attempts have run so far.
func (p *Pending) Attempts() int {
	if p == nil {
		return 0
	}
	return p.attempts
}

// Active reports whether the chain is still scheduled.
func (p *Pending) Active() bool {
	return p != nil && !p.cancelled && !p.finished
}

// Until evaluates cond every interval until it returns true or maxAttempts
// attempts have failed; maxAttempts <= 0 polls without bound. done receives
// the outcome and the number of attempts made.
func (p *Poller) Until(cond func(attempt int) bool, maxAttempts int, interval time.Duration, done func(ok bool, attempts int), opts ...Option) *Pending {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	first := interval
	if o.hasInitialDelay {
		first = o.initialDelay
	}

	pending := &Pending{}
	var tick func()
	tick = func() {
		if pending.cancelled {
			return
		}
		pending.attempts++
		if o.onAttempt != nil {
			o.onAttempt(pending.attempts)
		}
		if cond(pending.attempts) {
			pending.finished = true
			if done != nil {
				done(true, pending.attempts)
			}
			return
		}
		if maxAttempts > 0 && pending.attempts >= maxAttempts {
			pending.finished = true
			if done != nil {
				done(false, pending.attempts)
			}
			return
		}
		pending.timer = p.sched.AfterFunc(interval, tick)
	}
	pending.timer = p.sched.AfterFunc(first, tick)
	return pending
}

// AwaitWindow polls the directory for windows owned by an executable whose
// base name starts with name. done receives the first non-empty result, or nil
// once maxAttempts queries came back empty.
func (p *Poller) AwaitWindow(name string, maxAttempts int, interval time.Duration, done func(matches []desktop.Match, attempts int), opts ...Option) *Pending {
	var found []desktop.Match
	return p.Until(func(int) bool {
		found = p.finder.FindByExecutablePrefix(name)
		return len(found) > 0
	}, maxAttempts, interval, func(ok bool, attempts int) {
		if !ok {
			found = nil
		}
		if done != nil {
			done(found, attempts)
		}
	}, opts...)
}

// Watch checks alive every interval and calls lost once failureThreshold
// consecutive checks have failed. A successful check resets the count. The
// chain ends after lost is called.
func (p *Poller) Watch(alive func() bool, interval time.Duration, failureThreshold int, lost func()) *Pending {
	if failureThreshold <= 0 {
		failureThreshold = 1
	}
	failures := 0
	return p.Until(func(int) bool {
		if alive() {
			failures = 0
			return false
		}
		failures++
		return failures >= failureThreshold
	}, 0, interval, func(ok bool, _ int) {
		if ok && lost != nil {
			lost()
		}
	})
}
