// Package elevated implements the launch handle for programs started through
// the elevation shell. The supervisor never owns such a process, so liveness
// and shutdown are driven entirely through the window directory.
package elevated

import (
	"fmt"
	"strings"
	"time"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/loop"
	"github.com/Paintersrp/warden/internal/runtime"
)

// DefaultCloseWait is how long Terminate waits between asking windows to close
// and killing their owners.
const DefaultCloseWait = 100 * time.Millisecond

// Launcher submits elevated launch requests.
type Launcher interface {
	Launch(path string, args []string, workdir string, visibility desktop.Visibility) runtime.LaunchResult
}

// Killer force-terminates a process by id.
type Killer interface {
	Kill(pid uint32) error
}

// Scheduler runs continuations on the supervisor loop.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) *loop.Timer
}

// Factory returns a runtime factory producing elevated handles that share the
// supplied collaborators.
func Factory(dir desktop.Directory, launcher Launcher, killer Killer, sched Scheduler) runtime.Factory {
	return func(spec runtime.Spec) (runtime.Handle, error) {
		if strings.TrimSpace(spec.Path) == "" {
			return nil, fmt.Errorf("elevated launch requires an executable path")
		}
		return New(spec, dir, launcher, killer, sched), nil
	}
}

// Handle tracks an elevated program by its windows. All methods must be called
// from the supervisor loop.
type Handle struct {
	spec     runtime.Spec
	prefix   string
	dir      desktop.Directory
	launcher Launcher
	killer   Killer
	sched    Scheduler

	windows    []desktop.Match
	seenWindow bool
	started    bool
	exited     bool
	terminated bool
}

// New constructs an unstarted elevated handle.
func New(spec runtime.Spec, dir desktop.Directory, launcher Launcher, killer Killer, sched Scheduler) *Handle {
	return &Handle{
		spec:     spec,
		prefix:   desktop.BaseName(spec.Path),
		dir:      dir,
		launcher: launcher,
		killer:   killer,
		sched:    sched,
	}
}

func (h *Handle) Mode() runtime.LaunchMode {
	return runtime.LaunchElevated
}

// Start submits the elevation request.
func (h *Handle) Start() runtime.LaunchResult {
	if h.started {
		return runtime.Rejected(fmt.Errorf("elevated %s already started", h.spec.Name))
	}
	res := h.launcher.Launch(h.spec.Path, h.spec.Args, h.spec.Workdir, h.spec.Visibility)
	h.started = res.Succeeded
	return res
}

// SetWindows records the windows discovered for the program and the prefix
// they were found under.
func (h *Handle) SetWindows(prefix string, windows []desktop.Match) {
	if prefix != "" {
		h.prefix = prefix
	}
	h.windows = append([]desktop.Match(nil), windows...)
	if len(windows) > 0 {
		h.seenWindow = true
	}
}

// Windows returns the tracked windows.
func (h *Handle) Windows() []desktop.Match {
	return append([]desktop.Match(nil), h.windows...)
}

// MarkExited records that the program is known to be gone.
func (h *Handle) MarkExited() {
	h.exited = true
}

// IsRunning reports whether the directory still shows a window for the
// program. A program that never showed a window is assumed alive until
// MarkExited.
func (h *Handle) IsRunning() bool {
	if !h.started || h.exited || h.terminated {
		return false
	}
	if !h.seenWindow {
		return true
	}
	return len(h.dir.FindByExecutablePrefix(h.prefix)) > 0
}

// Terminate posts a close request to every window of the program, waits for
// grace (DefaultCloseWait when zero) on the scheduler, then kills the owner of
// every window that survived. A program already marked exited is left alone.
func (h *Handle) Terminate(grace time.Duration, done func(error)) {
	if !h.started || h.terminated || h.exited {
		h.terminated = true
		report(done, nil)
		return
	}
	h.terminated = true

	targets := h.closeTargets()
	if len(targets) == 0 {
		h.exited = true
		report(done, nil)
		return
	}
	for _, w := range targets {
		h.dir.RequestClose(w.Handle)
	}

	if grace <= 0 {
		grace = DefaultCloseWait
	}
	h.sched.AfterFunc(grace, func() {
		h.exited = true
		report(done, h.killSurvivors(targets))
	})
}

// closeTargets merges tracked windows with a fresh enumeration so windows
// opened after readiness are closed too.
func (h *Handle) closeTargets() []desktop.Match {
	seen := make(map[desktop.Window]struct{}, len(h.windows))
	var targets []desktop.Match
	add := func(ms []desktop.Match) {
		for _, m := range ms {
			if _, dup := seen[m.Handle]; dup {
				continue
			}
			seen[m.Handle] = struct{}{}
			targets = append(targets, m)
		}
	}
	add(h.windows)
	add(h.dir.FindByExecutablePrefix(h.prefix))
	return targets
}

func (h *Handle) killSurvivors(targets []desktop.Match) error {
	killed := make(map[uint32]error)
	var failed []string
	for _, w := range targets {
		if !h.dir.Exists(w.Handle) {
			continue
		}
		pid, ok := h.dir.OwnerPID(w.Handle)
		if !ok {
			failed = append(failed, fmt.Sprintf("window %#x: owner unknown", uintptr(w.Handle)))
			continue
		}
		err, done := killed[pid]
		if !done {
			err = h.killer.Kill(pid)
			killed[pid] = err
		}
		if err != nil {
			failed = append(failed, fmt.Sprintf("window %#x: %v", uintptr(w.Handle), err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", runtime.ErrTerminationIncomplete, strings.Join(failed, "; "))
	}
	return nil
}

func report(done func(error), err error) {
	if done != nil {
		done(err)
	}
}
