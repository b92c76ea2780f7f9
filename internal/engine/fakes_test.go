package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/loop"
	"github.com/Paintersrp/warden/internal/runtime"
	"github.com/Paintersrp/warden/internal/settings"
)

type visibilityCall struct {
	window  desktop.Window
	visible bool
}

type fakeDirectory struct {
	mu       sync.Mutex
	windows  []desktop.Match
	appearAt int // windows are reported from this query on
	finds    int
	closed   []desktop.Window
	visCalls []visibilityCall
}

func (d *fakeDirectory) FindByExecutablePrefix(prefix string) []desktop.Match {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finds++
	if d.finds < d.appearAt {
		return nil
	}
	var out []desktop.Match
	for _, m := range d.windows {
		if prefix != "" && strings.HasPrefix(strings.ToLower(m.Executable), strings.ToLower(prefix)) {
			out = append(out, m)
		}
	}
	return out
}

func (d *fakeDirectory) SetVisibility(w desktop.Window, visible bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visCalls = append(d.visCalls, visibilityCall{window: w, visible: visible})
}

func (d *fakeDirectory) RequestClose(w desktop.Window) {
	d.mu.Lock()
	d.closed = append(d.closed, w)
	d.mu.Unlock()
	d.remove(w)
}

func (d *fakeDirectory) Exists(w desktop.Window) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.windows {
		if m.Handle == w {
			return true
		}
	}
	return false
}

func (d *fakeDirectory) OwnerPID(w desktop.Window) (uint32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range d.windows {
		if m.Handle == w {
			return m.PID, true
		}
	}
	return 0, false
}

func (d *fakeDirectory) remove(w desktop.Window) {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.windows[:0]
	for _, m := range d.windows {
		if m.Handle != w {
			kept = append(kept, m)
		}
	}
	d.windows = kept
}

func (d *fakeDirectory) findCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finds
}

func (d *fakeDirectory) closedWindows() []desktop.Window {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]desktop.Window(nil), d.closed...)
}

func (d *fakeDirectory) visibilityCalls() []visibilityCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]visibilityCall(nil), d.visCalls...)
}

type launchCall struct {
	path       string
	args       []string
	workdir    string
	visibility desktop.Visibility
}

type fakeLauncher struct {
	mu     sync.Mutex
	result runtime.LaunchResult
	calls  []launchCall
}

func (f *fakeLauncher) Launch(path string, args []string, workdir string, visibility desktop.Visibility) runtime.LaunchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, launchCall{path: path, args: append([]string(nil), args...), workdir: workdir, visibility: visibility})
	return f.result
}

func (f *fakeLauncher) launches() []launchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]launchCall(nil), f.calls...)
}

type fakeKiller struct {
	mu     sync.Mutex
	killed []uint32
}

func (f *fakeKiller) Kill(pid uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	return nil
}

type fakePrompter struct {
	mu        sync.Mutex
	path      string
	ok        bool
	confirm   bool
	hold      bool
	held      func(string, bool)
	requests  []PromptRequest
	questions []string
}

func (p *fakePrompter) PromptForFile(req PromptRequest, reply func(string, bool)) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	if p.hold {
		p.held = reply
		p.mu.Unlock()
		return
	}
	path, ok := p.path, p.ok
	p.mu.Unlock()
	reply(path, ok)
}

func (p *fakePrompter) Confirm(question string, reply func(bool)) {
	p.mu.Lock()
	p.questions = append(p.questions, question)
	yes := p.confirm
	p.mu.Unlock()
	reply(yes)
}

func (p *fakePrompter) release(path string, ok bool) {
	p.mu.Lock()
	reply := p.held
	p.held = nil
	p.mu.Unlock()
	if reply != nil {
		reply(path, ok)
	}
}

func (p *fakePrompter) promptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *fakePrompter) confirmCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.questions)
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *fakeNotifier) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *fakeNotifier) all() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.notes...)
}

type fakeSettings struct {
	mu    sync.Mutex
	paths map[settings.Key]string
	saves int
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{paths: map[settings.Key]string{}}
}

func (s *fakeSettings) LoadPath(key settings.Key) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.paths[key]
	return path, ok
}

func (s *fakeSettings) SavePath(key settings.Key, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[key] = path
	s.saves++
	return nil
}

func (s *fakeSettings) get(key settings.Key) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paths[key]
}

// stubChild is a direct handle whose exit is driven by the test.
type stubChild struct {
	spec   runtime.Spec
	result runtime.LaunchResult

	mu         sync.Mutex
	running    bool
	code       int
	terminated int
	once       sync.Once

	logs   chan runtime.LogEntry
	exited chan struct{}
}

func newStubChild(spec runtime.Spec, result runtime.LaunchResult) *stubChild {
	return &stubChild{
		spec:   spec,
		result: result,
		code:   -1,
		logs:   make(chan runtime.LogEntry, 8),
		exited: make(chan struct{}),
	}
}

func (c *stubChild) Start() runtime.LaunchResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = c.result.Succeeded
	return c.result
}

func (c *stubChild) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *stubChild) Terminate(_ time.Duration, done func(error)) {
	c.mu.Lock()
	c.terminated++
	c.mu.Unlock()
	c.exit(-1)
	if done != nil {
		done(nil)
	}
}

func (c *stubChild) Mode() runtime.LaunchMode       { return runtime.LaunchDirect }
func (c *stubChild) Logs() <-chan runtime.LogEntry { return c.logs }
func (c *stubChild) Exited() <-chan struct{}       { return c.exited }

func (c *stubChild) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code
}

func (c *stubChild) exit(code int) {
	c.once.Do(func() {
		c.mu.Lock()
		c.running = false
		c.code = code
		c.mu.Unlock()
		close(c.logs)
		close(c.exited)
	})
}

type harness struct {
	loop      *loop.Loop
	dir       *fakeDirectory
	launcher  *fakeLauncher
	killer    *fakeKiller
	prompter  *fakePrompter
	notifier  *fakeNotifier
	settings  *fakeSettings
	events    chan Event
	children  chan *stubChild
	direct    runtime.LaunchResult
	profiles  Profiles
	elevation bool
	sup       *Supervisor
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

func testProfiles(dir string) Profiles {
	return Profiles{
		Core: Profile{
			SearchDirs: []string{dir},
			Pattern:    "idv-login*.exe",
			NameHint:   "idv-login",
			Visibility: desktop.VisibilityHidden,
			Window:     WindowPolicy{Prefix: "idv-login", MaxAttempts: 120, Interval: time.Millisecond},
		},
		Target: Profile{
			SearchDirs: []string{dir},
			Pattern:    "dwrg.exe",
			NameHint:   "dwrg.exe",
			Visibility: desktop.VisibilityShown,
			Window:     WindowPolicy{Prefix: "dwrg", MaxAttempts: 60, Interval: time.Millisecond, Required: true},
			Liveness:   LivenessPolicy{Interval: time.Millisecond, FailureThreshold: 2},
		},
		Grace:     10 * time.Millisecond,
		CloseWait: time.Millisecond,
	}
}

func newHarness(t *testing.T, configure func(h *harness)) *harness {
	t.Helper()
	h := &harness{
		loop:      startLoop(t),
		dir:       &fakeDirectory{},
		launcher:  &fakeLauncher{result: runtime.Accepted()},
		killer:    &fakeKiller{},
		prompter:  &fakePrompter{},
		notifier:  &fakeNotifier{},
		settings:  newFakeSettings(),
		events:    make(chan Event, 1024),
		children:  make(chan *stubChild, 8),
		direct:    runtime.Accepted(),
		profiles:  testProfiles(t.TempDir()),
		elevation: true,
	}
	if configure != nil {
		configure(h)
	}

	sup, err := New(Options{
		Loop:      h.loop,
		Directory: h.dir,
		Launcher:  h.launcher,
		Killer:    h.killer,
		Registry: runtime.Registry{
			runtime.LaunchDirect: func(spec runtime.Spec) (runtime.Handle, error) {
				child := newStubChild(spec, h.direct)
				h.children <- child
				return child, nil
			},
		},
		Settings:  h.settings,
		Prompter:  h.prompter,
		Notifier:  h.notifier,
		Events:    h.events,
		Elevation: h.elevation,
	}, h.profiles)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	h.sup = sup
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})
	return h
}

func (h *harness) waitFor(t *testing.T, role Role, state State) Event {
	t.Helper()
	return h.waitForEvent(t, role, eventTypeFor(state), func(ev Event) bool { return ev.State == state })
}

func (h *harness) waitForEvent(t *testing.T, role Role, typ EventType, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-h.events:
			if ev.Role == role && ev.Type == typ && (match == nil || match(ev)) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event %s", role, typ)
			return Event{}
		}
	}
}

func (h *harness) child(t *testing.T) *stubChild {
	t.Helper()
	select {
	case c := <-h.children:
		return c
	case <-time.After(3 * time.Second):
		t.Fatalf("no direct child was created")
		return nil
	}
}

func (h *harness) status(t *testing.T, role Role) Status {
	t.Helper()
	statuses, err := h.sup.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, st := range statuses {
		if st.Role == role {
			return st
		}
	}
	t.Fatalf("role %s missing from snapshot", role)
	return Status{}
}

// settle waits until every callback already queued on the loop has run.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	if err := h.loop.Call(context.Background(), func() {}); err != nil {
		t.Fatalf("loop call: %v", err)
	}
}

// writeExe writes a file carrying a PE signature.
func writeExe(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := append([]byte{'M', 'Z'}, make([]byte, 126)...)
	if err := os.WriteFile(path, data, 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
