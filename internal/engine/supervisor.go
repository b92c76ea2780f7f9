package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/loop"
	"github.com/Paintersrp/warden/internal/metrics"
	"github.com/Paintersrp/warden/internal/probe"
	"github.com/Paintersrp/warden/internal/runtime"
	"github.com/Paintersrp/warden/internal/runtime/elevated"
	"github.com/Paintersrp/warden/internal/runtime/process"
)

const (
	defaultGrace     = 2 * time.Second
	frozenFlag       = "--frozen"
	childLogCapacity = 64
)

// Options wires the supervisor to its collaborators.
type Options struct {
	Loop      *loop.Loop
	Directory desktop.Directory

	// Launcher and Killer back elevated handles. Both are required when
	// Elevation is set.
	Launcher elevated.Launcher
	Killer   elevated.Killer

	// Registry overrides the handle factories per launch mode.
	Registry runtime.Registry

	Settings SettingsStore
	Prompter Prompter
	Notifier Notifier
	Logs     LogSink

	// Events receives lifecycle notifications. Sends never block; events
	// that do not fit are dropped and counted.
	Events chan<- Event

	Logger *zap.Logger

	// Elevation enables the elevated launch mode and window tracking. Without
	// it the core program is not supported and the target runs as a direct
	// child.
	Elevation bool
}

// Supervisor drives the lifecycle of the launcher's roles. All state is owned
// by the loop; exported methods are safe to call from any goroutine other
// than the loop itself.
type Supervisor struct {
	loop      *loop.Loop
	dir       desktop.Directory
	registry  runtime.Registry
	poller    *probe.Poller
	settings  SettingsStore
	prompter  Prompter
	notifier  Notifier
	logs      LogSink
	events    chan<- Event
	log       *zap.Logger
	profiles  Profiles
	elevation bool

	procs     map[Role]*ManagedProcess
	pending   map[Role]*probe.Pending
	dataCheck *probe.Pending
	started   bool
	closing   chan struct{}
}

// New validates opts and constructs an idle supervisor.
func New(opts Options, profiles Profiles) (*Supervisor, error) {
	if opts.Loop == nil {
		return nil, errors.New("supervisor requires a loop")
	}
	dir := opts.Directory
	if dir == nil {
		dir = desktop.Unsupported()
	}
	if opts.Elevation && opts.Registry[runtime.LaunchElevated] == nil && (opts.Launcher == nil || opts.Killer == nil) {
		return nil, errors.New("elevation requires a launcher and a killer")
	}

	registry := runtime.Registry{runtime.LaunchDirect: process.Factory()}
	if opts.Elevation && opts.Launcher != nil && opts.Killer != nil {
		registry[runtime.LaunchElevated] = elevated.Factory(dir, opts.Launcher, opts.Killer, opts.Loop)
	}
	for mode, factory := range opts.Registry {
		registry[mode] = factory
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if profiles.Grace <= 0 {
		profiles.Grace = defaultGrace
	}
	if profiles.CloseWait <= 0 {
		profiles.CloseWait = elevated.DefaultCloseWait
	}

	s := &Supervisor{
		loop:      opts.Loop,
		dir:       dir,
		registry:  registry,
		poller:    probe.NewPoller(dir, opts.Loop),
		settings:  opts.Settings,
		prompter:  opts.Prompter,
		notifier:  notifier,
		logs:      opts.Logs,
		events:    opts.Events,
		log:       log,
		profiles:  profiles,
		elevation: opts.Elevation,
		procs:     make(map[Role]*ManagedProcess, 3),
		pending:   make(map[Role]*probe.Pending, 3),
	}
	for _, role := range Roles() {
		s.procs[role] = &ManagedProcess{Role: role, State: StateNotConfigured}
	}
	return s, nil
}

// Start launches the data fetcher and the core program and discovers the
// target executable without launching it.
func (s *Supervisor) Start(ctx context.Context) error {
	return s.call(ctx, func() error {
		if s.started {
			return nil
		}
		s.started = true
		for _, role := range Roles() {
			metrics.SetRoleState(string(role), string(StateNotConfigured))
		}
		if err := s.launchFetcher(); err != nil && !errors.Is(err, ErrUnsupported) {
			s.log.Warn("data fetcher not started", zap.Error(err))
		}
		if err := s.launch(RoleCoreProgram, true); err != nil {
			s.log.Info("core program not started", zap.Error(err))
		}
		s.discoverTarget()
		return nil
	})
}

// LaunchTarget resolves and launches the target application. Resolution may
// prompt the user.
func (s *Supervisor) LaunchTarget(ctx context.Context) error {
	return s.call(ctx, func() error {
		return s.launch(RoleTargetApp, true)
	})
}

// SelectTargetPath prompts for the target executable and persists the choice
// without launching it.
func (s *Supervisor) SelectTargetPath(ctx context.Context) error {
	return s.call(ctx, func() error {
		return s.selectPath(RoleTargetApp)
	})
}

// ToggleCoreVisibility flips every tracked core program window between shown
// and hidden.
func (s *Supervisor) ToggleCoreVisibility(ctx context.Context) error {
	return s.call(ctx, s.toggleCore)
}

// Stop terminates a single role and waits until it has stopped.
func (s *Supervisor) Stop(ctx context.Context, role Role) error {
	finished := make(chan struct{})
	err := s.call(ctx, func() error {
		proc, ok := s.procs[role]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRole, role)
		}
		s.terminate(proc, func() { close(finished) })
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels all outstanding work, terminates every role and waits for
// them to stop. Later launches are refused. Repeated calls share the first
// shutdown.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	var finished chan struct{}
	err := s.call(ctx, func() error {
		finished = s.beginShutdown()
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current status of every role in startup order.
func (s *Supervisor) Snapshot(ctx context.Context) ([]Status, error) {
	var out []Status
	err := s.call(ctx, func() error {
		out = make([]Status, 0, len(s.procs))
		for _, role := range Roles() {
			out = append(out, s.procs[role].status())
		}
		return nil
	})
	return out, err
}

func (s *Supervisor) call(ctx context.Context, fn func() error) error {
	var result error
	if err := s.loop.Call(ctx, func() { result = fn() }); err != nil {
		return err
	}
	return result
}

func (s *Supervisor) launch(role Role, interactive bool) error {
	proc := s.procs[role]
	if err := s.admit(proc); err != nil {
		return err
	}
	mode := s.modeFor(role)
	if _, ok := s.registry[mode]; !ok {
		return fmt.Errorf("%w: %s needs %s launch", ErrUnsupported, role, mode)
	}
	profile := s.profile(role)

	s.reset(proc)
	s.transition(proc, StateResolving, "resolving executable", nil)

	persisted := s.persisted(role)
	if path, source, ok := resolveExecutable(profile, persisted); ok {
		s.log.Info("executable resolved", zap.String("role", string(role)), zap.String("path", path), zap.String("source", string(source)))
		if source != sourceSettings && source != sourceConfig {
			s.persist(role, path)
		}
		s.launchResolved(proc, path)
		return nil
	}

	if !interactive || s.prompter == nil {
		s.fail(proc, ReasonPathNotFound, errors.New("executable not found"))
		return nil
	}
	id := proc.LaunchID
	s.promptForPath(role, func(path string, err error) {
		if proc.LaunchID != id || proc.State != StateResolving {
			return
		}
		if err != nil {
			s.fail(proc, ReasonPathNotFound, err)
			return
		}
		s.persist(role, path)
		s.launchResolved(proc, path)
	})
	return nil
}

// admit refuses launches during shutdown and while a role is busy.
func (s *Supervisor) admit(proc *ManagedProcess) error {
	if s.closing != nil {
		return ErrShuttingDown
	}
	if proc.State.Busy() || proc.selection != "" {
		return fmt.Errorf("%w: %s is %s", ErrRoleBusy, proc.Role, proc.State)
	}
	return nil
}

func (s *Supervisor) modeFor(role Role) runtime.LaunchMode {
	switch {
	case role == RoleDataFetcher:
		return runtime.LaunchDirect
	case role == RoleCoreProgram, s.elevation:
		return runtime.LaunchElevated
	default:
		return runtime.LaunchDirect
	}
}

func (s *Supervisor) profile(role Role) Profile {
	switch role {
	case RoleCoreProgram:
		return s.profiles.Core
	case RoleTargetApp:
		return s.profiles.Target
	default:
		return Profile{}
	}
}

func (s *Supervisor) persisted(role Role) string {
	key, ok := settingsKey(role)
	if !ok || s.settings == nil {
		return ""
	}
	path, _ := s.settings.LoadPath(key)
	return path
}

func (s *Supervisor) persist(role Role, path string) {
	key, ok := settingsKey(role)
	if !ok || s.settings == nil {
		return
	}
	if err := s.settings.SavePath(key, path); err != nil {
		s.log.Warn("persist executable path", zap.String("role", string(role)), zap.String("path", path), zap.Error(err))
	}
}

// reset prepares proc for a fresh launch attempt, dropping anything left from
// a previous one.
func (s *Supervisor) reset(proc *ManagedProcess) {
	s.cancelPending(proc.Role)
	proc.LaunchID = uuid.NewString()
	proc.Handle = nil
	proc.Windows = nil
	proc.Visibility = desktop.VisibilityUnknown
	proc.Reason = ReasonNone
	proc.Code = nil
}

// promptForPath asks the user for an executable, validates the answer and
// confirms unexpected file names. result runs on the loop.
func (s *Supervisor) promptForPath(role Role, result func(path string, err error)) {
	profile := s.profile(role)
	req := PromptRequest{Role: role, Title: promptTitle(role), Pattern: profile.Pattern}
	if len(profile.SearchDirs) > 0 {
		req.Dir = profile.SearchDirs[0]
	}
	s.prompter.PromptForFile(req, func(path string, ok bool) {
		s.loop.Post(func() {
			if !ok || path == "" {
				result("", errors.New("no executable selected"))
				return
			}
			if err := ValidateExecutable(path); err != nil {
				result("", err)
				return
			}
			if matchesHint(path, profile.NameHint) {
				result(path, nil)
				return
			}
			question := fmt.Sprintf("%s does not look like %s. Use it anyway?", filepath.Base(path), profile.NameHint)
			s.prompter.Confirm(question, func(yes bool) {
				s.loop.Post(func() {
					if !yes {
						result("", fmt.Errorf("%s rejected by user", path))
						return
					}
					result(path, nil)
				})
			})
		})
	})
}

func promptTitle(role Role) string {
	switch role {
	case RoleCoreProgram:
		return "Select the core program"
	case RoleTargetApp:
		return "Select the game executable"
	default:
		return "Select an executable"
	}
}

func (s *Supervisor) selectPath(role Role) error {
	proc := s.procs[role]
	if err := s.admit(proc); err != nil {
		return err
	}
	if s.prompter == nil {
		return errors.New("no prompter available")
	}
	token := uuid.NewString()
	proc.selection = token
	s.promptForPath(role, func(path string, err error) {
		if proc.selection != token {
			return
		}
		proc.selection = ""
		if err != nil {
			s.log.Info("executable selection abandoned", zap.String("role", string(role)), zap.Error(err))
			return
		}
		s.persist(role, path)
		proc.ExecutablePath = path
		s.emit(Event{Role: role, LaunchID: proc.LaunchID, Type: EventTypeResolved, State: proc.State, Path: path, Message: "executable selected"})
	})
	return nil
}

// discoverTarget resolves the target path without prompting or launching so
// the UI can offer to start or locate it.
func (s *Supervisor) discoverTarget() {
	proc := s.procs[RoleTargetApp]
	path, source, ok := resolveExecutable(s.profiles.Target, s.persisted(RoleTargetApp))
	if !ok {
		s.emit(Event{Role: RoleTargetApp, Type: EventTypeResolved, State: proc.State, Reason: ReasonPathNotFound, Message: "target executable not found"})
		return
	}
	proc.ExecutablePath = path
	s.log.Debug("target discovered", zap.String("path", path), zap.String("source", string(source)))
	s.emit(Event{Role: RoleTargetApp, Type: EventTypeResolved, State: proc.State, Path: path, Message: "target executable found"})
}

func (s *Supervisor) launchResolved(proc *ManagedProcess, path string) {
	role := proc.Role
	mode := s.modeFor(role)
	proc.ExecutablePath = path
	proc.LaunchMode = mode

	spec := runtime.Spec{
		Name:       string(role),
		Path:       path,
		Workdir:    filepath.Dir(path),
		Visibility: desktop.VisibilityShown,
	}
	if role == RoleDataFetcher {
		f := s.profiles.Fetcher
		spec.Args = append([]string(nil), f.Command[1:]...)
		spec.Visibility = desktop.VisibilityHidden
		if f.Frozen {
			spec.Args = append(spec.Args, frozenFlag)
		}
		if f.Workdir != "" {
			spec.Workdir = f.Workdir
		}
	} else {
		profile := s.profile(role)
		spec.Args = append([]string(nil), profile.Args...)
		spec.Visibility = profile.Visibility
	}

	s.transition(proc, StateLaunching, "launching", nil)
	handle, err := s.registry.New(mode, spec)
	if err != nil {
		metrics.ObserveLaunch(string(role), false)
		s.fail(proc, ReasonLaunchRejected, err)
		return
	}
	res := handle.Start()
	metrics.ObserveLaunch(string(role), res.Succeeded)
	if !res.Succeeded {
		proc.Code = res.Code
		err := res.Err
		if err == nil {
			err = errors.New("launch rejected")
		}
		s.fail(proc, ReasonLaunchRejected, err)
		return
	}
	proc.Handle = handle
	if child, ok := handle.(runtime.Child); ok {
		s.attachChild(proc, child)
	}

	switch {
	case role == RoleDataFetcher:
		// Ready once the helper exits cleanly.
	case mode == runtime.LaunchElevated:
		s.awaitWindow(proc)
	default:
		s.ready(proc, nil)
		s.watchLiveness(proc)
	}
}

// attachChild forwards child output to the log and the sink, and reports the
// exit back onto the loop.
func (s *Supervisor) attachChild(proc *ManagedProcess, child runtime.Child) {
	role := proc.Role
	id := proc.LaunchID
	log := s.log.With(zap.String("role", string(role)), zap.String("launch_id", id))

	var sink chan Event
	if s.logs != nil {
		sink = make(chan Event, childLogCapacity)
		s.logs.Add(sink)
	}
	go func() {
		for entry := range child.Logs() {
			if entry.Level == "warn" {
				log.Warn(entry.Message, zap.String("source", entry.Source))
			} else {
				log.Info(entry.Message, zap.String("source", entry.Source))
			}
			if sink != nil {
				sink <- logEvent(role, id, entry)
			}
		}
		if sink != nil {
			close(sink)
		}
	}()
	go func() {
		<-child.Exited()
		code := child.ExitCode()
		s.loop.Post(func() { s.childExited(proc, id, code) })
	}()
}

func (s *Supervisor) childExited(proc *ManagedProcess, id string, code int) {
	if proc.LaunchID != id {
		return
	}
	s.log.Info("child exited", zap.String("role", string(proc.Role)), zap.String("launch_id", id), zap.Int("code", code))
	switch proc.Role {
	case RoleDataFetcher:
		if proc.State != StateLaunching {
			return
		}
		if code != 0 {
			c := code
			proc.Code = &c
			proc.Handle = nil
			s.fail(proc, ReasonFetchFailed, fmt.Errorf("data fetcher exited with code %d", code))
			return
		}
		s.ready(proc, nil)
		s.startDataCheck(proc)
	default:
		if proc.State == StateReady {
			s.exitedOnItsOwn(proc)
		}
	}
}

func (s *Supervisor) awaitWindow(proc *ManagedProcess) {
	role := proc.Role
	policy := s.profile(role).Window
	id := proc.LaunchID
	s.transition(proc, StateAwaitingWindow, "waiting for window", nil)

	opts := []probe.Option{probe.OnAttempt(func(attempt int) {
		s.log.Debug("window poll", zap.String("role", string(role)), zap.String("prefix", policy.Prefix), zap.Int("attempt", attempt))
	})}
	if policy.InitialDelay > 0 {
		opts = append(opts, probe.InitialDelay(policy.InitialDelay))
	}
	s.pending[role] = s.poller.AwaitWindow(policy.Prefix, policy.MaxAttempts, policy.Interval, func(matches []desktop.Match, attempts int) {
		if proc.LaunchID != id || proc.State != StateAwaitingWindow {
			return
		}
		delete(s.pending, role)
		metrics.ObserveWindowAttempts(string(role), attempts)

		if len(matches) > 0 {
			if h, ok := proc.Handle.(*elevated.Handle); ok {
				h.SetWindows(policy.Prefix, matches)
			}
			s.ready(proc, matches)
			if role == RoleTargetApp {
				s.watchLiveness(proc)
			}
			return
		}
		if policy.Required {
			if h, ok := proc.Handle.(*elevated.Handle); ok {
				h.MarkExited()
			}
			proc.Handle = nil
			s.fail(proc, ReasonWindowNotDetected, fmt.Errorf("no window for %q after %d attempts", policy.Prefix, attempts))
			return
		}
		s.log.Info("no window detected; treating program as windowless",
			zap.String("role", string(role)), zap.Int("attempts", attempts))
		s.ready(proc, nil)
	}, opts...)
}

func (s *Supervisor) ready(proc *ManagedProcess, windows []desktop.Match) {
	proc.Windows = append([]desktop.Match(nil), windows...)
	proc.Visibility = desktop.VisibilityUnknown
	if len(windows) > 0 {
		proc.Visibility = s.profile(proc.Role).Visibility
	}
	metrics.SetTrackedWindows(string(proc.Role), len(proc.Windows))
	s.transition(proc, StateReady, fmt.Sprintf("ready with %d window(s)", len(windows)), nil)
}

func (s *Supervisor) watchLiveness(proc *ManagedProcess) {
	role := proc.Role
	id := proc.LaunchID
	policy := s.profile(role).Liveness
	if policy.Interval <= 0 {
		return
	}
	s.pending[role] = s.poller.Watch(func() bool {
		return proc.Handle != nil && proc.Handle.IsRunning()
	}, policy.Interval, policy.FailureThreshold, func() {
		if proc.LaunchID != id || proc.State != StateReady {
			return
		}
		delete(s.pending, role)
		s.exitedOnItsOwn(proc)
	})
}

func (s *Supervisor) exitedOnItsOwn(proc *ManagedProcess) {
	s.log.Info("program exited", zap.String("role", string(proc.Role)), zap.String("launch_id", proc.LaunchID))
	if h, ok := proc.Handle.(*elevated.Handle); ok {
		h.MarkExited()
	}
	s.terminate(proc, nil)
}

func (s *Supervisor) toggleCore() error {
	proc := s.procs[RoleCoreProgram]
	if proc.State != StateReady || len(proc.Windows) == 0 {
		return ErrNoWindows
	}
	next := desktop.VisibilityShown
	if proc.Visibility == desktop.VisibilityShown {
		next = desktop.VisibilityHidden
	}
	for _, w := range proc.Windows {
		s.dir.SetVisibility(w.Handle, next == desktop.VisibilityShown)
	}
	proc.Visibility = next
	s.log.Info("core visibility changed", zap.String("visibility", next.String()), zap.Int("windows", len(proc.Windows)))
	s.emit(Event{Role: proc.Role, LaunchID: proc.LaunchID, Type: EventTypeVisible, State: proc.State, Message: next.String()})
	return nil
}

// terminate stops proc and calls done once it is stopped. Roles without a
// live handle stop immediately; a termination already in flight is joined.
func (s *Supervisor) terminate(proc *ManagedProcess, done func()) {
	s.cancelPending(proc.Role)
	proc.selection = ""

	switch proc.State {
	case StateTerminating:
		if done != nil {
			proc.waiters = append(proc.waiters, done)
		}
		return
	case StateNotConfigured, StateStopped, StateFailed:
		proc.Handle = nil
		runDone(done)
		return
	}

	handle := proc.Handle
	if handle == nil {
		s.stopped(proc)
		runDone(done)
		return
	}

	if done != nil {
		proc.waiters = append(proc.waiters, done)
	}
	s.transition(proc, StateTerminating, "terminating", nil)

	grace := s.profiles.Grace
	if handle.Mode() == runtime.LaunchElevated {
		grace = s.profiles.CloseWait
	}
	id := proc.LaunchID
	handle.Terminate(grace, func(err error) {
		s.loop.Post(func() { s.terminated(proc, id, err) })
	})
}

func (s *Supervisor) terminated(proc *ManagedProcess, id string, err error) {
	if proc.LaunchID != id || proc.State != StateTerminating {
		return
	}
	metrics.ObserveTermination(string(proc.Role), err == nil)
	switch {
	case err == nil:
	case errors.Is(err, runtime.ErrTerminationIncomplete):
		s.log.Warn("termination incomplete", zap.String("role", string(proc.Role)), zap.Error(err))
	default:
		s.log.Error("termination failed", zap.String("role", string(proc.Role)), zap.Error(err))
	}
	s.stopped(proc)
}

func (s *Supervisor) stopped(proc *ManagedProcess) {
	proc.Handle = nil
	proc.Windows = nil
	proc.Visibility = desktop.VisibilityUnknown
	proc.Reason = ReasonNone
	metrics.ResetRole(string(proc.Role))
	s.transition(proc, StateStopped, "stopped", nil)

	waiters := proc.waiters
	proc.waiters = nil
	for _, fn := range waiters {
		fn()
	}
}

func (s *Supervisor) beginShutdown() chan struct{} {
	if s.closing != nil {
		return s.closing
	}
	s.closing = make(chan struct{})
	s.dataCheck.Cancel()
	s.dataCheck = nil

	closing := s.closing
	remaining := len(s.procs)
	for _, role := range Roles() {
		s.terminate(s.procs[role], func() {
			remaining--
			if remaining == 0 {
				close(closing)
			}
		})
	}
	return closing
}

func (s *Supervisor) cancelPending(role Role) {
	if p, ok := s.pending[role]; ok {
		p.Cancel()
		delete(s.pending, role)
	}
}

func (s *Supervisor) fail(proc *ManagedProcess, reason Reason, err error) {
	s.cancelPending(proc.Role)
	proc.Reason = reason
	s.transition(proc, StateFailed, string(reason), err)

	n := Notification{Role: proc.Role, Path: proc.ExecutablePath, Code: proc.Code}
	switch reason {
	case ReasonPathNotFound:
		n.Severity, n.Blocking = SeverityError, true
		n.Title = fmt.Sprintf("%s not found", roleTitle(proc.Role))
		n.Message = fmt.Sprintf("Could not locate the %s executable.", roleTitle(proc.Role))
		if proc.Role == RoleDataFetcher {
			n.Severity = SeverityWarning
			n.Message += " News and background may not load."
		}
	case ReasonLaunchRejected:
		n.Severity, n.Blocking = SeverityError, true
		n.Title = fmt.Sprintf("%s failed to start", roleTitle(proc.Role))
		n.Message = fmt.Sprintf("Launching %s failed: %v", proc.ExecutablePath, err)
	case ReasonWindowNotDetected:
		n.Severity = SeverityWarning
		n.Title = fmt.Sprintf("%s window not detected", roleTitle(proc.Role))
		n.Message = "The program was started but no window appeared."
	case ReasonFetchFailed:
		n.Severity = SeverityWarning
		n.Title = "Announcements unavailable"
		n.Message = fmt.Sprintf("The data fetcher failed: %v", err)
	}
	s.notifier.Notify(n)
}

func roleTitle(role Role) string {
	switch role {
	case RoleDataFetcher:
		return "Data fetcher"
	case RoleCoreProgram:
		return "Core program"
	case RoleTargetApp:
		return "Game"
	default:
		return string(role)
	}
}

func (s *Supervisor) transition(proc *ManagedProcess, state State, message string, err error) {
	prev := proc.State
	proc.State = state
	metrics.SetRoleState(string(proc.Role), string(state))
	metrics.SetRoleReady(string(proc.Role), state == StateReady)

	fields := []zap.Field{
		zap.String("role", string(proc.Role)),
		zap.String("state", string(state)),
		zap.String("from", string(prev)),
		zap.String("launch_id", proc.LaunchID),
	}
	if proc.ExecutablePath != "" {
		fields = append(fields, zap.String("path", proc.ExecutablePath))
	}
	level := "info"
	if err != nil {
		fields = append(fields, zap.Error(err))
		s.log.Warn("role "+message, fields...)
		level = "warn"
	} else {
		s.log.Info("role "+message, fields...)
	}

	s.emit(Event{
		Role:     proc.Role,
		LaunchID: proc.LaunchID,
		Type:     eventTypeFor(state),
		State:    state,
		Message:  message,
		Level:    level,
		Err:      err,
		Reason:   proc.Reason,
		Path:     proc.ExecutablePath,
		Code:     proc.Code,
	})
}

func (s *Supervisor) emit(ev Event) {
	if s.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Level == "" {
		ev.Level = "info"
	}
	if ev.Source == "" {
		ev.Source = runtime.LogSourceSystem
	}
	select {
	case s.events <- ev:
	default:
		metrics.IncDroppedEvents()
	}
}

func runDone(done func()) {
	if done != nil {
		done()
	}
}
