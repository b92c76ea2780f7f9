package engine

import (
	"errors"
	"time"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/runtime"
)

// Role identifies one of the programs the launcher supervises.
type Role string

const (
	RoleDataFetcher Role = "data_fetcher"
	RoleCoreProgram Role = "core_program"
	RoleTargetApp   Role = "target_app"
)

// Roles returns every role in startup order.
func Roles() []Role {
	return []Role{RoleDataFetcher, RoleCoreProgram, RoleTargetApp}
}

// State is the lifecycle position of a role.
type State string

const (
	StateNotConfigured  State = "not_configured"
	StateResolving      State = "resolving"
	StateLaunching      State = "launching"
	StateAwaitingWindow State = "awaiting_window"
	StateReady          State = "ready"
	StateTerminating    State = "terminating"
	StateStopped        State = "stopped"
	StateFailed         State = "failed"
)

// Busy reports whether a new launch must be refused while in s.
func (s State) Busy() bool {
	switch s {
	case StateResolving, StateLaunching, StateAwaitingWindow, StateTerminating:
		return true
	default:
		return false
	}
}

// Reason qualifies a Failed state.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonPathNotFound      Reason = "path_not_found"
	ReasonLaunchRejected    Reason = "launch_rejected"
	ReasonWindowNotDetected Reason = "window_not_detected"
	ReasonFetchFailed       Reason = "fetch_failed"
)

var (
	// ErrRoleBusy is returned when a role is asked to launch while a previous
	// launch or termination is still in flight.
	ErrRoleBusy = errors.New("role is busy")
	// ErrShuttingDown is returned for launches requested after Shutdown.
	ErrShuttingDown = errors.New("supervisor is shutting down")
	// ErrNoWindows is returned by ToggleCoreVisibility when no core window is
	// tracked.
	ErrNoWindows = errors.New("no core program windows tracked")
	// ErrUnsupported is returned for roles that cannot run on this platform.
	ErrUnsupported = errors.New("role is not supported on this platform")
	// ErrUnknownRole is returned for roles outside Roles().
	ErrUnknownRole = errors.New("unknown role")
)

// ManagedProcess is the supervisor's record of one role. It is owned by the
// supervisor loop.
type ManagedProcess struct {
	Role           Role
	ExecutablePath string
	LaunchMode     runtime.LaunchMode
	Handle         runtime.Handle
	Windows        []desktop.Match
	Visibility     desktop.Visibility
	State          State
	Reason         Reason
	Code           *int
	LaunchID       string

	selection string
	waiters   []func()
}

// Status is an immutable copy of a ManagedProcess.
type Status struct {
	Role       Role               `json:"role"`
	Path       string             `json:"path,omitempty"`
	Mode       runtime.LaunchMode `json:"mode,omitempty"`
	State      State              `json:"state"`
	Reason     Reason             `json:"reason,omitempty"`
	Code       *int               `json:"code,omitempty"`
	Visibility string             `json:"visibility"`
	Windows    []desktop.Match    `json:"windows,omitempty"`
	LaunchID   string             `json:"launchId,omitempty"`
	Running    bool               `json:"running"`
}

func (p *ManagedProcess) status() Status {
	st := Status{
		Role:       p.Role,
		Path:       p.ExecutablePath,
		Mode:       p.LaunchMode,
		State:      p.State,
		Reason:     p.Reason,
		Visibility: p.Visibility.String(),
		LaunchID:   p.LaunchID,
	}
	if p.Code != nil {
		code := *p.Code
		st.Code = &code
	}
	if len(p.Windows) > 0 {
		st.Windows = append([]desktop.Match(nil), p.Windows...)
	}
	if p.Handle != nil {
		st.Running = p.Handle.IsRunning()
	}
	return st
}

// WindowPolicy controls how a role's windows are awaited.
type WindowPolicy struct {
	Prefix       string
	MaxAttempts  int
	Interval     time.Duration
	InitialDelay time.Duration
	// Required turns an exhausted poll into Failed(WindowNotDetected).
	Required bool
}

// LivenessPolicy controls how a ready role is watched for exit.
type LivenessPolicy struct {
	Interval         time.Duration
	FailureThreshold int
}

// Profile describes how a windowed role is resolved and launched.
type Profile struct {
	// ConfiguredPath overrides every other resolution source when it names a
	// regular file.
	ConfiguredPath string
	DefaultPath    string
	SearchDirs     []string
	Pattern        string
	// NameHint is the substring a manually selected executable is expected to
	// contain. A mismatch asks the user for confirmation.
	NameHint   string
	Args       []string
	Visibility desktop.Visibility
	Window     WindowPolicy
	Liveness   LivenessPolicy
}

// DataCheckPolicy controls the completeness check run after a fetch.
type DataCheckPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// FetcherProfile describes the data fetch helper.
type FetcherProfile struct {
	// Command is the helper argv. An empty command leaves the role
	// NotConfigured.
	Command   []string
	Frozen    bool
	Workdir   string
	OutputDir string
	DataCheck DataCheckPolicy
}

// Profiles bundles the per-role launch configuration.
type Profiles struct {
	Fetcher FetcherProfile
	Core    Profile
	Target  Profile
	// Grace bounds the cooperative stop of direct children.
	Grace time.Duration
	// CloseWait is the delay between close requests and forced kills of
	// elevated programs.
	CloseWait time.Duration
}
