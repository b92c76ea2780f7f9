package runtime

import (
	"errors"
	"syscall"
	"time"

	"github.com/Paintersrp/warden/internal/desktop"
)

// LaunchMode selects how a child program is started.
type LaunchMode string

const (
	// LaunchDirect spawns an ordinary child the supervisor owns.
	LaunchDirect LaunchMode = "direct"
	// LaunchElevated asks the OS shell to start the program with elevation.
	// No child handle is ever obtained.
	LaunchElevated LaunchMode = "elevated"
)

const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "supervisor"
)

// ErrTerminationIncomplete reports that a forced termination could not reach
// every surviving window owner.
var ErrTerminationIncomplete = errors.New("termination incomplete")

// LogEntry is a single line of child output.
type LogEntry struct {
	Timestamp time.Time
	Message   string
	Source    string
	Level     string
}

// LaunchResult is the outcome of a launch request. Code carries the OS error
// code when one was reported.
type LaunchResult struct {
	Succeeded bool
	Code      *int
	Err       error
}

// Accepted is the result of a launch the OS accepted.
func Accepted() LaunchResult {
	return LaunchResult{Succeeded: true}
}

// Rejected builds a failed result, preserving any OS error code found in err.
func Rejected(err error) LaunchResult {
	res := LaunchResult{Err: err}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		code := int(errno)
		res.Code = &code
	}
	return res
}

// Spec describes the program a handle launches.
type Spec struct {
	Name       string
	Path       string
	Args       []string
	Workdir    string
	Env        map[string]string
	Visibility desktop.Visibility
}

// Handle is a launched (or launchable) child program.
type Handle interface {
	// Start launches the program. It never waits for the program to become
	// ready.
	Start() LaunchResult

	IsRunning() bool

	// Terminate stops the program, cooperatively first and forcefully once
	// grace has elapsed. done may be invoked from any goroutine. Terminating
	// an already terminated handle reports nil.
	Terminate(grace time.Duration, done func(error))

	Mode() LaunchMode
}

// Child is implemented by handles that own an OS child process.
type Child interface {
	Handle

	// Logs yields stdout and stderr lines. The channel is closed once both
	// streams are drained.
	Logs() <-chan LogEntry

	// Exited is closed once the process has been reaped.
	Exited() <-chan struct{}

	// ExitCode returns the exit status, or -1 while the process is running or
	// was never started.
	ExitCode() int
}
