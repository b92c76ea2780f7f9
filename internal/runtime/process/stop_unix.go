//go:build !windows

package process

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/warden/internal/runtime"
)

// stop sends SIGTERM to the child's process group, then SIGKILL once grace
// has passed.
func (p *Handle) stop(grace time.Duration) error {
	pgid := p.cmd.Process.Pid

	if err := unix.Kill(-pgid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %s (pgid %d): %w", p.spec.Name, pgid, err)
	}

	select {
	case <-p.waitDone:
		return p.exitError()
	case <-time.After(grace):
	}

	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill %s (pgid %d): %w", p.spec.Name, pgid, err)
	}
	select {
	case <-p.waitDone:
	case <-time.After(grace + time.Second):
		return fmt.Errorf("%s (pgid %d) did not exit after SIGKILL: %w", p.spec.Name, pgid, runtime.ErrTerminationIncomplete)
	}
	return p.exitError()
}
