//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Paintersrp/warden/internal/runtime"
)

// stop asks the child to exit and kills it after grace. Windows cannot deliver
// os.Interrupt to another process, so a failed signal skips the wait.
func (p *Handle) stop(grace time.Duration) error {
	if err := p.cmd.Process.Signal(os.Interrupt); err == nil {
		select {
		case <-p.waitDone:
			return p.exitError()
		case <-time.After(grace):
		}
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %s (pid %d): %w", p.spec.Name, p.cmd.Process.Pid, err)
	}
	select {
	case <-p.waitDone:
	case <-time.After(grace + time.Second):
		return fmt.Errorf("%s (pid %d) did not exit after kill: %w", p.spec.Name, p.cmd.Process.Pid, runtime.ErrTerminationIncomplete)
	}
	return p.exitError()
}
