//go:build !windows

package process

import (
	"os/exec"
	"syscall"

	"github.com/Paintersrp/warden/internal/desktop"
)

// prepareChild puts the child in its own process group so stop can signal
// anything it spawned. Visibility has no meaning here.
func prepareChild(cmd *exec.Cmd, _ desktop.Visibility) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
