//go:build windows

package process

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/warden/internal/desktop"
)

func prepareChild(cmd *exec.Cmd, visibility desktop.Visibility) {
	attr := &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
	if visibility == desktop.VisibilityHidden {
		attr.HideWindow = true
		attr.CreationFlags |= windows.CREATE_NO_WINDOW
	}
	cmd.SysProcAttr = attr
}
