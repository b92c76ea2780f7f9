//go:build windows

package elevate

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/runtime"
)

// Launch submits the elevation request and returns as soon as the shell
// accepts or rejects it. A declined consent prompt surfaces as
// ERROR_CANCELLED in the result code. args are quoted with the usual Windows
// command line rules.
func (s *Shell) Launch(path string, args []string, workdir string, visibility desktop.Visibility) runtime.LaunchResult {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return runtime.Rejected(err)
	}
	file, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return runtime.Rejected(fmt.Errorf("encode path %q: %w", path, err))
	}
	var params *uint16
	if len(args) > 0 {
		params, err = windows.UTF16PtrFromString(windows.ComposeCommandLine(args))
		if err != nil {
			return runtime.Rejected(fmt.Errorf("encode arguments for %s: %w", path, err))
		}
	}
	var dir *uint16
	if workdir != "" {
		dir, err = windows.UTF16PtrFromString(workdir)
		if err != nil {
			return runtime.Rejected(fmt.Errorf("encode workdir %q: %w", workdir, err))
		}
	}

	show := int32(windows.SW_SHOW)
	if visibility == desktop.VisibilityHidden {
		show = windows.SW_HIDE
	}

	if err := windows.ShellExecute(0, verb, file, params, dir, show); err != nil {
		return runtime.Rejected(fmt.Errorf("elevated launch of %s: %w", path, err))
	}
	return runtime.Accepted()
}

// Kill force-terminates the process with the given id.
func (s *Shell) Kill(pid uint32) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, pid)
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("terminate process %d: %w", pid, err)
	}
	return nil
}
