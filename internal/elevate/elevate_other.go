//go:build !windows

package elevate

import (
	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/runtime"
)

func (s *Shell) Launch(path string, args []string, workdir string, visibility desktop.Visibility) runtime.LaunchResult {
	return runtime.Rejected(ErrUnsupported)
}

func (s *Shell) Kill(pid uint32) error {
	return ErrUnsupported
}
