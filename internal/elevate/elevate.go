// Package elevate asks the OS shell to start programs with administrative
// rights and force-terminates processes by id.
package elevate

import "errors"

// ErrUnsupported is returned on platforms without an elevation shell verb.
var ErrUnsupported = errors.New("elevate: elevated launch is not supported on this platform")

// Shell launches programs through the OS shell with the "runas" verb.
type Shell struct{}

// New returns the platform shell launcher.
func New() *Shell {
	return &Shell{}
}
