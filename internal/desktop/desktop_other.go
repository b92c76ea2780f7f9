//go:build !windows

package desktop

// New returns a directory that reports no windows. Window discovery is only
// available on Windows.
func New() Directory {
	return Unsupported()
}
