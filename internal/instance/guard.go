// Package instance prevents two launchers from running at once.
package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// LockName is the lock file created in the temporary directory.
const LockName = "gamelaucher_single_instance.lock"

// DefaultPath returns the lock location shared by every launcher on the host.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), LockName)
}

// Guard holds a non-blocking exclusive lock for the lifetime of the process.
// The OS drops the lock if the process dies.
type Guard struct {
	mu   sync.Mutex
	lock *flock.Flock
	held bool
}

// New returns a guard for path. An empty path selects DefaultPath.
func New(path string) *Guard {
	if path == "" {
		path = DefaultPath()
	}
	return &Guard{lock: flock.New(path)}
}

// Path returns the lock file location.
func (g *Guard) Path() string {
	return g.lock.Path()
}

// Acquire attempts the lock without blocking. It reports false when another
// process holds it.
func (g *Guard) Acquire() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return true, nil
	}
	ok, err := g.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire instance lock %s: %w", g.lock.Path(), err)
	}
	g.held = ok
	return ok, nil
}

// Release drops the lock. Releasing an unheld guard is a no-op.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return nil
	}
	g.held = false
	if err := g.lock.Unlock(); err != nil {
		return fmt.Errorf("release instance lock %s: %w", g.lock.Path(), err)
	}
	return nil
}
