// Package desktop enumerates top-level windows and issues fire-and-forget
// commands against them. Window discovery is keyed on the image name of the
// process that owns each window.
package desktop

import (
	"strings"
)

// Window is an opaque top-level window identifier issued by the OS. It may
// become stale at any time.
type Window uintptr

// Visibility is the last visibility the supervisor commanded for a set of
// windows.
type Visibility int

const (
	VisibilityUnknown Visibility = iota
	VisibilityShown
	VisibilityHidden
)

func (v Visibility) String() string {
	switch v {
	case VisibilityShown:
		return "shown"
	case VisibilityHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Match is a window whose owning executable matched a search.
type Match struct {
	Handle     Window
	Executable string
	PID        uint32
}

// Directory is the window query/command surface used by the supervisor.
type Directory interface {
	// FindByExecutablePrefix returns every top-level window whose owning
	// process image base name starts with prefix, compared case-insensitively.
	FindByExecutablePrefix(prefix string) []Match
	SetVisibility(w Window, visible bool)
	RequestClose(w Window)
	Exists(w Window) bool
	// OwnerPID resolves the owning process id at call time.
	OwnerPID(w Window) (uint32, bool)
}

type windowOwner struct {
	window Window
	pid    uint32
}

// source is the raw OS surface a directory filters over.
type source interface {
	topLevelWindows() ([]windowOwner, error)
	imagePath(pid uint32) (string, error)
}

// findByPrefix applies the prefix rule to a single enumeration pass. Windows
// whose owner cannot be inspected are skipped. Image paths are resolved at most
// once per pid per call.
func findByPrefix(src source, prefix string) []Match {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}
	owners, err := src.topLevelWindows()
	if err != nil || len(owners) == 0 {
		return nil
	}

	type resolved struct {
		base string
		ok   bool
	}
	names := make(map[uint32]resolved, len(owners))

	var matches []Match
	for _, owner := range owners {
		if owner.pid == 0 {
			continue
		}
		name, seen := names[owner.pid]
		if !seen {
			path, err := src.imagePath(owner.pid)
			name = resolved{base: BaseName(path), ok: err == nil && path != ""}
			names[owner.pid] = name
		}
		if !name.ok {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(name.base), prefix) {
			continue
		}
		matches = append(matches, Match{Handle: owner.window, Executable: name.base, PID: owner.pid})
	}
	return matches
}

// BaseName returns the final element of an image path, accepting both slash
// styles regardless of the host platform.
func BaseName(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Unsupported returns a directory that finds nothing and ignores commands.
func Unsupported() Directory {
	return unsupported{}
}

type unsupported struct{}

func (unsupported) FindByExecutablePrefix(string) []Match { return nil }
func (unsupported) SetVisibility(Window, bool)            {}
func (unsupported) RequestClose(Window)                   {}
func (unsupported) Exists(Window) bool                    { return false }
func (unsupported) OwnerPID(Window) (uint32, bool)        { return 0, false }
