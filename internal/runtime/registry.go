package runtime

import "fmt"

// Factory constructs a handle for the provided spec.
type Factory func(spec Spec) (Handle, error)

// Registry maps launch modes to the factories that build handles for them.
type Registry map[LaunchMode]Factory

// Clone returns a shallow copy of the registry, allowing callers to avoid
// accidental mutation of shared maps.
func (r Registry) Clone() Registry {
	dup := make(Registry, len(r))
	for k, v := range r {
		dup[k] = v
	}
	return dup
}

// New builds a handle using the factory registered for mode.
func (r Registry) New(mode LaunchMode, spec Spec) (Handle, error) {
	factory, ok := r[mode]
	if !ok || factory == nil {
		return nil, fmt.Errorf("no runtime registered for launch mode %q", mode)
	}
	h, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("%s runtime for %s: %w", mode, spec.Name, err)
	}
	return h, nil
}
