// Package api defines the control surface shared by the local HTTP server and
// its clients.
package api

import (
	stdcontext "context"
	"time"

	"github.com/Paintersrp/warden/internal/engine"
)

// StatusReport aggregates the state of every supervised role.
type StatusReport struct {
	Version     string          `json:"version"`
	GeneratedAt time.Time       `json:"generated_at"`
	Roles       []engine.Status `json:"roles"`
}

// Role returns the status of role, if present.
func (r *StatusReport) Role(role engine.Role) (engine.Status, bool) {
	if r == nil {
		return engine.Status{}, false
	}
	for _, st := range r.Roles {
		if st.Role == role {
			return st, true
		}
	}
	return engine.Status{}, false
}

// Controller exposes the supervisor operations reachable over HTTP.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	LaunchTarget(stdcontext.Context) error
	ToggleCoreVisibility(stdcontext.Context) error
}

// SupervisorController adapts an engine supervisor to Controller.
type SupervisorController struct {
	Supervisor *engine.Supervisor
	Version    string
}

func (c SupervisorController) Status(ctx stdcontext.Context) (*StatusReport, error) {
	roles, err := c.Supervisor.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &StatusReport{Version: c.Version, GeneratedAt: time.Now().UTC(), Roles: roles}, nil
}

func (c SupervisorController) LaunchTarget(ctx stdcontext.Context) error {
	return c.Supervisor.LaunchTarget(ctx)
}

func (c SupervisorController) ToggleCoreVisibility(ctx stdcontext.Context) error {
	return c.Supervisor.ToggleCoreVisibility(ctx)
}
