package engine

import (
	"github.com/Paintersrp/warden/internal/settings"
)

// PromptRequest asks the user to pick an executable for a role.
type PromptRequest struct {
	Role    Role
	Title   string
	Pattern string
	Dir     string
}

// Prompter is the interactive surface of the UI. Replies may be delivered
// from any goroutine; the supervisor moves them onto its loop.
type Prompter interface {
	PromptForFile(req PromptRequest, reply func(path string, ok bool))
	Confirm(question string, reply func(yes bool))
}

// Severity grades a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a user-facing message. Blocking notifications must be
// acknowledged by the user.
type Notification struct {
	Role     Role
	Severity Severity
	Title    string
	Message  string
	Path     string
	Code     *int
	Blocking bool
}

// Notifier displays notifications. Notify must not block.
type Notifier interface {
	Notify(Notification)
}

// SettingsStore persists the executable paths chosen for each role.
type SettingsStore interface {
	LoadPath(key settings.Key) (string, bool)
	SavePath(key settings.Key, path string) error
}

// LogSink receives the output stream of each direct child. The sink must
// drain every channel it is handed until it is closed.
type LogSink interface {
	Add(<-chan Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

func settingsKey(role Role) (settings.Key, bool) {
	switch role {
	case RoleCoreProgram:
		return settings.KeyCoreProgramPath, true
	case RoleTargetApp:
		return settings.KeyGamePath, true
	default:
		return "", false
	}
}
