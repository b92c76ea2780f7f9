package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/warden/internal/engine"
)

func newTestUI(t *testing.T) *UI {
	t.Helper()
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	news := tview.NewTextView().SetDynamicColors(true)
	logs := tview.NewTextView().SetDynamicColors(true)
	footer := tview.NewTextView().SetDynamicColors(true)
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 3, true).
		AddItem(logs, 0, 2, false)
	pages := tview.NewPages().AddPage("main", flex, true, true)

	ui := newUI(app, pages, table, news, logs, footer)

	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	return ui
}

type fakeActions struct {
	mu        sync.Mutex
	launches  int
	selects   int
	toggles   int
	launchErr error
	toggleErr error
	statuses  []engine.Status
	called    chan string
}

func newFakeActions() *fakeActions {
	return &fakeActions{called: make(chan string, 8)}
}

func (f *fakeActions) LaunchTarget(context.Context) error {
	f.mu.Lock()
	f.launches++
	err := f.launchErr
	f.mu.Unlock()
	f.called <- "launch"
	return err
}

func (f *fakeActions) SelectTargetPath(context.Context) error {
	f.mu.Lock()
	f.selects++
	f.mu.Unlock()
	f.called <- "select"
	return nil
}

func (f *fakeActions) ToggleCoreVisibility(context.Context) error {
	f.mu.Lock()
	f.toggles++
	err := f.toggleErr
	f.mu.Unlock()
	f.called <- "toggle"
	return err
}

func (f *fakeActions) Snapshot(context.Context) ([]engine.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Status(nil), f.statuses...), nil
}

func waitCalled(t *testing.T, f *fakeActions, want string) {
	t.Helper()
	select {
	case got := <-f.called:
		if got != want {
			t.Fatalf("expected %s action, got %s", want, got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %s action", want)
	}
}

func TestHandleKeyRespectsOverlayFocus(t *testing.T) {
	ui := newTestUI(t)
	ui.app.SetFocus(ui.table)

	slash := tcell.NewEventKey(tcell.KeyRune, '/', tcell.ModNone)
	if res := ui.handleKey(slash); res != nil {
		t.Fatalf("expected filter shortcut to be consumed when table focused")
	}

	if _, ok := ui.app.GetFocus().(*tview.InputField); !ok {
		t.Fatalf("expected filter input to have focus, got %T", ui.app.GetFocus())
	}

	enter := tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone)
	if res := ui.handleKey(enter); res != enter {
		t.Fatalf("expected Enter to bypass global handler when overlay focused")
	}

	runeEvent := tcell.NewEventKey(tcell.KeyRune, 'g', tcell.ModNone)
	if res := ui.handleKey(runeEvent); res != runeEvent {
		t.Fatalf("expected rune to bypass global handler when overlay focused")
	}

	ui.pages.RemovePage(filterPageName)
	ui.app.SetFocus(ui.table)

	other := tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	if res := ui.handleKey(other); res != other {
		t.Fatalf("expected unbound rune to pass through when table focused")
	}
	if ui.logsFocused {
		t.Fatalf("expected logsFocused to match table focus")
	}
}

func TestHandleKeyAllowsLogShortcuts(t *testing.T) {
	ui := newTestUI(t)
	ui.app.SetFocus(ui.table)

	ui.toggleFocus()
	if ui.app.GetFocus() != ui.logs {
		t.Fatalf("expected logs to have focus after toggle")
	}

	slash := tcell.NewEventKey(tcell.KeyRune, '/', tcell.ModNone)
	if res := ui.handleKey(slash); res != nil {
		t.Fatalf("expected filter shortcut to be consumed when logs focused")
	}
}

func TestHandleKeyDispatchesActions(t *testing.T) {
	ui := newTestUI(t)
	ui.app.SetFocus(ui.table)
	actions := newFakeActions()
	ui.SetActions(actions)

	keys := []struct {
		r    rune
		want string
	}{
		{'g', "launch"},
		{'l', "select"},
		{'v', "toggle"},
	}
	for _, k := range keys {
		if res := ui.handleKey(tcell.NewEventKey(tcell.KeyRune, k.r, tcell.ModNone)); res != nil {
			t.Fatalf("expected %q to be consumed", k.r)
		}
		waitCalled(t, actions, k.want)
	}
}

func TestBusyActionIsReportedInLogPane(t *testing.T) {
	ui := newTestUI(t)
	ui.app.SetFocus(ui.table)
	actions := newFakeActions()
	actions.toggleErr = engine.ErrNoWindows
	ui.SetActions(actions)

	ui.handleKey(tcell.NewEventKey(tcell.KeyRune, 'v', tcell.ModNone))
	waitCalled(t, actions, "toggle")

	deadline := time.Now().Add(time.Second)
	for {
		ui.mu.RLock()
		logs := len(ui.roles[engine.RoleCoreProgram].logs)
		ui.mu.RUnlock()
		if logs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected the no-window notice in the core log pane")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestActionFailureSeverity(t *testing.T) {
	busy := actionFailure(engine.RoleTargetApp, "start game", engine.ErrRoleBusy)
	if busy.Blocking || busy.Severity != engine.SeverityInfo {
		t.Fatalf("busy roles should produce a passive notice, got %+v", busy)
	}
	other := actionFailure(engine.RoleTargetApp, "start game", errors.New("boom"))
	if !other.Blocking || other.Severity != engine.SeverityError || other.Role != engine.RoleTargetApp {
		t.Fatalf("unexpected failures should block, got %+v", other)
	}
}
