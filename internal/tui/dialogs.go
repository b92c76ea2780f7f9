package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/warden/internal/engine"
	"github.com/Paintersrp/warden/internal/runtime"
)

const maxCompletions = 10

// dialogSet tracks open dialogs so each is answered exactly once, either by
// the user or by cancelAll when the UI stops.
type dialogSet struct {
	mu   sync.Mutex
	next int
	open map[string]func()
}

func newDialogSet() *dialogSet {
	return &dialogSet{open: make(map[string]func())}
}

func (d *dialogSet) add(cancel func()) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	name := fmt.Sprintf("dialog-%d", d.next)
	d.open[name] = cancel
	return name
}

func (d *dialogSet) resolve(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.open[name]; !ok {
		return false
	}
	delete(d.open, name)
	return true
}

func (d *dialogSet) cancelAll() {
	d.mu.Lock()
	pending := d.open
	d.open = make(map[string]func())
	d.mu.Unlock()
	for _, cancel := range pending {
		cancel()
	}
}

// PromptForFile asks the user for an executable path. The reply is delivered
// once, with ok=false when the user cancels or the UI goes away.
func (u *UI) PromptForFile(req engine.PromptRequest, reply func(path string, ok bool)) {
	var once sync.Once
	answer := func(path string, ok bool) {
		once.Do(func() { reply(path, ok) })
	}
	name := u.dialogs.add(func() { answer("", false) })
	if !u.schedule(func() { u.showFilePrompt(name, req, answer) }) {
		u.dialogs.resolve(name)
		answer("", false)
	}
}

// Confirm asks a yes/no question. Unanswered questions resolve to no.
func (u *UI) Confirm(question string, reply func(yes bool)) {
	var once sync.Once
	answer := func(yes bool) {
		once.Do(func() { reply(yes) })
	}
	name := u.dialogs.add(func() { answer(false) })
	if !u.schedule(func() { u.showConfirm(name, question, answer) }) {
		u.dialogs.resolve(name)
		answer(false)
	}
}

// Notify shows blocking notifications in a modal and records the rest in the
// role's log pane. It never blocks the caller.
func (u *UI) Notify(n engine.Notification) {
	if n.Blocking {
		u.schedule(func() { u.showMessage(n, nil) })
		return
	}
	evt := engine.Event{
		Role:    n.Role,
		Type:    engine.EventTypeLog,
		Level:   severityLevel(n.Severity),
		Source:  runtime.LogSourceSystem,
		Message: notificationText(n),
	}
	u.mu.Lock()
	if evt.Role == "" {
		evt.Role = u.selected
	}
	updateLogs := u.applyEventLocked(evt)
	u.mu.Unlock()
	u.schedule(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshLocked()
		if updateLogs {
			u.renderLogsLocked()
		}
	})
}

func (u *UI) showFilePrompt(name string, req engine.PromptRequest, answer func(string, bool)) {
	start := req.Dir
	if start != "" && !strings.HasSuffix(start, string(filepath.Separator)) {
		start += string(filepath.Separator)
	}

	input := tview.NewInputField().
		SetLabel("Path: ").
		SetText(start).
		SetFieldWidth(60)
	input.SetAutocompleteFunc(func(current string) []string {
		return completePath(current, req.Pattern)
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			u.submitFilePrompt(name, input.GetText(), answer)
		case tcell.KeyEscape:
			u.submitFilePrompt(name, "", answer)
		}
	})

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Select", func() {
			u.submitFilePrompt(name, input.GetText(), answer)
		}).
		AddButton("Cancel", func() {
			u.submitFilePrompt(name, "", answer)
		})

	title := req.Title
	if title == "" {
		title = "Select an executable"
	}
	if req.Pattern != "" {
		title = fmt.Sprintf("%s (%s)", title, req.Pattern)
	}
	form.SetBorder(true).SetTitle(title)

	u.pages.AddPage(name, centered(form, 80, 7), true, true)
	u.app.SetFocus(input)
}

func (u *UI) submitFilePrompt(name, path string, answer func(string, bool)) {
	if !u.finishDialog(name) {
		return
	}
	path = strings.TrimSpace(path)
	answer(path, path != "")
}

func (u *UI) showConfirm(name, question string, answer func(bool)) {
	modal := tview.NewModal().
		SetText(question).
		AddButtons([]string{"Yes", "No"}).
		SetDoneFunc(func(_ int, label string) {
			u.answerConfirm(name, label == "Yes", answer)
		})
	u.pages.AddPage(name, modal, true, true)
	u.app.SetFocus(modal)
}

func (u *UI) answerConfirm(name string, yes bool, answer func(bool)) {
	if !u.finishDialog(name) {
		return
	}
	answer(yes)
}

func (u *UI) showMessage(n engine.Notification, onDone func()) {
	name := u.dialogs.add(func() {})
	modal := tview.NewModal().
		SetText(notificationText(n)).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(int, string) {
			if u.finishDialog(name) && onDone != nil {
				onDone()
			}
		})
	switch n.Severity {
	case engine.SeverityError:
		modal.SetBackgroundColor(tcell.ColorDarkRed)
	case engine.SeverityWarning:
		modal.SetBackgroundColor(tcell.ColorOlive)
	}
	u.pages.AddPage(name, modal, true, true)
	u.app.SetFocus(modal)
}

// finishDialog closes a dialog page. It reports false when the dialog was
// already answered.
func (u *UI) finishDialog(name string) bool {
	if !u.dialogs.resolve(name) {
		return false
	}
	u.pages.RemovePage(name)
	u.app.SetFocus(u.table)
	return true
}

func notificationText(n engine.Notification) string {
	var b strings.Builder
	if n.Title != "" {
		b.WriteString(n.Title)
		b.WriteString(": ")
	}
	b.WriteString(n.Message)
	if n.Path != "" {
		fmt.Fprintf(&b, "\n%s", n.Path)
	}
	if n.Code != nil {
		fmt.Fprintf(&b, "\n(code %d)", *n.Code)
	}
	return b.String()
}

func severityLevel(s engine.Severity) string {
	switch s {
	case engine.SeverityError:
		return "error"
	case engine.SeverityWarning:
		return "warn"
	default:
		return "info"
	}
}

// completePath lists files next to current that match pattern and start with
// what has been typed so far.
func completePath(current, pattern string) []string {
	if current == "" {
		return nil
	}
	dir, prefix := current, ""
	if !strings.HasSuffix(current, string(filepath.Separator)) && !strings.HasSuffix(current, "/") {
		dir, prefix = filepath.Split(current)
	}
	if dir == "" {
		return nil
	}
	if pattern == "" {
		pattern = "*"
	}
	matches, err := doublestar.Glob(os.DirFS(dir), filepath.ToSlash(pattern),
		doublestar.WithFilesOnly(), doublestar.WithCaseInsensitive())
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	lower := strings.ToLower(prefix)
	var out []string
	for _, m := range matches {
		if strings.Contains(m, "/") {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(m), lower) {
			continue
		}
		out = append(out, filepath.Join(dir, m))
		if len(out) == maxCompletions {
			break
		}
	}
	return out
}
