package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/warden/internal/cliutil"
	"github.com/Paintersrp/warden/internal/engine"
	"github.com/Paintersrp/warden/internal/fetchdata"
)

const (
	tableTitle          = "Roles"
	logsTitle           = "Logs"
	newsTitle           = "News"
	filterPageName      = "filter"
	defaultLogRetention = 500
	actionTimeout       = 5 * time.Second
)

// Actions are the supervisor operations bound to keys.
type Actions interface {
	LaunchTarget(ctx context.Context) error
	SelectTargetPath(ctx context.Context) error
	ToggleCoreVisibility(ctx context.Context) error
	Snapshot(ctx context.Context) ([]engine.Status, error)
}

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of log entries retained for each role.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// WithActions binds the supervisor operations. It may also be set later with
// SetActions, since the supervisor usually needs the UI as its prompter.
func WithActions(a Actions) Option {
	return func(u *UI) {
		u.actions = a
	}
}

// UI is the interactive launcher console backed by tview. It also serves as
// the supervisor's Prompter and Notifier.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	table  *tview.Table
	news   *tview.TextView
	logs   *tview.TextView
	footer *tview.TextView
	events chan engine.Event
	tasks  chan func()

	roles    map[engine.Role]*roleState
	manifest fetchdata.Manifest

	selected    engine.Role
	logsPretty  bool
	filter      string
	filterExpr  *regexp.Regexp
	logsFocused bool
	maxLogs     int

	dialogs *dialogSet

	mu sync.RWMutex

	actionsMu sync.RWMutex
	actions   Actions

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type roleState struct {
	role       engine.Role
	firstSeen  time.Time
	lastEvent  time.Time
	state      engine.State
	mode       string
	path       string
	visibility string
	windows    int
	running    bool
	message    string

	logs []cliutil.EventRecord
}

// New constructs a UI configured with the supplied options.
func New(opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	news := tview.NewTextView().SetDynamicColors(true).SetWrap(true)
	news.SetBorder(true).SetTitle(newsTitle)

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)
	logs.SetChangedFunc(func() {
		app.Draw()
	})

	footer := tview.NewTextView().SetDynamicColors(true)

	top := tview.NewFlex().
		AddItem(table, 0, 3, true).
		AddItem(news, 0, 2, false)
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 2, true).
		AddItem(logs, 0, 3, false).
		AddItem(footer, 1, 0, false)

	pages := tview.NewPages().AddPage("main", flex, true, true)

	ui := newUI(app, pages, table, news, logs, footer)
	for _, opt := range opts {
		opt(ui)
	}

	table.SetSelectionChangedFunc(func(row, column int) {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		ui.syncSelection(row)
		ui.renderLogsLocked()
	})

	logs.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			ui.toggleFocus()
			return nil
		}
		return event
	})

	app.SetRoot(pages, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshLocked()
	ui.mu.Unlock()

	return ui
}

func newUI(app *tview.Application, pages *tview.Pages, table *tview.Table, news, logs, footer *tview.TextView) *UI {
	ui := &UI{
		app:        app,
		pages:      pages,
		table:      table,
		news:       news,
		logs:       logs,
		footer:     footer,
		events:     make(chan engine.Event, 256),
		tasks:      make(chan func(), 32),
		roles:      make(map[engine.Role]*roleState),
		manifest:   fetchdata.Defaults(),
		logsPretty: true,
		maxLogs:    defaultLogRetention,
		dialogs:    newDialogSet(),
		done:       make(chan struct{}),
	}
	now := time.Now()
	for _, role := range engine.Roles() {
		ui.roles[role] = &roleState{role: role, firstSeen: now, state: engine.StateNotConfigured}
	}
	ui.selected = engine.RoleCoreProgram
	return ui
}

// SetActions binds the supervisor operations after construction.
func (u *UI) SetActions(a Actions) {
	u.actionsMu.Lock()
	u.actions = a
	u.actionsMu.Unlock()
}

func (u *UI) currentActions() Actions {
	u.actionsMu.RLock()
	defer u.actionsMu.RUnlock()
	return u.actions
}

// EventSink exposes the channel where supervisor and log events should be
// delivered.
func (u *UI) EventSink() chan<- engine.Event {
	return u.events
}

// CloseEvents releases the event channel, allowing internal goroutines to exit cleanly.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and processes incoming events until Stop is invoked
// or the provided context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop and releases resources. Dialogs still
// open are answered negatively.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.dialogs.cancelAll()
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	draining := false
	ctxDone := ctx.Done()

	for {
		var tick <-chan time.Time
		var tasks <-chan func()
		if !draining {
			tick = ticker.C
			tasks = u.tasks
		}

		select {
		case <-ctxDone:
			if !draining {
				draining = true
				ticker.Stop()
			}
			ctxDone = nil
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			if draining {
				continue
			}
			u.applyEvent(evt)
		case task := <-tasks:
			u.app.QueueUpdateDraw(task)
		case <-tick:
			u.refreshSnapshot(ctx)
		}
	}
}

// schedule queues fn for the UI goroutine. It reports false when the queue is
// full or the UI has stopped.
func (u *UI) schedule(fn func()) bool {
	select {
	case <-u.done:
		return false
	default:
	}
	select {
	case u.tasks <- fn:
		return true
	default:
		return false
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	focus := u.app.GetFocus()
	if focus != u.table && focus != u.logs {
		return event
	}
	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case '/':
			u.showFilterPrompt()
			return nil
		case 'j', 'J':
			u.toggleJSON()
			return nil
		case 'g', 'G':
			u.runAction(engine.RoleTargetApp, "start game", func(ctx context.Context, a Actions) error { return a.LaunchTarget(ctx) })
			return nil
		case 'l', 'L':
			u.runAction(engine.RoleTargetApp, "locate game", func(ctx context.Context, a Actions) error { return a.SelectTargetPath(ctx) })
			return nil
		case 'v', 'V':
			u.runAction(engine.RoleCoreProgram, "show/hide core", func(ctx context.Context, a Actions) error { return a.ToggleCoreVisibility(ctx) })
			return nil
		}
	}
	return event
}

// runAction invokes a supervisor operation off the UI goroutine, since the
// supervisor may need the UI to answer a prompt before returning.
func (u *UI) runAction(role engine.Role, label string, fn func(context.Context, Actions) error) {
	actions := u.currentActions()
	if actions == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		if err := fn(ctx, actions); err != nil {
			u.Notify(actionFailure(role, label, err))
		}
	}()
}

func actionFailure(role engine.Role, label string, err error) engine.Notification {
	n := engine.Notification{
		Role:     role,
		Severity: engine.SeverityError,
		Title:    label,
		Message:  err.Error(),
		Blocking: true,
	}
	switch {
	case errors.Is(err, engine.ErrRoleBusy):
		n.Severity = engine.SeverityInfo
		n.Message = "Please wait, a launch is already in progress."
		n.Blocking = false
	case errors.Is(err, engine.ErrNoWindows):
		n.Severity = engine.SeverityInfo
		n.Message = "The core program window is not available yet."
		n.Blocking = false
	case errors.Is(err, engine.ErrShuttingDown):
		n.Severity = engine.SeverityInfo
		n.Blocking = false
	}
	return n
}

func (u *UI) toggleFocus() {
	if u.logsFocused {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
	u.logsFocused = !u.logsFocused
}

func (u *UI) toggleJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logsPretty = !u.logsPretty
	u.renderLogsLocked()
}

func (u *UI) showFilterPrompt() {
	u.mu.RLock()
	current := u.filter
	u.mu.RUnlock()

	input := tview.NewInputField().
		SetLabel("Log filter: ").
		SetText(current).
		SetFieldWidth(40)

	form := tview.NewForm().
		AddFormItem(input).
		AddButton("Apply", func() {
			u.applyFilter(input.GetText())
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		}).
		AddButton("Cancel", func() {
			u.pages.RemovePage(filterPageName)
			u.app.SetFocus(u.table)
		})

	form.SetBorder(true).SetTitle("Filter Logs")

	u.pages.AddPage(filterPageName, centered(form, 60, 7), true, true)
	u.app.SetFocus(input)
}

func (u *UI) applyFilter(expr string) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		u.mu.Lock()
		u.filter = ""
		u.filterExpr = nil
		u.renderLogsLocked()
		u.mu.Unlock()
		return
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		u.showMessage(engine.Notification{Severity: engine.SeverityError, Title: "filter", Message: fmt.Sprintf("Invalid filter: %v", err)}, nil)
		return
	}

	u.mu.Lock()
	u.filter = expr
	u.filterExpr = re
	u.renderLogsLocked()
	u.mu.Unlock()
}

func (u *UI) applyEvent(evt engine.Event) {
	if evt.Type == engine.EventTypeDataReady && evt.Path != "" {
		manifest, err := fetchdata.Load(evt.Path)
		if err != nil {
			evt.Err = err
		}
		u.mu.Lock()
		u.manifest = manifest
		u.mu.Unlock()
	}

	u.mu.Lock()
	updateLogs := u.applyEventLocked(evt)
	u.mu.Unlock()

	u.queueRefresh(updateLogs)
}

// applyEventLocked folds evt into the role table and reports whether the log
// pane needs a redraw.
func (u *UI) applyEventLocked(evt engine.Event) bool {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	state := u.roles[evt.Role]
	if state == nil {
		state = &roleState{role: evt.Role, firstSeen: evt.Timestamp}
		u.roles[evt.Role] = state
	}
	state.lastEvent = evt.Timestamp

	if evt.Type == engine.EventTypeLog {
		state.logs = append(state.logs, cliutil.NewEventRecord(evt))
		if len(state.logs) > u.maxLogs {
			trim := len(state.logs) - u.maxLogs
			state.logs = append([]cliutil.EventRecord(nil), state.logs[trim:]...)
		}
		return evt.Role == u.selected
	}

	if evt.State != "" {
		if evt.State != state.state && evt.State == engine.StateResolving {
			state.firstSeen = evt.Timestamp
		}
		state.state = evt.State
	}
	if evt.Path != "" && evt.Type != engine.EventTypeDataReady && evt.Type != engine.EventTypeError {
		state.path = evt.Path
	}
	switch evt.Type {
	case engine.EventTypeVisible:
		state.visibility = evt.Message
	case engine.EventTypeStopped:
		state.visibility = ""
		state.windows = 0
		state.running = false
	}
	state.message = formatEventMessage(evt)
	return false
}

// formatEventMessage renders the message, error and reason of an event on one line.
func formatEventMessage(evt engine.Event) string {
	msg := evt.Message
	if evt.Err != nil {
		if msg != "" {
			msg = msg + ": " + evt.Err.Error()
		} else {
			msg = evt.Err.Error()
		}
	}
	if evt.Reason != "" {
		if msg != "" {
			msg = fmt.Sprintf("%s (%s)", msg, evt.Reason)
		} else {
			msg = string(evt.Reason)
		}
	}
	if evt.Code != nil {
		msg = fmt.Sprintf("%s [code %d]", msg, *evt.Code)
	}
	return msg
}

// refreshSnapshot pulls window and visibility details that events do not carry.
func (u *UI) refreshSnapshot(ctx context.Context) {
	if actions := u.currentActions(); actions != nil {
		snapCtx, cancel := context.WithTimeout(ctx, time.Second)
		statuses, err := actions.Snapshot(snapCtx)
		cancel()
		if err == nil {
			u.mu.Lock()
			u.applySnapshotLocked(statuses)
			u.mu.Unlock()
		}
	}
	u.queueRefresh(false)
}

func (u *UI) applySnapshotLocked(statuses []engine.Status) {
	for _, st := range statuses {
		state := u.roles[st.Role]
		if state == nil {
			continue
		}
		state.state = st.State
		state.mode = string(st.Mode)
		state.visibility = st.Visibility
		state.windows = len(st.Windows)
		state.running = st.Running
		if st.Path != "" {
			state.path = st.Path
		}
	}
}

func (u *UI) queueRefresh(updateLogs bool) {
	u.app.QueueUpdateDraw(func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.refreshLocked()
		if updateLogs {
			u.renderLogsLocked()
		}
	})
}

func (u *UI) refreshLocked() {
	u.refreshTableLocked()
	u.renderNewsLocked()
	u.renderFooterLocked()
}

func (u *UI) refreshTableLocked() {
	u.table.Clear()

	headers := []string{"ROLE", "STATE", "MODE", "WINDOWS", "VISIBILITY", "AGE", "PATH", "MESSAGE"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold)
		u.table.SetCell(0, col, cell)
	}

	for row, role := range engine.Roles() {
		state := u.roles[role]
		age := "-"
		if state.state.Busy() || state.state == engine.StateReady {
			age = time.Since(state.firstSeen).Truncate(time.Second).String()
		}
		windows := "-"
		if state.windows > 0 {
			windows = fmt.Sprintf("%d", state.windows)
		}
		visibility := state.visibility
		if visibility == "" || visibility == "unknown" {
			visibility = "-"
		}
		mode := state.mode
		if mode == "" {
			mode = "-"
		}
		path := state.path
		if path == "" {
			path = "-"
		}
		message := state.message
		if len(message) > 80 {
			message = message[:77] + "..."
		}

		values := []string{
			string(role),
			formatState(state.state),
			mode,
			windows,
			visibility,
			age,
			path,
			message,
		}
		for col, value := range values {
			cell := tview.NewTableCell(value)
			if col == 0 {
				cell = cell.SetReference(role)
			}
			if col == 1 {
				cell = cell.SetTextColor(stateColor(state.state))
			}
			u.table.SetCell(row+1, col, cell)
		}
	}
}

func (u *UI) renderNewsLocked() {
	u.news.Clear()
	fmt.Fprintf(u.news, "[::b]%s[::-]\n\n", tview.Escape(u.manifest.Season))
	if len(u.manifest.News) == 0 {
		fmt.Fprintln(u.news, "No news yet.")
		return
	}
	for _, item := range u.manifest.News {
		fmt.Fprintf(u.news, "%s\n", tview.Escape(item.Title))
		if item.Time != "" {
			fmt.Fprintf(u.news, "  [gray]%s[-]\n", tview.Escape(item.Time))
		}
		if item.Link != "" {
			fmt.Fprintf(u.news, "  [blue]%s[-]\n", tview.Escape(item.Link))
		}
	}
}

func (u *UI) renderFooterLocked() {
	game := "start game"
	if target := u.roles[engine.RoleTargetApp]; target == nil || target.path == "" {
		game = "locate game"
	}
	u.footer.SetText(fmt.Sprintf(" [yellow]g[-] %s  [yellow]l[-] locate game  [yellow]v[-] show/hide core  [yellow]/[-] filter  [yellow]j[-] json  [yellow]q[-] quit", game))
}

func (u *UI) renderLogsLocked() {
	u.logs.Clear()
	state := u.roles[u.selected]
	if state == nil {
		u.logs.SetTitle(logsTitle)
		return
	}

	title := fmt.Sprintf("%s (%s)", logsTitle, state.role)
	if u.filter != "" {
		title = fmt.Sprintf("%s /%s/", title, u.filter)
	}
	u.logs.SetTitle(title)

	for _, record := range state.logs {
		if u.filterExpr != nil && !u.filterExpr.MatchString(record.Message) {
			continue
		}
		var data []byte
		var err error
		if u.logsPretty {
			data, err = json.MarshalIndent(record, "", "  ")
		} else {
			data, err = json.Marshal(record)
		}
		if err != nil {
			fmt.Fprintf(u.logs, "{\"error\":\"%v\"}\n", err)
			continue
		}
		fmt.Fprintf(u.logs, "%s\n", tview.Escape(string(data)))
	}
	u.logs.ScrollToEnd()
}

func (u *UI) syncSelection(row int) {
	roles := engine.Roles()
	if row <= 0 || row-1 >= len(roles) {
		return
	}
	u.selected = roles[row-1]
}

func formatState(s engine.State) string {
	if s == "" {
		return "-"
	}
	words := strings.Split(string(s), "_")
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}

func stateColor(s engine.State) tcell.Color {
	switch s {
	case engine.StateReady:
		return tcell.ColorGreen
	case engine.StateFailed:
		return tcell.ColorRed
	case engine.StateResolving, engine.StateLaunching, engine.StateAwaitingWindow, engine.StateTerminating:
		return tcell.ColorYellow
	default:
		return tcell.ColorWhite
	}
}

func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewGrid().
		SetColumns(0, width, 0).
		SetRows(0, height, 0).
		AddItem(p, 1, 1, 1, 1, 0, 0, true)
}
