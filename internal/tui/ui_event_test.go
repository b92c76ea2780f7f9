package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/engine"
	"github.com/Paintersrp/warden/internal/fetchdata"
	"github.com/Paintersrp/warden/internal/runtime"
)

func TestApplyEventTracksRoleLifecycle(t *testing.T) {
	ui := newTestUI(t)

	base := time.Now()
	ui.applyEventLocked(engine.Event{Role: engine.RoleTargetApp, Type: engine.EventTypeResolved, Path: `D:\dwrg2\dwrg.exe`, Message: "target executable found", Timestamp: base})
	state := ui.roles[engine.RoleTargetApp]
	if state.path != `D:\dwrg2\dwrg.exe` {
		t.Fatalf("expected discovered path to be recorded, got %q", state.path)
	}
	if state.state != engine.StateNotConfigured {
		t.Fatalf("resolution without state must not change the role state, got %s", state.state)
	}

	ui.applyEventLocked(engine.Event{Role: engine.RoleTargetApp, Type: engine.EventTypeResolving, State: engine.StateResolving, Timestamp: base.Add(time.Millisecond)})
	ui.applyEventLocked(engine.Event{Role: engine.RoleTargetApp, Type: engine.EventTypeReady, State: engine.StateReady, Message: "window detected", Timestamp: base.Add(2 * time.Millisecond)})
	ui.applyEventLocked(engine.Event{Role: engine.RoleTargetApp, Type: engine.EventTypeVisible, State: engine.StateReady, Message: "shown"})
	if state.state != engine.StateReady || state.visibility != "shown" {
		t.Fatalf("unexpected state after ready: %+v", state)
	}
	if !state.firstSeen.Equal(base.Add(time.Millisecond)) {
		t.Fatalf("expected age to restart at resolving, got %v", state.firstSeen)
	}

	ui.applyEventLocked(engine.Event{Role: engine.RoleTargetApp, Type: engine.EventTypeStopped, State: engine.StateStopped, Message: "stopped"})
	if state.visibility != "" || state.running {
		t.Fatalf("stopped roles must drop visibility, got %+v", state)
	}
}

func TestApplyEventKeepsBoundedLogs(t *testing.T) {
	ui := newTestUI(t)
	ui.maxLogs = 3
	ui.selected = engine.RoleDataFetcher

	var redraw bool
	for i := 0; i < 5; i++ {
		redraw = ui.applyEventLocked(engine.Event{
			Role:    engine.RoleDataFetcher,
			Type:    engine.EventTypeLog,
			Source:  runtime.LogSourceStdout,
			Message: strings.Repeat("x", i+1),
		})
	}
	if !redraw {
		t.Fatalf("logs for the selected role should request a redraw")
	}
	logs := ui.roles[engine.RoleDataFetcher].logs
	if len(logs) != 3 || logs[0].Message != "xxx" {
		t.Fatalf("expected the newest three records, got %+v", logs)
	}
	if ui.applyEventLocked(engine.Event{Role: engine.RoleTargetApp, Type: engine.EventTypeLog, Message: "boot"}) {
		t.Fatalf("logs for other roles should not redraw the pane")
	}
}

func TestRenderLogsAppliesFilter(t *testing.T) {
	ui := newTestUI(t)
	ui.selected = engine.RoleDataFetcher
	ui.logsPretty = false
	for _, msg := range []string{"fetching news", "saved bg_img.jpg", "fetching season"} {
		ui.applyEventLocked(engine.Event{Role: engine.RoleDataFetcher, Type: engine.EventTypeLog, Message: msg})
	}

	ui.applyFilter("^fetching")
	text := ui.logs.GetText(true)
	if strings.Contains(text, "bg_img") {
		t.Fatalf("filter should hide non-matching lines, got:\n%s", text)
	}
	if strings.Count(text, "fetching") != 2 {
		t.Fatalf("expected two matching lines, got:\n%s", text)
	}

	ui.applyFilter("")
	if !strings.Contains(ui.logs.GetText(true), "bg_img") {
		t.Fatalf("clearing the filter should show every line")
	}
}

func TestApplySnapshotFillsWindowDetails(t *testing.T) {
	ui := newTestUI(t)
	ui.applySnapshotLocked([]engine.Status{
		{
			Role:       engine.RoleCoreProgram,
			State:      engine.StateReady,
			Mode:       runtime.LaunchElevated,
			Visibility: "hidden",
			Windows:    []desktop.Match{{Executable: "idv-login-v5.exe", PID: 42}},
			Running:    true,
		},
	})
	core := ui.roles[engine.RoleCoreProgram]
	if core.windows != 1 || core.visibility != "hidden" || !core.running || core.mode != string(runtime.LaunchElevated) {
		t.Fatalf("unexpected core state %+v", core)
	}

	ui.refreshTableLocked()
	if got := ui.table.GetCell(2, 4).Text; got != "hidden" {
		t.Fatalf("expected visibility column for core, got %q", got)
	}
	if got := ui.table.GetCell(2, 1).Text; got != "Ready" {
		t.Fatalf("expected state column for core, got %q", got)
	}
}

func TestDataReadyLoadsNews(t *testing.T) {
	ui := newTestUI(t)
	dir := t.TempDir()
	doc := map[string]any{
		"season": "Season 38",
		"news_list": []map[string]string{
			{"title": "Patch notes", "link_url": "https://example.invalid/patch", "time": "2026-10-01"},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, fetchdata.DataFile), raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	manifest, err := fetchdata.Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ui.manifest = manifest
	ui.renderNewsLocked()

	text := ui.news.GetText(true)
	if !strings.Contains(text, "Season 38") || !strings.Contains(text, "Patch notes") {
		t.Fatalf("expected season and news in pane, got:\n%s", text)
	}
}

func TestFooterOffersLocateUntilTargetKnown(t *testing.T) {
	ui := newTestUI(t)
	ui.renderFooterLocked()
	if !strings.Contains(ui.footer.GetText(true), "g locate game") {
		t.Fatalf("expected locate label, got %q", ui.footer.GetText(true))
	}
	ui.applyEventLocked(engine.Event{Role: engine.RoleTargetApp, Type: engine.EventTypeResolved, Path: "/games/dwrg.exe"})
	ui.renderFooterLocked()
	if !strings.Contains(ui.footer.GetText(true), "g start game") {
		t.Fatalf("expected start label, got %q", ui.footer.GetText(true))
	}
}
