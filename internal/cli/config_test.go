package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigLintSuccess(t *testing.T) {
	manifest := configManifest(
		"core:",
		"  pattern: idv-login*.exe",
		"  window:",
		"    prefix: idv-login",
		"    interval: 250ms",
		"target:",
		"  defaultPath: D:/dwrg2/dwrg.exe",
	)
	stdout, stderr, path, err := runConfigCommand(t, manifest, "lint")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	want := fmt.Sprintf("%s: OK\n", path)
	if stdout != want {
		t.Fatalf("unexpected stdout: got %q want %q", stdout, want)
	}
	if stderr != "" {
		t.Fatalf("unexpected stderr output: %q", stderr)
	}
}

func TestConfigLintUnknownField(t *testing.T) {
	manifest := configManifest(
		"core:",
		"  windowPrefix: idv-login",
	)
	stdout, stderr, _, err := runConfigCommand(t, manifest, "lint")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if stdout != "" {
		t.Fatalf("expected empty stdout, got %q", stdout)
	}
	if !strings.Contains(stderr, "windowPrefix") {
		t.Fatalf("stderr does not mention the unknown field: %q", stderr)
	}
}

func TestConfigLintValidationFailure(t *testing.T) {
	manifest := configManifest(
		"target:",
		"  window:",
		"    maxAttempts: 0",
		"shutdown:",
		"  timeout: 0s",
	)
	_, stderr, _, err := runConfigCommand(t, manifest, "lint")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	for _, field := range []string{"target.window.maxAttempts", "shutdown.timeout"} {
		if !strings.Contains(stderr, field) {
			t.Fatalf("stderr does not mention %s: %q", field, stderr)
		}
	}
}

func TestConfigShowPrintsEffectiveValues(t *testing.T) {
	t.Setenv("WARDEN_METRICS_ADDR", "127.0.0.1:9911")
	manifest := configManifest(
		"target:",
		"  window:",
		"    interval: 750ms",
	)
	stdout, _, _, err := runConfigCommand(t, manifest, "show")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	for _, want := range []string{"interval: 750ms", "127.0.0.1:9911", "prefix: idv-login"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func configManifest(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func runConfigCommand(t *testing.T, manifest string, sub string) (string, string, string, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "warden.yaml")
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"config", sub, "--config", path})

	err := cmd.Execute()
	return stdout.String(), stderr.String(), path, err
}
