//go:build !windows

package elevate

import (
	"errors"
	"testing"

	"github.com/Paintersrp/warden/internal/desktop"
)

func TestLaunchUnsupportedOffWindows(t *testing.T) {
	res := New().Launch("/usr/bin/true", []string{"-windowed"}, "", desktop.VisibilityShown)
	if res.Succeeded {
		t.Fatalf("expected launch to be rejected")
	}
	if !errors.Is(res.Err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", res.Err)
	}
	if res.Code != nil {
		t.Fatalf("expected no OS code, got %d", *res.Code)
	}
}

func TestKillUnsupportedOffWindows(t *testing.T) {
	if err := New().Kill(1); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
