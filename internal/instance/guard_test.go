package instance

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestSecondGuardIsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), LockName)

	first := New(path)
	ok, err := first.Acquire()
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected first guard to acquire the lock")
	}
	t.Cleanup(func() { _ = first.Release() })

	second := New(path)
	ok, err = second.Acquire()
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected second guard to be refused while the first holds the lock")
	}

	if err := first.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, err = second.Acquire()
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if !ok {
		t.Fatalf("expected lock to be available after release")
	}
	_ = second.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := New(filepath.Join(t.TempDir(), LockName))
	if err := g.Release(); err != nil {
		t.Fatalf("release of unheld guard: %v", err)
	}
	if _, err := g.Acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestAcquireTwiceOnSameGuard(t *testing.T) {
	g := New(filepath.Join(t.TempDir(), LockName))
	t.Cleanup(func() { _ = g.Release() })
	for i := 0; i < 2; i++ {
		ok, err := g.Acquire()
		if err != nil || !ok {
			t.Fatalf("acquire %d: ok=%v err=%v", i, ok, err)
		}
	}
}

func TestDefaultPathUsesTempDir(t *testing.T) {
	if !strings.HasSuffix(DefaultPath(), LockName) {
		t.Fatalf("unexpected default path %q", DefaultPath())
	}
	if New("").Path() != DefaultPath() {
		t.Fatalf("expected empty path to select default")
	}
}
