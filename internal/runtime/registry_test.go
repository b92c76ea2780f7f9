package runtime_test

import (
	"errors"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/Paintersrp/warden/internal/runtime"
)

type stubHandle struct{ mode runtime.LaunchMode }

func (s stubHandle) Start() runtime.LaunchResult          { return runtime.Accepted() }
func (s stubHandle) IsRunning() bool                      { return false }
func (s stubHandle) Terminate(time.Duration, func(error)) {}
func (s stubHandle) Mode() runtime.LaunchMode             { return s.mode }

func TestRegistryBuildsHandleForMode(t *testing.T) {
	reg := runtime.Registry{
		runtime.LaunchDirect: func(spec runtime.Spec) (runtime.Handle, error) {
			return stubHandle{mode: runtime.LaunchDirect}, nil
		},
	}

	h, err := reg.New(runtime.LaunchDirect, runtime.Spec{Name: "fetcher"})
	if err != nil {
		t.Fatalf("new handle: %v", err)
	}
	if h.Mode() != runtime.LaunchDirect {
		t.Fatalf("expected direct handle, got %s", h.Mode())
	}

	if _, err := reg.New(runtime.LaunchElevated, runtime.Spec{Name: "core"}); err == nil {
		t.Fatalf("expected error for unregistered mode")
	}
}

func TestRegistryWrapsFactoryErrors(t *testing.T) {
	boom := errors.New("boom")
	reg := runtime.Registry{
		runtime.LaunchElevated: func(runtime.Spec) (runtime.Handle, error) { return nil, boom },
	}
	_, err := reg.New(runtime.LaunchElevated, runtime.Spec{Name: "core"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped factory error, got %v", err)
	}
	if !strings.Contains(err.Error(), "core") {
		t.Fatalf("expected spec name in error, got %v", err)
	}
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	reg := runtime.Registry{runtime.LaunchDirect: nil}
	dup := reg.Clone()
	delete(dup, runtime.LaunchDirect)
	if _, ok := reg[runtime.LaunchDirect]; !ok {
		t.Fatalf("clone mutation leaked into original registry")
	}
}

func TestRejectedPreservesErrno(t *testing.T) {
	res := runtime.Rejected(errors.Join(errors.New("shell execute"), syscall.Errno(1223)))
	if res.Succeeded {
		t.Fatalf("expected failure")
	}
	if res.Code == nil || *res.Code != 1223 {
		t.Fatalf("expected code 1223, got %v", res.Code)
	}

	res = runtime.Rejected(errors.New("plain"))
	if res.Code != nil {
		t.Fatalf("expected no code for plain error, got %d", *res.Code)
	}
}
