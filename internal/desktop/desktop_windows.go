//go:build windows

package desktop

import (
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

const wmClose = 0x0010

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procPostMessage = user32.NewProc("PostMessageW")

	enumWindowsProc = windows.NewCallback(collectWindow)
)

// enumeration holds the state of one EnumWindows pass.
type enumeration struct {
	owners []windowOwner
}

func collectWindow(hwnd windows.HWND, param uintptr) uintptr {
	state := (*enumeration)(unsafe.Pointer(param))
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err == nil {
		state.owners = append(state.owners, windowOwner{window: Window(hwnd), pid: pid})
	}
	return 1
}

// New returns the Win32 window directory.
func New() Directory {
	return win32{}
}

type win32 struct{}

func (d win32) FindByExecutablePrefix(prefix string) []Match {
	return findByPrefix(d, prefix)
}

func (win32) topLevelWindows() ([]windowOwner, error) {
	state := &enumeration{}
	err := windows.EnumWindows(enumWindowsProc, unsafe.Pointer(state))
	runtime.KeepAlive(state)
	if err != nil {
		return nil, fmt.Errorf("enumerate windows: %w", err)
	}
	return state.owners, nil
}

func (win32) imagePath(pid uint32) (string, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", err
	}
	defer windows.CloseHandle(h)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf[:size]), nil
}

func (win32) SetVisibility(w Window, visible bool) {
	cmd := int32(windows.SW_HIDE)
	if visible {
		cmd = windows.SW_SHOW
	}
	windows.ShowWindow(windows.HWND(w), cmd)
}

func (win32) RequestClose(w Window) {
	_, _, _ = procPostMessage.Call(uintptr(w), wmClose, 0, 0)
}

func (win32) Exists(w Window) bool {
	return windows.IsWindow(windows.HWND(w))
}

func (win32) OwnerPID(w Window) (uint32, bool) {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(windows.HWND(w), &pid); err != nil || pid == 0 {
		return 0, false
	}
	return pid, true
}
