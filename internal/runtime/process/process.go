package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Paintersrp/warden/internal/runtime"
)

// Factory returns a runtime factory producing direct handles.
func Factory() runtime.Factory {
	return func(spec runtime.Spec) (runtime.Handle, error) {
		if strings.TrimSpace(spec.Path) == "" {
			return nil, errors.New("direct launch requires an executable path")
		}
		return New(spec), nil
	}
}

// Handle supervises a single direct child.
type Handle struct {
	spec runtime.Spec

	mu         sync.Mutex
	cmd        *exec.Cmd
	started    bool
	terminated bool
	exitCode   int
	exitErr    error

	logs     chan runtime.LogEntry
	waitDone chan struct{}
}

// New constructs an unstarted direct handle.
func New(spec runtime.Spec) *Handle {
	return &Handle{
		spec:     spec,
		exitCode: -1,
		logs:     make(chan runtime.LogEntry, 64),
		waitDone: make(chan struct{}),
	}
}

func (p *Handle) Mode() runtime.LaunchMode {
	return runtime.LaunchDirect
}

// Start spawns the child. A handle can only be started once.
func (p *Handle) Start() runtime.LaunchResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return runtime.Rejected(fmt.Errorf("process %s already started", p.spec.Name))
	}

	cmd := exec.Command(p.spec.Path, p.spec.Args...)
	if p.spec.Workdir != "" {
		cmd.Dir = p.spec.Workdir
	}

	env := os.Environ()
	if p.spec.Env != nil {
		envOverrides := make([]string, 0, len(p.spec.Env))
		for k, v := range p.spec.Env {
			envOverrides = append(envOverrides, fmt.Sprintf("%s=%s", k, v))
		}
		env = append(env, envOverrides...)
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return runtime.Rejected(fmt.Errorf("process %s stdout: %w", p.spec.Name, err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return runtime.Rejected(fmt.Errorf("process %s stderr: %w", p.spec.Name, err))
	}

	prepareChild(cmd, p.spec.Visibility)

	if err := cmd.Start(); err != nil {
		return runtime.Rejected(fmt.Errorf("start process %s: %w", p.spec.Name, err))
	}
	p.cmd = cmd
	p.started = true

	var wg sync.WaitGroup
	wg.Add(2)
	go p.streamLogs(stdout, runtime.LogSourceStdout, &wg)
	go p.streamLogs(stderr, runtime.LogSourceStderr, &wg)
	go func() {
		wg.Wait()
		close(p.logs)
	}()

	go func() {
		// Pipes must be drained before Wait closes them.
		wg.Wait()
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		if cmd.ProcessState != nil {
			p.exitCode = cmd.ProcessState.ExitCode()
		}
		p.mu.Unlock()
		close(p.waitDone)
	}()

	return runtime.Accepted()
}

func (p *Handle) IsRunning() bool {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-p.waitDone:
		return false
	default:
		return true
	}
}

func (p *Handle) Logs() <-chan runtime.LogEntry {
	return p.logs
}

func (p *Handle) Exited() <-chan struct{} {
	return p.waitDone
}

func (p *Handle) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Terminate stops the child asynchronously and reports the outcome via done.
func (p *Handle) Terminate(grace time.Duration, done func(error)) {
	p.mu.Lock()
	if !p.started || p.terminated {
		p.terminated = true
		p.mu.Unlock()
		report(done, nil)
		return
	}
	p.terminated = true
	p.mu.Unlock()

	select {
	case <-p.waitDone:
		// Already reaped; the pid may have been reused.
		report(done, nil)
		return
	default:
	}

	go func() {
		report(done, p.stop(grace))
	}()
}

func report(done func(error), err error) {
	if done != nil {
		done(err)
	}
}

func (p *Handle) streamLogs(r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		entry := runtime.LogEntry{Timestamp: time.Now(), Message: line, Source: source}
		if source == runtime.LogSourceStderr {
			entry.Level = "warn"
		}
		p.logs <- entry
	}
}

func (p *Handle) exitError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var exitErr *exec.ExitError
	if errors.As(p.exitErr, &exitErr) {
		// Non-zero exits caused by our own signals are expected.
		return nil
	}
	return p.exitErr
}
