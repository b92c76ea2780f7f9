package engine

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Paintersrp/warden/internal/fetchdata"
	"github.com/Paintersrp/warden/internal/probe"
)

// lookPath resolves the fetcher command the way exec.Command would.
var lookPath = exec.LookPath

// launchFetcher spawns the data fetch helper as a direct child. Its readiness
// is a clean exit.
func (s *Supervisor) launchFetcher() error {
	proc := s.procs[RoleDataFetcher]
	f := s.profiles.Fetcher
	if len(f.Command) == 0 || strings.TrimSpace(f.Command[0]) == "" {
		return fmt.Errorf("%w: no data fetcher command configured", ErrUnsupported)
	}
	if err := s.admit(proc); err != nil {
		return err
	}

	s.reset(proc)
	s.transition(proc, StateResolving, "resolving data fetcher", nil)
	path, err := resolveFetcher(f.Command[0], f.Workdir)
	if err != nil {
		proc.ExecutablePath = f.Command[0]
		s.fail(proc, ReasonPathNotFound, err)
		return nil
	}
	s.launchResolved(proc, path)
	return nil
}

// resolveFetcher finds the helper program. A name with a directory part must
// exist as given; a bare name is looked up in workdir first, then on PATH.
func resolveFetcher(name, workdir string) (string, error) {
	if strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		if err := regularFile(name); err != nil {
			return "", err
		}
		return name, nil
	}
	if workdir != "" {
		local := filepath.Join(workdir, name)
		if regularFile(local) == nil {
			return local, nil
		}
	}
	return lookPath(name)
}

func regularFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}

// startDataCheck polls the fetcher output directory until every required file
// is present, then announces the data.
func (s *Supervisor) startDataCheck(proc *ManagedProcess) {
	f := s.profiles.Fetcher
	dir := f.OutputDir
	if dir == "" {
		return
	}
	id := proc.LaunchID
	s.dataCheck.Cancel()
	s.dataCheck = s.poller.Until(func(int) bool {
		return fetchdata.Complete(dir)
	}, f.DataCheck.MaxAttempts, f.DataCheck.Interval, func(ok bool, attempts int) {
		s.dataCheck = nil
		if proc.LaunchID != id {
			return
		}
		if !ok {
			s.log.Warn("fetched data incomplete", zap.String("dir", dir), zap.Int("attempts", attempts))
			s.emit(Event{Role: RoleDataFetcher, LaunchID: id, Type: EventTypeError, State: proc.State, Level: "warn", Path: dir, Attempt: attempts, Message: "fetched data incomplete"})
			return
		}
		manifest, err := fetchdata.Load(dir)
		if err != nil {
			s.log.Warn("parse fetched data", zap.String("dir", dir), zap.Error(err))
		}
		s.log.Info("fetched data ready", zap.String("dir", dir), zap.Int("news", len(manifest.News)), zap.String("season", manifest.Season))
		s.emit(Event{Role: RoleDataFetcher, LaunchID: id, Type: EventTypeDataReady, State: proc.State, Path: dir, Attempt: attempts, Message: manifest.Season})
	}, probe.InitialDelay(0))
}
