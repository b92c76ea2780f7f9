package cli

import (
	"github.com/Paintersrp/warden/internal/config"
	"github.com/Paintersrp/warden/internal/desktop"
	"github.com/Paintersrp/warden/internal/engine"
)

// buildProfiles translates the launcher configuration into supervisor
// profiles. The core program starts hidden and its window is optional; the
// game starts shown and must produce a window.
func buildProfiles(cfg *config.Config) engine.Profiles {
	return engine.Profiles{
		Fetcher: engine.FetcherProfile{
			Command:   append([]string(nil), cfg.Fetcher.Command...),
			Frozen:    cfg.Fetcher.Frozen,
			Workdir:   cfg.Fetcher.Workdir,
			OutputDir: cfg.Fetcher.OutputDir,
			DataCheck: engine.DataCheckPolicy{
				Interval:    cfg.Fetcher.DataCheck.Interval.Duration,
				MaxAttempts: cfg.Fetcher.DataCheck.MaxAttempts,
			},
		},
		Core: engine.Profile{
			ConfiguredPath: cfg.Core.Path,
			SearchDirs:     append([]string(nil), cfg.Core.SearchDirs...),
			Pattern:        cfg.Core.Pattern,
			NameHint:       cfg.Core.NameHint,
			Visibility:     desktop.VisibilityHidden,
			Window:         windowPolicy(cfg.Core.Window, false),
		},
		Target: engine.Profile{
			DefaultPath: cfg.Target.DefaultPath,
			SearchDirs:  append([]string(nil), cfg.Target.SearchDirs...),
			Pattern:     cfg.Target.Pattern,
			NameHint:    cfg.Target.NameHint,
			Args:        append([]string(nil), cfg.Target.Args...),
			Visibility:  desktop.VisibilityShown,
			Window:      windowPolicy(cfg.Target.Window, true),
			Liveness: engine.LivenessPolicy{
				Interval:         cfg.Target.Liveness.Interval.Duration,
				FailureThreshold: cfg.Target.Liveness.FailureThreshold,
			},
		},
		Grace:     cfg.Shutdown.Grace.Duration,
		CloseWait: cfg.Shutdown.CloseWait.Duration,
	}
}

func windowPolicy(w config.WindowConfig, required bool) engine.WindowPolicy {
	return engine.WindowPolicy{
		Prefix:       w.Prefix,
		MaxAttempts:  w.MaxAttempts,
		Interval:     w.Interval.Duration,
		InitialDelay: w.InitialDelay.Duration,
		Required:     required,
	}
}
