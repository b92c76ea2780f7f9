package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Validate reports every invalid field in cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if len(cfg.Fetcher.Command) > 0 {
		if strings.TrimSpace(cfg.Fetcher.Command[0]) == "" {
			errs = append(errs, fmt.Errorf("fetcher.command[0]: must name an executable"))
		}
		errs = append(errs, positive("fetcher.dataCheck.interval", cfg.Fetcher.DataCheck.Interval))
		if cfg.Fetcher.DataCheck.MaxAttempts <= 0 {
			errs = append(errs, fmt.Errorf("fetcher.dataCheck.maxAttempts: must be positive, got %d", cfg.Fetcher.DataCheck.MaxAttempts))
		}
	}

	errs = append(errs, validatePattern("core.pattern", cfg.Core.Pattern))
	errs = append(errs, validateWindow("core.window", cfg.Core.Window)...)

	errs = append(errs, validatePattern("target.pattern", cfg.Target.Pattern))
	errs = append(errs, validateWindow("target.window", cfg.Target.Window)...)
	errs = append(errs, positive("target.liveness.interval", cfg.Target.Liveness.Interval))
	if cfg.Target.Liveness.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("target.liveness.failureThreshold: must not be negative, got %d", cfg.Target.Liveness.FailureThreshold))
	}

	errs = append(errs, notNegative("shutdown.grace", cfg.Shutdown.Grace))
	errs = append(errs, notNegative("shutdown.closeWait", cfg.Shutdown.CloseWait))
	errs = append(errs, positive("shutdown.timeout", cfg.Shutdown.Timeout))

	if addr := strings.TrimSpace(cfg.Metrics.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("metrics.addr: invalid address %q: %w", addr, err))
		}
	}

	return errors.Join(errs...)
}

func validateWindow(field string, w WindowConfig) []error {
	var errs []error
	if strings.TrimSpace(w.Prefix) == "" {
		errs = append(errs, fmt.Errorf("%s.prefix: must not be empty", field))
	}
	if w.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%s.maxAttempts: must be positive, got %d", field, w.MaxAttempts))
	}
	errs = append(errs, positive(field+".interval", w.Interval))
	errs = append(errs, notNegative(field+".initialDelay", w.InitialDelay))
	return errs
}

func validatePattern(field, pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("%s: must not be empty", field)
	}
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%s: invalid glob %q", field, pattern)
	}
	return nil
}

func positive(field string, d Duration) error {
	if d.Duration <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", field, d.Duration)
	}
	return nil
}

func notNegative(field string, d Duration) error {
	if d.Duration < 0 {
		return fmt.Errorf("%s: must not be negative, got %s", field, d.Duration)
	}
	return nil
}
