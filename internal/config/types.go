package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses Go duration strings such as "500ms" or "2s".
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

func duration(d time.Duration) Duration {
	return Duration{Duration: d}
}

// Config mirrors the warden.yaml / warden.toml document.
type Config struct {
	Fetcher  FetcherConfig  `yaml:"fetcher" toml:"fetcher"`
	Core     CoreConfig     `yaml:"core" toml:"core"`
	Target   TargetConfig   `yaml:"target" toml:"target"`
	Instance InstanceConfig `yaml:"instance" toml:"instance"`
	Shutdown ShutdownConfig `yaml:"shutdown" toml:"shutdown"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Settings SettingsConfig `yaml:"settings" toml:"settings"`

	// BaseDir anchors relative paths. It is the directory of the loaded file,
	// or the launcher directory when no file was found.
	BaseDir string `yaml:"-" toml:"-"`
}

// FetcherConfig describes the data-fetch helper. An empty command disables it.
type FetcherConfig struct {
	Command   []string        `yaml:"command" toml:"command"`
	Frozen    bool            `yaml:"frozen" toml:"frozen"`
	Workdir   string          `yaml:"workdir" toml:"workdir"`
	OutputDir string          `yaml:"outputDir" toml:"outputDir"`
	DataCheck DataCheckConfig `yaml:"dataCheck" toml:"dataCheck"`
}

// DataCheckConfig bounds the completeness re-check after the helper exits.
type DataCheckConfig struct {
	Interval    Duration `yaml:"interval" toml:"interval"`
	MaxAttempts int      `yaml:"maxAttempts" toml:"maxAttempts"`
}

// WindowConfig bounds the window readiness poll of an elevated role.
type WindowConfig struct {
	Prefix       string   `yaml:"prefix" toml:"prefix"`
	MaxAttempts  int      `yaml:"maxAttempts" toml:"maxAttempts"`
	Interval     Duration `yaml:"interval" toml:"interval"`
	InitialDelay Duration `yaml:"initialDelay" toml:"initialDelay"`
}

// CoreConfig describes the elevated core program.
type CoreConfig struct {
	Path       string       `yaml:"path" toml:"path"`
	SearchDirs []string     `yaml:"searchDirs" toml:"searchDirs"`
	Pattern    string       `yaml:"pattern" toml:"pattern"`
	NameHint   string       `yaml:"nameHint" toml:"nameHint"`
	Window     WindowConfig `yaml:"window" toml:"window"`
}

// LivenessConfig controls how an exited target is noticed.
type LivenessConfig struct {
	Interval         Duration `yaml:"interval" toml:"interval"`
	FailureThreshold int      `yaml:"failureThreshold" toml:"failureThreshold"`
}

// TargetConfig describes the game executable.
type TargetConfig struct {
	DefaultPath string         `yaml:"defaultPath" toml:"defaultPath"`
	SearchDirs  []string       `yaml:"searchDirs" toml:"searchDirs"`
	Pattern     string         `yaml:"pattern" toml:"pattern"`
	NameHint    string         `yaml:"nameHint" toml:"nameHint"`
	Args        []string       `yaml:"args" toml:"args"`
	Window      WindowConfig   `yaml:"window" toml:"window"`
	Liveness    LivenessConfig `yaml:"liveness" toml:"liveness"`
}

type InstanceConfig struct {
	LockPath string `yaml:"lockPath" toml:"lockPath"`
}

// ShutdownConfig bounds teardown. Grace applies to direct children; CloseWait
// is the pause between close requests and forced kills for elevated ones.
type ShutdownConfig struct {
	Grace     Duration `yaml:"grace" toml:"grace"`
	CloseWait Duration `yaml:"closeWait" toml:"closeWait"`
	Timeout   Duration `yaml:"timeout" toml:"timeout"`
}

type LoggingConfig struct {
	Level       string   `yaml:"level" toml:"level"`
	Development bool     `yaml:"development" toml:"development"`
	OutputPaths []string `yaml:"outputPaths" toml:"outputPaths"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

type SettingsConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// DefaultFetcher is the packaged data fetch helper shipped next to the
// launcher.
const DefaultFetcher = "htmlget.exe"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Fetcher: FetcherConfig{
			Command:   []string{DefaultFetcher},
			Frozen:    true,
			OutputDir: "res",
			DataCheck: DataCheckConfig{
				Interval:    duration(2 * time.Second),
				MaxAttempts: 30,
			},
		},
		Core: CoreConfig{
			SearchDirs: []string{"."},
			Pattern:    "idv-login*.exe",
			NameHint:   "idv-login",
			Window: WindowConfig{
				Prefix:       "idv-login",
				MaxAttempts:  120,
				Interval:     duration(500 * time.Millisecond),
				InitialDelay: duration(2 * time.Second),
			},
		},
		Target: TargetConfig{
			DefaultPath: "D:/dwrg2/dwrg.exe",
			Pattern:     "dwrg.exe",
			NameHint:    "dwrg.exe",
			Window: WindowConfig{
				Prefix:      "dwrg",
				MaxAttempts: 60,
				Interval:    duration(time.Second),
			},
			Liveness: LivenessConfig{
				Interval:         duration(2 * time.Second),
				FailureThreshold: 2,
			},
		},
		Shutdown: ShutdownConfig{
			Grace:     duration(2 * time.Second),
			CloseWait: duration(100 * time.Millisecond),
			Timeout:   duration(5 * time.Second),
		},
		Logging: LoggingConfig{
			Level:       "info",
			OutputPaths: []string{"stderr"},
		},
	}
}
