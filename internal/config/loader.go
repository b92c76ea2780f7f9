package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. WARDEN_LOG_LEVEL.
const EnvPrefix = "warden"

// CandidateNames are the file names Discover looks for, in order.
var CandidateNames = []string{"warden.yaml", "warden.yml", "warden.toml"}

// envOverrides are applied after the file is decoded.
type envOverrides struct {
	LogLevel     string `envconfig:"LOG_LEVEL"`
	LogDev       *bool  `envconfig:"LOG_DEV"`
	MetricsAddr  string `envconfig:"METRICS_ADDR"`
	SettingsPath string `envconfig:"SETTINGS"`
	LockPath     string `envconfig:"LOCK_PATH"`
}

// Load reads a launcher configuration file. Files ending in .toml are decoded
// as TOML, everything else as YAML. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}

	cfg := Default()
	if err := decode(absPath, raw, cfg); err != nil {
		return nil, err
	}
	cfg.BaseDir = filepath.Dir(absPath)

	if err := finish(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	return cfg, nil
}

// Discover loads the first candidate file found in dir. When none exists the
// built-in defaults are used with dir as the base directory.
func Discover(dir string) (*Config, error) {
	for _, name := range CandidateNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	cfg := Default()
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg.BaseDir = absDir
	if err := finish(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, raw []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		decoder := toml.NewDecoder(bytes.NewReader(raw))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return fmt.Errorf("%s: decode: %s", path, strict.String())
			}
			return fmt.Errorf("%s: decode: %w", path, err)
		}
		return nil
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("%s: decode: %w", path, err)
	}
	return nil
}

func finish(cfg *Config) error {
	if err := applyEnv(cfg); err != nil {
		return err
	}
	cfg.resolvePaths()
	return Validate(cfg)
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	if env.LogDev != nil {
		cfg.Logging.Development = *env.LogDev
	}
	if env.MetricsAddr != "" {
		cfg.Metrics.Addr = env.MetricsAddr
	}
	if env.SettingsPath != "" {
		cfg.Settings.Path = env.SettingsPath
	}
	if env.LockPath != "" {
		cfg.Instance.LockPath = env.LockPath
	}
	return nil
}

// resolvePaths anchors relative directories at BaseDir.
func (c *Config) resolvePaths() {
	if len(c.Fetcher.Command) > 0 {
		c.Fetcher.Command[0] = c.resolveCommand(c.Fetcher.Command[0])
	}
	c.Fetcher.Workdir = c.resolve(c.Fetcher.Workdir)
	c.Fetcher.OutputDir = c.resolve(c.Fetcher.OutputDir)
	for i, dir := range c.Core.SearchDirs {
		c.Core.SearchDirs[i] = c.resolve(dir)
	}
	for i, dir := range c.Target.SearchDirs {
		c.Target.SearchDirs[i] = c.resolve(dir)
	}
	if c.Core.Path != "" {
		c.Core.Path = c.resolve(c.Core.Path)
	}
	if c.Settings.Path != "" {
		c.Settings.Path = c.resolve(c.Settings.Path)
	}
}

func (c *Config) resolve(path string) string {
	if path == "" {
		return c.BaseDir
	}
	path = os.ExpandEnv(path)
	if filepath.IsAbs(path) || isWindowsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Clean(filepath.Join(c.BaseDir, path))
}

// resolveCommand anchors a program at BaseDir when it names a path, or when a
// bare name exists there. Other bare names are left for a PATH lookup.
func (c *Config) resolveCommand(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return name
	}
	if strings.ContainsAny(name, `/\`) {
		return c.resolve(name)
	}
	if c.BaseDir == "" {
		return name
	}
	local := filepath.Join(c.BaseDir, name)
	if info, err := os.Stat(local); err == nil && info.Mode().IsRegular() {
		return local
	}
	return name
}

// isWindowsAbs recognises drive-letter paths on every host so configuration
// written for Windows resolves the same everywhere.
func isWindowsAbs(path string) bool {
	return len(path) >= 3 && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
}
