// Package settings persists the launcher's remembered executable paths.
//
// The file is read and rewritten on every access. Concurrent writers are not
// coordinated; the last write wins.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// FileName is the settings file created next to the launcher executable.
	FileName = "launcher_settings.yaml"
	// LegacyFileName is imported when FileName does not exist yet.
	LegacyFileName = "launcher_settings.json"
)

// Key names a persisted path.
type Key string

const (
	KeyGamePath        Key = "game_exe_path"
	KeyCoreProgramPath Key = "core_program_path"
)

// Record is the typed view of the settings file.
type Record struct {
	GamePath        string `yaml:"game_exe_path,omitempty" json:"game_exe_path,omitempty"`
	CoreProgramPath string `yaml:"core_program_path,omitempty" json:"core_program_path,omitempty"`
}

// Store reads and writes a settings file.
type Store struct {
	path   string
	legacy string
}

// DefaultPath returns FileName next to the running executable.
func DefaultPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), FileName), nil
}

// New returns a store backed by path. A JSON file named LegacyFileName in the
// same directory is imported while path does not exist.
func New(path string) *Store {
	return &Store{
		path:   path,
		legacy: filepath.Join(filepath.Dir(path), LegacyFileName),
	}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the current record. Missing or malformed files yield an empty
// record.
func (s *Store) Load() Record {
	values := s.read()
	return Record{
		GamePath:        stringValue(values, KeyGamePath),
		CoreProgramPath: stringValue(values, KeyCoreProgramPath),
	}
}

// LoadPath returns the stored path for key, if any.
func (s *Store) LoadPath(key Key) (string, bool) {
	path := stringValue(s.read(), key)
	return path, path != ""
}

// SavePath stores path under key, preserving every other entry in the file.
func (s *Store) SavePath(key Key, path string) error {
	values := s.read()
	if values == nil {
		values = map[string]any{}
	}
	values[string(key)] = path

	raw, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) read() map[string]any {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.readLegacy()
	}
	if err != nil {
		return nil
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func (s *Store) readLegacy() map[string]any {
	raw, err := os.ReadFile(s.legacy)
	if err != nil {
		return nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}

func stringValue(values map[string]any, key Key) string {
	v, ok := values[string(key)].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}
