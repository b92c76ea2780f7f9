package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
)

const peMIME = "application/vnd.microsoft.portable-executable"

// pathSource records where a resolved executable path came from.
type pathSource string

const (
	sourceConfig   pathSource = "config"
	sourceSettings pathSource = "settings"
	sourceDefault  pathSource = "default"
	sourceScan     pathSource = "scan"
	sourcePrompt   pathSource = "prompt"
)

// resolveExecutable walks the non-interactive resolution sources for a
// profile: configured path, persisted path, default path, then a scan of the
// search directories with the profile's pattern.
func resolveExecutable(p Profile, persisted string) (string, pathSource, bool) {
	if p.ConfiguredPath != "" && ValidateExecutable(p.ConfiguredPath) == nil {
		return p.ConfiguredPath, sourceConfig, true
	}
	if persisted != "" && ValidateExecutable(persisted) == nil {
		return persisted, sourceSettings, true
	}
	if p.DefaultPath != "" && ValidateExecutable(p.DefaultPath) == nil {
		return p.DefaultPath, sourceDefault, true
	}
	if path, ok := scan(p.SearchDirs, p.Pattern); ok {
		return path, sourceScan, true
	}
	return "", "", false
}

// scan returns the first valid executable matching pattern in dirs. Matches
// within a directory are visited in lexical order.
func scan(dirs []string, pattern string) (string, bool) {
	if strings.TrimSpace(pattern) == "" {
		return "", false
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		matches, err := doublestar.Glob(os.DirFS(dir), filepath.ToSlash(pattern),
			doublestar.WithFilesOnly(), doublestar.WithCaseInsensitive(), doublestar.WithFailOnIOErrors())
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			full := filepath.Join(dir, filepath.FromSlash(m))
			if ValidateExecutable(full) == nil {
				return full, true
			}
		}
	}
	return "", false
}

// ValidateExecutable checks that path names a non-empty regular file and, for
// .exe files, that the content is a PE image.
func ValidateExecutable(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".exe") {
		return nil
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", path, err)
	}
	if !mt.Is(peMIME) {
		return fmt.Errorf("%s is not an executable (detected %s)", path, mt.String())
	}
	return nil
}

// matchesHint reports whether the base name of path contains hint,
// case-insensitively. An empty hint matches everything.
func matchesHint(path, hint string) bool {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return true
	}
	base := strings.ToLower(filepath.Base(filepath.FromSlash(path)))
	if i := strings.LastIndex(base, `\`); i >= 0 {
		base = base[i+1:]
	}
	return strings.Contains(base, hint)
}
