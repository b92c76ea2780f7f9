// Package fetchdata reads the files the data-fetch helper leaves in its output
// directory.
package fetchdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const (
	DataFile        = "web_data.json"
	BackgroundImage = "bg_img.jpg"

	// MaxNews caps how many news entries are surfaced.
	MaxNews = 4

	// DefaultSeason is shown until a data file provides a season.
	DefaultSeason = "Loading season info..."
)

// RequiredFiles lists the files whose presence marks a complete fetch.
func RequiredFiles() []string {
	return []string{DataFile, BackgroundImage, NewsImage(1)}
}

// NewsImage returns the image file name for the 1-based news index.
func NewsImage(index int) string {
	return fmt.Sprintf("new%d_img.jpg", index)
}

// NewsItem is a single news entry.
type NewsItem struct {
	Title     string `json:"title"`
	Link      string `json:"link_url"`
	Time      string `json:"time"`
	SourceURL string `json:"src_url"`

	// ImagePath is the local image for the entry, filled in by Load.
	ImagePath string `json:"-"`
}

// Manifest is the parsed data file.
type Manifest struct {
	Season          string     `json:"season"`
	BackgroundImage string     `json:"background_img"`
	News            []NewsItem `json:"news_list"`

	// BackgroundPath is the local background image, set when the data file
	// names a remote background.
	BackgroundPath string `json:"-"`
}

// Defaults returns the manifest shown before any data is available.
func Defaults() Manifest {
	return Manifest{Season: DefaultSeason}
}

// Load parses the data file in dir. On any failure it returns Defaults together
// with the error, so callers can always render something.
func Load(dir string) (Manifest, error) {
	path := filepath.Join(dir, DataFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("read %s: %w", path, err)
	}

	var doc Manifest
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Defaults(), fmt.Errorf("%s: decode: %w", path, err)
	}
	if strings.TrimSpace(doc.Season) == "" {
		doc.Season = DefaultSeason
	}
	if doc.BackgroundImage != "" {
		doc.BackgroundPath = filepath.Join(dir, BackgroundImage)
	}
	if len(doc.News) > MaxNews {
		doc.News = doc.News[:MaxNews]
	}
	for i := range doc.News {
		doc.News[i].ImagePath = filepath.Join(dir, NewsImage(i+1))
	}
	return doc, nil
}

// Complete reports whether every required file is present in dir and every
// required image sniffs as an image.
func Complete(dir string) bool {
	for _, name := range RequiredFiles() {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
			return false
		}
		if name == DataFile {
			continue
		}
		mt, err := mimetype.DetectFile(path)
		if err != nil || !strings.HasPrefix(mt.String(), "image/") {
			return false
		}
	}
	return true
}
