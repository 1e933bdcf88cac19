package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// imageExtensions are the staged file types submitted for metadata removal.
//
//nolint:gochecknoglobals // Fixed lookup table.
var imageExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"tif":  {},
	"tiff": {},
}

// Scrubber removes embedded metadata from image files via exiftool.
type Scrubber struct {
	Capability
}

// NewScrubber returns the default exiftool-backed scrubber.
func NewScrubber() *Scrubber {
	return &Scrubber{
		Capability: Capability{
			Name:   "metadata scrubber",
			Binary: "exiftool",
		},
	}
}

// IsImage reports whether a file should be submitted for scrubbing,
// judged by its extension alone.
func IsImage(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := imageExtensions[ext]

	return ok
}

// Strip removes all embedded metadata from the file in place.
// Failure affects that file only; the caller logs and moves on.
func (s *Scrubber) Strip(ctx context.Context, path string) error {
	output, code, err := s.run(ctx, "-all=", "-overwrite_original", path)
	if err != nil {
		return fmt.Errorf("run %s: %w", s.Binary, err)
	}

	if code != 0 {
		return fmt.Errorf("%s exited with code %d: %s", s.Binary, code, strings.TrimSpace(string(output)))
	}

	return nil
}
