package bundle

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"
	"unicode"
)

const (
	// PayloadDirName is the directory inside a bundle holding transferred files.
	PayloadDirName = "payload"

	// ManifestFilename is the integrity manifest at the bundle root.
	ManifestFilename = "manifest.txt"

	// NotesFilename is the free-text provenance note at the bundle root.
	// It is not integrity-checked.
	NotesFilename = "bundle_notes.txt"

	// ArchiveSuffix is appended to the bundle name to form the archive filename.
	ArchiveSuffix = ".tar.gz"

	// SignatureSuffix is appended to the archive filename for detached signatures.
	SignatureSuffix = ".asc"

	// PayloadFileMode is the normalized permission set applied to every staged
	// file: owner-write, world-readable, never executable.
	PayloadFileMode os.FileMode = 0o644

	// archiveTimestampLayout renders the timestamp part of archive names.
	archiveTimestampLayout = "20060102_150405"
)

// ArchiveName derives the deterministic archive filename from the issuing
// organization, the marking label and a timestamp.
func ArchiveName(organization, label string, ts time.Time) string {
	return fmt.Sprintf("%s_%s_%s%s",
		normalizeToken(organization),
		normalizeToken(label),
		ts.UTC().Format(archiveTimestampLayout),
		ArchiveSuffix,
	)
}

// normalizeToken lowercases a name component and replaces separators and
// any other non-alphanumeric runs with single underscores.
func normalizeToken(s string) string {
	var (
		builder    strings.Builder
		underscore bool
	)

	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)

			underscore = false

			continue
		}

		if !underscore && builder.Len() > 0 {
			builder.WriteByte('_')

			underscore = true
		}
	}

	result := strings.TrimSuffix(builder.String(), "_")
	if result == "" {
		return "unnamed"
	}

	return result
}

// ValidRelPath reports whether a manifest path is a safe POSIX-style
// relative path: slash-separated, not empty, not absolute, and free of
// ".." segments.
func ValidRelPath(rel string) bool {
	if rel == "" || strings.HasPrefix(rel, "/") {
		return false
	}

	if strings.Contains(rel, "\\") {
		return false
	}

	cleaned := path.Clean(rel)
	if cleaned != rel {
		return false
	}

	for _, segment := range strings.Split(cleaned, "/") {
		if segment == ".." || segment == "." {
			return false
		}
	}

	return true
}
