package bundle

import (
	"bufio"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	// Ensure SHA256 is available for checksum calculation.
	_ "crypto/sha256"
)

const (
	// DefaultChecksumFunction is used to hash payload files.
	DefaultChecksumFunction crypto.Hash = crypto.SHA256

	// AlgorithmName identifies the hash algorithm in manifest headers.
	AlgorithmName = "sha256"

	// checksumHexLength is the length of a hex-encoded SHA-256 digest.
	checksumHexLength = 64

	// fieldSeparator joins the three manifest fields on one line.
	fieldSeparator = "  "

	// entryFieldCount is the number of fields in a manifest record.
	entryFieldCount = 3
)

var (
	// ErrHashUnavailable is returned when the checksum function is not
	// linked into the binary. Hashing is the one required capability.
	ErrHashUnavailable = errors.New("hash function unavailable")

	// errDuplicatePath is returned when a manifest lists a path twice.
	errDuplicatePath = errors.New("duplicate manifest path")
)

// Entry is one manifest record: the integrity baseline of a payload file.
type Entry struct {
	// Checksum is the hex-encoded digest of the file contents.
	Checksum string
	// Size is the file size in bytes.
	Size int64
	// Path is the POSIX-style path relative to the payload root.
	Path string
}

// Manifest is the ordered integrity record of a bundle's payload.
type Manifest struct {
	// Organization is the issuing organization, recorded in the header.
	Organization string
	// Label is the marking label, recorded in the header.
	Label string
	// CreatedAt is the packaging timestamp, recorded in the header.
	CreatedAt time.Time
	// Entries are the per-file records in lexicographic path order.
	Entries []Entry
}

// HashAvailable reports whether the checksum function is usable.
func HashAvailable() bool {
	return DefaultChecksumFunction.Available()
}

// FileChecksum returns the hex-encoded digest of a file's contents.
func FileChecksum(path string) (string, error) {
	if !HashAvailable() {
		return "", fmt.Errorf("checksum calculation not possible: %w", ErrHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := DefaultChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Build walks the payload root and produces a manifest covering every
// regular file under it, ordered lexicographically by relative path so two
// runs over identical trees produce identical manifests.
func Build(payloadRoot, organization, label string, createdAt time.Time) (*Manifest, error) {
	manifest := &Manifest{
		Organization: organization,
		Label:        label,
		CreatedAt:    createdAt,
	}

	err := filepath.WalkDir(payloadRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(payloadRoot, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		checksum, err := FileChecksum(path)
		if err != nil {
			return err
		}

		manifest.Entries = append(manifest.Entries, Entry{
			Checksum: checksum,
			Size:     info.Size(),
			Path:     filepath.ToSlash(rel),
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk payload: %w", err)
	}

	sort.Slice(manifest.Entries, func(i, j int) bool {
		return manifest.Entries[i].Path < manifest.Entries[j].Path
	})

	return manifest, nil
}

// Render writes the manifest in its wire format: a commented header block
// followed by one record per file.
func (m *Manifest) Render(w io.Writer) error {
	header := fmt.Sprintf(
		"# organization: %s\n# label: %s\n# created: %s\n# hash: %s\n",
		m.Organization,
		m.Label,
		m.CreatedAt.UTC().Format(time.RFC3339),
		AlgorithmName,
	)

	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	for _, entry := range m.Entries {
		line := entry.Checksum + fieldSeparator +
			strconv.FormatInt(entry.Size, 10) + fieldSeparator +
			entry.Path + "\n"

		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}

	return nil
}

// WriteFile renders the manifest to the provided path.
func (m *Manifest) WriteFile(path string) error {
	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}

	if err = m.Render(file); err != nil {
		_ = file.Close()

		return fmt.Errorf("render manifest: %w", err)
	}

	return file.Close()
}

// Parse reads a manifest from its wire format. Comment and blank lines are
// ignored. A malformed record is not fatal: it is reported through the
// onMalformed callback (line number and raw text) and skipped, keeping the
// rest of the manifest usable. Extra-file detection still flags payload
// files whose records were lost this way.
func Parse(r io.Reader, onMalformed func(line int, text string)) (*Manifest, error) {
	var (
		manifest Manifest
		seen     = make(map[string]struct{})
		scanner  = bufio.NewScanner(r)
		lineNo   int
	)

	for scanner.Scan() {
		lineNo++

		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry, err := parseEntry(line)
		if err != nil {
			if onMalformed != nil {
				onMalformed(lineNo, line)
			}

			continue
		}

		if _, ok := seen[entry.Path]; ok {
			return nil, fmt.Errorf("%w: %s", errDuplicatePath, entry.Path)
		}

		seen[entry.Path] = struct{}{}

		manifest.Entries = append(manifest.Entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return &manifest, nil
}

// ParseFile reads a manifest from disk.
func ParseFile(path string, onMalformed func(line int, text string)) (*Manifest, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	return Parse(file, onMalformed)
}

// parseEntry parses one `<checksum>  <size>  <path>` record.
func parseEntry(line string) (Entry, error) {
	fields := strings.SplitN(line, fieldSeparator, entryFieldCount)
	if len(fields) != entryFieldCount {
		return Entry{}, fmt.Errorf("expected %d fields", entryFieldCount)
	}

	checksum := fields[0]
	if len(checksum) != checksumHexLength {
		return Entry{}, fmt.Errorf("checksum must be %d hex characters", checksumHexLength)
	}

	if _, err := hex.DecodeString(checksum); err != nil {
		return Entry{}, fmt.Errorf("invalid checksum: %w", err)
	}

	size, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || size < 0 {
		return Entry{}, fmt.Errorf("invalid size %q", fields[1])
	}

	rel := fields[2]
	if !ValidRelPath(rel) {
		return Entry{}, fmt.Errorf("invalid relative path %q", rel)
	}

	return Entry{
		Checksum: checksum,
		Size:     size,
		Path:     rel,
	}, nil
}

// PathSet returns the set of relative paths listed in the manifest.
func (m *Manifest) PathSet() map[string]struct{} {
	paths := make(map[string]struct{}, len(m.Entries))
	for _, entry := range m.Entries {
		paths[entry.Path] = struct{}{}
	}

	return paths
}
