package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// dirMode is applied to directories created during extraction.
	dirMode os.FileMode = 0o755

	// copyBufferSize is the buffer used when streaming file contents.
	copyBufferSize = 64 * 1024
)

var (
	// ErrUnreadable is returned when the archive cannot be opened or decoded.
	ErrUnreadable = errors.New("archive unreadable")

	// errUnsafePath is returned for entries escaping the extraction root.
	errUnsafePath = errors.New("unsafe path in archive")
)

// Create compresses the contents of srcDir into a tar.gz archive at
// destPath. Internal paths are relative to srcDir; only regular files are
// archived. Entries are sorted so identical trees produce identically
// ordered archives.
func Create(srcDir, destPath string) error {
	var relPaths []string

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		relPaths = append(relPaths, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return fmt.Errorf("walk bundle root: %w", err)
	}

	sort.Strings(relPaths)

	out, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	gzWriter := gzip.NewWriter(out)
	tarWriter := tar.NewWriter(gzWriter)

	for _, rel := range relPaths {
		if err = addFile(tarWriter, srcDir, rel); err != nil {
			_ = tarWriter.Close()
			_ = gzWriter.Close()
			discardPartial(out, destPath)

			return err
		}
	}

	if err = tarWriter.Close(); err != nil {
		_ = gzWriter.Close()
		discardPartial(out, destPath)

		return fmt.Errorf("finalize tar: %w", err)
	}

	if err = gzWriter.Close(); err != nil {
		discardPartial(out, destPath)

		return fmt.Errorf("finalize gzip: %w", err)
	}

	if err = out.Close(); err != nil {
		_ = os.Remove(destPath)

		return fmt.Errorf("close archive: %w", err)
	}

	return nil
}

// discardPartial closes and removes a half-written archive so no partial
// artifact is left at the output location.
func discardPartial(out *os.File, destPath string) {
	_ = out.Close()
	_ = os.Remove(destPath)
}

// addFile writes one regular file into the tar stream.
func addFile(tarWriter *tar.Writer, srcDir, rel string) error {
	path := filepath.Join(srcDir, filepath.FromSlash(rel))

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", rel, err)
	}

	header := &tar.Header{
		Name:     rel,
		Size:     info.Size(),
		Mode:     int64(info.Mode().Perm()),
		ModTime:  info.ModTime(),
		Typeflag: tar.TypeReg,
	}

	if err = tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %s: %w", rel, err)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}

	buf := make([]byte, copyBufferSize)
	if _, err = io.CopyBuffer(tarWriter, file, buf); err != nil {
		_ = file.Close()

		return fmt.Errorf("write contents of %s: %w", rel, err)
	}

	return file.Close()
}

// Extract unpacks a tar.gz archive into destDir. Entries with absolute
// paths or ".." segments are rejected outright.
func Extract(archivePath, destDir string) error {
	in, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreadable, err)
	}

	defer func() {
		_ = in.Close()
	}()

	gzReader, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreadable, err)
	}

	defer func() {
		_ = gzReader.Close()
	}()

	tarReader := tar.NewReader(gzReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnreadable, err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, dirMode); err != nil {
				return fmt.Errorf("create directory %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err = extractFile(tarReader, target, header); err != nil {
				return err
			}
		default:
			// Symlinks, devices and the like have no business in a bundle.
			return fmt.Errorf("%w: unsupported entry type for %s", ErrUnreadable, header.Name)
		}
	}
}

// extractFile writes one regular archive entry to disk.
func extractFile(tarReader *tar.Reader, target string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		return fmt.Errorf("create parent of %s: %w", header.Name, err)
	}

	mode := os.FileMode(header.Mode).Perm()

	file, err := os.OpenFile(filepath.Clean(target), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", header.Name, err)
	}

	buf := make([]byte, copyBufferSize)
	if _, err = io.CopyBuffer(file, tarReader, buf); err != nil {
		_ = file.Close()

		return fmt.Errorf("extract %s: %w", header.Name, err)
	}

	return file.Close()
}

// safeJoin resolves an archive entry name under root, rejecting escapes.
// Only literal ".." path segments are hostile; filenames merely containing
// consecutive dots are legitimate payload.
func safeJoin(root, name string) (string, error) {
	if strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}

	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %s", errUnsafePath, name)
		}
	}

	target := filepath.Join(root, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", errUnsafePath, name)
	}

	return target, nil
}
