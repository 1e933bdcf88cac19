package packager

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/transfer-bundle/internal/config"
	"github.com/oshokin/transfer-bundle/internal/domain/bundle"
	"github.com/oshokin/transfer-bundle/internal/logger"
)

// vcsDirNames are version-control metadata directories never collected.
//
//nolint:gochecknoglobals // Fixed lookup table.
var vcsDirNames = map[string]struct{}{
	".git": {},
	".hg":  {},
	".svn": {},
}

// collectFiles enumerates regular files under sourceDir and returns the
// source-relative slash paths approved by the policy. Files outside the
// whitelist are silently excluded; whitelisted files over the size cap are
// skipped with a warning and counted.
func collectFiles(ctx context.Context, sourceDir string, cfg *config.Config) ([]string, int, error) {
	var (
		included        []string
		skippedOversize int
		allowed         = cfg.AllowedExtensions()
		maxBytes        = cfg.MaxSizeBytes()
	)

	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if _, vcs := vcsDirNames[d.Name()]; vcs {
				return fs.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		ext := extensionOf(d.Name())
		if _, ok := allowed[ext]; !ok {
			// Never approved for transfer, not worth a warning.
			logger.DebugKV(ctx, "Excluded by extension", "path", path)

			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if info.Size() > maxBytes {
			skippedOversize++

			logger.WarnKV(ctx, "Skipping file over the size cap",
				"path", path, "size", info.Size(), "max_bytes", maxBytes)

			return nil
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		included = append(included, filepath.ToSlash(rel))

		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return included, skippedOversize, nil
}

// extensionOf returns the lowercase extension without the leading dot,
// or an empty string when the name has none.
func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// stageFiles copies the approved files into the payload directory,
// recreating their source-relative paths. The relative path preserved here
// is the exact key the manifest and the verifier use later.
func stageFiles(sourceDir, payloadDir string, relPaths []string) error {
	for _, rel := range relPaths {
		src := filepath.Join(sourceDir, filepath.FromSlash(rel))
		dst := filepath.Join(payloadDir, filepath.FromSlash(rel))

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", rel, err)
		}

		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copy %s: %w", rel, err)
		}
	}

	return nil
}

// copyFile copies contents and permission bits; the source is untouched.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

// normalizePermissions sets every staged file to the fixed non-executable
// payload mode, erasing whatever bits the source filesystem carried.
func normalizePermissions(payloadDir string) error {
	return filepath.WalkDir(payloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}

		return os.Chmod(path, bundle.PayloadFileMode)
	})
}
