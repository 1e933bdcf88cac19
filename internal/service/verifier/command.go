package verifier

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/oshokin/transfer-bundle/internal/archive"
	"github.com/oshokin/transfer-bundle/internal/domain/bundle"
	"github.com/oshokin/transfer-bundle/internal/logger"
)

// Options contains inputs for the verifier entry point.
type Options struct {
	// Path points at an extracted bundle root directory or a tar.gz archive.
	Path string
	// TolerateExtras disables flagging of payload files absent from the manifest.
	TolerateExtras bool
}

// Exit codes distinguishing verification findings from operational errors.
const (
	// ExitFindings is returned when the bundle failed verification.
	ExitFindings = 1
	// ExitOperational is returned when verification could not run at all.
	ExitOperational = 2
)

var (
	// ErrVerificationFailed marks a run that produced one or more findings.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrManifestNotFound indicates no manifest at the expected locations.
	ErrManifestNotFound = errors.New("manifest not found")
)

// Run verifies the bundle and returns the accumulated report. The returned
// error wraps ErrVerificationFailed when findings exist; any other error is
// operational.
func Run(ctx context.Context, opts *Options) (*bundle.Report, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "bundle-verifier")

	if !bundle.HashAvailable() {
		return nil, bundle.ErrHashUnavailable
	}

	root, cleanup, err := resolveBundleRoot(ctx, opts.Path)
	if err != nil {
		return nil, err
	}

	// The scratch directory is released on every exit path.
	defer cleanup()

	manifestPath, payloadRoot, err := locateManifest(root)
	if err != nil {
		return nil, err
	}

	manifest, err := bundle.ParseFile(manifestPath, func(line int, text string) {
		logger.WarnKV(ctx, "Skipping malformed manifest line", "line", line, "text", text)
	})
	if err != nil {
		return nil, err
	}

	report := &bundle.Report{}

	verifyEntries(ctx, manifest, payloadRoot, report)

	if !opts.TolerateExtras {
		if err = detectExtras(payloadRoot, manifest, report); err != nil {
			return nil, fmt.Errorf("scan for extra files: %w", err)
		}
	}

	for _, finding := range report.Findings {
		logger.Warnf(ctx, "%s", finding)
	}

	logger.InfoKV(ctx, "Verification finished",
		"checked", report.Checked,
		"missing", report.CountByKind(bundle.FindingMissing),
		"size_mismatches", report.CountByKind(bundle.FindingSizeMismatch),
		"hash_mismatches", report.CountByKind(bundle.FindingHashMismatch),
		"extras", report.CountByKind(bundle.FindingExtraFile))

	if !report.OK() {
		return report, fmt.Errorf("%w: %d finding(s)", ErrVerificationFailed, len(report.Findings))
	}

	logger.Info(ctx, "Bundle verified clean")

	return report, nil
}

// resolveBundleRoot returns the directory to verify. Archives are extracted
// into a scratch directory whose removal is the caller's cleanup duty.
func resolveBundleRoot(ctx context.Context, path string) (string, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("stat bundle path: %w", err)
	}

	if info.IsDir() {
		return path, func() {}, nil
	}

	scratch, err := os.MkdirTemp("", "bundle-verify-")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch directory: %w", err)
	}

	cleanup := func() {
		_ = os.RemoveAll(scratch)
	}

	logger.InfoKV(ctx, "Extracting archive", "archive", path, "scratch", scratch)

	if err = archive.Extract(path, scratch); err != nil {
		cleanup()

		return "", nil, err
	}

	return scratch, cleanup, nil
}

// locateManifest finds the manifest and the payload root. The manifest is
// looked up at the root first, then under payload/ to tolerate being
// pointed at a parent of a flattened bundle.
func locateManifest(root string) (manifestPath, payloadRoot string, err error) {
	payloadRoot = root
	if info, statErr := os.Stat(filepath.Join(root, bundle.PayloadDirName)); statErr == nil && info.IsDir() {
		payloadRoot = filepath.Join(root, bundle.PayloadDirName)
	}

	candidates := []string{
		filepath.Join(root, bundle.ManifestFilename),
		filepath.Join(root, bundle.PayloadDirName, bundle.ManifestFilename),
	}

	for _, candidate := range candidates {
		if info, statErr := os.Stat(candidate); statErr == nil && info.Mode().IsRegular() {
			return candidate, payloadRoot, nil
		}
	}

	return "", "", fmt.Errorf("%w under %s", ErrManifestNotFound, root)
}

// verifyEntries re-derives size and digest for every manifest entry.
// The three checks are independent; findings never short-circuit the run.
func verifyEntries(ctx context.Context, manifest *bundle.Manifest, payloadRoot string, report *bundle.Report) {
	for _, entry := range manifest.Entries {
		report.Checked++

		path := filepath.Join(payloadRoot, filepath.FromSlash(entry.Path))

		info, err := os.Stat(path)
		if err != nil {
			report.Add(bundle.FindingMissing, entry.Path, "")

			continue
		}

		if info.Size() != entry.Size {
			report.Add(bundle.FindingSizeMismatch, entry.Path,
				fmt.Sprintf("expected %d, got %d", entry.Size, info.Size()))
		}

		checksum, err := bundle.FileChecksum(path)
		if err != nil {
			logger.WarnKV(ctx, "Unable to hash payload file", "path", entry.Path, "error", err)

			report.Add(bundle.FindingHashMismatch, entry.Path, fmt.Sprintf("unreadable: %v", err))

			continue
		}

		if checksum != entry.Checksum {
			report.Add(bundle.FindingHashMismatch, entry.Path,
				fmt.Sprintf("expected %s, got %s", entry.Checksum, checksum))
		}
	}
}

// detectExtras flags regular files under the payload root that the
// manifest does not list. The manifest and notes files themselves are
// never extras, even in a flattened layout where they sit beside payload
// files.
func detectExtras(payloadRoot string, manifest *bundle.Manifest, report *bundle.Report) error {
	listed := manifest.PathSet()

	return filepath.WalkDir(payloadRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}

		rel, err := filepath.Rel(payloadRoot, path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		if rel == bundle.ManifestFilename || rel == bundle.NotesFilename {
			return nil
		}

		if _, ok := listed[rel]; !ok {
			report.Add(bundle.FindingExtraFile, rel, "")
		}

		return nil
	})
}
