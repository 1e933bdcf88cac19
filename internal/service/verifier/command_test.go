package verifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/transfer-bundle/internal/domain/bundle"
)

// writeBundle lays out an extracted bundle (payload/ + manifest + notes)
// and returns its root.
func writeBundle(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	payload := filepath.Join(root, bundle.PayloadDirName)

	files := map[string]string{
		"readme.txt":    "hello",
		"docs/guide.md": "# guide",
		"docs/data.csv": "a,b,c",
	}

	for rel, content := range files {
		path := filepath.Join(payload, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	manifest, err := bundle.Build(payload, "acme", "internal", time.Now())
	require.NoError(t, err)
	require.NoError(t, manifest.WriteFile(filepath.Join(root, bundle.ManifestFilename)))
	require.NoError(t, os.WriteFile(filepath.Join(root, bundle.NotesFilename), []byte("notes\n"), 0o644))

	return root
}

// TestRun_CleanBundle verifies an untouched bundle yields zero findings.
func TestRun_CleanBundle(t *testing.T) {
	t.Parallel()

	root := writeBundle(t)

	report, err := Run(context.Background(), &Options{Path: root})
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Equal(t, 3, report.Checked)
}

// TestRun_TamperedFile ensures a single byte flip produces exactly one
// hash mismatch for that path and nothing else.
func TestRun_TamperedFile(t *testing.T) {
	t.Parallel()

	root := writeBundle(t)
	target := filepath.Join(root, bundle.PayloadDirName, "readme.txt")

	// Same length, different content: only the hash check fires.
	require.NoError(t, os.WriteFile(target, []byte("jello"), 0o644))

	report, err := Run(context.Background(), &Options{Path: root})
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.Len(t, report.Findings, 1)
	require.Equal(t, bundle.FindingHashMismatch, report.Findings[0].Kind)
	require.Equal(t, "readme.txt", report.Findings[0].Path)
}

// TestRun_TamperedFileWithSizeChange yields both a size and a hash finding.
func TestRun_TamperedFileWithSizeChange(t *testing.T) {
	t.Parallel()

	root := writeBundle(t)
	target := filepath.Join(root, bundle.PayloadDirName, "readme.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello, world"), 0o644))

	report, err := Run(context.Background(), &Options{Path: root})
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.Equal(t, 1, report.CountByKind(bundle.FindingSizeMismatch))
	require.Equal(t, 1, report.CountByKind(bundle.FindingHashMismatch))
}

// TestRun_MissingFile ensures a deleted payload file is reported once.
func TestRun_MissingFile(t *testing.T) {
	t.Parallel()

	root := writeBundle(t)
	require.NoError(t, os.Remove(filepath.Join(root, bundle.PayloadDirName, "docs", "guide.md")))

	report, err := Run(context.Background(), &Options{Path: root})
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.Len(t, report.Findings, 1)
	require.Equal(t, bundle.FindingMissing, report.Findings[0].Kind)
	require.Equal(t, "docs/guide.md", report.Findings[0].Path)
}

// TestRun_ExtraFile covers extras detection with and without tolerance.
func TestRun_ExtraFile(t *testing.T) {
	t.Parallel()

	root := writeBundle(t)
	extra := filepath.Join(root, bundle.PayloadDirName, "docs", "smuggled.txt")
	require.NoError(t, os.WriteFile(extra, []byte("surprise"), 0o644))

	report, err := Run(context.Background(), &Options{Path: root})
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.Len(t, report.Findings, 1)
	require.Equal(t, bundle.FindingExtraFile, report.Findings[0].Kind)
	require.Equal(t, "docs/smuggled.txt", report.Findings[0].Path)

	report, err = Run(context.Background(), &Options{Path: root, TolerateExtras: true})
	require.NoError(t, err)
	require.True(t, report.OK())
}

// TestRun_FlattenedLayout verifies files beside the manifest with no
// payload wrapper, where manifest and notes must not count as extras.
func TestRun_FlattenedLayout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "data.txt"), []byte("flat"), 0o644))

	manifest, err := bundle.Build(root, "acme", "internal", time.Now())
	require.NoError(t, err)
	require.NoError(t, manifest.WriteFile(filepath.Join(root, bundle.ManifestFilename)))
	require.NoError(t, os.WriteFile(filepath.Join(root, bundle.NotesFilename), []byte("notes\n"), 0o644))

	report, err := Run(context.Background(), &Options{Path: root})
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Equal(t, 1, report.Checked)
}

// TestRun_ManifestNotFound classifies a manifest-less directory as an
// operational error, not findings.
func TestRun_ManifestNotFound(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "loose.txt"), []byte("x"), 0o644))

	_, err := Run(context.Background(), &Options{Path: root})
	require.ErrorIs(t, err, ErrManifestNotFound)
	require.NotErrorIs(t, err, ErrVerificationFailed)
}

// TestRun_ManifestInsidePayload tolerates being pointed at a parent whose
// payload directory carries the manifest.
func TestRun_ManifestInsidePayload(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	payload := filepath.Join(root, bundle.PayloadDirName)
	require.NoError(t, os.MkdirAll(payload, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(payload, "data.txt"), []byte("flat"), 0o644))

	// Build covers data.txt only, then the manifest is dropped inside payload.
	manifest, err := bundle.Build(payload, "acme", "internal", time.Now())
	require.NoError(t, err)
	require.NoError(t, manifest.WriteFile(filepath.Join(payload, bundle.ManifestFilename)))

	report, err := Run(context.Background(), &Options{Path: root})
	require.NoError(t, err)
	require.True(t, report.OK())
}
