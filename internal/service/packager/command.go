package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/transfer-bundle/internal/archive"
	"github.com/oshokin/transfer-bundle/internal/config"
	"github.com/oshokin/transfer-bundle/internal/domain/bundle"
	"github.com/oshokin/transfer-bundle/internal/logger"
	"github.com/oshokin/transfer-bundle/internal/tools"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to persist the effective policy
	// (defaults to bundle-policy.yaml).
	ConfigPath string
	// SourceDir is the directory whose files are collected. Required.
	SourceDir string
	// OutputDir is where the archive is written. Created if absent.
	OutputDir string
	// Organization is the issuing organization label.
	Organization string
	// Label is the classification or marking label.
	Label string
	// Extensions is the whitelist of allowed extensions.
	Extensions []string
	// MaxSizeMB is the per-file size cap in megabytes.
	MaxSizeMB int64
	// AllowBinary additionally permits the fixed binary document set.
	AllowBinary bool
	// ScrubMetadata enables the best-effort EXIF scrub.
	ScrubMetadata bool
	// ScanPayload enables the antivirus scan.
	ScanPayload bool
	// Sign enables detached signature generation.
	Sign bool
	// SigningKey identifies the signing key. Optional.
	SigningKey string
	// Timestamp overrides the packaging time, mainly for reproducible
	// bundles in tests. Zero means time.Now().
	Timestamp time.Time
}

// Result describes a produced bundle.
type Result struct {
	// ArchivePath is the location of the finished archive.
	ArchivePath string
	// SignaturePath is the detached signature location, empty when unsigned.
	SignaturePath string
	// FileCount is the number of files in the payload.
	FileCount int
	// SkippedOversize is the number of whitelisted files excluded by size.
	SkippedOversize int
}

var (
	// errSourceMissing indicates the source directory does not exist.
	errSourceMissing = errors.New("source directory does not exist")
	// errSourceNotDir indicates the source path is not a directory.
	errSourceNotDir = errors.New("source path is not a directory")
	// ErrInfectedPayload indicates the scanner detected malware in the
	// staged payload. Packaging aborts and no archive is produced.
	ErrInfectedPayload = errors.New("malware detected in staged payload")
)

// packager carries the policy and tool handles for one packaging run.
type packager struct {
	// cfg is the effective packaging policy.
	cfg *config.Config
	// createdAt is the timestamp stamped into names, manifest and notes.
	createdAt time.Time
	// scrubber removes image metadata, best-effort.
	scrubber *tools.Scrubber
	// scanner sweeps the staged payload, fatal only on detection.
	scanner *tools.Scanner
	// signer produces the detached signature, best-effort.
	signer *tools.Signer
}

// Run executes the packaging workflow and returns the produced bundle.
func Run(ctx context.Context, opts *Options) (*Result, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "bundle-packager")

	cfg := &config.Config{
		Organization:  opts.Organization,
		Label:         opts.Label,
		OutputDir:     opts.OutputDir,
		Extensions:    opts.Extensions,
		MaxSizeMB:     opts.MaxSizeMB,
		AllowBinary:   opts.AllowBinary,
		ScrubMetadata: opts.ScrubMetadata,
		ScanPayload:   opts.ScanPayload,
		Sign:          opts.Sign,
		SigningKey:    opts.SigningKey,
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	pkg, err := newPackager(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initialize packager: %w", err)
	}

	result, err := pkg.run(ctx, opts.SourceDir)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Packager completed successfully")

	return result, nil
}

// newPackager validates the environment and builds a run instance.
func newPackager(cfg *config.Config, opts *Options) (*packager, error) {
	info, err := os.Stat(opts.SourceDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", errSourceMissing, opts.SourceDir)
	} else if err != nil {
		return nil, fmt.Errorf("stat source directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", errSourceNotDir, opts.SourceDir)
	}

	if !bundle.HashAvailable() {
		return nil, bundle.ErrHashUnavailable
	}

	if err = config.Save(opts.ConfigPath, cfg); err != nil {
		return nil, fmt.Errorf("save policy: %w", err)
	}

	createdAt := opts.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return &packager{
		cfg:       cfg,
		createdAt: createdAt,
		scrubber:  tools.NewScrubber(),
		scanner:   tools.NewScanner(),
		signer:    tools.NewSigner(),
	}, nil
}

// run drives the packaging pipeline against the source directory.
func (p *packager) run(ctx context.Context, sourceDir string) (*Result, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	release, err := acquireRunMarker(ctx, p.cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	defer release()

	staging, err := os.MkdirTemp("", "bundle-stage-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}

	// The staging tree never outlives the run.
	defer func() {
		_ = os.RemoveAll(staging)
	}()

	// The payload directory exists even when nothing passes the whitelist:
	// an empty selection still yields a valid bundle with an empty manifest.
	payloadDir := filepath.Join(staging, bundle.PayloadDirName)
	if err = os.MkdirAll(payloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create payload directory: %w", err)
	}

	included, skippedOversize, err := collectFiles(ctx, sourceDir, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}

	logger.InfoKV(ctx, "Staging approved files",
		"count", len(included), "skipped_oversize", skippedOversize)

	if err = stageFiles(sourceDir, payloadDir, included); err != nil {
		return nil, fmt.Errorf("stage files: %w", err)
	}

	scrubbed := p.scrubPayload(ctx, payloadDir)

	scanOutcome, err := p.scanPayload(ctx, payloadDir)
	if err != nil {
		return nil, err
	}

	if err = normalizePermissions(payloadDir); err != nil {
		return nil, fmt.Errorf("normalize permissions: %w", err)
	}

	// The manifest must reflect final on-disk bytes, so it is computed
	// only after scrubbing and permission normalization.
	manifest, err := bundle.Build(payloadDir, p.cfg.Organization, p.cfg.Label, p.createdAt)
	if err != nil {
		return nil, fmt.Errorf("build manifest: %w", err)
	}

	if err = manifest.WriteFile(filepath.Join(staging, bundle.ManifestFilename)); err != nil {
		return nil, err
	}

	if err = p.writeNotes(staging, len(included), scrubbed, scanOutcome); err != nil {
		return nil, fmt.Errorf("write notes: %w", err)
	}

	archivePath := filepath.Join(p.cfg.OutputDir,
		bundle.ArchiveName(p.cfg.Organization, p.cfg.Label, p.createdAt))

	logger.InfoKV(ctx, "Writing archive", "path", archivePath)

	if err = archive.Create(staging, archivePath); err != nil {
		return nil, fmt.Errorf("write archive: %w", err)
	}

	result := &Result{
		ArchivePath:     archivePath,
		FileCount:       len(included),
		SkippedOversize: skippedOversize,
	}

	result.SignaturePath = p.signArchive(ctx, archivePath)

	p.printNextSteps(ctx, result)

	return result, nil
}

// scrubPayload strips metadata from staged images. Never fatal: a missing
// tool skips the whole step, a per-file failure skips that file.
// Returns a human-readable outcome for the notes.
func (p *packager) scrubPayload(ctx context.Context, payloadDir string) string {
	if !p.cfg.ScrubMetadata {
		return "disabled"
	}

	if !p.scrubber.Available() {
		logger.Warnf(ctx, "Metadata scrub skipped: %s not found on PATH", p.scrubber.Binary)

		return "skipped (tool unavailable)"
	}

	var scrubbed, failed int

	err := filepath.Walk(payloadDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.Mode().IsRegular() || !tools.IsImage(path) {
			return err
		}

		if stripErr := p.scrubber.Strip(ctx, path); stripErr != nil {
			failed++

			logger.WarnKV(ctx, "Metadata scrub failed for file", "path", path, "error", stripErr)

			return nil
		}

		scrubbed++

		return nil
	})
	if err != nil {
		logger.WarnKV(ctx, "Metadata scrub walk failed", "error", err)
	}

	logger.InfoKV(ctx, "Metadata scrub finished", "scrubbed", scrubbed, "failed", failed)

	return fmt.Sprintf("applied (%d scrubbed, %d failed)", scrubbed, failed)
}

// scanPayload sweeps the staged payload. Infected is the one optional-tool
// outcome that aborts packaging; a broken or absent scanner only warns.
func (p *packager) scanPayload(ctx context.Context, payloadDir string) (string, error) {
	if !p.cfg.ScanPayload {
		return "disabled", nil
	}

	if !p.scanner.Available() {
		logger.Warnf(ctx, "Antivirus scan skipped: %s not found on PATH", p.scanner.Binary)

		return "skipped (tool unavailable)", nil
	}

	result, detail := p.scanner.Scan(ctx, payloadDir)

	switch result {
	case tools.ScanClean:
		logger.Info(ctx, "Antivirus scan clean")

		return "clean", nil
	case tools.ScanInfected:
		logger.ErrorKV(ctx, "Antivirus scan detected malware", "detail", detail)

		return "", fmt.Errorf("%w: %s", ErrInfectedPayload, detail)
	default:
		logger.WarnKV(ctx, "Antivirus scanner failed, continuing", "detail", detail)

		return "skipped (scanner error)", nil
	}
}

// signArchive produces the detached signature, best-effort.
// Returns the signature path or empty when no signature was produced.
func (p *packager) signArchive(ctx context.Context, archivePath string) string {
	if !p.cfg.Sign {
		return ""
	}

	if !p.signer.Available() {
		logger.Warnf(ctx, "Signing skipped: %s not found on PATH", p.signer.Binary)

		return ""
	}

	if p.cfg.SigningKey == "" {
		logger.Warn(ctx, "No signing key provided, using the tool's default identity")
	}

	sigPath := archivePath + bundle.SignatureSuffix

	if err := p.signer.Sign(ctx, archivePath, sigPath, p.cfg.SigningKey); err != nil {
		logger.WarnKV(ctx, "Signing failed, archive remains unsigned", "error", err)

		return ""
	}

	logger.InfoKV(ctx, "Detached signature written", "path", sigPath)

	return sigPath
}

// writeNotes records free-text provenance beside the manifest.
func (p *packager) writeNotes(staging string, fileCount int, scrubOutcome, scanOutcome string) error {
	var builder strings.Builder

	builder.WriteString("Transfer bundle notes\n")
	builder.WriteString("organization: " + p.cfg.Organization + "\n")
	builder.WriteString("label: " + p.cfg.Label + "\n")
	builder.WriteString("created: " + p.createdAt.UTC().Format(time.RFC3339) + "\n")
	builder.WriteString(fmt.Sprintf("payload files: %d\n", fileCount))
	builder.WriteString("metadata scrub: " + scrubOutcome + "\n")
	builder.WriteString("antivirus scan: " + scanOutcome + "\n")

	notesPath := filepath.Join(staging, bundle.NotesFilename)

	return os.WriteFile(notesPath, []byte(builder.String()), bundle.PayloadFileMode)
}

// printNextSteps logs human-readable guidance for the produced bundle.
func (p *packager) printNextSteps(ctx context.Context, result *Result) {
	var builder strings.Builder

	builder.WriteString("The bundle is ready for transfer:\n")
	builder.WriteString(result.ArchivePath)

	if result.SignaturePath != "" {
		builder.WriteString("\nHand over the detached signature together with the archive:\n")
		builder.WriteString(result.SignaturePath)
	}

	builder.WriteString("\nOn the receiving side, run: bundle-verifier ")
	builder.WriteString(filepath.Base(result.ArchivePath))

	logger.Info(ctx, builder.String())
}
