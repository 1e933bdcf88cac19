package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/transfer-bundle/internal/config"
	"github.com/oshokin/transfer-bundle/internal/logger"
	"github.com/oshokin/transfer-bundle/internal/service/packager"
	"github.com/oshokin/transfer-bundle/internal/version"
)

var (
	// configPath is the path where the effective policy is persisted.
	configPath string
	// outputDir is where the archive is written.
	outputDir string
	// organization is the issuing organization label.
	organization string
	// label is the classification or marking label.
	label string
	// extensions is the whitelist of allowed extensions.
	extensions []string
	// maxSizeMB is the per-file size cap in megabytes.
	maxSizeMB int64
	// allowBinary additionally permits the fixed binary document set.
	allowBinary bool
	// scrubMetadata enables the best-effort EXIF scrub.
	scrubMetadata bool
	// scanPayload enables the antivirus scan of the staged payload.
	scanPayload bool
	// sign enables detached signature generation.
	sign bool
	// signingKey identifies the signing key.
	signingKey string
	// logLevel sets the logging verbosity.
	logLevel string

	// rootCmd represents the base command packaging a source tree into a
	// verifiable transfer bundle.
	rootCmd = &cobra.Command{
		Use:   "bundle-packager [source-dir]",
		Short: "Package a source tree into a verifiable transfer bundle.",
		Long: `Package whitelisted files from a source directory into a compressed,
manifest-backed archive for transfer across a security boundary.

Files are selected by extension (case-insensitive) and per-file size cap,
staged with their source-relative paths preserved, optionally scrubbed of
image metadata and scanned for malware, then recorded in a SHA-256 manifest
and compressed into a tar.gz archive. An optional detached signature is
produced alongside the archive.

The EXIF scrub, the antivirus scan and the signing step are best-effort:
a missing tool is logged and skipped. The one exception is a positive
malware detection, which aborts packaging.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &packager.Options{
				ConfigPath:    configPath,
				SourceDir:     args[0],
				OutputDir:     outputDir,
				Organization:  organization,
				Label:         label,
				Extensions:    extensions,
				MaxSizeMB:     maxSizeMB,
				AllowBinary:   allowBinary,
				ScrubMetadata: scrubMetadata,
				ScanPayload:   scanPayload,
				Sign:          sign,
				SigningKey:    signingKey,
			}

			_, err := packager.Run(ctx, options)

			return err
		},
	}
)

// Execute runs the bundle-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to persist the effective policy")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", config.DefaultOutputDir, "directory where the archive is written")
	rootCmd.Flags().StringVar(&organization, "org", "", "issuing organization label")
	rootCmd.Flags().StringVar(&label, "label", "", "classification or marking label")
	rootCmd.Flags().StringSliceVarP(&extensions, "ext", "e", nil, "whitelisted extensions (repeatable or comma-separated)")
	rootCmd.Flags().Int64Var(&maxSizeMB, "max-size-mb", 0, "per-file size cap in megabytes")
	rootCmd.Flags().BoolVar(&allowBinary, "allow-binary", false, "also permit the fixed binary document extension set")
	rootCmd.Flags().BoolVar(&scrubMetadata, "scrub", false, "strip embedded metadata from staged images (best-effort)")
	rootCmd.Flags().BoolVar(&scanPayload, "scan", false, "run an antivirus scan over the staged payload")
	rootCmd.Flags().BoolVar(&sign, "sign", false, "produce a detached armored signature for the archive")
	rootCmd.Flags().StringVar(&signingKey, "key", "", "signing key identifier")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error)")
}
