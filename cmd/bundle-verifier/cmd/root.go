package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/transfer-bundle/internal/logger"
	"github.com/oshokin/transfer-bundle/internal/service/verifier"
	"github.com/oshokin/transfer-bundle/internal/version"
)

var (
	// tolerateExtras disables flagging of files absent from the manifest.
	tolerateExtras bool
	// logLevel sets the logging verbosity.
	logLevel string

	// rootCmd represents the base command verifying a transfer bundle
	// against its manifest.
	rootCmd = &cobra.Command{
		Use:   "bundle-verifier [bundle-dir-or-archive]",
		Short: "Verify a transfer bundle against its manifest.",
		Long: `Verify the integrity of a transfer bundle after it crossed the boundary.

Accepts either an already-extracted bundle directory or a tar.gz archive;
archives are extracted into a disposable scratch directory that is always
removed. Every manifest entry is re-hashed and re-measured, and payload
files missing from the manifest are reported unless tolerated.

Exit codes: 0 when the bundle verified clean, 1 when findings were
detected, 2 when verification could not run (manifest not found,
unreadable archive, no hashing capability).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &verifier.Options{
				Path:           args[0],
				TolerateExtras: tolerateExtras,
			}

			_, err := verifier.Run(ctx, options)

			return err
		},
	}
)

// Execute runs the bundle-verifier CLI. Findings and operational errors
// exit with distinct status codes.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(context.Background(), err.Error())

		if errors.Is(err, verifier.ErrVerificationFailed) {
			os.Exit(verifier.ExitFindings)
		}

		os.Exit(verifier.ExitOperational)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().BoolVar(&tolerateExtras, "tolerate-extras", false, "do not flag payload files absent from the manifest")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error)")
}
