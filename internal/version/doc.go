// Package version exposes build metadata for the bundle tools.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. Both the
// packager and the verifier attach the same `version` subcommand so the
// two sides of a transfer can confirm they run matching builds.
package version
