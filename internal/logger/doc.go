// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a sane console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, WarnKV, etc.).
//
// Both binaries accept a context and extract the logger from it, so every
// warning produced by a best-effort step is attributed to the component
// that emitted it.
package logger
