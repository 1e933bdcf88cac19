// Package tools wraps the external executables the packager leans on:
// EXIF stripping, antivirus scanning and detached signing.
//
// All three share one pattern: probe availability on PATH, invoke as a
// blocking subprocess, classify the result. Absence or failure of a tool
// is a soft failure the caller logs and skips; the sole hard failure is a
// positive malware detection.
package tools
