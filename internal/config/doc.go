// Package config defines the packaging policy used by the bundle binaries
// and provides helpers to load, validate and save it in YAML format.
//
// The Config type holds the extension whitelist, the per-file size cap and
// the toggles for the optional best-effort steps (metadata scrub, payload
// scan, detached signing).
package config
