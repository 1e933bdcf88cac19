// Package bundle contains the core domain model of a transfer bundle.
//
// It defines the on-disk bundle layout (payload directory, manifest, notes),
// the manifest text format shared by the packager and the verifier, and the
// Finding/Report types produced during verification. The manifest line
// format is a wire contract: any change breaks interoperability between
// independently built packagers and verifiers.
package bundle
