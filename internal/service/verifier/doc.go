// Package verifier checks a transfer bundle against its manifest.
//
// It accepts either an extracted bundle root or a tar.gz archive; archives
// are extracted into a scratch directory the verifier owns and removes on
// every exit path. Each manifest entry is checked independently for
// existence, size and digest, and findings are accumulated so one run
// reports every problem. Files present in the payload but absent from the
// manifest are flagged unless the caller tolerates extras.
package verifier
