// Package packager assembles a restricted-content transfer bundle.
//
// It walks a source tree, filters files through the extension/size policy,
// stages approved files under a private payload directory, applies the
// best-effort metadata scrub and antivirus scan, normalizes permissions,
// writes the integrity manifest and provenance notes, and compresses the
// whole bundle into a tar.gz archive with an optional detached signature.
//
// The only fatal conditions are a missing source directory, an unavailable
// hash function, and a positive malware detection. Every other optional
// step degrades to a logged warning.
package packager
