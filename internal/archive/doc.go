// Package archive produces and consumes the gzip-compressed tar container
// that carries a bundle across the boundary.
//
// Entries are written in sorted path order with paths relative to the
// staged bundle root, so the archive's top level is exactly payload/...,
// manifest.txt and bundle_notes.txt with no enclosing directory.
// Extraction refuses entries that would escape the destination.
package archive
