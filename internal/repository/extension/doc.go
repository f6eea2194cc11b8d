// Package extension manages the on-disk collection of unpacked extensions.
//
// DirRepository keeps one subdirectory per extension ID under a base
// directory and replaces it wholesale on every install. A per-ID file lock
// serializes concurrent installs of the same extension.
package extension
