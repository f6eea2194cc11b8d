// Package installer downloads an extension from the store and installs it as
// an unpacked extension under the target directory.
//
// The run is linear: resolve the ID, prepare directories, download, unpack,
// replace the installed copy and print the install guide. The temporary
// working directory is removed whatever the outcome.
package installer
