// Package version exposes build metadata for inox-unpack.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds.
// Short feeds the --version flag, Full feeds the `version` subcommand.
package version
