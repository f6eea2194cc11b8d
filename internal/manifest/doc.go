// Package manifest loads, validates and rewrites the manifest.json of an
// unpacked Chromium extension.
//
// Unknown keys are preserved as-is; numbers keep their textual form. Saving
// swaps the file atomically so a failed write never leaves a truncated manifest.
package manifest
