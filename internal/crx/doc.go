// Package crx opens Chromium extension packages and unpacks them into a
// directory that the browser can load as an unpacked extension.
//
// A package is a zip archive, optionally prefixed by a CRX2 or CRX3 signing
// header. The header is skipped for extraction and used to derive the
// extension ID the package was signed for.
package crx
