// Package webstore downloads extension packages from the Chrome Web Store
// update endpoint.
//
// A single GET with response=redirect is issued; the endpoint answers with a
// redirect to the .crx file, which is streamed into a local directory.
package webstore
