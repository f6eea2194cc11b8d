// Package browser detects running Chromium-family browsers so the user can be
// reminded to reload an extension that was just replaced on disk.
package browser
