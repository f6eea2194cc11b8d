// Package preset maps human-friendly extension names to Chrome Web Store IDs.
package preset
