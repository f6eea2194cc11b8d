// Package config defines the settings used by inox-unpack and provides
// helpers to load, validate and save them in YAML format.
//
// The Config type holds the target directory, the parameters reported to the
// update endpoint and user-defined presets. A missing default settings file is
// not an error: built-in values are used instead.
package config
