package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the download and unpack steps.
type Config struct {
	// TargetDir is the base directory receiving one subdirectory per extension.
	TargetDir string `yaml:"target_dir"`
	// OS is the platform tag reported to the update endpoint.
	OS string `yaml:"os"`
	// ProductVersion is the browser version reported to the update endpoint.
	ProductVersion string `yaml:"product_version"`
	// UpdateURL is the update endpoint queried for packages.
	UpdateURL string `yaml:"update_url"`
	// Timeout bounds the download request. Zero disables the limit.
	Timeout time.Duration `yaml:"timeout"`
	// Presets maps user-defined aliases to extension IDs, on top of the built-ins.
	Presets map[string]string `yaml:"presets,omitempty"`
}

const (
	// DefaultConfigDirname is the directory under the user config dir holding settings.
	DefaultConfigDirname = "inox-unpack"

	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "settings.yaml"

	// DefaultTargetDir is where extensions land when nothing else is configured.
	DefaultTargetDir = "~/.inoxunpack"

	// DefaultProductVersion is the browser version sent with download requests.
	DefaultProductVersion = "55.0.2883.87"

	// DefaultUpdateURL is the Chrome Web Store update endpoint.
	DefaultUpdateURL = "https://clients2.google.com/service/update2/crx"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultDirPermissions is used for directories created by the tool.
	DefaultDirPermissions = 0o755
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeTimeout is returned when the timeout is below zero.
	errNegativeTimeout = errors.New("timeout must not be negative")
	// errEmptyPreset is returned for preset entries with an empty name or ID.
	errEmptyPreset = errors.New("preset name and extension ID must not be empty")
)

// Default returns settings populated with built-in values.
func Default() *Config {
	return &Config{
		TargetDir:      DefaultTargetDir,
		OS:             DefaultOS(),
		ProductVersion: DefaultProductVersion,
		UpdateURL:      DefaultUpdateURL,
	}
}

// DefaultOS maps runtime.GOOS to the platform tag understood by the update endpoint.
func DefaultOS() string {
	switch runtime.GOOS {
	case "windows":
		return "win"
	case "darwin":
		return "mac"
	case "openbsd":
		return "openbsd"
	default:
		return "linux"
	}
}

// DefaultPath returns the settings location inside the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}

	return filepath.Join(dir, DefaultConfigDirname, DefaultConfigFilename), nil
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error

		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load, except that an empty path yields the
// built-in defaults when the default settings file does not exist or the
// user config directory cannot be resolved.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}

	defaultPath, err := DefaultPath()
	if err != nil {
		return Default(), nil //nolint:nilerr // Settings are optional.
	}

	cfg, err := Load(defaultPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes settings to the provided path, creating parent directories.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		var err error

		if path, err = DefaultPath(); err != nil {
			return err
		}
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	path = filepath.Clean(path)
	if err = os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	// Restrict permissions.
	if err = os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills empty fields with defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.TargetDir == "" {
		settings.TargetDir = DefaultTargetDir
	}

	if settings.OS == "" {
		settings.OS = DefaultOS()
	}

	if settings.ProductVersion == "" {
		settings.ProductVersion = DefaultProductVersion
	}

	if settings.UpdateURL == "" {
		settings.UpdateURL = DefaultUpdateURL
	}

	if settings.Timeout < 0 {
		return errNegativeTimeout
	}

	if _, err := url.ParseRequestURI(settings.UpdateURL); err != nil {
		return fmt.Errorf("invalid update URL: %w", err)
	}

	for name, id := range settings.Presets {
		if strings.TrimSpace(name) == "" || strings.TrimSpace(id) == "" {
			return fmt.Errorf("preset %q: %w", name, errEmptyPreset)
		}
	}

	return nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, path[1:]), nil
}
