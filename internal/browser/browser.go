package browser

import (
	"os"
	"strings"

	"github.com/mitchellh/go-ps"
)

// knownExecutables are process names of Chromium-based browsers, without extension.
//
//nolint:gochecknoglobals // Read-only lookup table.
var knownExecutables = map[string]struct{}{
	"chrome":             {},
	"chromium":           {},
	"chromium-browser":   {},
	"google-chrome":      {},
	"inox":               {},
	"brave":              {},
	"vivaldi-bin":        {},
	"opera":              {},
	"msedge":             {},
	"iridium":            {},
	"ungoogled-chromium": {},
}

// ProcessLister returns the processes currently running.
type ProcessLister func() ([]ps.Process, error)

// Detector finds running browsers.
type Detector struct {
	list ProcessLister
}

// NewDetector returns a detector backed by the operating system process table.
func NewDetector() *Detector {
	return &Detector{list: ps.Processes}
}

// NewDetectorWithLister returns a detector using a custom process source.
func NewDetectorWithLister(list ProcessLister) *Detector {
	return &Detector{list: list}
}

// Running returns the distinct browser executables that are running now.
func (d *Detector) Running() ([]string, error) {
	processList, err := d.list()
	if err != nil {
		return nil, err
	}

	thisProcessID := os.Getpid()
	seen := make(map[string]struct{})

	var found []string

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		name := normalize(process.Executable())
		if _, known := knownExecutables[name]; !known {
			continue
		}

		if _, dup := seen[name]; dup {
			continue
		}

		seen[name] = struct{}{}
		found = append(found, name)
	}

	return found, nil
}

// normalize lowercases a process name and strips a Windows ".exe" suffix.
func normalize(executable string) string {
	return strings.TrimSuffix(strings.ToLower(executable), ".exe")
}
