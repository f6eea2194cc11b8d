package browser

import (
	"errors"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"
)

// fakeProcess implements ps.Process for tests.
type fakeProcess struct {
	pid  int
	name string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.name }

// TestRunning reports each known browser once, case-insensitively.
func TestRunning(t *testing.T) {
	t.Parallel()

	detector := NewDetectorWithLister(func() ([]ps.Process, error) {
		return []ps.Process{
			fakeProcess{pid: 10, name: "bash"},
			fakeProcess{pid: 11, name: "chromium"},
			fakeProcess{pid: 12, name: "chromium"},
			fakeProcess{pid: 13, name: "Chrome.exe"},
		}, nil
	})

	running, err := detector.Running()
	require.NoError(t, err)
	require.Equal(t, []string{"chromium", "chrome"}, running)
}

// TestRunning_ListerError propagates failures from the process table.
func TestRunning_ListerError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	detector := NewDetectorWithLister(func() ([]ps.Process, error) {
		return nil, boom
	})

	_, err := detector.Running()
	require.ErrorIs(t, err, boom)
}

// TestNewDetector exercises the real process table.
func TestNewDetector(t *testing.T) {
	t.Parallel()

	_, err := NewDetector().Running()
	require.NoError(t, err)
}
