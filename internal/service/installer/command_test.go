package installer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/inox-unpack/internal/browser"
	"github.com/oshokin/inox-unpack/internal/config"
	"github.com/oshokin/inox-unpack/internal/crx"
	"github.com/oshokin/inox-unpack/internal/crx/crxtest"
	"github.com/oshokin/inox-unpack/internal/webstore"
)

const uBlockID = "cjpalhdlnbpafiamejdnhcphjbkeiagm"

// fakeStore serves packages the way the update endpoint does.
type fakeStore struct {
	mu        sync.Mutex
	requested []string
	packages  map[string][]byte
	fileName  string
	status    int
}

func (s *fakeStore) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/service/update2/crx", func(w http.ResponseWriter, r *http.Request) {
		x := r.URL.Query().Get("x")
		id := strings.TrimPrefix(strings.SplitN(x, "&", 2)[0], "id=")

		s.mu.Lock()
		s.requested = append(s.requested, id)
		s.mu.Unlock()

		if s.status != 0 {
			w.WriteHeader(s.status)
			return
		}

		http.Redirect(w, r, "/crx/"+id+"/"+s.fileName, http.StatusFound)
	})
	mux.HandleFunc("/crx/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.Split(strings.TrimPrefix(r.URL.Path, "/crx/"), "/")[0]

		s.mu.Lock()
		data, ok := s.packages[id]
		s.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(data)
	})

	return mux
}

// setup starts a store and writes settings pointing at it.
func setup(t *testing.T, store *fakeStore) (configPath, target string) {
	t.Helper()

	if store.fileName == "" {
		store.fileName = "extension_1_0_0.crx"
	}

	ts := httptest.NewServer(store.handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	target = filepath.Join(dir, "extensions")
	configPath = filepath.Join(dir, "settings.yaml")

	require.NoError(t, config.Save(configPath, &config.Config{
		TargetDir: target,
		UpdateURL: ts.URL + "/service/update2/crx",
		Presets:   map[string]string{"my-preset": "aaaabbbbccccddddeeeeffffgggghhhh"},
	}))

	return configPath, target
}

// quietDetector reports no running browsers.
func quietDetector() *browser.Detector {
	return browser.NewDetectorWithLister(func() ([]ps.Process, error) {
		return nil, nil
	})
}

// readManifest decodes the installed manifest.
func readManifest(t *testing.T, dir string) map[string]any {
	t.Helper()

	contents, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(contents, &decoded))

	return decoded
}

// TestRun_PresetInstallsUnderMappedID covers the happy path with a built-in preset.
func TestRun_PresetInstallsUnderMappedID(t *testing.T) {
	t.Parallel()

	store := &fakeStore{packages: map[string][]byte{uBlockID: crxtest.Zip(t, crxtest.SampleFiles())}}
	configPath, target := setup(t, store)

	var out bytes.Buffer

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		Extension:  "ublock-origin",
		Output:     &out,
		Detector:   quietDetector(),
	})
	require.NoError(t, err)

	installed := filepath.Join(target, uBlockID)
	manifest := readManifest(t, installed)
	require.Equal(t, "X", manifest["name"])
	require.NotContains(t, manifest, "update_url")

	_, err = os.Stat(filepath.Join(installed, "_metadata"))
	require.ErrorIs(t, err, os.ErrNotExist)

	require.Equal(t, []string{uBlockID}, store.requested)
	require.Contains(t, out.String(), "Downloading extension "+uBlockID+" ...")
	require.Contains(t, out.String(), "Unpacked X to "+installed)
	require.Contains(t, out.String(), "4. Navigate to "+installed)
}

// TestRun_UserPresetAndTargetOverride checks settings presets and the target flag.
func TestRun_UserPresetAndTargetOverride(t *testing.T) {
	t.Parallel()

	const id = "aaaabbbbccccddddeeeeffffgggghhhh"

	store := &fakeStore{packages: map[string][]byte{
		id: crxtest.Zip(t, map[string]string{"manifest.json": `{"name":"Mine"}`}),
	}}
	configPath, _ := setup(t, store)
	override := filepath.Join(t.TempDir(), "elsewhere")

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		Target:     override,
		Extension:  "my-preset",
		Output:     &bytes.Buffer{},
		Detector:   quietDetector(),
	})
	require.NoError(t, err)
	require.Equal(t, "Mine", readManifest(t, filepath.Join(override, id))["name"])
}

// TestRun_ReplacesPreviousInstall ensures stale files do not survive a rerun.
func TestRun_ReplacesPreviousInstall(t *testing.T) {
	t.Parallel()

	store := &fakeStore{packages: map[string][]byte{
		uBlockID: crxtest.Zip(t, map[string]string{
			"manifest.json": `{"name":"Old","update_url":"http://example"}`,
			"old.js":        "old",
		}),
	}}
	configPath, target := setup(t, store)

	opts := &Options{ConfigPath: configPath, Extension: uBlockID, Output: &bytes.Buffer{}, Detector: quietDetector()}
	require.NoError(t, Run(context.Background(), opts))

	store.mu.Lock()
	store.packages[uBlockID] = crxtest.Zip(t, map[string]string{"manifest.json": `{"name":"New"}`})
	store.mu.Unlock()

	require.NoError(t, Run(context.Background(), opts))

	installed := filepath.Join(target, uBlockID)
	require.Equal(t, "New", readManifest(t, installed)["name"])

	_, err := os.Stat(filepath.Join(installed, "old.js"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_HTTPErrorLeavesTargetUntouched checks the download failure path.
func TestRun_HTTPErrorLeavesTargetUntouched(t *testing.T) {
	t.Parallel()

	store := &fakeStore{status: http.StatusForbidden}
	configPath, target := setup(t, store)

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		Extension:  uBlockID,
		Output:     &bytes.Buffer{},
		Detector:   quietDetector(),
	})

	var httpErr *webstore.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusForbidden, httpErr.StatusCode)
	require.Contains(t, err.Error(), "Forbidden")

	_, err = os.Stat(filepath.Join(target, uBlockID))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_UnexpectedURLSkipsExtraction covers redirects to non-package files.
func TestRun_UnexpectedURLSkipsExtraction(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		fileName: "extension.zip",
		packages: map[string][]byte{uBlockID: crxtest.Zip(t, crxtest.SampleFiles())},
	}
	configPath, target := setup(t, store)

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		Extension:  uBlockID,
		Output:     &bytes.Buffer{},
		Detector:   quietDetector(),
	})
	require.ErrorIs(t, err, webstore.ErrUnexpectedURL)

	_, err = os.Stat(filepath.Join(target, uBlockID))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRun_RemovesTemporaryDirectory verifies cleanup on success and failure.
func TestRun_RemovesTemporaryDirectory(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	store := &fakeStore{packages: map[string][]byte{
		uBlockID: crxtest.Zip(t, crxtest.SampleFiles()),
		// Broken manifest makes the second run fail after download.
		"bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb": crxtest.Zip(t, map[string]string{"manifest.json": "{"}),
	}}
	configPath, _ := setup(t, store)

	requireNoTemporaryDirectories := func() {
		t.Helper()

		entries, err := os.ReadDir(tmp)
		require.NoError(t, err)

		for _, entry := range entries {
			require.False(t, strings.HasPrefix(entry.Name(), temporaryDirectoryPattern), entry.Name())
		}
	}

	err := Run(context.Background(), &Options{
		ConfigPath: configPath,
		Extension:  uBlockID,
		Output:     &bytes.Buffer{},
		Detector:   quietDetector(),
	})
	require.NoError(t, err)
	requireNoTemporaryDirectories()

	err = Run(context.Background(), &Options{
		ConfigPath: configPath,
		Extension:  "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Output:     &bytes.Buffer{},
		Detector:   quietDetector(),
	})

	var unpackErr *crx.UnpackError
	require.ErrorAs(t, err, &unpackErr)
	requireNoTemporaryDirectories()
}

// TestRun_WithoutUserConfigDir runs on defaults when no config dir can be resolved.
func TestRun_WithoutUserConfigDir(t *testing.T) {
	t.Setenv("HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	target := filepath.Join(t.TempDir(), "extensions")

	// Stop at the network step: everything before it must succeed without settings.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer

	err := Run(ctx, &Options{
		Target:    target,
		Extension: uBlockID,
		Output:    &out,
		Detector:  quietDetector(),
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotContains(t, err.Error(), "load settings")
	require.Contains(t, out.String(), "Downloading extension "+uBlockID+" ...")

	info, err := os.Stat(target)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

// TestRun_Validation covers arguments rejected before any network access.
func TestRun_Validation(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	configPath, _ := setup(t, store)

	err := Run(context.Background(), &Options{ConfigPath: configPath, Extension: "  "})
	require.ErrorIs(t, err, errNoExtension)

	err = Run(context.Background(), &Options{
		ConfigPath: configPath,
		Extension:  "../etc",
		Output:     &bytes.Buffer{},
		Detector:   quietDetector(),
	})
	require.Error(t, err)
	require.Empty(t, store.requested)

	err = Run(context.Background(), &Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Extension: uBlockID})
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestInstallGuide checks both wordings of the final step.
func TestInstallGuide(t *testing.T) {
	t.Parallel()

	require.Contains(t, InstallGuide(""), "4. Navigate to "+defaultGuideLocation)
	require.Contains(t, InstallGuide("/x/y"), "4. Navigate to /x/y\n")
	require.Contains(t, InstallGuide(""), "Install Guide:")
}
