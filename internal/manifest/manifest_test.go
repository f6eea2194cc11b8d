package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeManifest stores contents as manifest.json in a fresh directory.
func writeManifest(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, os.WriteFile(path, []byte(contents), FileMode))

	return path
}

// TestLoadAndStripUpdateURL verifies update_url removal survives a save/load cycle.
func TestLoadAndStripUpdateURL(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `{"name":"X","update_url":"http://example","version":"1.0.4"}`)

	m, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "X", m.Name())

	updateURL, ok := m.UpdateURL()
	require.True(t, ok)
	require.Equal(t, "http://example", updateURL)

	require.True(t, m.RemoveUpdateURL())
	require.False(t, m.RemoveUpdateURL())
	require.NoError(t, m.Save())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"X","version":"1.0.4"}`, string(contents))
	require.Contains(t, string(contents), "\n    \"name\": \"X\"")

	// No swap leftovers next to the manifest.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestSavePreservesUnknownKeysAndNumbers checks that unrelated content is untouched.
func TestSavePreservesUnknownKeysAndNumbers(t *testing.T) {
	t.Parallel()

	source := `{
		"manifest_version": 2,
		"name": "uBlock <Origin>",
		"permissions": ["tabs", "<all_urls>"],
		"content_security_policy": "script-src 'self'; object-src 'self'",
		"big": 12345678901234567890
	}`
	path := writeManifest(t, source)

	m, err := Load(path)
	require.NoError(t, err)
	require.False(t, m.RemoveUpdateURL())
	require.NoError(t, m.Save())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, source, string(contents))
	require.Contains(t, string(contents), "12345678901234567890")
	require.Contains(t, string(contents), "<all_urls>")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(contents, &decoded))
	require.NotContains(t, decoded, "update_url")
}

// TestLoadErrors covers malformed input and schema violations.
func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), Filename))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeManifest(t, `{"name":`))
	require.Error(t, err)

	_, err = Load(writeManifest(t, `["name"]`))
	require.ErrorIs(t, err, ErrNotObject)

	_, err = Load(writeManifest(t, `{"version":"1.0"}`))
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Load(writeManifest(t, `{"name":42}`))
	require.ErrorIs(t, err, ErrInvalid)
}

// TestParseAcceptsBOM ensures a leading byte order mark is tolerated.
func TestParseAcceptsBOM(t *testing.T) {
	t.Parallel()

	m, err := Parse("manifest.json", []byte("\xef\xbb\xbf{\"name\":\"BOM\"}"))
	require.NoError(t, err)
	require.Equal(t, "BOM", m.Name())
	require.Equal(t, "manifest.json", m.path)
}
