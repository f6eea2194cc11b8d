package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	// Filename is the manifest file name at the root of an extension.
	Filename = "manifest.json"

	// FileMode is applied to rewritten manifests.
	FileMode os.FileMode = 0o644

	// keyName holds the extension display name.
	keyName = "name"
	// keyUpdateURL points the browser at the store's auto-update feed.
	keyUpdateURL = "update_url"

	// indent matches the layout produced by the store tooling.
	indent = "    "

	schemaResource = "manifest.schema.json"
)

//go:embed schema/manifest.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	errCompile     error
)

var (
	// ErrNotObject is returned when the manifest is valid JSON but not an object.
	ErrNotObject = errors.New("manifest is not a JSON object")
	// ErrInvalid is returned when the manifest violates the schema, e.g. has no name.
	ErrInvalid = errors.New("invalid manifest")
)

// Manifest is a decoded manifest.json bound to its location on disk.
type Manifest struct {
	// path is where the manifest was read from and will be written to.
	path string
	// fields holds every top-level key of the document.
	fields map[string]any
}

// getSchema compiles the embedded JSON schema once and returns it.
func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			errCompile = fmt.Errorf("unmarshal schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err = c.AddResource(schemaResource, doc); err != nil {
			errCompile = fmt.Errorf("add schema resource: %w", err)
			return
		}

		compiledSchema, errCompile = c.Compile(schemaResource)
		if errCompile != nil {
			errCompile = fmt.Errorf("compile schema: %w", errCompile)
		}
	})

	return compiledSchema, errCompile
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	path = filepath.Clean(path)

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return Parse(path, contents)
}

// Parse decodes and validates manifest contents; path is where Save writes to.
func Parse(path string, contents []byte) (*Manifest, error) {
	// Some packers prepend a UTF-8 BOM which the JSON decoder rejects.
	contents = bytes.TrimPrefix(contents, []byte("\xef\xbb\xbf"))

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}

	schema, err := getSchema()
	if err != nil {
		return nil, err
	}

	if err = schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return &Manifest{
		path:   path,
		fields: fields,
	}, nil
}

// Name returns the declared extension name.
func (m *Manifest) Name() string {
	name, _ := m.fields[keyName].(string)

	return name
}

// UpdateURL returns the auto-update URL and whether it is set.
func (m *Manifest) UpdateURL() (string, bool) {
	value, ok := m.fields[keyUpdateURL]
	if !ok {
		return "", false
	}

	updateURL, _ := value.(string)

	return updateURL, true
}

// RemoveUpdateURL drops the auto-update URL and reports whether it was present.
func (m *Manifest) RemoveUpdateURL() bool {
	if _, ok := m.fields[keyUpdateURL]; !ok {
		return false
	}

	delete(m.fields, keyUpdateURL)

	return true
}

// Encode renders the manifest as indented JSON.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", indent)

	if err := encoder.Encode(m.fields); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return buf.Bytes(), nil
}

// Save atomically replaces the manifest file with the current contents.
func (m *Manifest) Save() error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	options := goupdate.Options{
		TargetPath: m.path,
		TargetMode: FileMode,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
