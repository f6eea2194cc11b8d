// Package crxtest builds extension packages for tests.
package crxtest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"sort"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// SampleManifest is a manifest carrying a store update URL.
const SampleManifest = `{"name":"X","update_url":"http://example","version":"1.0"}`

// SampleFiles returns the entries of a typical store package.
func SampleFiles() map[string]string {
	return map[string]string{
		"manifest.json":                    SampleManifest,
		"_metadata/":                       "",
		"_metadata/verified_contents.json": `[{"signed_content":{}}]`,
		"js/background.js":                 "console.log('hi');",
	}
}

// Zip returns a zip archive with the given entries. Names ending in "/" become directories.
func Zip(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}

	sort.Strings(names)

	var buf bytes.Buffer

	w := zip.NewWriter(&buf)

	for _, name := range names {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", name, err)
		}

		if _, err = entry.Write([]byte(files[name])); err != nil {
			t.Fatalf("write zip entry %s: %v", name, err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	return buf.Bytes()
}

// V3 prefixes payload with a CRX3 header whose signed data names crxID.
func V3(payload, crxID []byte) []byte {
	var signedData []byte
	signedData = protowire.AppendTag(signedData, 1, protowire.BytesType)
	signedData = protowire.AppendBytes(signedData, crxID)

	var proof []byte
	proof = protowire.AppendTag(proof, 1, protowire.BytesType)
	proof = protowire.AppendBytes(proof, []byte("public-key"))
	proof = protowire.AppendTag(proof, 2, protowire.BytesType)
	proof = protowire.AppendBytes(proof, []byte("signature"))

	var header []byte
	header = protowire.AppendTag(header, 2, protowire.BytesType)
	header = protowire.AppendBytes(header, proof)
	header = protowire.AppendTag(header, 10000, protowire.BytesType)
	header = protowire.AppendBytes(header, signedData)

	out := []byte("Cr24")
	out = binary.LittleEndian.AppendUint32(out, 3)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(header))) //nolint:gosec // Test fixture.
	out = append(out, header...)

	return append(out, payload...)
}

// V2 prefixes payload with a CRX2 header carrying publicKey and a dummy signature.
func V2(payload, publicKey []byte) []byte {
	signature := []byte("signature")

	out := []byte("Cr24")
	out = binary.LittleEndian.AppendUint32(out, 2)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(publicKey))) //nolint:gosec // Test fixture.
	out = binary.LittleEndian.AppendUint32(out, uint32(len(signature)))
	out = append(out, publicKey...)
	out = append(out, signature...)

	return append(out, payload...)
}
