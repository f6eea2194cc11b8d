package crx

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	// magic opens every signed package.
	magic = "Cr24"

	// VersionZip marks a bare zip archive without a signing header.
	VersionZip = 0
	// Version2 is the legacy header with a single RSA key and signature.
	Version2 = 2
	// Version3 is the protobuf-based header.
	Version3 = 3

	// crx2PrefixSize covers magic, version and the two length fields.
	crx2PrefixSize = 16
	// crx3PrefixSize covers magic, version and the header length.
	crx3PrefixSize = 12

	// signedHeaderDataField is CrxFileHeader.signed_header_data.
	signedHeaderDataField protowire.Number = 10000
	// crxIDField is SignedData.crx_id.
	crxIDField protowire.Number = 1

	// idBytes is the number of hash bytes encoded into an extension ID.
	idBytes = 16
)

var (
	errUnsupportedVersion = errors.New("unsupported package format version")
	errTruncatedHeader    = errors.New("truncated package header")
	errBadCrxID           = errors.New("malformed crx_id in package header")
)

// Header describes the signing header of a package.
type Header struct {
	// Version is 0 for a bare zip, otherwise the CRX format version.
	Version uint32
	// ID is the extension ID the package was signed for, empty if unknown.
	ID string
	// PayloadOffset is where the zip archive starts.
	PayloadOffset int64
}

// readHeader parses the optional signing header from r of the given size.
func readHeader(r io.ReaderAt, size int64) (*Header, error) {
	prefix := make([]byte, crx3PrefixSize)

	if size < int64(len(magic)) {
		return nil, errTruncatedHeader
	}

	n, err := r.ReadAt(prefix, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read package header: %w", err)
	}

	if string(prefix[:len(magic)]) != magic {
		return &Header{Version: VersionZip}, nil
	}

	if n < crx3PrefixSize {
		return nil, errTruncatedHeader
	}

	version := binary.LittleEndian.Uint32(prefix[4:8])

	switch version {
	case Version2:
		return readHeaderV2(r, size)
	case Version3:
		return readHeaderV3(r, size, binary.LittleEndian.Uint32(prefix[8:12]))
	default:
		return nil, fmt.Errorf("%w: %d", errUnsupportedVersion, version)
	}
}

// readHeaderV2 reads the public key that follows the CRX2 prefix.
func readHeaderV2(r io.ReaderAt, size int64) (*Header, error) {
	lengths := make([]byte, 8)
	if _, err := r.ReadAt(lengths, 8); err != nil {
		return nil, errTruncatedHeader
	}

	keyLen := int64(binary.LittleEndian.Uint32(lengths[0:4]))
	sigLen := int64(binary.LittleEndian.Uint32(lengths[4:8]))

	offset := crx2PrefixSize + keyLen + sigLen
	if offset > size {
		return nil, errTruncatedHeader
	}

	publicKey := make([]byte, keyLen)
	if _, err := r.ReadAt(publicKey, crx2PrefixSize); err != nil {
		return nil, errTruncatedHeader
	}

	hash := sha256.Sum256(publicKey)

	return &Header{
		Version:       Version2,
		ID:            encodeID(hash[:idBytes]),
		PayloadOffset: offset,
	}, nil
}

// readHeaderV3 decodes the protobuf CrxFileHeader that follows the CRX3 prefix.
func readHeaderV3(r io.ReaderAt, size int64, headerLen uint32) (*Header, error) {
	offset := crx3PrefixSize + int64(headerLen)
	if offset > size {
		return nil, errTruncatedHeader
	}

	raw := make([]byte, headerLen)
	if _, err := r.ReadAt(raw, crx3PrefixSize); err != nil {
		return nil, errTruncatedHeader
	}

	crxID, err := findCrxID(raw)
	if err != nil {
		return nil, err
	}

	header := &Header{
		Version:       Version3,
		PayloadOffset: offset,
	}

	if crxID != nil {
		header.ID = encodeID(crxID)
	}

	return header, nil
}

// findCrxID walks CrxFileHeader looking for SignedData.crx_id.
func findCrxID(header []byte) ([]byte, error) {
	signed, err := findBytesField(header, signedHeaderDataField)
	if err != nil || signed == nil {
		return nil, err
	}

	crxID, err := findBytesField(signed, crxIDField)
	if err != nil || crxID == nil {
		return nil, err
	}

	if len(crxID) != idBytes {
		return nil, fmt.Errorf("%w: %d bytes", errBadCrxID, len(crxID))
	}

	return crxID, nil
}

// findBytesField returns the first length-delimited field numbered want.
func findBytesField(message []byte, want protowire.Number) ([]byte, error) {
	for len(message) > 0 {
		num, typ, n := protowire.ConsumeTag(message)
		if n < 0 {
			return nil, fmt.Errorf("decode package header: %w", protowire.ParseError(n))
		}

		message = message[n:]

		if num == want && typ == protowire.BytesType {
			value, m := protowire.ConsumeBytes(message)
			if m < 0 {
				return nil, fmt.Errorf("decode package header: %w", protowire.ParseError(m))
			}

			return value, nil
		}

		m := protowire.ConsumeFieldValue(num, typ, message)
		if m < 0 {
			return nil, fmt.Errorf("decode package header: %w", protowire.ParseError(m))
		}

		message = message[m:]
	}

	return nil, nil
}

// encodeID maps each nibble of hash onto the a..p alphabet.
func encodeID(hash []byte) string {
	id := make([]byte, 0, len(hash)*2)
	for _, b := range hash {
		id = append(id, 'a'+(b>>4), 'a'+(b&0x0f))
	}

	return string(id)
}
