package phonedata

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	pderrors "github.com/phonedata/phonedata/errors"
)

const (
	// headerSize is the exact size of the serialized header (8 bytes).
	headerSize = 8

	// versionSize is the number of ASCII version bytes at the start of the file.
	versionSize = 4

	// indexEntrySize is the size of each on-disk index entry (9 bytes).
	indexEntrySize = 9

	// prefixDigits is the number of leading digits used as the lookup key.
	prefixDigits = 7

	// minPrefix and maxPrefix bound the decimal value of a 7 digit prefix.
	minPrefix = 0
	maxPrefix = 9_999_999
)

// header is the 8-byte file header.
//
// Layout:
//
//	Offset  Size  Field        Type
//	0       4     Version      ASCII, e.g. "v001"
//	4       4     IndexOffset  uint32_le (absolute start of the index region)
//
// The records region occupies [headerSize, IndexOffset) and the index region
// runs from IndexOffset to end of file.
type header struct {
	Version     [versionSize]byte // 4 bytes: format version string
	IndexOffset uint32            // 4 bytes: absolute offset of the index region
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	copy(buf[0:4], h.Version[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.IndexOffset)
}

// decodeHeader parses an 8-byte header. It does not check IndexOffset against
// the file size; the caller does that once the size is known.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, corrupt(pderrors.ErrTruncatedFile, "header is %d bytes, need %d", len(buf), headerSize)
	}

	h := &header{
		IndexOffset: binary.LittleEndian.Uint32(buf[4:8]),
	}
	copy(h.Version[:], buf[0:4])

	if !utf8.Valid(h.Version[:]) {
		return nil, fmt.Errorf("%w: version bytes are not valid UTF-8", pderrors.ErrCorruptDatabase)
	}
	if h.IndexOffset < headerSize {
		return nil, fmt.Errorf("%w: index offset %d points inside the header", pderrors.ErrCorruptDatabase, h.IndexOffset)
	}

	return h, nil
}

// version returns the version bytes as a string.
func (h *header) version() string {
	return string(h.Version[:])
}

// recordsSize returns the length of the records region.
func (h *header) recordsSize() int {
	return int(h.IndexOffset) - headerSize
}

// indexEntry is a single entry in the index region.
//
// Wire format (9 bytes packed, little-endian):
//
//	Offset  Size  Field         Type
//	0       4     Prefix        int32_le (decimal value of the first 7 digits)
//	4       4     RecordOffset  int32_le (absolute file offset of the record)
//	8       1     Carrier       uint8 (1..8)
//
// RecordOffset is absolute, so the records blob index is RecordOffset - headerSize.
type indexEntry struct {
	Prefix       int32
	RecordOffset int32
	Carrier      Carrier
}

// encodeIndexEntryTo serializes an index entry into an existing buffer.
func encodeIndexEntryTo(e indexEntry, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(e.Prefix))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(e.RecordOffset))
	buf[8] = byte(e.Carrier)
}

// decodeIndexEntry parses a 9-byte index entry.
func decodeIndexEntry(buf []byte) indexEntry {
	return indexEntry{
		Prefix:       int32(binary.LittleEndian.Uint32(buf[0:4])),
		RecordOffset: int32(binary.LittleEndian.Uint32(buf[4:8])),
		Carrier:      Carrier(buf[8]),
	}
}

// corrupt wraps cause (typically ErrTruncatedFile) so that both it and
// ErrCorruptDatabase match with errors.Is.
func corrupt(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", pderrors.ErrCorruptDatabase, cause, fmt.Sprintf(format, args...))
}
