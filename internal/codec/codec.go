// Package codec converts index entries and metadata to and from the bytes kept
// in the store.
package codec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/hyperjump/bookrec/internal/models"
)

// Entry layout (little-endian):
//
//	[Magic:4 "BREC"][Version:1][EncVersion:2][Dim:4]
//	[IDLen:2][ID][TitleLen:2][Title][AuthorLen:2][Author][EncLen:2][Encoding]
//	[Vector: Dim*4]
var entryMagic = [4]byte{'B', 'R', 'E', 'C'}

// FormatVersion is the entry layout version written by EncodeEntry.
const FormatVersion uint8 = 1

const (
	headerLen    = 4 + 1 + 2 + 4
	maxStringLen = math.MaxUint16
)

// EncodeEntry serializes e. Encoding is deterministic: equal entries produce
// equal bytes.
func EncodeEntry(e *models.IndexEntry) ([]byte, error) {
	fields := [...]string{e.ID, e.Title, e.Author, e.Encoding}
	size := headerLen + 4*len(e.Vector)
	for _, f := range fields {
		if len(f) > maxStringLen {
			return nil, fmt.Errorf("%w: entry %s: field longer than %d bytes", models.ErrFormat, e.ID, maxStringLen)
		}
		size += 2 + len(f)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, entryMagic[:]...)
	buf = append(buf, FormatVersion)
	buf = binary.LittleEndian.AppendUint16(buf, e.EncodingVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Vector))) //nolint:gosec
	for _, f := range fields {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(f))) //nolint:gosec
		buf = append(buf, f...)
	}
	for _, v := range e.Vector {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf, nil
}

// DecodeEntry parses bytes written by EncodeEntry. Any truncation, trailing
// data, bad magic or unknown version is an ErrFormat.
func DecodeEntry(data []byte) (*models.IndexEntry, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: entry too short (%d bytes)", models.ErrFormat, len(data))
	}
	if [4]byte(data[0:4]) != entryMagic {
		return nil, fmt.Errorf("%w: invalid entry magic", models.ErrFormat)
	}
	if v := data[4]; v != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported entry version %d", models.ErrFormat, v)
	}
	e := &models.IndexEntry{
		EncodingVersion: binary.LittleEndian.Uint16(data[5:7]),
	}
	dim := binary.LittleEndian.Uint32(data[7:11])

	r := data[headerLen:]
	var fields [4]string
	for i := range fields {
		if len(r) < 2 {
			return nil, fmt.Errorf("%w: truncated entry header", models.ErrFormat)
		}
		n := int(binary.LittleEndian.Uint16(r))
		r = r[2:]
		if len(r) < n {
			return nil, fmt.Errorf("%w: truncated entry header", models.ErrFormat)
		}
		fields[i] = string(r[:n])
		r = r[n:]
	}
	e.ID, e.Title, e.Author, e.Encoding = fields[0], fields[1], fields[2], fields[3]

	if uint64(len(r)) != 4*uint64(dim) {
		return nil, fmt.Errorf("%w: entry %s: vector payload is %d bytes, want %d", models.ErrFormat, e.ID, len(r), 4*uint64(dim))
	}
	e.Vector = make([]float32, dim)
	for i := range e.Vector {
		e.Vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(r[4*i:]))
	}
	return e, nil
}

// EncodeMeta serializes index metadata as JSON.
func EncodeMeta(m *models.IndexMeta) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal index meta: %w", err)
	}
	return b, nil
}

// DecodeMeta parses metadata written by EncodeMeta.
func DecodeMeta(data []byte) (*models.IndexMeta, error) {
	var m models.IndexMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: index meta: %v", models.ErrFormat, err)
	}
	if m.Dimensions < 0 {
		return nil, fmt.Errorf("%w: index meta: negative dimensions", models.ErrFormat)
	}
	return &m, nil
}
