// Package chunkcodec implements the little-endian, length-prefixed chunk
// format shared by iTunesDB and ArtworkDB: a 4-byte ASCII tag, a 4-byte
// header length, a 4-byte total length, and a tag-specific body that may
// itself contain nested chunks.
package chunkcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Errors raised while walking or validating a chunk stream.
var (
	ErrInvalidMagic       = errors.New("chunkcodec: invalid chunk tag")
	ErrTruncatedChunk     = errors.New("chunkcodec: chunk runs past end of buffer")
	ErrInconsistentLength = errors.New("chunkcodec: header length exceeds total length")
)

// Chunk is one decoded tag/header_len/total_len/payload record. Payload is
// a sub-slice of the original buffer — callers must copy it before mutating
// the source.
type Chunk struct {
	Tag       string
	HeaderLen uint32
	TotalLen  uint32
	Payload   []byte // bytes from offset+headerLen through offset+totalLen
	Offset    int    // absolute offset of the tag within the source buffer
}

// Read decodes a single chunk at offset in data. It does not recurse into
// children — callers walk the payload themselves with Read again, since
// each chunk type (MHIT, MHOD, ...) knows its own child layout.
func Read(data []byte, offset int) (Chunk, error) {
	if offset < 0 || offset+12 > len(data) {
		return Chunk{}, fmt.Errorf("%w: need 12 bytes at offset %d, have %d", ErrTruncatedChunk, offset, len(data)-offset)
	}
	tag := string(data[offset : offset+4])
	headerLen := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
	totalLen := binary.LittleEndian.Uint32(data[offset+8 : offset+12])

	if headerLen < 12 {
		return Chunk{}, fmt.Errorf("%w: tag %q header_len %d below minimum 12", ErrInconsistentLength, tag, headerLen)
	}
	if totalLen < headerLen {
		return Chunk{}, fmt.Errorf("%w: tag %q total_len %d < header_len %d", ErrInconsistentLength, tag, totalLen, headerLen)
	}
	if offset+int(totalLen) > len(data) {
		return Chunk{}, fmt.Errorf("%w: tag %q total_len %d runs past buffer (offset %d, len %d)", ErrTruncatedChunk, tag, totalLen, offset, len(data))
	}

	return Chunk{
		Tag:       tag,
		HeaderLen: headerLen,
		TotalLen:  totalLen,
		Payload:   data[offset+int(headerLen) : offset+int(totalLen)],
		Offset:    offset,
	}, nil
}

// ExpectTag reads a chunk at offset and verifies its tag matches want.
func ExpectTag(data []byte, offset int, want string) (Chunk, error) {
	c, err := Read(data, offset)
	if err != nil {
		return Chunk{}, err
	}
	if c.Tag != want {
		return Chunk{}, fmt.Errorf("%w: expected %q, got %q at offset %d", ErrInvalidMagic, want, c.Tag, offset)
	}
	return c, nil
}

// Header returns the raw bytes of the chunk's own header+fixed-fields
// region (offset through offset+headerLen), the part a caller typically
// parses field-by-field with its own fixed-offset accessors.
func (c Chunk) Header(data []byte) []byte {
	return data[c.Offset : c.Offset+int(c.HeaderLen)]
}

// End returns the absolute offset one past this chunk (c.Offset+TotalLen),
// i.e. where the next sibling chunk begins.
func (c Chunk) End() int {
	return c.Offset + int(c.TotalLen)
}

// Builder accumulates a chunk body (header fields + children) and patches
// HeaderLen/TotalLen once the full body is known, mirroring the "build
// children bottom-up, patch lengths last" idiom used throughout the codec.
type Builder struct {
	tag       string
	headerLen int
	buf       []byte
}

// NewBuilder starts a chunk with the given tag and a header region of
// headerLen bytes, zero-filled, ready for FieldsAt-style patches.
func NewBuilder(tag string, headerLen int) *Builder {
	if len(tag) != 4 {
		panic("chunkcodec: tag must be 4 bytes: " + tag)
	}
	b := &Builder{tag: tag, headerLen: headerLen, buf: make([]byte, headerLen)}
	copy(b.buf[0:4], tag)
	return b
}

// PutUint32 writes a little-endian uint32 at a byte offset within the
// header region.
func (b *Builder) PutUint32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(b.buf[offset:offset+4], v)
}

// PutUint16 writes a little-endian uint16 at a byte offset within the
// header region.
func (b *Builder) PutUint16(offset int, v uint16) {
	binary.LittleEndian.PutUint16(b.buf[offset:offset+2], v)
}

// PutUint64 writes a little-endian uint64 at a byte offset within the
// header region.
func (b *Builder) PutUint64(offset int, v uint64) {
	binary.LittleEndian.PutUint64(b.buf[offset:offset+8], v)
}

// PutBytes copies raw bytes into the header region at offset.
func (b *Builder) PutBytes(offset int, v []byte) {
	copy(b.buf[offset:offset+len(v)], v)
}

// AppendChild appends a fully-built child chunk's bytes after the current
// buffer contents (header or previously appended children).
func (b *Builder) AppendChild(child []byte) {
	b.buf = append(b.buf, child...)
}

// Bytes finalizes the chunk: patches the header_len (fixed at construction)
// and total_len (current buffer length) fields at offsets 4 and 8, then
// returns the complete byte slice.
func (b *Builder) Bytes() []byte {
	binary.LittleEndian.PutUint32(b.buf[4:8], uint32(b.headerLen))
	binary.LittleEndian.PutUint32(b.buf[8:12], uint32(len(b.buf)))
	return b.buf
}

// Len returns the builder's current total length (header + children so far).
func (b *Builder) Len() int {
	return len(b.buf)
}
