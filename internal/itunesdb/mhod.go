package itunesdb

import (
	"encoding/binary"
	"fmt"

	"github.com/jdfalk/ipodsync/internal/chunkcodec"
)

const mhodStringHeaderLen = 24
const mhodStringSubHeaderLen = 16

// writeMHODString builds a complete MHOD string chunk: a 24-byte
// chunk header, a 16-byte string-type sub-header (encoding, length,
// two reserved fields), and the UTF-16LE payload. Returns nil if s is
// empty: empty string fields are omitted entirely rather than written
// as zero-length MHODs (mhod_writer.py's write_mhod_string).
func writeMHODString(mhodType uint32, s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	payload, err := encodeUTF16LE(s)
	if err != nil {
		return nil, fmt.Errorf("itunesdb: mhod type %d: %w", mhodType, err)
	}

	totalLen := mhodStringHeaderLen + mhodStringSubHeaderLen + len(payload)
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], mhodStringHeaderLen)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint32(buf[12:16], mhodType)
	// buf[16:24] two reserved uint32s, left zero

	sub := buf[mhodStringHeaderLen:]
	binary.LittleEndian.PutUint32(sub[0:4], 1) // encoding: 1 = UTF-16LE
	binary.LittleEndian.PutUint32(sub[4:8], uint32(len(payload)))
	binary.LittleEndian.PutUint32(sub[8:12], 1) // unk, always 1
	// sub[12:16] reserved, zero

	copy(buf[mhodStringHeaderLen+mhodStringSubHeaderLen:], payload)
	return buf, nil
}

// readMHODString parses a string-type MHOD chunk at data[offset:] and
// returns its decoded value.
func readMHODString(data []byte, offset int) (mhodType uint32, value string, end int, err error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHOD)
	if err != nil {
		return 0, "", 0, err
	}
	if len(c.Payload) < mhodStringSubHeaderLen {
		return 0, "", 0, fmt.Errorf("itunesdb: mhod string payload too short: %d bytes", len(c.Payload))
	}
	mhodType = binary.LittleEndian.Uint32(data[offset+12 : offset+16])
	strLen := binary.LittleEndian.Uint32(c.Payload[4:8])
	strStart := mhodStringSubHeaderLen
	strEnd := strStart + int(strLen)
	if strEnd > len(c.Payload) {
		return 0, "", 0, fmt.Errorf("itunesdb: mhod string length %d exceeds payload", strLen)
	}
	value, err = decodeUTF16LE(c.Payload[strStart:strEnd])
	if err != nil {
		return 0, "", 0, err
	}
	return mhodType, value, c.End(), nil
}

// writeLibraryIndices builds the ten MHODs (5 categories × position
// array + jump table, types 52/53) that give the iPod its browsing
// views. tracks must be in master-playlist order; Position entries in
// each SortIndex reference indices into this slice.
func writeLibraryIndices(tracks []*Track) ([]byte, int) {
	if len(tracks) == 0 {
		return nil, 0
	}
	indices := BuildSortIndices(tracks)
	var out []byte
	for _, idx := range indices {
		out = append(out, writeMHOD52(idx)...)
		out = append(out, writeMHOD53(idx)...)
	}
	return out, len(indices) * 2
}

func writeMHOD52(idx SortIndex) []byte {
	n := len(idx.Position)
	totalLen := 4*n + 72
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], 24)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint32(buf[12:16], MHODSortPosition)

	body := buf[24:]
	binary.LittleEndian.PutUint32(body[0:4], libSortCode(idx.Category))
	binary.LittleEndian.PutUint32(body[4:8], uint32(n))
	// body[8:48] is 40 bytes of zero padding

	indicesData := buf[24+48:]
	for i, v := range idx.Position {
		binary.LittleEndian.PutUint32(indicesData[i*4:i*4+4], v)
	}
	return buf
}

func writeMHOD53(idx SortIndex) []byte {
	n := len(idx.Jumps)
	totalLen := 12*n + 40
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], 24)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint32(buf[12:16], MHODJumpTable)

	body := buf[24:]
	binary.LittleEndian.PutUint32(body[0:4], libSortCode(idx.Category))
	binary.LittleEndian.PutUint32(body[4:8], uint32(n))
	// body[8:16] is 8 bytes of zero padding

	entries := buf[24+16:]
	for i, j := range idx.Jumps {
		off := i * 12
		binary.LittleEndian.PutUint16(entries[off:off+2], uint16(j.Letter))
		// entries[off+2:off+4] padding, zero
		binary.LittleEndian.PutUint32(entries[off+4:off+8], uint32(j.Start))
		binary.LittleEndian.PutUint32(entries[off+8:off+12], uint32(j.Count))
	}
	return buf
}
