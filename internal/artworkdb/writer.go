package artworkdb

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/text/encoding/unicode"
)

// stringCodec16LE is the UTF-16LE codec for MHOD type-3 filename
// records, shared with internal/itunesdb's own string MHODs.
var stringCodec16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func utf16LEBytes(s string) []byte {
	enc := stringCodec16LE.NewEncoder()
	out, err := enc.Bytes([]byte(s))
	if err != nil {
		// Filenames are generated internally (":F<id>_1.ithmb"), never
		// user-controlled, so encoding can only fail on invalid UTF-8.
		panic(fmt.Sprintf("artworkdb: encoding filename %q: %v", s, err))
	}
	return out
}

// WriteOptions carries the fields a write needs beyond the in-memory
// Database model (spec §9: unknown header fields are preserved
// byte-for-byte from a prior valid header rather than guessed).
type WriteOptions struct {
	ReferenceMHFD []byte
}

// ithmbFilename is the filename MHNI records for a format, including the
// leading colon the reference writer emits for every format.
func ithmbFilename(format FormatID) string {
	return fmt.Sprintf(":F%d_1.ithmb", format)
}

// writeMHODString builds an ArtworkDB MHOD string record (type 1 or 3).
// Type 3 (ithmb filename) is UTF-16LE; everything else is UTF-8.
func writeMHODString(mhodType uint16, s string) []byte {
	var encoded []byte
	var encodingByte byte
	if mhodType == 3 {
		encoded = utf16LEBytes(s)
		encodingByte = 2
	} else {
		encoded = []byte(s)
		encodingByte = 1
	}
	strLen := len(encoded)
	padding := (4 - (strLen % 4)) % 4

	body := make([]byte, 12+strLen+padding)
	binary.LittleEndian.PutUint32(body[0:4], uint32(strLen))
	body[4] = encodingByte
	copy(body[12:], encoded)

	totalLen := mhodHeaderSize + len(body)
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], mhodHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint16(buf[12:14], mhodType)
	copy(buf[mhodHeaderSize:], body)
	return buf
}

// writeMHNI builds an MHNI (image name/location) chunk for one raster
// format, referencing its byte offset within that format's ithmb file.
func writeMHNI(format FormatID, ithmbOffset int, r Raster) []byte {
	mhod3 := writeMHODString(3, ithmbFilename(format))
	totalLen := mhniHeaderSize + len(mhod3)

	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHNI)
	binary.LittleEndian.PutUint32(buf[4:8], mhniHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint32(buf[12:16], 1) // child count: the filename MHOD
	binary.LittleEndian.PutUint32(buf[16:20], uint32(format))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(ithmbOffset))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(r.Size))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(r.Height))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(r.Width))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(r.Size)) // imgSize2, duplicate of Size

	copy(buf[mhniHeaderSize:], mhod3)
	return buf
}

// writeMHODContainer wraps a built MHNI chunk in its MHOD type-2 parent.
func writeMHODContainer(mhodType uint16, child []byte) []byte {
	totalLen := mhodHeaderSize + len(child)
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], mhodHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint16(buf[12:14], mhodType)
	copy(buf[mhodHeaderSize:], child)
	return buf
}

// writeMHOD6 builds the opaque MHOD type-6/mhaf pair every real ArtworkDB
// carries. Its purpose is unknown (spec §9 open question); the fixed
// content below is copied verbatim from a reference device database.
func writeMHOD6() []byte {
	mhaf := make([]byte, mhafDataSize)
	copy(mhaf[0:4], tagMHAF)
	binary.LittleEndian.PutUint32(mhaf[4:8], uint32(mhafDataSize))
	binary.LittleEndian.PutUint32(mhaf[8:12], 60) // totalSize, fixed per reference corpus

	totalLen := mhodHeaderSize + len(mhaf)
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], mhodHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint16(buf[12:14], mhodOpaque)
	copy(buf[mhodHeaderSize:], mhaf)
	return buf
}

// writeMHII builds one image-item chunk: one MHOD(2)->MHNI pair per
// supported format, plus the fixed MHOD(6).
func writeMHII(e Entry, formatOffsets map[FormatID]int) []byte {
	var children [][]byte
	for _, format := range SupportedFormats {
		r, ok := e.Formats[format]
		if !ok {
			continue
		}
		mhni := writeMHNI(format, formatOffsets[format], r)
		children = append(children, writeMHODContainer(mhodFormatContainer, mhni))
	}
	children = append(children, writeMHOD6())

	var childData []byte
	for _, c := range children {
		childData = append(childData, c...)
	}

	totalLen := mhiiHeaderSize + len(childData)
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHII)
	binary.LittleEndian.PutUint32(buf[4:8], mhiiHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(children)))
	binary.LittleEndian.PutUint32(buf[16:20], e.ImgID)
	binary.LittleEndian.PutUint64(buf[20:28], e.SongID)
	binary.LittleEndian.PutUint32(buf[48:52], uint32(e.SourceSize))
	binary.LittleEndian.PutUint32(buf[56:60], 9) // unk, fixed per reference corpus
	binary.LittleEndian.PutUint32(buf[60:64], 1) // unk, fixed per reference corpus

	copy(buf[mhiiHeaderSize:], childData)
	return buf
}

// writeMHLI builds the image-list chunk wrapping every entry's MHII.
// Unlike most chunks here, MHLI's field at offset 8 is an item count, not
// a total byte length (matches the reference writer exactly).
func writeMHLI(entries []Entry, formatOffsets map[uint32]map[FormatID]int) []byte {
	var childData []byte
	for _, e := range entries {
		childData = append(childData, writeMHII(e, formatOffsets[e.ImgID])...)
	}

	buf := make([]byte, mhliHeaderSize)
	copy(buf[0:4], TagMHLI)
	binary.LittleEndian.PutUint32(buf[4:8], mhliHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(entries)))
	return append(buf, childData...)
}

// writeMHLA builds the always-empty album-list dataset child.
func writeMHLA() []byte {
	buf := make([]byte, mhlaHeaderSize)
	copy(buf[0:4], TagMHLA)
	binary.LittleEndian.PutUint32(buf[4:8], mhlaHeaderSize)
	return buf
}

// writeMHIF builds one file-info record describing a format's per-image
// raster size.
func writeMHIF(format FormatID, imageSize int) []byte {
	buf := make([]byte, mhifHeaderSize)
	copy(buf[0:4], TagMHIF)
	binary.LittleEndian.PutUint32(buf[4:8], mhifHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(mhifHeaderSize))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(format))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(imageSize))
	return buf
}

// writeMHLF builds the file-list dataset child, one MHIF per supported
// format. imageSizes gives each format's fixed per-image raster size
// (stride × height × 2).
func writeMHLF(imageSizes map[FormatID]int) []byte {
	var childData []byte
	for _, format := range SupportedFormats {
		childData = append(childData, writeMHIF(format, imageSizes[format])...)
	}

	buf := make([]byte, mhlfHeaderSize)
	copy(buf[0:4], TagMHLF)
	binary.LittleEndian.PutUint32(buf[4:8], mhlfHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(SupportedFormats)))
	return append(buf, childData...)
}

func writeMHSD(dsType uint16, child []byte) []byte {
	totalLen := mhsdHeaderSize + len(child)
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHSD)
	binary.LittleEndian.PutUint32(buf[4:8], mhsdHeaderSize)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint16(buf[12:14], dsType)
	copy(buf[mhsdHeaderSize:], child)
	return buf
}

func writeMHFD(datasets [][]byte, nextImgID uint32, reference []byte) []byte {
	var allData []byte
	for _, ds := range datasets {
		allData = append(allData, ds...)
	}
	totalLen := mhfdHeaderSize + len(allData)

	h := make([]byte, mhfdHeaderSize)
	copy(h[0:4], TagMHFD)
	binary.LittleEndian.PutUint32(h[4:8], mhfdHeaderSize)
	binary.LittleEndian.PutUint32(h[8:12], uint32(totalLen))
	binary.LittleEndian.PutUint32(h[16:20], 6) // unk2, fixed per reference corpus
	binary.LittleEndian.PutUint32(h[20:24], uint32(len(datasets)))
	binary.LittleEndian.PutUint32(h[28:32], nextImgID)
	if len(reference) >= 48 {
		copy(h[32:48], reference[32:48])
	}
	binary.LittleEndian.PutUint32(h[48:52], 2) // unk6, fixed per reference corpus
	if len(reference) >= 68 {
		copy(h[60:68], reference[60:68])
	}
	return append(h, allData...)
}

// BuildITHMB concatenates every entry's per-format raster data in entry
// order and returns both the ithmb byte streams and each entry's byte
// offset within them, ready to feed into WriteDatabase.
func BuildITHMB(entries []Entry) (ithmb map[FormatID][]byte, offsets map[uint32]map[FormatID]int) {
	ithmb = make(map[FormatID][]byte)
	offsets = make(map[uint32]map[FormatID]int)
	for _, e := range entries {
		entryOffsets := make(map[FormatID]int)
		for _, format := range SupportedFormats {
			r, ok := e.Formats[format]
			if !ok {
				continue
			}
			entryOffsets[format] = len(ithmb[format])
			ithmb[format] = append(ithmb[format], r.Data...)
		}
		offsets[e.ImgID] = entryOffsets
	}
	return ithmb, offsets
}

// formatImageSizes computes each supported format's fixed per-image
// raster size (stride × height × 2), used for the MHIF file-list
// entries regardless of whether any entry actually has art in that
// format (mirrors the reference writer, which always emits all three).
func formatImageSizes() map[FormatID]int {
	sizes := make(map[FormatID]int, len(SupportedFormats))
	for _, format := range SupportedFormats {
		dims := FormatDims[format]
		width, height := dims[0], dims[1]
		stride := width
		if s, ok := FormatStride[format]; ok {
			stride = s
		}
		sizes[format] = stride * height * 2
	}
	return sizes
}

// WriteDatabase serializes db into a complete ArtworkDB byte stream plus
// the per-format ithmb pixel files it references (spec §4.3).
func WriteDatabase(db *Database, opts WriteOptions) (artworkDB []byte, ithmb map[FormatID][]byte, err error) {
	entries := make([]Entry, len(db.Entries))
	copy(entries, db.Entries)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ImgID < entries[j].ImgID })

	ithmb, formatOffsets := BuildITHMB(entries)

	mhli := writeMHLI(entries, formatOffsets)
	ds1 := writeMHSD(DatasetImages, mhli)

	ds2 := writeMHSD(DatasetAlbums, writeMHLA())

	mhlf := writeMHLF(formatImageSizes())
	ds3 := writeMHSD(DatasetFiles, mhlf)

	nextImgID := db.NextImgID
	if nextImgID == 0 {
		for _, e := range entries {
			if e.ImgID >= nextImgID {
				nextImgID = e.ImgID + 1
			}
		}
	}

	artworkDB = writeMHFD([][]byte{ds1, ds2, ds3}, nextImgID, opts.ReferenceMHFD)
	return artworkDB, ithmb, nil
}
