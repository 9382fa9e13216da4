package artworkdb

import (
	"encoding/binary"
	"fmt"

	"github.com/jdfalk/ipodsync/internal/chunkcodec"
)

// RasterLocation is the (format, ithmb offset, size) triple needed to
// slice pixel data for one entry's format out of that format's ithmb
// file. Kept separate from Entry/Raster since it's a parse-time detail,
// not part of the in-memory model callers build up to write.
type RasterLocation struct {
	Format FormatID
	Offset int
	Size   int
}

// RasterIndex maps an entry's ImgID to the ithmb locations of its
// per-format rasters, as recovered by ReadDatabase.
type RasterIndex map[uint32][]RasterLocation

// ReadDatabase parses an ArtworkDB byte stream into a Database. Each
// entry's raster Data fields are left empty; the returned RasterIndex
// locates the pixel bytes within each format's ithmb file — pass it to
// LoadRasters once those files are read (spec §4.3, §8 Law 1: round-trip).
func ReadDatabase(data []byte) (*Database, RasterIndex, error) {
	root, err := chunkcodec.ExpectTag(data, 0, TagMHFD)
	if err != nil {
		return nil, nil, err
	}
	if int(root.HeaderLen) < mhfdHeaderSize {
		return nil, nil, fmt.Errorf("artworkdb: mhfd header too short")
	}
	childCount := binary.LittleEndian.Uint32(data[20:24])
	nextImgID := binary.LittleEndian.Uint32(data[28:32])

	db := &Database{NextImgID: nextImgID}
	index := make(RasterIndex)

	offset := int(root.HeaderLen)
	for i := uint32(0); i < childCount; i++ {
		ds, err := chunkcodec.ExpectTag(data, offset, TagMHSD)
		if err != nil {
			return nil, nil, fmt.Errorf("artworkdb: dataset %d: %w", i, err)
		}
		dsType := binary.LittleEndian.Uint16(data[offset+12 : offset+14])
		if dsType == DatasetImages {
			entries, err := readMHLI(data, offset+int(ds.HeaderLen), index)
			if err != nil {
				return nil, nil, err
			}
			db.Entries = entries
		}
		offset = ds.End()
	}
	return db, index, nil
}

func readMHLI(data []byte, offset int, index RasterIndex) ([]Entry, error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHLI)
	if err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(data[offset+8 : offset+12])

	var entries []Entry
	childOffset := offset + int(c.HeaderLen)
	for i := uint32(0); i < count; i++ {
		e, end, err := readMHII(data, childOffset, index)
		if err != nil {
			return nil, fmt.Errorf("artworkdb: mhii %d: %w", i, err)
		}
		entries = append(entries, e)
		childOffset = end
	}
	return entries, nil
}

func readMHII(data []byte, offset int, index RasterIndex) (Entry, int, error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHII)
	if err != nil {
		return Entry{}, 0, err
	}
	childCount := binary.LittleEndian.Uint32(data[offset+12 : offset+16])
	imgID := binary.LittleEndian.Uint32(data[offset+16 : offset+20])
	songID := binary.LittleEndian.Uint64(data[offset+20 : offset+28])
	srcImgSize := binary.LittleEndian.Uint32(data[offset+48 : offset+52])

	e := Entry{
		ImgID:      imgID,
		SongID:     songID,
		SourceSize: int(srcImgSize),
		Formats:    make(map[FormatID]Raster),
	}

	childOffset := offset + int(c.HeaderLen)
	for i := uint32(0); i < childCount; i++ {
		mc, err := chunkcodec.ExpectTag(data, childOffset, TagMHOD)
		if err != nil {
			return Entry{}, 0, fmt.Errorf("artworkdb: mhii child %d: %w", i, err)
		}
		mhodType := binary.LittleEndian.Uint16(data[childOffset+12 : childOffset+14])
		if mhodType == mhodFormatContainer {
			mhniOffset := childOffset + int(mc.HeaderLen)
			if format, r, loc, ok := readMHNI(data, mhniOffset); ok {
				e.Formats[format] = r
				index[imgID] = append(index[imgID], loc)
			}
		}
		childOffset = mc.End()
	}
	return e, c.End(), nil
}

// readMHNI parses an MHNI chunk's format id, dimensions, and ithmb
// location. The returned Raster's Data is left nil — LoadRasters fills
// it in from the corresponding RasterLocation once ithmb bytes are read.
func readMHNI(data []byte, offset int) (FormatID, Raster, RasterLocation, bool) {
	if _, err := chunkcodec.ExpectTag(data, offset, TagMHNI); err != nil {
		return 0, Raster{}, RasterLocation{}, false
	}
	format := FormatID(binary.LittleEndian.Uint32(data[offset+16 : offset+20]))
	ithmbOffset := int(binary.LittleEndian.Uint32(data[offset+20 : offset+24]))
	size := int(binary.LittleEndian.Uint32(data[offset+24 : offset+28]))
	height := int(binary.LittleEndian.Uint16(data[offset+32 : offset+34]))
	width := int(binary.LittleEndian.Uint16(data[offset+34 : offset+36]))

	r := Raster{Width: width, Height: height, Size: size}
	loc := RasterLocation{Format: format, Offset: ithmbOffset, Size: size}
	return format, r, loc, true
}

// LoadRasters fills in each entry's per-format pixel Data by slicing it
// out of the given ithmb file contents, using the RasterIndex ReadDatabase
// returned alongside db.
func LoadRasters(db *Database, index RasterIndex, ithmb map[FormatID][]byte) error {
	for i := range db.Entries {
		e := &db.Entries[i]
		for _, loc := range index[e.ImgID] {
			file, ok := ithmb[loc.Format]
			if !ok || loc.Offset+loc.Size > len(file) {
				continue
			}
			r := e.Formats[loc.Format]
			r.Data = file[loc.Offset : loc.Offset+loc.Size]
			e.Formats[loc.Format] = r
		}
	}
	return nil
}
