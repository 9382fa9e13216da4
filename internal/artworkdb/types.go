// Package artworkdb reads and writes the ArtworkDB binary: the paired
// metadata database (mhfd/mhsd/mhli/mhla/mhlf/mhii/mhod/mhni/mhif) and the
// packed RGB565 pixel files (F<format>_1.ithmb) it references.
package artworkdb

// Chunk tag constants (spec §4.3, GLOSSARY).
const (
	TagMHFD = "mhfd" // artwork database root
	TagMHSD = "mhsd" // dataset
	TagMHLI = "mhli" // image list
	TagMHLA = "mhla" // album list (unused by this engine, always empty)
	TagMHLF = "mhlf" // file list
	TagMHII = "mhii" // image item
	TagMHOD = "mhod" // data object
	TagMHNI = "mhni" // image name/location
	TagMHIF = "mhif" // file info
	tagMHAF = "mhaf" // opaque child of MHOD type 6, copied verbatim
)

// Header sizes, byte-exact per the reference ArtworkDB writer.
const (
	mhfdHeaderSize = 132
	mhsdHeaderSize = 96
	mhliHeaderSize = 92
	mhlaHeaderSize = 92
	mhlfHeaderSize = 92
	mhiiHeaderSize = 152
	mhodHeaderSize = 24
	mhniHeaderSize = 76
	mhifHeaderSize = 124
	mhafDataSize   = 96 // MHOD type 6's fixed-content child
)

// Dataset type codes under MHFD.
const (
	DatasetImages  = 1
	DatasetAlbums  = 2
	DatasetFiles   = 3
)

// MHOD types used within an MHII entry.
const (
	mhodFormatContainer = 2 // wraps one MHNI per supported raster format
	mhodFilename        = 3 // UTF-16LE ithmb filename, child of MHNI
	mhodOpaque          = 6 // opaque mhaf blob, purpose unknown, copied verbatim
)

// FormatID identifies one of the device's supported raster sizes
// (correlation ID in the reference corpus).
type FormatID int

const (
	FormatMedium    FormatID = 1055 // 128x128
	FormatLarge     FormatID = 1060 // 320x320
	FormatThumbnail FormatID = 1061 // 55x55, row-padded to stride 56
)

// FormatDims gives the visible pixel dimensions for each supported format,
// iPod Classic edition (spec §4.3; other device classes carry more entries
// per the glossary, not emitted by this engine — see SPEC_FULL.md Non-goals).
var FormatDims = map[FormatID][2]int{
	FormatMedium:    {128, 128},
	FormatLarge:     {320, 320},
	FormatThumbnail: {55, 55},
}

// FormatStride gives the row stride in pixels when it differs from the
// visible width (only the 55x55 thumbnail format pads to 56 for alignment).
var FormatStride = map[FormatID]int{
	FormatThumbnail: 56,
}

// SupportedFormats lists the formats emitted for every artwork entry, in
// the fixed ascending order the reference writer uses.
var SupportedFormats = []FormatID{FormatMedium, FormatLarge, FormatThumbnail}

// Raster holds one format's packed RGB565LE pixel buffer plus the
// dimensions needed to reproduce the MHNI record.
type Raster struct {
	Data   []byte
	Width  int // visible width
	Height int // visible height
	Size   int // len(Data): stride * height * 2
}

// Entry is one unique album-art image: one MHII, one raster per supported
// format, and the dbid of a representative track (spec §3's Artwork entry).
type Entry struct {
	ImgID       uint32
	SongID      uint64 // dbid of one associated track
	ArtHash     string // MD5 of the source image, used for dedup
	SourceSize  int    // size in bytes of the original source image
	Formats     map[FormatID]Raster
	TrackDBIDs  []uint64 // every track that shares this artwork
}

// Database is the in-memory model of a parsed or to-be-written ArtworkDB.
type Database struct {
	NextImgID uint32
	Entries   []Entry
}
