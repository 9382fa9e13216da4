// Package itunesdb reads and writes the binary iTunesDB: a chunked tree
// rooted at MHBD, holding album/track/podcast/playlist/smart-playlist
// datasets, the master playlist with its library sort indices, and the
// two device-bound checksum slots in the root header.
package itunesdb

import "time"

// Chunk tag constants (spec GLOSSARY).
const (
	TagMHBD = "mhbd" // database root
	TagMHSD = "mhsd" // dataset
	TagMHLT = "mhlt" // track list
	TagMHIT = "mhit" // track item
	TagMHOD = "mhod" // data object / string
	TagMHYP = "mhyp" // playlist
	TagMHIP = "mhip" // playlist item
	TagMHLA = "mhla" // album list
	TagMHIA = "mhia" // album item
	TagMHLP = "mhlp" // playlist list
)

// Dataset type codes stored in each MHSD's header; the datasets appear
// under MHBD in the fixed order Albums, Tracks, Podcasts, Playlists,
// SmartPlaylists.
const (
	DatasetTracks         = 1
	DatasetPlaylists      = 2
	DatasetPodcasts       = 3
	DatasetAlbums         = 4
	DatasetSmartPlaylists = 5
)

// MHOD string types used in track, playlist-title, album-item, and
// playlist-item records.
const (
	MHODTitle           = 1
	MHODLocation        = 2
	MHODAlbum           = 3
	MHODArtist          = 4
	MHODGenre           = 5
	MHODFileType        = 6
	MHODComposer        = 12
	MHODSortTitle       = 27
	MHODSortAlbum       = 28
	MHODSortAlbumArtist = 29
	MHODSortComposer    = 30
	MHODSortArtist      = 23
	MHODSmartCrit       = 50
	MHODSmartInfo       = 51
	MHODSortPosition    = 52 // library sort index: position array
	MHODJumpTable       = 53 // library sort index: jump table
	MHODPlaylistPos     = 100
	MHODAlbumName       = 200 // MHIA child: album name
	MHODAlbumArtist200  = 201 // MHIA child: album artist
	MHODAlbumSortArtist = 202 // MHIA child: sort album artist
)

// Sort-type codes used inside MHOD 52/53 bodies (distinct from the
// per-track MHOD string types above).
const (
	LibSortTitle    = 0x03
	LibSortAlbum    = 0x04
	LibSortArtist   = 0x05
	LibSortGenre    = 0x07
	LibSortComposer = 0x12
)

// SortCategory enumerates the five library sort indices, spec §4.2.
type SortCategory int

const (
	SortByTitle SortCategory = iota
	SortByAlbum
	SortByArtist
	SortByGenre
	SortByComposer
)

var SortCategories = []SortCategory{SortByTitle, SortByAlbum, SortByArtist, SortByGenre, SortByComposer}

// Track mirrors the attributes of spec §3's Track entity plus the
// iPod-internal fields named in §4.2.
type Track struct {
	ID         uint32 // sequential per-database track id (MHIT offset 0x10); used by album/artist/composer linkage and playlist MHIP references
	DBID       uint64 // persistent random identity (MHIT offsets 0x70 and 0xA8); 0 until assigned at write time
	AlbumID    uint32
	ArtistID   uint32
	ComposerID uint32 // allocated per-track, never deduplicated (matches observed iTunes behavior)

	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Composer    string
	SortTitle   string
	SortAlbum   string
	SortArtist  string
	SortComposer string

	Year        int
	TrackNumber int
	TrackCount  int
	DiscNumber  int
	DiscCount   int

	Duration   time.Duration // stored on wire in ms
	FileSize   int64
	BitRate    int
	SampleRate int

	Rating       int // 0-100, multiples of 20
	PlayCount    int // lifetime
	PlayCountSinceSync int // zeroed on write
	SkipCount    int
	LastPlayed   time.Time
	DateAdded    time.Time

	Compilation bool
	MediaType   int
	FileType    string // lowercase extension (mp3, m4a, ...); maps to the MHIT filetype marker

	Location string // colon-separated device-relative path, e.g. :iPod_Control:Music:F00:ABCD.mp3

	HasArtwork    bool
	ArtworkLink   uint32 // artwork image ID, 0 if none
	ArtworkSize   int64
	BookmarkTimeMS int

	UnplayedMark bool // cleared on write, set by device when user skips unplayed indicator

	// Fingerprint is not part of the on-wire record; it is carried
	// alongside the track by the differ/executor/mapping layers which
	// key on it, never serialized into iTunesDB itself.
	Fingerprint string `json:"-"`
}

// Album or artist/composer entry derived from tracks at write time,
// spec §3. IDs are drawn from the single shared monotonic counter.
type NamedEntity struct {
	ID         uint32
	Name       string
	Artist     string // album entities only: the album_artist field, written as MHOD 201
	SortArtist string // album entities only: sort_album_artist, written as MHOD 202
}

// Playlist models the master playlist (the only playlist this engine
// emits, per spec §1 Non-goal "playlists beyond the required master
// playlist").
type Playlist struct {
	Title    string
	Hidden   bool
	IsMaster bool
	TrackIDs []uint32 // sequential track ids (Track.ID), in playlist order

	// SortIndices is not filled by ReadDatabase or WriteDatabase: the
	// writer builds the ten library sort-index MHODs (5 categories ×
	// position-array + jump-table) directly from Database.Tracks.
	SortIndices []SortIndex
}

// SortIndex is one category's position array + jump table (spec §4.2).
type SortIndex struct {
	Category SortCategory
	Position []uint32    // track list indices sorted by this category's key
	Jumps    []JumpEntry
}

// JumpEntry groups consecutive Position entries by first alphanumeric
// character.
type JumpEntry struct {
	Letter rune
	Start  int
	Count  int
}

// Database is the full in-memory model of a parsed or to-be-written
// iTunesDB.
type Database struct {
	// Root header fields, spec §4.2.
	VersionTag      byte // 0x4F accepted by all targeted devices
	DatabaseID      uint64
	Platform        uint8 // Windows = 2
	HashingScheme    uint16
	Language        string // 2-character tag
	LibraryPersistentID uint64
	TimezoneOffsetSec int32
	Hash58          [20]byte
	Hash72          [46]byte
	ID0x24          uint64 // firmware validates every track's copy matches this

	Albums    []NamedEntity
	Artists   []NamedEntity
	Composers []NamedEntity
	Tracks    []*Track
	Master    Playlist
}
