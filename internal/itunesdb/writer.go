package itunesdb

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/jdfalk/ipodsync/internal/checksum"
)

const macEpochOffset = 2082844800

func unixToMac(t time.Time) uint32 {
	if t.IsZero() {
		return 0
	}
	unix := t.Unix()
	if unix <= 0 {
		return 0
	}
	return uint32(unix + macEpochOffset)
}

// fileTypeCode maps a lowercase extension to its MHIT filetype marker,
// stored as the big-endian 4-character code read back as a little-
// endian uint32 (mhit_writer.py's FILETYPE_CODES).
var fileTypeCodes = map[string]uint32{
	"mp3":  0x4D503320,
	"m4a":  0x4D344120,
	"m4p":  0x4D345020,
	"m4b":  0x4D344220,
	"wav":  0x57415620,
	"aif":  0x41494646,
	"aiff": 0x41494646,
	"aac":  0x41414320,
}

func fileTypeCode(ext string) uint32 {
	if code, ok := fileTypeCodes[ext]; ok {
		return code
	}
	return fileTypeCodes["mp3"]
}

const mhitHeaderSize = 0x248

// writeTrackMHODs builds the concatenated MHOD children for one track:
// title and location are required, everything else is written only
// when non-empty (mhod_writer.py's write_track_mhods).
func writeTrackMHODs(t *Track) ([]byte, int, error) {
	var out []byte
	count := 0
	add := func(mhodType uint32, value string) error {
		chunk, err := writeMHODString(mhodType, value)
		if err != nil {
			return err
		}
		if chunk != nil {
			out = append(out, chunk...)
			count++
		}
		return nil
	}

	if err := add(MHODTitle, t.Title); err != nil {
		return nil, 0, err
	}
	if err := add(MHODLocation, t.Location); err != nil {
		return nil, 0, err
	}
	for _, f := range []struct {
		typ uint32
		val string
	}{
		{MHODArtist, t.Artist},
		{MHODAlbum, t.Album},
		{MHODGenre, t.Genre},
		{22, t.AlbumArtist}, // MHOD_ALBUM_ARTIST, track-record variant
		{MHODComposer, t.Composer},
		{MHODSortArtist, t.SortArtist},
		{MHODSortTitle, t.SortTitle},
		{MHODSortAlbum, t.SortAlbum},
	} {
		if err := add(f.typ, f.val); err != nil {
			return nil, 0, err
		}
	}
	return out, count, nil
}

// writeTrack builds one complete MHIT chunk (header plus child MHODs).
func writeTrack(t *Track, id0x24 uint64) ([]byte, error) {
	mhodData, mhodCount, err := writeTrackMHODs(t)
	if err != nil {
		return nil, err
	}

	totalLen := mhitHeaderSize + len(mhodData)
	h := make([]byte, mhitHeaderSize)
	copy(h[0:4], TagMHIT)
	binary.LittleEndian.PutUint32(h[0x04:], mhitHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(totalLen))
	binary.LittleEndian.PutUint32(h[0x0C:], uint32(mhodCount))

	binary.LittleEndian.PutUint32(h[0x10:], t.ID)
	binary.LittleEndian.PutUint32(h[0x14:], 1) // visible
	binary.LittleEndian.PutUint32(h[0x18:], fileTypeCode(t.FileType))

	h[0x1D] = 1 // track type: always 1 for audio tracks
	if t.Compilation {
		h[0x1E] = 1
	}
	rating := t.Rating
	if rating > 100 {
		rating = 100
	}
	if rating < 0 {
		rating = 0
	}
	h[0x1F] = byte(rating)

	binary.LittleEndian.PutUint32(h[0x20:], unixToMac(t.DateAdded))
	binary.LittleEndian.PutUint32(h[0x24:], uint32(t.FileSize))
	binary.LittleEndian.PutUint32(h[0x28:], uint32(t.Duration/time.Millisecond))
	binary.LittleEndian.PutUint32(h[0x2C:], uint32(t.TrackNumber))

	binary.LittleEndian.PutUint32(h[0x30:], uint32(t.TrackCount))
	binary.LittleEndian.PutUint32(h[0x34:], uint32(t.Year))
	binary.LittleEndian.PutUint32(h[0x38:], uint32(t.BitRate))
	binary.LittleEndian.PutUint32(h[0x3C:], uint32(t.SampleRate)<<16)

	binary.LittleEndian.PutUint32(h[0x50:], uint32(t.PlayCount))
	binary.LittleEndian.PutUint32(h[0x54:], 0) // playcount2, reset after every sync
	binary.LittleEndian.PutUint32(h[0x58:], unixToMac(t.LastPlayed))
	binary.LittleEndian.PutUint32(h[0x5C:], uint32(t.DiscNumber))

	binary.LittleEndian.PutUint32(h[0x60:], uint32(t.DiscCount))
	binary.LittleEndian.PutUint32(h[0x68:], unixToMac(t.DateAdded))
	binary.LittleEndian.PutUint32(h[0x6C:], uint32(t.BookmarkTimeMS))

	binary.LittleEndian.PutUint64(h[0x70:], t.DBID)

	binary.LittleEndian.PutUint16(h[0x7E:], 0xFFFF) // unk126, fixed for MP3/AAC

	if t.HasArtwork {
		binary.LittleEndian.PutUint32(h[0x80:], uint32(t.ArtworkSize))
	}
	binary.LittleEndian.PutUint32(h[0x88:], math.Float32bits(float32(t.SampleRate)))

	binary.LittleEndian.PutUint32(h[0x9C:], uint32(t.SkipCount))
	if t.HasArtwork {
		h[0xA4] = 1
	} else {
		h[0xA4] = 2
	}

	binary.LittleEndian.PutUint64(h[0xA8:], t.DBID) // backup copy

	// h[0xB2], the unplayed mark, is always written cleared.

	binary.LittleEndian.PutUint32(h[0xD0:], uint32(t.MediaType))

	binary.LittleEndian.PutUint32(h[0x120:], t.AlbumID)
	binary.LittleEndian.PutUint64(h[0x124:], id0x24)
	binary.LittleEndian.PutUint32(h[0x12C:], uint32(t.FileSize))
	binary.LittleEndian.PutUint64(h[0x134:], 0x808080808080)

	binary.LittleEndian.PutUint32(h[0x160:], t.ArtworkLink)
	binary.LittleEndian.PutUint32(h[0x168:], 1)

	binary.LittleEndian.PutUint32(h[0x1E0:], t.ArtistID)
	binary.LittleEndian.PutUint32(h[0x1F4:], t.ComposerID)

	return append(h, mhodData...), nil
}

const mhlaHeaderSize = 92
const mhiaHeaderSize = 88

func writeAlbum(a NamedEntity) []byte {
	var children []byte
	count := 0
	add := func(mhodType uint32, val string) {
		if c, _ := writeMHODString(mhodType, val); c != nil {
			children = append(children, c...)
			count++
		}
	}
	add(MHODAlbumName, a.Name)
	add(MHODAlbumArtist200, a.Artist)
	add(MHODAlbumSortArtist, a.SortArtist)

	totalLen := mhiaHeaderSize + len(children)
	h := make([]byte, mhiaHeaderSize)
	copy(h[0:4], "mhia")
	binary.LittleEndian.PutUint32(h[0x04:], mhiaHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(totalLen))
	binary.LittleEndian.PutUint32(h[0x0C:], uint32(count))
	binary.LittleEndian.PutUint32(h[0x10:], a.ID)
	// +0x14: a persistent random 64-bit "SQL ID"; clean iTunes databases
	// never leave this zero.
	sqlID, _ := randomDBID()
	binary.LittleEndian.PutUint64(h[0x14:], sqlID)
	binary.LittleEndian.PutUint32(h[0x1C:], 2)
	return append(h, children...)
}

func writeAlbumList(albums []NamedEntity) []byte {
	var items []byte
	for _, a := range albums {
		items = append(items, writeAlbum(a)...)
	}
	h := make([]byte, mhlaHeaderSize)
	copy(h[0:4], TagMHLA)
	binary.LittleEndian.PutUint32(h[0x04:], mhlaHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(len(albums)))
	return append(h, items...)
}

const mhltHeaderSize = 92

func writeTrackList(tracks []*Track, id0x24 uint64) ([]byte, error) {
	var items []byte
	for _, t := range tracks {
		chunk, err := writeTrack(t, id0x24)
		if err != nil {
			return nil, err
		}
		items = append(items, chunk...)
	}
	h := make([]byte, mhltHeaderSize)
	copy(h[0:4], TagMHLT)
	binary.LittleEndian.PutUint32(h[0x04:], mhltHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(len(tracks)))
	return append(h, items...), nil
}

const mhipHeaderSize = 76

func writeMHIP(trackID uint32, position int) []byte {
	posMHOD := writeMHODPosition(position)
	totalLen := mhipHeaderSize + len(posMHOD)
	h := make([]byte, mhipHeaderSize)
	copy(h[0:4], TagMHIP)
	binary.LittleEndian.PutUint32(h[0x04:], mhipHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(totalLen))
	binary.LittleEndian.PutUint32(h[0x0C:], 1) // one MHOD child
	binary.LittleEndian.PutUint32(h[0x18:], trackID)
	return append(h, posMHOD...)
}

func writeMHODPosition(position int) []byte {
	buf := make([]byte, 44)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], 24)
	binary.LittleEndian.PutUint32(buf[8:12], 44)
	binary.LittleEndian.PutUint32(buf[12:16], MHODPlaylistPos)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(position))
	return buf
}

const mhypHeaderSize = 184

// writePlaylist builds one complete MHYP chunk: header, title MHOD,
// playlist-prefs MHOD, (master playlist only) ten library-index MHODs,
// then one MHIP per track.
func writePlaylist(p Playlist, id0x24 uint64, allTracks []*Track) ([]byte, error) {
	titleMHOD, err := writeMHODString(MHODTitle, p.Title)
	if err != nil {
		return nil, err
	}
	prefsMHOD := writePlaylistPrefsMHOD()

	var libIndices []byte
	libCount := 0
	if p.Hidden && len(allTracks) > 0 {
		libIndices, libCount = writeLibraryIndices(allTracks)
	}

	var mhips []byte
	for i, id := range p.TrackIDs {
		mhips = append(mhips, writeMHIP(id, i)...)
	}

	mhodCount := 2 + libCount
	totalLen := mhypHeaderSize + len(titleMHOD) + len(prefsMHOD) + len(libIndices) + len(mhips)

	h := make([]byte, mhypHeaderSize)
	copy(h[0:4], TagMHYP)
	binary.LittleEndian.PutUint32(h[0x04:], mhypHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(totalLen))
	binary.LittleEndian.PutUint32(h[0x0C:], uint32(mhodCount))
	binary.LittleEndian.PutUint32(h[0x10:], uint32(len(p.TrackIDs)))
	if p.Hidden {
		binary.LittleEndian.PutUint32(h[0x14:], 1)
	}
	now := unixToMac(time.Now())
	binary.LittleEndian.PutUint32(h[0x18:], now)

	playlistID, _ := randomDBID()
	binary.LittleEndian.PutUint64(h[0x1C:], playlistID)
	binary.LittleEndian.PutUint16(h[0x28:], 1) // string MHOD count

	sortorder := uint32(0)
	if p.IsMaster {
		sortorder = 5
	}
	binary.LittleEndian.PutUint32(h[0x2C:], sortorder)

	if !p.Hidden {
		binary.LittleEndian.PutUint64(h[0x3C:], id0x24)
		binary.LittleEndian.PutUint64(h[0x44:], playlistID)
	}
	binary.LittleEndian.PutUint32(h[0x58:], now)

	out := append(h, titleMHOD...)
	out = append(out, prefsMHOD...)
	out = append(out, libIndices...)
	out = append(out, mhips...)
	return out, nil
}

// writePlaylistPrefsMHOD reproduces libgpod's mk_long_mhod_id_playlist():
// a fixed 0x288-byte type-100 MHOD holding iTunes display/sort
// preferences. Its interior fields are opaque display-column flags
// that no sync engine needs to compute; they are copied verbatim.
func writePlaylistPrefsMHOD() []byte {
	const totalLen = 0x288
	buf := make([]byte, totalLen)
	copy(buf[0:4], TagMHOD)
	binary.LittleEndian.PutUint32(buf[4:8], 24)
	binary.LittleEndian.PutUint32(buf[8:12], totalLen)
	binary.LittleEndian.PutUint32(buf[12:16], 100)

	set := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	set(0x30, 0x010084)
	set(0x34, 0x05)
	set(0x38, 0x09)
	set(0x3C, 0x03)
	set(0x40, 0x120001)
	set(0x4C, 0x640014)
	set(0x50, 0x01)
	set(0x5C, 0x320014)
	set(0x60, 0x01)
	set(0x6C, 0x5a0014)
	set(0x70, 0x01)
	set(0x7C, 0x500014)
	set(0x80, 0x01)
	set(0x8C, 0x7d0015)
	set(0x90, 0x01)
	return buf
}

const mhlpHeaderSize = 92

func writePlaylistList(playlists [][]byte) []byte {
	var items []byte
	for _, p := range playlists {
		items = append(items, p...)
	}
	h := make([]byte, mhlpHeaderSize)
	copy(h[0:4], TagMHLP)
	binary.LittleEndian.PutUint32(h[0x04:], mhlpHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(len(playlists)))
	return append(h, items...)
}

const mhsdHeaderSize = 96

func writeDataset(datasetType uint32, child []byte) []byte {
	totalLen := mhsdHeaderSize + len(child)
	h := make([]byte, mhsdHeaderSize)
	copy(h[0:4], TagMHSD)
	binary.LittleEndian.PutUint32(h[0x04:], mhsdHeaderSize)
	binary.LittleEndian.PutUint32(h[0x08:], uint32(totalLen))
	binary.LittleEndian.PutUint32(h[0x0C:], datasetType)
	return append(h, child...)
}

const mhbdHeaderSize = 244

// WriteOptions carries the fields a write needs beyond the in-memory
// Database model: the device-bound keys for signing, and (for
// device-specific header fields the spec says not to guess, §9)
// a reference header to copy unknown bytes from.
type WriteOptions struct {
	Scheme         checksum.Scheme
	Keys           checksum.HashKeys
	ReferenceMHBD  []byte // a prior valid root header from this device, or nil
}

// WriteDatabase serializes db into a complete iTunesDB byte stream,
// assigning ids, building the five datasets in their required order
// (Albums, Tracks, Podcasts, Playlists, SmartPlaylists), and signing
// the root header per opts.Scheme.
func WriteDatabase(db *Database, opts WriteOptions) ([]byte, error) {
	if err := AssignIDs(db); err != nil {
		return nil, err
	}

	trackListData, err := writeTrackList(db.Tracks, db.ID0x24)
	if err != nil {
		return nil, err
	}
	albumListData := writeAlbumList(db.Albums)

	db.Master.IsMaster = true
	db.Master.Hidden = true
	if db.Master.Title == "" {
		db.Master.Title = "iPod"
	}
	masterChunk, err := writePlaylist(db.Master, db.ID0x24, db.Tracks)
	if err != nil {
		return nil, err
	}
	playlistListData := writePlaylistList([][]byte{masterChunk})

	// Podcasts and smart playlists are unused by this engine
	// (spec Non-goal: "playlists beyond the required master playlist"),
	// but their empty MHSD containers are still required by the
	// firmware's dataset-count expectations.
	emptyMHLP := make([]byte, mhlpHeaderSize)
	copy(emptyMHLP[0:4], TagMHLP)
	binary.LittleEndian.PutUint32(emptyMHLP[0x04:], mhlpHeaderSize)

	datasets := []byte{}
	datasets = append(datasets, writeDataset(DatasetAlbums, albumListData)...)
	datasets = append(datasets, writeDataset(DatasetTracks, trackListData)...)
	datasets = append(datasets, writeDataset(DatasetPodcasts, emptyMHLP)...)
	datasets = append(datasets, writeDataset(DatasetPlaylists, playlistListData)...)
	datasets = append(datasets, writeDataset(DatasetSmartPlaylists, emptyMHLP)...)

	header := writeMHBDHeader(db, opts.ReferenceMHBD)
	full := append(header, datasets...)

	binary.LittleEndian.PutUint32(full[0x08:], uint32(len(full)))

	if err := checksum.Sign(full, opts.Scheme, opts.Keys); err != nil && opts.Scheme != checksum.SchemeNone {
		return nil, err
	}
	return full, nil
}

func writeMHBDHeader(db *Database, reference []byte) []byte {
	h := make([]byte, mhbdHeaderSize)
	copy(h[0:4], TagMHBD)
	binary.LittleEndian.PutUint32(h[0x04:], mhbdHeaderSize)
	h[0x14] = db.VersionTag
	binary.LittleEndian.PutUint32(h[0x10:], 5) // number of child datasets
	binary.LittleEndian.PutUint64(h[0x18:], db.DatabaseID)
	h[0x1C] = 1 // writer flag, always 1
	h[0x1D] = db.Platform
	binary.LittleEndian.PutUint32(h[0x24:], uint32(db.ID0x24))
	binary.LittleEndian.PutUint16(h[0x30:], uint16(db.HashingScheme))
	if len(db.Language) >= 2 {
		h[0x46], h[0x47] = db.Language[0], db.Language[1]
	}
	binary.LittleEndian.PutUint64(h[0x48:], db.LibraryPersistentID)
	binary.LittleEndian.PutUint32(h[0x6C:], uint32(db.TimezoneOffsetSec))

	// Device-specific "unk" fields (spec §9 open question: do not
	// guess) are preserved byte-for-byte from a prior valid header
	// when one is available, and left zero for a brand-new database.
	if len(reference) >= mhbdHeaderSize {
		copy(h[0x32:0x46], reference[0x32:0x46])
		copy(h[0x72:mhbdHeaderSize], reference[0x72:mhbdHeaderSize])
	}
	return h
}
