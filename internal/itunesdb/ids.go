package itunesdb

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
)

// AssignIDs allocates every identifier an iTunesDB write needs from one
// monotonic counter starting at 1: album ids first, then sequential
// track ids, then artist ids, then composer ids, so no id is shared
// across categories. Composer ids are never deduplicated across tracks:
// two tracks by the same composer get distinct composer ids, matching
// clean iTunes databases.
//
// Every track is also given a random 64-bit DBID if it doesn't already
// have one; DBIDs are a device-facing persistent identity, independent
// of the sequential ids used for in-database linkage.
func AssignIDs(db *Database) error {
	albums, albumOf := allocateAlbums(db.Tracks)
	db.Albums = albums

	nextID := uint32(len(albums) + 1)
	for _, t := range db.Tracks {
		t.ID = nextID
		nextID++
		key := albumKey(t)
		t.AlbumID = albumOf[key]
		if t.DBID == 0 {
			dbid, err := randomDBID()
			if err != nil {
				return fmt.Errorf("itunesdb: generating track dbid: %w", err)
			}
			t.DBID = dbid
		}
	}

	artistIDs := make(map[string]uint32)
	var artists []NamedEntity
	for _, t := range db.Tracks {
		key := strings.ToLower(t.Artist)
		id, ok := artistIDs[key]
		if !ok {
			id = nextID
			nextID++
			artistIDs[key] = id
			artists = append(artists, NamedEntity{ID: id, Name: t.Artist})
		}
		t.ArtistID = id
	}
	db.Artists = artists

	var composers []NamedEntity
	for _, t := range db.Tracks {
		t.ComposerID = nextID
		nextID++
		composers = append(composers, NamedEntity{ID: t.ComposerID, Name: t.Composer})
	}
	db.Composers = composers

	db.Master.TrackIDs = make([]uint32, len(db.Tracks))
	for i, t := range db.Tracks {
		db.Master.TrackIDs[i] = t.ID
	}
	return nil
}

func albumKey(t *Track) string {
	artist := t.AlbumArtist
	if artist == "" {
		artist = t.Artist
	}
	return t.Album + "\x00" + artist
}

// allocateAlbums assigns album ids in sorted (album, album_artist) key
// order, starting at 1, matching write_mhla's deterministic ordering.
func allocateAlbums(tracks []*Track) ([]NamedEntity, map[string]uint32) {
	type albumInfo struct {
		name, artist, sortArtist string
	}
	seen := make(map[string]albumInfo)
	for _, t := range tracks {
		key := albumKey(t)
		if _, ok := seen[key]; ok {
			continue
		}
		artist := t.AlbumArtist
		if artist == "" {
			artist = t.Artist
		}
		seen[key] = albumInfo{name: t.Album, artist: artist, sortArtist: t.SortArtist}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	albumOf := make(map[string]uint32, len(keys))
	albums := make([]NamedEntity, 0, len(keys))
	for i, k := range keys {
		id := uint32(i + 1)
		albumOf[k] = id
		info := seen[k]
		albums = append(albums, NamedEntity{ID: id, Name: info.name, Artist: info.artist, SortArtist: info.sortArtist})
	}
	return albums, albumOf
}

func randomDBID() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
