package itunesdb

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jdfalk/ipodsync/internal/chunkcodec"
)

// ReadDatabase parses a complete iTunesDB byte stream into a Database.
func ReadDatabase(data []byte) (*Database, error) {
	root, err := chunkcodec.ExpectTag(data, 0, TagMHBD)
	if err != nil {
		return nil, fmt.Errorf("itunesdb: reading root header: %w", err)
	}
	if len(data) < mhbdHeaderSize {
		return nil, fmt.Errorf("itunesdb: root header shorter than %d bytes", mhbdHeaderSize)
	}

	db := &Database{
		VersionTag:          data[0x14],
		DatabaseID:          binary.LittleEndian.Uint64(data[0x18:]),
		Platform:            data[0x1D],
		ID0x24:              uint64(binary.LittleEndian.Uint32(data[0x24:])),
		HashingScheme:       binary.LittleEndian.Uint16(data[0x30:]),
		Language:            string(data[0x46:0x48]),
		LibraryPersistentID: binary.LittleEndian.Uint64(data[0x48:]),
		TimezoneOffsetSec:   int32(binary.LittleEndian.Uint32(data[0x6C:])),
	}
	copy(db.Hash58[:], data[OffsetHash58:OffsetHash58+20])
	copy(db.Hash72[:], data[OffsetHash72:OffsetHash72+46])

	offset := int(root.HeaderLen)
	for offset < root.End() {
		ds, err := chunkcodec.ExpectTag(data, offset, TagMHSD)
		if err != nil {
			return nil, fmt.Errorf("itunesdb: reading dataset at %d: %w", offset, err)
		}
		datasetType := binary.LittleEndian.Uint32(data[offset+12 : offset+16])
		childOffset := offset + int(ds.HeaderLen)

		switch datasetType {
		case DatasetTracks:
			tracks, err := readTrackList(data, childOffset)
			if err != nil {
				return nil, err
			}
			db.Tracks = tracks
		case DatasetAlbums:
			albums, err := readAlbumList(data, childOffset)
			if err != nil {
				return nil, err
			}
			db.Albums = albums
		case DatasetPlaylists:
			playlists, err := readPlaylistList(data, childOffset)
			if err != nil {
				return nil, err
			}
			for _, p := range playlists {
				if p.IsMaster {
					db.Master = p
					break
				}
			}
		}
		offset = ds.End()
	}
	return db, nil
}

func readTrackList(data []byte, offset int) ([]*Track, error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHLT)
	if err != nil {
		return nil, fmt.Errorf("itunesdb: reading mhlt: %w", err)
	}
	count := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
	pos := offset + int(c.HeaderLen)
	tracks := make([]*Track, 0, count)
	for i := uint32(0); i < count && pos < c.End(); i++ {
		t, next, err := readTrack(data, pos)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
		pos = next
	}
	return tracks, nil
}

func readTrack(data []byte, offset int) (*Track, int, error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHIT)
	if err != nil {
		return nil, 0, fmt.Errorf("itunesdb: reading mhit: %w", err)
	}
	if len(c.Payload)+int(c.HeaderLen) < mhitHeaderSize {
		return nil, 0, fmt.Errorf("itunesdb: mhit shorter than fixed header")
	}
	h := data[offset : offset+mhitHeaderSize]

	t := &Track{
		ID:             binary.LittleEndian.Uint32(h[0x10:]),
		TrackNumber:    int(binary.LittleEndian.Uint32(h[0x2C:])),
		TrackCount:     int(binary.LittleEndian.Uint32(h[0x30:])),
		Year:           int(binary.LittleEndian.Uint32(h[0x34:])),
		BitRate:        int(binary.LittleEndian.Uint32(h[0x38:])),
		SampleRate:     int(binary.LittleEndian.Uint32(h[0x3C:]) >> 16),
		PlayCount:      int(binary.LittleEndian.Uint32(h[0x50:])),
		DiscNumber:     int(binary.LittleEndian.Uint32(h[0x5C:])),
		DiscCount:      int(binary.LittleEndian.Uint32(h[0x60:])),
		DBID:           binary.LittleEndian.Uint64(h[0x70:]),
		ArtworkSize:    int64(binary.LittleEndian.Uint32(h[0x80:])),
		SkipCount:      int(binary.LittleEndian.Uint32(h[0x9C:])),
		MediaType:      int(binary.LittleEndian.Uint32(h[0xD0:])),
		AlbumID:        binary.LittleEndian.Uint32(h[0x120:]),
		FileSize:       int64(binary.LittleEndian.Uint32(h[0x12C:])),
		ArtworkLink:    binary.LittleEndian.Uint32(h[0x160:]),
		ArtistID:       binary.LittleEndian.Uint32(h[0x1E0:]),
		ComposerID:     binary.LittleEndian.Uint32(h[0x1F4:]),
		Duration:       time.Duration(binary.LittleEndian.Uint32(h[0x28:])) * time.Millisecond,
		BookmarkTimeMS: int(binary.LittleEndian.Uint32(h[0x6C:])),
		Compilation:    h[0x1E] != 0,
		HasArtwork:     h[0xA4] == 1,
		UnplayedMark:   h[0xB2] == 0x02,
	}
	rating := h[0x1F]
	t.Rating = int(rating)

	pos := offset + int(c.HeaderLen)
	for pos < c.End() {
		mhodType, value, next, err := readMHODString(data, pos)
		if err != nil {
			return nil, 0, err
		}
		switch mhodType {
		case MHODTitle:
			t.Title = value
		case MHODLocation:
			t.Location = value
		case MHODArtist:
			t.Artist = value
		case MHODAlbum:
			t.Album = value
		case MHODGenre:
			t.Genre = value
		case 22:
			t.AlbumArtist = value
		case MHODComposer:
			t.Composer = value
		case MHODSortArtist:
			t.SortArtist = value
		case MHODSortTitle:
			t.SortTitle = value
		case MHODSortAlbum:
			t.SortAlbum = value
		}
		pos = next
	}
	return t, c.End(), nil
}

func readAlbumList(data []byte, offset int) ([]NamedEntity, error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHLA)
	if err != nil {
		return nil, fmt.Errorf("itunesdb: reading mhla: %w", err)
	}
	count := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
	pos := offset + int(c.HeaderLen)
	albums := make([]NamedEntity, 0, count)
	for i := uint32(0); i < count && pos < c.End(); i++ {
		a, next, err := readAlbum(data, pos)
		if err != nil {
			return nil, err
		}
		albums = append(albums, a)
		pos = next
	}
	return albums, nil
}

func readAlbum(data []byte, offset int) (NamedEntity, int, error) {
	c, err := chunkcodec.ExpectTag(data, offset, "mhia")
	if err != nil {
		return NamedEntity{}, 0, fmt.Errorf("itunesdb: reading mhia: %w", err)
	}
	a := NamedEntity{ID: binary.LittleEndian.Uint32(data[offset+0x10:])}
	pos := offset + int(c.HeaderLen)
	for pos < c.End() {
		mhodType, value, next, err := readMHODString(data, pos)
		if err != nil {
			return NamedEntity{}, 0, err
		}
		switch mhodType {
		case MHODAlbumName:
			a.Name = value
		case MHODAlbumArtist200:
			a.Artist = value
		case MHODAlbumSortArtist:
			a.SortArtist = value
		}
		pos = next
	}
	return a, c.End(), nil
}

func readPlaylistList(data []byte, offset int) ([]Playlist, error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHLP)
	if err != nil {
		return nil, fmt.Errorf("itunesdb: reading mhlp: %w", err)
	}
	count := binary.LittleEndian.Uint32(data[offset+8 : offset+12])
	pos := offset + int(c.HeaderLen)
	playlists := make([]Playlist, 0, count)
	for i := uint32(0); i < count && pos < c.End(); i++ {
		p, next, err := readPlaylist(data, pos)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
		pos = next
	}
	return playlists, nil
}

func readPlaylist(data []byte, offset int) (Playlist, int, error) {
	c, err := chunkcodec.ExpectTag(data, offset, TagMHYP)
	if err != nil {
		return Playlist{}, 0, fmt.Errorf("itunesdb: reading mhyp: %w", err)
	}
	p := Playlist{
		Hidden: binary.LittleEndian.Uint32(data[offset+0x14:]) == 1,
	}
	p.IsMaster = p.Hidden

	pos := offset + int(c.HeaderLen)
	for pos < c.End() {
		child, err := chunkcodec.Read(data, pos)
		if err != nil {
			return Playlist{}, 0, err
		}
		switch child.Tag {
		case TagMHOD:
			mhodType := binary.LittleEndian.Uint32(data[pos+12 : pos+16])
			if mhodType == MHODTitle {
				_, value, _, err := readMHODString(data, pos)
				if err != nil {
					return Playlist{}, 0, err
				}
				p.Title = value
			}
		case TagMHIP:
			trackID := binary.LittleEndian.Uint32(data[pos+0x18:])
			p.TrackIDs = append(p.TrackIDs, trackID)
		}
		pos = child.End()
	}
	return p, c.End(), nil
}
