package itunesdb

import (
	"testing"
	"time"

	"github.com/jdfalk/ipodsync/internal/checksum"
	"github.com/stretchr/testify/require"
)

func sampleDatabase() *Database {
	return &Database{
		VersionTag:          0x4F,
		DatabaseID:          0x1122334455667788,
		Platform:            2,
		HashingScheme:       uint16(checksum.SchemeNone),
		Language:            "en",
		LibraryPersistentID: 0xAABBCCDDEEFF0011,
		Tracks: []*Track{
			{
				Title:       "Dawn",
				Artist:      "Explosions in the Sky",
				Album:       "The Earth Is Not a Cold Dead Place",
				AlbumArtist: "Explosions in the Sky",
				Genre:       "Post-Rock",
				Composer:    "Munaf Rayani",
				Year:        2003,
				TrackNumber: 1,
				TrackCount:  6,
				DiscNumber:  1,
				DiscCount:   1,
				Duration:    8*time.Minute + 22*time.Second,
				FileSize:    9_437_184,
				BitRate:     256,
				SampleRate:  44100,
				Rating:      80,
				FileType:    "mp3",
				Location:    encodeLocation("F00", "ABCD.mp3"),
				DateAdded:   time.Unix(1_700_000_000, 0),
			},
			{
				Title:       "The Only Moment We Were Alone",
				Artist:      "Explosions in the Sky",
				Album:       "The Earth Is Not a Cold Dead Place",
				AlbumArtist: "Explosions in the Sky",
				Genre:       "Post-Rock",
				Composer:    "Mark Smith",
				Year:        2003,
				TrackNumber: 2,
				TrackCount:  6,
				DiscNumber:  1,
				DiscCount:   1,
				Duration:    8*time.Minute + 15*time.Second,
				FileSize:    8_912_896,
				BitRate:     256,
				SampleRate:  44100,
				Rating:      100,
				FileType:    "m4a",
				Location:    encodeLocation("F00", "ABCE.m4a"),
				DateAdded:   time.Unix(1_700_000_100, 0),
			},
			{
				Title:    "5cm/s",
				Artist:   "Tenmon",
				Album:    "Byousoku 5 Centimeter",
				Genre:    "Soundtrack",
				Year:     2007,
				FileType: "mp3",
				Location: encodeLocation("F01", "CAFE.mp3"),
			},
		},
	}
}

func TestWriteDatabaseRoundTrip(t *testing.T) {
	db := sampleDatabase()
	data, err := WriteDatabase(db, WriteOptions{Scheme: checksum.SchemeNone})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := ReadDatabase(data)
	require.NoError(t, err)

	require.Equal(t, db.DatabaseID, got.DatabaseID)
	require.Equal(t, db.Platform, got.Platform)
	require.Equal(t, "en", got.Language)
	require.Equal(t, db.LibraryPersistentID, got.LibraryPersistentID)

	require.Len(t, got.Tracks, 3)
	for i, want := range db.Tracks {
		gotTrack := got.Tracks[i]
		require.Equal(t, want.Title, gotTrack.Title, "track %d title", i)
		require.Equal(t, want.Artist, gotTrack.Artist, "track %d artist", i)
		require.Equal(t, want.Album, gotTrack.Album, "track %d album", i)
		require.Equal(t, want.Genre, gotTrack.Genre, "track %d genre", i)
		require.Equal(t, want.Composer, gotTrack.Composer, "track %d composer", i)
		require.Equal(t, want.Location, gotTrack.Location, "track %d location", i)
		require.Equal(t, uint32(len(db.Albums)+i+1), gotTrack.ID, "track %d sequential id after the album ids", i)
		require.NotZero(t, gotTrack.DBID, "track %d dbid", i)
	}

	// The two Explosions in the Sky tracks share one album and one artist id;
	// the distinct Tenmon track gets its own of each. Composer ids are never
	// deduplicated, so all three tracks get distinct composer ids.
	require.Equal(t, got.Tracks[0].AlbumID, got.Tracks[1].AlbumID)
	require.NotEqual(t, got.Tracks[0].AlbumID, got.Tracks[2].AlbumID)
	require.Equal(t, got.Tracks[0].ArtistID, got.Tracks[1].ArtistID)
	require.NotEqual(t, got.Tracks[0].ArtistID, got.Tracks[2].ArtistID)
	require.NotEqual(t, got.Tracks[0].ComposerID, got.Tracks[1].ComposerID)

	require.Len(t, got.Albums, 2)

	require.True(t, got.Master.IsMaster)
	require.True(t, got.Master.Hidden)
	require.Equal(t, []uint32{3, 4, 5}, got.Master.TrackIDs) // ids 1 and 2 went to the two albums
}

func TestWriteDatabaseEmptyOptionalFieldsOmitMHODs(t *testing.T) {
	db := &Database{
		VersionTag: 0x4F,
		Tracks: []*Track{
			{Title: "Untitled", Location: encodeLocation("F00", "0001.mp3"), FileType: "mp3"},
		},
	}
	data, err := WriteDatabase(db, WriteOptions{Scheme: checksum.SchemeNone})
	require.NoError(t, err)

	got, err := ReadDatabase(data)
	require.NoError(t, err)
	require.Len(t, got.Tracks, 1)
	require.Equal(t, "Untitled", got.Tracks[0].Title)
	require.Empty(t, got.Tracks[0].Artist)
	require.Empty(t, got.Tracks[0].Album)
	require.Empty(t, got.Tracks[0].Composer)
}

func TestWriteDatabasePreservesReferenceHeaderBytes(t *testing.T) {
	reference := make([]byte, mhbdHeaderSize)
	for i := 0x32; i < 0x46; i++ {
		reference[i] = byte(i)
	}
	for i := 0x72; i < mhbdHeaderSize; i++ {
		reference[i] = byte(i * 3)
	}

	db := &Database{VersionTag: 0x4F}
	data, err := WriteDatabase(db, WriteOptions{Scheme: checksum.SchemeNone, ReferenceMHBD: reference})
	require.NoError(t, err)

	require.Equal(t, reference[0x32:0x46], data[0x32:0x46])
	require.Equal(t, reference[0x72:mhbdHeaderSize], data[0x72:mhbdHeaderSize])
}

func TestBuildSortIndicesStripsLeadingArticleAndGroupsByLetter(t *testing.T) {
	tracks := []*Track{
		{Title: "The Mountain"},
		{Title: "Avalanche"},
		{Title: "Zenith"},
	}
	indices := BuildSortIndices(tracks)
	titleIdx := indices[SortByTitle]
	require.Equal(t, SortByTitle, titleIdx.Category)

	// "The Mountain" sorts under M (article stripped), so order is
	// Avalanche, The Mountain, Zenith.
	require.Equal(t, []uint32{1, 0, 2}, titleIdx.Position)

	letters := make([]rune, 0, len(titleIdx.Jumps))
	for _, j := range titleIdx.Jumps {
		letters = append(letters, j.Letter)
	}
	require.Equal(t, []rune{'A', 'M', 'Z'}, letters)
}
