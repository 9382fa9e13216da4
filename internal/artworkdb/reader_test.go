package artworkdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadDatabaseRejectsBadMagic(t *testing.T) {
	data := make([]byte, mhfdHeaderSize)
	copy(data[0:4], "xxxx")
	_, _, err := ReadDatabase(data)
	require.Error(t, err)
}

func TestReadDatabaseEmptyEntries(t *testing.T) {
	db := &Database{}
	artworkDB, ithmb, err := WriteDatabase(db, WriteOptions{})
	require.NoError(t, err)
	require.Empty(t, ithmb)

	parsed, index, err := ReadDatabase(artworkDB)
	require.NoError(t, err)
	require.Empty(t, parsed.Entries)
	require.Empty(t, index)
}

func TestLoadRastersSkipsMissingITHMBFile(t *testing.T) {
	db := &Database{Entries: []Entry{sampleEntry(100, 1)}}
	artworkDB, ithmb, err := WriteDatabase(db, WriteOptions{})
	require.NoError(t, err)
	delete(ithmb, FormatMedium)

	parsed, index, err := ReadDatabase(artworkDB)
	require.NoError(t, err)
	require.NoError(t, LoadRasters(parsed, index, ithmb))
	require.Nil(t, parsed.Entries[0].Formats[FormatMedium].Data)
}
