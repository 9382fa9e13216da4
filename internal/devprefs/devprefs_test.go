package devprefs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	p := Prefs{
		SetupDone:      true,
		AutoOpenITunes: false,
		SyncMode:       SyncModeManual,
		DiskUseMode:    true,
		LibraryLinkID:  0xDEADBEEFCAFEBABE,
		SyncUsername:   "alice",
		SyncHostname:   "alices-laptop",
	}
	data := EncodeBinary(p)
	require.Len(t, data, prefsSize)

	decoded, err := DecodeBinary(data)
	require.NoError(t, err)
	require.Equal(t, p.SetupDone, decoded.SetupDone)
	require.Equal(t, p.SyncMode, decoded.SyncMode)
	require.Equal(t, p.LibraryLinkID, decoded.LibraryLinkID)
	require.Equal(t, p.SyncUsername, decoded.SyncUsername)
	require.Equal(t, p.SyncHostname, decoded.SyncHostname)
}

func TestDecodeBinaryRejectsBadMagic(t *testing.T) {
	data := make([]byte, prefsSize)
	_, err := DecodeBinary(data)
	require.Error(t, err)
}

func TestPlistRoundTrip(t *testing.T) {
	p := Prefs{
		LibraryLinkID: 42,
		SyncMode:      SyncModeManual,
		TrackCount:    3,
		TotalBytes:    12345,
		TotalDuration: 90 * time.Second,
	}
	data, err := EncodePlist(p)
	require.NoError(t, err)

	decoded, err := DecodePlist(data)
	require.NoError(t, err)
	require.Equal(t, p.LibraryLinkID, decoded.LibraryLinkID)
	require.Equal(t, p.TrackCount, decoded.TrackCount)
	require.Equal(t, p.TotalBytes, decoded.TotalBytes)
	require.Equal(t, p.TotalDuration, decoded.TotalDuration)
}

func TestWriteDetectsForeignSync(t *testing.T) {
	dir := t.TempDir()
	binPath := filepath.Join(dir, "iTunesPrefs")
	plistPath := filepath.Join(dir, "iTunesPrefs.plist")

	_, err := Write(binPath, plistPath, Prefs{LibraryLinkID: 2}, 2)
	require.NoError(t, err)

	foreign, err := Write(binPath, plistPath, Prefs{LibraryLinkID: 1}, 1)
	require.NoError(t, err)
	require.True(t, foreign, "library link id changed out from under us: iTunes likely synced behind our back")
}

func TestHashInfoRoundTrip(t *testing.T) {
	h := HashInfo{}
	copy(h.DeviceUUID[:], []byte("01234567890123456789"))
	copy(h.Nonce[:], []byte("123456789012"))
	copy(h.IV[:], []byte("1234567890123456"))

	data := EncodeHashInfo(h)
	require.Len(t, data, 54)

	decoded, err := DecodeHashInfo(data)
	require.NoError(t, err)
	require.Equal(t, h, decoded)
}

func TestHashInfoFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "HashInfo")
	h := HashInfo{}
	copy(h.Nonce[:], []byte("abcdefghijkl"))
	require.NoError(t, SaveHashInfo(path, h))

	loaded, err := LoadHashInfo(path)
	require.NoError(t, err)
	require.Equal(t, h, loaded)
}
