// Package devprefs reads and writes the device preferences file
// (iTunesPrefs, its XML plist sidecar, and the private HashInfo file),
// spec §6 and §4.10 stage 10. Stamping these files tells the device it
// is manually synced and records which desktop library owns it.
package devprefs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"howett.net/plist"
)

// Binary layout constants, spec §6.
const (
	prefsSize        = 1232
	magicOffset      = 0
	setupDoneOffset  = 4
	autoOpenOffset   = 5
	syncModeOffset   = 6 // 0 = auto, 1 = manual
	syncTypeOffset   = 7
	libraryLinkOffset = 12
	diskUseOffset    = 31
	syncHistoryOffset = 384
	syncHistoryEntrySize = 128 // 64-byte username + 64-byte hostname
)

var magic = [4]byte{'f', 'r', 'p', 'd'}

// SyncMode selects auto vs manual device sync, spec §4.10 stage 10.
type SyncMode byte

const (
	SyncModeAuto   SyncMode = 0
	SyncModeManual SyncMode = 1
)

// Prefs models the binary iTunesPrefs record plus the fields the XML
// plist sidecar adds on top of it (spec §6).
type Prefs struct {
	SetupDone      bool
	AutoOpenITunes bool
	SyncMode       SyncMode
	DiskUseMode    bool
	LibraryLinkID  uint64
	SyncUsername   string
	SyncHostname   string

	// EstimatedDeviceTotals mirrors the XML plist's device-totals block,
	// refreshed each sync (spec §4.10 stage 10, SPEC_FULL.md §3
	// "protect from iTunes" supplement).
	TrackCount    int
	TotalBytes    int64
	TotalDuration time.Duration
}

func padString(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}

func trimString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		i = len(b)
	}
	return string(b[:i])
}

// EncodeBinary serializes p into the 1232-byte iTunesPrefs record.
func EncodeBinary(p Prefs) []byte {
	buf := make([]byte, prefsSize)
	copy(buf[magicOffset:], magic[:])
	if p.SetupDone {
		buf[setupDoneOffset] = 1
	}
	if p.AutoOpenITunes {
		buf[autoOpenOffset] = 1
	}
	buf[syncModeOffset] = byte(p.SyncMode)
	binary.LittleEndian.PutUint64(buf[libraryLinkOffset:], p.LibraryLinkID)
	if p.DiskUseMode {
		buf[diskUseOffset] = 1
	}
	copy(buf[syncHistoryOffset:syncHistoryOffset+64], padString(p.SyncUsername, 64))
	copy(buf[syncHistoryOffset+64:syncHistoryOffset+syncHistoryEntrySize], padString(p.SyncHostname, 64))
	return buf
}

// DecodeBinary parses a 1232-byte iTunesPrefs record.
func DecodeBinary(data []byte) (Prefs, error) {
	if len(data) < prefsSize {
		return Prefs{}, fmt.Errorf("devprefs: record too short: %d bytes, want %d", len(data), prefsSize)
	}
	if !bytes.Equal(data[magicOffset:magicOffset+4], magic[:]) {
		return Prefs{}, fmt.Errorf("devprefs: bad magic %q, want %q", data[0:4], magic)
	}
	p := Prefs{
		SetupDone:      data[setupDoneOffset] != 0,
		AutoOpenITunes: data[autoOpenOffset] != 0,
		SyncMode:       SyncMode(data[syncModeOffset]),
		DiskUseMode:    data[diskUseOffset] != 0,
		LibraryLinkID:  binary.LittleEndian.Uint64(data[libraryLinkOffset:]),
		SyncUsername:   trimString(data[syncHistoryOffset : syncHistoryOffset+64]),
		SyncHostname:   trimString(data[syncHistoryOffset+64 : syncHistoryOffset+syncHistoryEntrySize]),
	}
	return p, nil
}

// plistDoc is the XML sidecar's shape: the same fields as the binary
// record plus the device-totals block (spec §6 "The XML plist wraps the
// same binary and adds device-totals fields").
type plistDoc struct {
	LibraryLinkIdentifier uint64 `plist:"LibraryLinkIdentifier"`
	SyncMode              int    `plist:"SyncMode"`
	EstimatedDeviceTotals struct {
		TrackCount      int   `plist:"TrackCount"`
		TotalBytes      int64 `plist:"TotalBytes"`
		TotalDurationMS int64 `plist:"TotalDurationMS"`
	} `plist:"EstimatedDeviceTotals"`
}

// EncodePlist renders p's XML plist sidecar.
func EncodePlist(p Prefs) ([]byte, error) {
	doc := plistDoc{
		LibraryLinkIdentifier: p.LibraryLinkID,
		SyncMode:              int(p.SyncMode),
	}
	doc.EstimatedDeviceTotals.TrackCount = p.TrackCount
	doc.EstimatedDeviceTotals.TotalBytes = p.TotalBytes
	doc.EstimatedDeviceTotals.TotalDurationMS = p.TotalDuration.Milliseconds()

	var buf bytes.Buffer
	enc := plist.NewEncoder(&buf)
	enc.Indent("\t")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("devprefs: encoding plist: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePlist parses an XML plist sidecar.
func DecodePlist(data []byte) (Prefs, error) {
	var doc plistDoc
	if _, err := plist.Unmarshal(data, &doc); err != nil {
		return Prefs{}, fmt.Errorf("devprefs: decoding plist: %w", err)
	}
	return Prefs{
		LibraryLinkID: doc.LibraryLinkIdentifier,
		SyncMode:      SyncMode(doc.SyncMode),
		TrackCount:    doc.EstimatedDeviceTotals.TrackCount,
		TotalBytes:    doc.EstimatedDeviceTotals.TotalBytes,
		TotalDuration: time.Duration(doc.EstimatedDeviceTotals.TotalDurationMS) * time.Millisecond,
	}, nil
}

// Write stamps both the binary iTunesPrefs and its XML plist sidecar at
// the paths given (spec §4.10 stage 10). It also detects a foreign
// iTunes sync by comparing the on-disk library-link id against
// expectedLibraryLinkID, surfaced as a non-fatal warning (SPEC_FULL.md §3
// "protect from iTunes" supplement).
func Write(binPath, plistPath string, p Prefs, expectedLibraryLinkID uint64) (foreignSyncDetected bool, err error) {
	if existing, statErr := os.ReadFile(binPath); statErr == nil && len(existing) >= prefsSize {
		if old, decErr := DecodeBinary(existing); decErr == nil {
			if old.LibraryLinkID != 0 && old.LibraryLinkID != expectedLibraryLinkID {
				foreignSyncDetected = true
			}
		}
	}

	if err := os.WriteFile(binPath, EncodeBinary(p), 0o644); err != nil {
		return foreignSyncDetected, fmt.Errorf("devprefs: writing %s: %w", binPath, err)
	}
	plistData, err := EncodePlist(p)
	if err != nil {
		return foreignSyncDetected, err
	}
	if err := os.WriteFile(plistPath, plistData, 0o644); err != nil {
		return foreignSyncDetected, fmt.Errorf("devprefs: writing %s: %w", plistPath, err)
	}
	return foreignSyncDetected, nil
}

// HashInfo is the 54-byte private sidecar caching a device's extracted
// HASH72 (IV, nonce) pair (spec §4.4 "Persist (IV, nonce) to a
// device-local hash info file", spec §6 layout).
type HashInfo struct {
	DeviceUUID [20]byte
	Nonce      [12]byte
	IV         [16]byte
}

var hashInfoMagic = [6]byte{'H', 'A', 'S', 'H', 'v', '0'}

// EncodeHashInfo serializes h into the 54-byte HashInfo record.
func EncodeHashInfo(h HashInfo) []byte {
	buf := make([]byte, 54)
	copy(buf[0:6], hashInfoMagic[:])
	copy(buf[6:26], h.DeviceUUID[:])
	copy(buf[26:38], h.Nonce[:])
	copy(buf[38:54], h.IV[:])
	return buf
}

// DecodeHashInfo parses a 54-byte HashInfo record.
func DecodeHashInfo(data []byte) (HashInfo, error) {
	if len(data) != 54 {
		return HashInfo{}, fmt.Errorf("devprefs: HashInfo must be 54 bytes, got %d", len(data))
	}
	if !bytes.Equal(data[0:6], hashInfoMagic[:]) {
		return HashInfo{}, fmt.Errorf("devprefs: bad HashInfo magic %q", data[0:6])
	}
	var h HashInfo
	copy(h.DeviceUUID[:], data[6:26])
	copy(h.Nonce[:], data[26:38])
	copy(h.IV[:], data[38:54])
	return h, nil
}

// LoadHashInfo reads and parses a HashInfo file from disk.
func LoadHashInfo(path string) (HashInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HashInfo{}, fmt.Errorf("devprefs: reading %s: %w", path, err)
	}
	return DecodeHashInfo(data)
}

// SaveHashInfo writes h to path.
func SaveHashInfo(path string, h HashInfo) error {
	return os.WriteFile(path, EncodeHashInfo(h), 0o644)
}
