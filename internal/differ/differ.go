// Package differ implements the fingerprint-based reconciliation
// algorithm (spec §4.7): it matches PC files to iPod tracks by acoustic
// fingerprint, not metadata, and emits a classified plan of changes by
// comparing PC scan results against parsed device tracks and the
// persistent mapping store.
package differ

import (
	"path/filepath"

	"github.com/jdfalk/ipodsync/internal/itunesdb"
	"github.com/jdfalk/ipodsync/internal/mapping"
)

// PCTrack is one scanned PC-library file: the output of differ Phase 1
// (spec §4.7), populated by internal/pclibrary's tag-extraction scan.
type PCTrack struct {
	Fingerprint string
	AbsPath     string
	RelPath     string // path relative to the PC music root; the mapping's source_path_hint
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	Genre       string
	Composer    string
	Year        int
	TrackNumber int
	DiscNumber  int
	Size        int64
	ModTime     int64 // unix seconds, avoids importing time for Date()-forbidden workflow scripts
	Rating      int
	ArtHash     string
}

// FieldDiff is one metadata field's old/new values (spec §4.7 "per-field
// (old, new) diff").
type FieldDiff struct {
	Field string
	Old   string
	New   string
}

// SyncAction enumerates the plan's seven classified change kinds.
type SyncAction int

const (
	ActionAdd SyncAction = iota
	ActionRemove
	ActionUpdateMetadata
	ActionUpdateFile
	ActionUpdateArtwork
	ActionSyncPlayCount
	ActionSyncRating
)

// SyncItem is one classified change. Not every field is populated for
// every Action — see the per-action constructors below.
type SyncItem struct {
	Action      SyncAction
	Fingerprint string
	DBID        uint64 // 0 for ActionAdd, where the dbid is not yet assigned
	PC          *PCTrack
	Metadata    []FieldDiff // ActionUpdateMetadata
	PlayDelta   int         // ActionSyncPlayCount
	SkipDelta   int         // ActionSyncPlayCount
	NewRating   int         // ActionSyncRating: device rating wins (spec §4.7 last-write-wins)
}

// StorageSummary estimates the plan's impact on device free space
// (spec §4.7, consumed by executor preflight spec §4.10 stage 1).
type StorageSummary struct {
	BytesToAdd    int64
	BytesToRemove int64
	BytesToUpdate int64
}

// Plan is the differ's full output (spec §4.7 "Outputs").
type Plan struct {
	ToAdd             []SyncItem
	ToRemove          []SyncItem
	ToUpdateMetadata  []SyncItem
	ToUpdateFile      []SyncItem
	ToUpdateArtwork   []SyncItem
	ToSyncPlayCount   []SyncItem
	ToSyncRating      []SyncItem
	Storage           StorageSummary
	Duplicates        map[string][]PCTrack // fingerprint -> PC tracks sharing it
	UnresolvedCollisions []UnresolvedCollision
	PCPathByFingerprint map[string]string // fingerprint -> PC abs path, for artwork extraction
	SilentStaleCleanups []uint64          // dbids whose mapping entry was dropped with no user-visible action
}

// UnresolvedCollision is surfaced to the user when more than one mapping
// entry shares a fingerprint and none disambiguates by path (spec §4.7
// Phase 2, scenario E).
type UnresolvedCollision struct {
	Fingerprint string
	PC          PCTrack
	Candidates  []mapping.Entry
}

// Input bundles the three sources the differ reconciles.
type Input struct {
	PCTracks     []PCTrack
	DeviceTracks []*itunesdb.Track // post-integrity-check surviving set
	Mapping      *mapping.Store
}

// Run executes all four phases of spec §4.7 and returns the classified
// plan. deviceByDBID is built once for O(1) lookups across every phase.
func Run(in Input) Plan {
	plan := Plan{
		Duplicates:          make(map[string][]PCTrack),
		PCPathByFingerprint: make(map[string]string),
	}

	deviceByDBID := make(map[uint64]*itunesdb.Track, len(in.DeviceTracks))
	for _, t := range in.DeviceTracks {
		deviceByDBID[t.DBID] = t
	}

	// Phase 1: group PC tracks by fingerprint, block duplicates.
	byFP := make(map[string][]PCTrack)
	for _, pc := range in.PCTracks {
		byFP[pc.Fingerprint] = append(byFP[pc.Fingerprint], pc)
	}

	seenFP := make(map[string]bool)
	for fp, group := range byFP {
		seenFP[fp] = true
		if len(group) > 1 {
			plan.Duplicates[fp] = group
			continue // blocked from further processing (spec §4.7 Phase 1)
		}
		pc := group[0]
		plan.PCPathByFingerprint[fp] = pc.AbsPath

		entries := in.Mapping.GetEntries(fp)
		if len(entries) == 0 {
			item := SyncItem{Action: ActionAdd, Fingerprint: fp, PC: &pc}
			plan.ToAdd = append(plan.ToAdd, item)
			continue
		}

		entry, ok := resolveCollision(entries, pc)
		if !ok {
			plan.UnresolvedCollisions = append(plan.UnresolvedCollisions, UnresolvedCollision{
				Fingerprint: fp, PC: pc, Candidates: entries,
			})
			continue
		}

		device, onDevice := deviceByDBID[entry.DBID]
		if !onDevice {
			// Stale mapping repair: the dbid vanished (e.g. user deleted
			// it on-device), but the fingerprint is still live on the PC.
			item := SyncItem{Action: ActionAdd, Fingerprint: fp, PC: &pc}
			plan.ToAdd = append(plan.ToAdd, item)
			continue
		}

		classifyMatched(&plan, fp, pc, entry, device)
	}

	// Phase 3: removes — every mapping fingerprint not seen on the PC.
	for _, fp := range in.Mapping.Fingerprints() {
		if seenFP[fp] {
			continue
		}
		for _, entry := range in.Mapping.GetEntries(fp) {
			if device, ok := deviceByDBID[entry.DBID]; ok {
				plan.ToRemove = append(plan.ToRemove, SyncItem{Action: ActionRemove, Fingerprint: fp, DBID: entry.DBID})
				plan.Storage.BytesToRemove += device.FileSize
			} else {
				plan.SilentStaleCleanups = append(plan.SilentStaleCleanups, entry.DBID)
			}
		}
	}

	for _, item := range plan.ToAdd {
		plan.Storage.BytesToAdd += item.PC.Size
	}
	for _, item := range plan.ToUpdateFile {
		plan.Storage.BytesToUpdate += item.PC.Size
	}

	return plan
}

// resolveCollision picks the mapping entry for pc (spec §4.7 Phase 2,
// scenario E). A fingerprint with a single entry resolves to that entry
// without a path check. With several entries, the first one whose
// non-empty source_path_hint equals pc's relative path is returned; if
// none matches, the result is left unresolved for the caller to surface
// as an UnresolvedCollision rather than guessed at here.
func resolveCollision(entries []mapping.Entry, pc PCTrack) (mapping.Entry, bool) {
	if len(entries) == 1 {
		return entries[0], true
	}
	for _, e := range entries {
		if e.SourcePathHint != "" && e.SourcePathHint == pc.RelPath {
			return e, true
		}
	}
	return mapping.Entry{}, false
}

// classifyMatched runs spec §4.7 Phase 2's per-field checks once a PC
// track has been resolved to a specific (fingerprint, dbid, mapping
// entry) triple, and Phase 4's artwork-coverage check.
func classifyMatched(plan *Plan, fp string, pc PCTrack, entry mapping.Entry, device *itunesdb.Track) {
	if fileChanged(pc, entry) {
		plan.ToUpdateFile = append(plan.ToUpdateFile, SyncItem{
			Action: ActionUpdateFile, Fingerprint: fp, DBID: entry.DBID, PC: &pc,
		})
	}

	if diffs := compareMetadata(pc, device); len(diffs) > 0 {
		plan.ToUpdateMetadata = append(plan.ToUpdateMetadata, SyncItem{
			Action: ActionUpdateMetadata, Fingerprint: fp, DBID: entry.DBID, PC: &pc, Metadata: diffs,
		})
	}

	if pc.ArtHash != "" && pc.ArtHash != entry.ArtHash {
		plan.ToUpdateArtwork = append(plan.ToUpdateArtwork, SyncItem{
			Action: ActionUpdateArtwork, Fingerprint: fp, DBID: entry.DBID, PC: &pc,
		})
	}

	if device.PlayCountSinceSync != 0 || device.SkipCount != 0 {
		plan.ToSyncPlayCount = append(plan.ToSyncPlayCount, SyncItem{
			Action: ActionSyncPlayCount, Fingerprint: fp, DBID: entry.DBID,
			PlayDelta: device.PlayCountSinceSync, SkipDelta: device.SkipCount,
		})
	}

	if device.Rating != pc.Rating && (device.Rating != 0 || pc.Rating != 0) {
		// Last-write-wins: the device rating wins, spec §4.7.
		plan.ToSyncRating = append(plan.ToSyncRating, SyncItem{
			Action: ActionSyncRating, Fingerprint: fp, DBID: entry.DBID, NewRating: device.Rating,
		})
	}

	if !device.HasArtwork && pc.ArtHash != "" {
		found := false
		for _, it := range plan.ToUpdateArtwork {
			if it.DBID == entry.DBID {
				found = true
				break
			}
		}
		if !found {
			plan.ToUpdateArtwork = append(plan.ToUpdateArtwork, SyncItem{
				Action: ActionUpdateArtwork, Fingerprint: fp, DBID: entry.DBID, PC: &pc,
			})
		}
	}
}

// fileChanged implements spec §4.7's file-change heuristic: size changed
// by more than 1% AND more than 10KB, OR mtime differs with any size
// delta at all.
func fileChanged(pc PCTrack, entry mapping.Entry) bool {
	sizeDelta := pc.Size - entry.SourceSize
	if sizeDelta < 0 {
		sizeDelta = -sizeDelta
	}
	mtimeDiffers := pc.ModTime != entry.SourceModTime.Unix()

	significantSizeChange := sizeDelta > 10*1024 && float64(sizeDelta) > 0.01*float64(entry.SourceSize)
	if significantSizeChange {
		return true
	}
	if mtimeDiffers && sizeDelta > 0 {
		return true
	}
	return false
}

// compareMetadata diffs the fields named in spec §4.7 Phase 2 between
// the PC track and the device's current record.
func compareMetadata(pc PCTrack, device *itunesdb.Track) []FieldDiff {
	var diffs []FieldDiff
	check := func(field, oldV, newV string) {
		if oldV != newV {
			diffs = append(diffs, FieldDiff{Field: field, Old: oldV, New: newV})
		}
	}
	check("title", device.Title, pc.Title)
	check("artist", device.Artist, pc.Artist)
	check("album", device.Album, pc.Album)
	check("album_artist", device.AlbumArtist, pc.AlbumArtist)
	check("genre", device.Genre, pc.Genre)
	if device.Year != pc.Year {
		diffs = append(diffs, FieldDiff{Field: "year", Old: itoa(device.Year), New: itoa(pc.Year)})
	}
	if device.TrackNumber != pc.TrackNumber {
		diffs = append(diffs, FieldDiff{Field: "track_number", Old: itoa(device.TrackNumber), New: itoa(pc.TrackNumber)})
	}
	if device.DiscNumber != pc.DiscNumber {
		diffs = append(diffs, FieldDiff{Field: "disc_number", Old: itoa(device.DiscNumber), New: itoa(pc.DiscNumber)})
	}
	return diffs
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// RelPath computes an RelPath relative to root for abs, using forward
// slashes regardless of OS, so mapping source_path_hints compare stably.
func RelPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
