// Package integrity implements the three-way reconcile between the parsed
// iTunesDB, the mapping store, and the device's music folder (spec §4.6).
// It runs before the differ and mutates its inputs in place so the differ
// never sees a track whose file is missing, a mapping entry that points
// nowhere, or an orphan file left behind by an interrupted sync
// (scenario F).
package integrity

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jdfalk/ipodsync/internal/itunesdb"
	"github.com/jdfalk/ipodsync/internal/mapping"
)

// Report counts each class of drift the checker repaired, for UI
// surfacing (spec §4.6 "reports counts of each class").
type Report struct {
	MissingFiles   int // tracks removed: database said the file existed, it didn't
	StaleMappings  int // mapping entries removed: dbid no longer in the surviving track set
	OrphanFiles    int // files deleted: not referenced by any surviving track
}

// DevicePath converts an iTunesDB colon-separated device-relative
// location (":iPod_Control:Music:F00:ABCD.mp3") into an absolute
// filesystem path under mountPoint.
func DevicePath(mountPoint, location string) string {
	parts := strings.Split(strings.TrimPrefix(location, ":"), ":")
	return filepath.Join(append([]string{mountPoint}, parts...)...)
}

// Check runs the three-way reconcile:
//
//  1. Database → filesystem: drop tracks whose Location file is missing.
//  2. Mapping → database: drop mapping entries whose dbid is no longer in
//     the surviving track set.
//  3. Filesystem → database: delete audio files under Music/F00..F49 that
//     no surviving track references (orphan cleanup).
//
// tracks is replaced with the surviving set and mapping is mutated and
// NOT saved — callers persist it only after a database rewrite succeeds
// (spec §4.5 invariant), which integrity-driven mapping cleanup defers to
// the same stage-11 commit as every other mapping mutation.
func Check(mountPoint string, tracks []*itunesdb.Track, store *mapping.Store) ([]*itunesdb.Track, Report) {
	var report Report

	surviving := make([]*itunesdb.Track, 0, len(tracks))
	surviveDBID := make(map[uint64]bool, len(tracks))
	for _, t := range tracks {
		path := DevicePath(mountPoint, t.Location)
		if _, err := os.Stat(path); err != nil {
			report.MissingFiles++
			continue
		}
		surviving = append(surviving, t)
		surviveDBID[t.DBID] = true
	}

	for _, fp := range store.Fingerprints() {
		for _, e := range store.GetEntries(fp) {
			if !surviveDBID[e.DBID] {
				store.Remove(fp, e.DBID)
				report.StaleMappings++
			}
		}
	}

	referenced := make(map[string]bool, len(surviving))
	for _, t := range surviving {
		referenced[filepath.Clean(DevicePath(mountPoint, t.Location))] = true
	}

	musicRoot := filepath.Join(mountPoint, "iPod_Control", "Music")
	for i := 0; i < 50; i++ {
		folder := filepath.Join(musicRoot, folderName(i))
		entries, err := os.ReadDir(folder)
		if err != nil {
			continue // folder may not exist yet on a fresh device
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			full := filepath.Clean(filepath.Join(folder, de.Name()))
			if !referenced[full] {
				if err := os.Remove(full); err == nil {
					report.OrphanFiles++
				}
			}
		}
	}

	return surviving, report
}

func folderName(i int) string {
	digits := "0123456789"
	return "F" + string(digits[i/10]) + string(digits[i%10])
}
