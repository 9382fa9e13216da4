package differ

import (
	"testing"

	"github.com/jdfalk/ipodsync/internal/itunesdb"
	"github.com/jdfalk/ipodsync/internal/mapping"
	"github.com/stretchr/testify/require"
)

func newMappingStore() *mapping.Store {
	return mapping.New("/tmp/unused-iOpenPod.json")
}

func TestAddToIpodWhenNoMapping(t *testing.T) {
	in := Input{
		PCTracks: []PCTrack{{Fingerprint: "fp1", RelPath: "Queen/a.mp3", Size: 100}},
		Mapping:  newMappingStore(),
	}
	plan := Run(in)
	require.Len(t, plan.ToAdd, 1)
	require.Equal(t, "fp1", plan.ToAdd[0].Fingerprint)
	require.Equal(t, int64(100), plan.Storage.BytesToAdd)
}

func TestDuplicateFingerprintsBlocked(t *testing.T) {
	in := Input{
		PCTracks: []PCTrack{
			{Fingerprint: "dup", RelPath: "Greatest Hits/Bohemian Rhapsody.mp3"},
			{Fingerprint: "dup", RelPath: "A Night at the Opera/Bohemian Rhapsody.mp3"},
		},
		Mapping: newMappingStore(),
	}
	plan := Run(in)
	require.Empty(t, plan.ToAdd)
	require.Empty(t, plan.ToUpdateFile)
	require.Contains(t, plan.Duplicates, "dup")
	require.Len(t, plan.Duplicates["dup"], 2)
}

func TestUnresolvedCollisionWhenHintsDontMatch(t *testing.T) {
	store := newMappingStore()
	store.Add("fp1", mapping.Entry{DBID: 1, SourcePathHint: "Other/Path.mp3"})
	store.Add("fp1", mapping.Entry{DBID: 2, SourcePathHint: "Another/Path.mp3"})

	in := Input{
		PCTracks: []PCTrack{{Fingerprint: "fp1", RelPath: "Totally/Unrelated.mp3"}},
		Mapping:  store,
	}
	plan := Run(in)
	require.Len(t, plan.UnresolvedCollisions, 1)
	require.Empty(t, plan.ToAdd)
	require.Empty(t, plan.ToUpdateFile)
}

func TestStaleMappingRepairAddsBack(t *testing.T) {
	store := newMappingStore()
	store.Add("fp1", mapping.Entry{DBID: 99, SourcePathHint: "a.mp3"})

	in := Input{
		PCTracks:     []PCTrack{{Fingerprint: "fp1", RelPath: "a.mp3"}},
		DeviceTracks: nil, // dbid 99 no longer present on device
		Mapping:      store,
	}
	plan := Run(in)
	require.Len(t, plan.ToAdd, 1)
}

func TestScenarioB_MetadataRename(t *testing.T) {
	store := newMappingStore()
	store.Add("fpRadiohead", mapping.Entry{DBID: 3, SourcePathHint: "Radiohead/OK Computer/Paranoid Android.mp3", SourceSize: 5000, ArtHash: "art1"})

	device := &itunesdb.Track{DBID: 3, Artist: "Radiohead", Title: "Paranoid Android", HasArtwork: true}
	in := Input{
		PCTracks: []PCTrack{{
			Fingerprint: "fpRadiohead", RelPath: "Radiohead/OK Computer/Paranoid Android.mp3",
			Artist: "Radiohead (UK)", Title: "Paranoid Android", Size: 5000, ArtHash: "art1",
		}},
		DeviceTracks: []*itunesdb.Track{device},
		Mapping:      store,
	}
	plan := Run(in)
	require.Empty(t, plan.ToUpdateFile)
	require.Len(t, plan.ToUpdateMetadata, 1)
	require.Equal(t, []FieldDiff{{Field: "artist", Old: "Radiohead", New: "Radiohead (UK)"}}, plan.ToUpdateMetadata[0].Metadata)
}

func TestScenarioD_PlayCountSync(t *testing.T) {
	store := newMappingStore()
	store.Add("fp", mapping.Entry{DBID: 5, SourcePathHint: "a.mp3", SourceSize: 10})
	device := &itunesdb.Track{DBID: 5, PlayCountSinceSync: 2, HasArtwork: true}
	in := Input{
		PCTracks:     []PCTrack{{Fingerprint: "fp", RelPath: "a.mp3", Size: 10}},
		DeviceTracks: []*itunesdb.Track{device},
		Mapping:      store,
	}
	plan := Run(in)
	require.Len(t, plan.ToSyncPlayCount, 1)
	require.Equal(t, 2, plan.ToSyncPlayCount[0].PlayDelta)
}

func TestRemoveFromIpodForDroppedFingerprint(t *testing.T) {
	store := newMappingStore()
	store.Add("gone", mapping.Entry{DBID: 7, SourcePathHint: "gone.mp3"})
	device := &itunesdb.Track{DBID: 7, FileSize: 42}
	in := Input{
		PCTracks:     nil,
		DeviceTracks: []*itunesdb.Track{device},
		Mapping:      store,
	}
	plan := Run(in)
	require.Len(t, plan.ToRemove, 1)
	require.Equal(t, uint64(7), plan.ToRemove[0].DBID)
	require.Equal(t, int64(42), plan.Storage.BytesToRemove)
}

func TestSilentStaleCleanupWhenDBIDGoneFromDevice(t *testing.T) {
	store := newMappingStore()
	store.Add("gone", mapping.Entry{DBID: 7})
	in := Input{Mapping: store}
	plan := Run(in)
	require.Empty(t, plan.ToRemove)
	require.Equal(t, []uint64{7}, plan.SilentStaleCleanups)
}

func TestIdempotentEmptyInputsYieldEmptyPlan(t *testing.T) {
	store := newMappingStore()
	plan := Run(Input{Mapping: store})
	require.Empty(t, plan.ToAdd)
	require.Empty(t, plan.ToRemove)
	require.Empty(t, plan.ToUpdateMetadata)
}

func TestRunIsDeterministicAcrossRepeatedCalls(t *testing.T) {
	store := newMappingStore()
	store.Add("fp", mapping.Entry{DBID: 1, SourcePathHint: "a.mp3", SourceSize: 10, ArtHash: "h"})
	device := &itunesdb.Track{DBID: 1, HasArtwork: true}
	in := Input{
		PCTracks:     []PCTrack{{Fingerprint: "fp", RelPath: "a.mp3", Size: 10, ArtHash: "h"}},
		DeviceTracks: []*itunesdb.Track{device},
		Mapping:      store,
	}
	p1 := Run(in)
	p2 := Run(in)
	require.Equal(t, p1, p2)
}
