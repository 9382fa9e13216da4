package executor

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/jdfalk/ipodsync/internal/artworkdb"
	"github.com/jdfalk/ipodsync/internal/checksum"
	"github.com/jdfalk/ipodsync/internal/devprefs"
	"github.com/jdfalk/ipodsync/internal/differ"
	"github.com/jdfalk/ipodsync/internal/integrity"
	"github.com/jdfalk/ipodsync/internal/itunesdb"
	"github.com/jdfalk/ipodsync/internal/mapping"
	"github.com/jdfalk/ipodsync/internal/metrics"
	"github.com/jdfalk/ipodsync/internal/pclibrary"
	"github.com/jdfalk/ipodsync/internal/transcodecache"
	"github.com/jdfalk/ipodsync/internal/transcoder"
)

// Stage names, used both as progress-callback labels and Prometheus
// metric labels (spec §4.10).
const (
	StagePreflight         = "preflight"
	StageCheckpoint        = "checkpoint"
	StageRemove            = "remove"
	StageUpdateFile        = "update_file"
	StageUpdateMetadata    = "update_metadata"
	StageUpdateArtworkMap  = "update_artwork_mapping"
	StageAdd               = "add"
	StageArtworkRewrite    = "artwork_rewrite"
	StageDatabaseWrite     = "database_write"
	StagePreferencesStamp  = "preferences_stamp"
	StageCommitMapping     = "commit_mapping"
)

// stageOrder is the fixed sequence spec §4.10 requires: no stage N+1
// worker starts before every stage-N worker has finished or been
// canceled (spec §5).
var stageOrder = []string{
	StagePreflight, StageCheckpoint, StageRemove, StageUpdateFile,
	StageUpdateMetadata, StageUpdateArtworkMap, StageAdd,
	StageArtworkRewrite, StageDatabaseWrite, StagePreferencesStamp,
	StageCommitMapping,
}

// cancelableStages are the stages where a caller's context cancellation
// is honored; cancellation is refused from StageArtworkRewrite onward
// because the on-device database would otherwise be left half-written
// (spec §5 "cancellation... refused during stages 8-9"). Once artwork
// rewrite begins, the run is committed to finishing.
var cancelableStages = map[string]bool{
	StagePreflight:        true,
	StageCheckpoint:       true,
	StageRemove:           true,
	StageUpdateFile:       true,
	StageUpdateMetadata:   true,
	StageUpdateArtworkMap: true,
	StageAdd:              true,
}

// freeSpaceSlackBytes is the fixed safety margin added to the pre-flight
// free-space requirement, spec §4.10 stage 1.
const freeSpaceSlackBytes = 10 * 1024 * 1024

const numMusicFolders = 50

// ProgressFunc receives a human-facing update for the currently running
// stage; current/total are item counts within that stage (0/0 for
// stages with no per-item loop).
type ProgressFunc func(stage string, current, total int, message string)

// Options configures one Executor. MountPoint and the three device
// paths are absolute filesystem paths to the already-mounted device.
type Options struct {
	MountPoint    string
	ItunesDBPath  string
	ArtworkDBPath string
	MappingPath   string
	PrefsBinPath  string
	PrefsPlistPath string

	WorkerCount int // 0 uses min(runtime.NumCPU(), 8), spec §5

	Transcoder    transcoder.Encoder
	TranscodeOpts transcoder.Options
	Cache         *transcodecache.Cache

	ChecksumScheme checksum.Scheme
	ChecksumKeys   checksum.HashKeys
	ReferenceMHBD  []byte
	ReferenceMHFD  []byte

	LibraryLinkID uint64
	SyncUsername  string
	SyncHostname  string
	WriteBack     pclibrary.WriteBackOptions

	Progress ProgressFunc
	Now      func() time.Time // overridable clock, defaults to time.Now
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) workerCount() int {
	if o.WorkerCount > 0 {
		return o.WorkerCount
	}
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (o Options) report(stage string, current, total int, message string) {
	if o.Progress != nil {
		o.Progress(stage, current, total, message)
	}
}

// Executor runs the eleven-stage sync against one in-memory database
// snapshot. It is not safe for concurrent Run calls; spec §5 mandates a
// single coordinator.
type Executor struct {
	opts Options
	eta  *ETATracker

	folderMu   sync.Mutex
	nextFolder int

	// mappingMu serializes mapping.Store mutation from the stage-4
	// worker pool; mapping.Store itself is documented not safe for
	// concurrent use (internal/mapping/mapping.go).
	mappingMu sync.Mutex
}

// New returns an Executor bound to opts.
func New(opts Options) *Executor {
	return &Executor{opts: opts, eta: NewETATracker()}
}

// Result summarizes one completed run, spec §4.10 stage 11's tallies.
type Result struct {
	Added, Removed, Updated int
	Checkpoint              Checkpoint
	IntegrityReport         integrity.Report
	ForeignSyncDetected     bool
}

// Input bundles the mutable state one Run call operates on. Db, ArtDB,
// and Mapping are mutated in place; callers read them from disk before
// Run, and Run itself writes the ArtworkDB and ithmb files (stage 8), the
// iTunesDB (stage 9) and the mapping file (stage 11), each only after
// every earlier stage succeeded.
type Input struct {
	Db       *itunesdb.Database
	ArtDB    *artworkdb.Database
	ITHMB    map[artworkdb.FormatID][]byte
	Mapping  *mapping.Store
	Plan     *differ.Plan
	PCByFingerprint map[string]differ.PCTrack // every scanned PC track, for artwork/write-back lookups
}

// addedTrack records one stage-7 addition, kept around for the mapping
// commit in stage 11.
type addedTrack struct {
	track       *itunesdb.Track
	fingerprint string
	pc          differ.PCTrack
}

// Run executes all eleven stages against in, rolling the in-memory
// model forward on success. It never writes any device file stage 9
// onward unless every earlier stage succeeded, and it never saves the
// mapping store (stage 11) unless the database write (stage 9) itself
// succeeded (spec §4.5 invariant).
func (e *Executor) Run(ctx context.Context, in Input) (*Result, error) {
	metrics.Register()
	e.eta.Start(e.opts.now())
	result := &Result{}

	if err := e.runStage(ctx, StagePreflight, func(ctx context.Context) error {
		return e.preflight(in.Plan)
	}); err != nil {
		return nil, err
	}

	if err := e.runStage(ctx, StageCheckpoint, func(ctx context.Context) error {
		cp, err := writeCheckpoint(e.opts.MountPoint, e.opts.now(), e.opts.ItunesDBPath, e.opts.MappingPath)
		if err != nil {
			return err
		}
		result.Checkpoint = cp
		return nil
	}); err != nil {
		return nil, err
	}

	if err := e.runStage(ctx, StageRemove, func(ctx context.Context) error {
		return e.removeStage(in)
	}); err != nil {
		return nil, err
	}
	result.Removed = len(in.Plan.ToRemove)

	if err := e.runStage(ctx, StageUpdateFile, func(ctx context.Context) error {
		return e.updateFileStage(ctx, in)
	}); err != nil {
		return nil, err
	}

	if err := e.runStage(ctx, StageUpdateMetadata, func(ctx context.Context) error {
		return e.updateMetadataStage(in)
	}); err != nil {
		return nil, err
	}
	result.Updated = len(in.Plan.ToUpdateMetadata)

	if err := e.runStage(ctx, StageUpdateArtworkMap, func(ctx context.Context) error {
		return e.updateArtworkMappingStage(in)
	}); err != nil {
		return nil, err
	}

	var added []*addedTrack
	if err := e.runStage(ctx, StageAdd, func(ctx context.Context) error {
		a, err := e.addStage(ctx, in)
		added = a
		return err
	}); err != nil {
		return nil, err
	}
	result.Added = len(added)

	// From here on cancellation is refused (spec §5): the on-device
	// database is about to be rewritten wholesale.
	if err := e.runStage(context.Background(), StageArtworkRewrite, func(ctx context.Context) error {
		return e.artworkRewriteStage(in, added)
	}); err != nil {
		return nil, err
	}

	if err := e.runStage(context.Background(), StageDatabaseWrite, func(ctx context.Context) error {
		return e.databaseWriteStage(in)
	}); err != nil {
		return nil, err
	}

	if err := e.runStage(context.Background(), StagePreferencesStamp, func(ctx context.Context) error {
		foreignSync, err := e.preferencesStampStage(in)
		result.ForeignSyncDetected = foreignSync
		return err
	}); err != nil {
		return nil, err
	}

	if err := e.runStage(context.Background(), StageCommitMapping, func(ctx context.Context) error {
		for _, a := range added {
			in.Mapping.Add(a.fingerprint, mapping.Entry{
				DBID:           a.track.DBID,
				SourceFormat:   normalizedExt(a.pc.AbsPath),
				IPodFormat:     a.track.FileType,
				SourceSize:     a.pc.Size,
				SourceModTime:  time.Unix(a.pc.ModTime, 0).UTC(),
				LastSync:       e.opts.now(),
				WasTranscoded:  transcoder.PlanFor(filepath.Ext(a.pc.AbsPath)) != transcoder.ActionCopy,
				SourcePathHint: a.pc.RelPath,
				ArtHash:        a.pc.ArtHash,
			})
		}
		return in.Mapping.Save()
	}); err != nil {
		return nil, err
	}

	metrics.SetSyncCounts(result.Added, result.Removed, result.Updated)
	return result, nil
}

// runStage wraps one stage with progress/metrics/ETA bookkeeping and,
// for cancelable stages, a context check before it starts.
func (e *Executor) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	if cancelableStages[stage] && ctx.Err() != nil {
		return fmt.Errorf("executor: %s: %w", stage, ctx.Err())
	}
	start := e.opts.now()
	e.eta.StageStart(stage, 0, start)
	metrics.IncStageStarted(stage)
	e.opts.report(stage, 0, 0, "starting "+stage)

	err := fn(ctx)

	e.eta.StageEnd(stage, e.opts.now())
	metrics.ObserveStageDuration(stage, e.opts.now().Sub(start))
	if err != nil {
		metrics.IncStageFailed(stage)
		return fmt.Errorf("executor: stage %s: %w", stage, err)
	}
	metrics.IncStageCompleted(stage)
	return nil
}

// --- Stage 1: pre-flight ---------------------------------------------

func (e *Executor) preflight(plan *differ.Plan) error {
	free, err := freeBytes(e.opts.MountPoint)
	if err != nil {
		return fmt.Errorf("reading free space: %w", err)
	}
	metrics.SetDeviceFreeBytes(free)

	required := plan.Storage.BytesToAdd + plan.Storage.BytesToUpdate - plan.Storage.BytesToRemove + freeSpaceSlackBytes
	if required > 0 && uint64(required) > free {
		return fmt.Errorf("insufficient free space: need %d bytes, have %d", required, free)
	}
	return nil
}

// --- Stage 3: remove ---------------------------------------------------

func (e *Executor) removeStage(in Input) error {
	removeByDBID := make(map[uint64]bool, len(in.Plan.ToRemove))
	for _, item := range in.Plan.ToRemove {
		removeByDBID[item.DBID] = true
	}

	kept := in.Db.Tracks[:0]
	for _, t := range in.Db.Tracks {
		if !removeByDBID[t.DBID] {
			kept = append(kept, t)
			continue
		}
		path := integrity.DevicePath(e.opts.MountPoint, t.Location)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	in.Db.Tracks = kept

	for _, item := range in.Plan.ToRemove {
		in.Mapping.Remove(item.Fingerprint, item.DBID)
	}
	for _, dbid := range in.Plan.SilentStaleCleanups {
		in.Mapping.RemoveByDBID(dbid)
	}
	return nil
}

// --- Stage 4: update file (parallel worker pool) -----------------------

func (e *Executor) updateFileStage(ctx context.Context, in Input) error {
	items := in.Plan.ToUpdateFile
	if len(items) == 0 {
		return nil
	}
	e.eta.StageStart(StageUpdateFile, len(items), e.opts.now())

	byDBID := make(map[uint64]*itunesdb.Track, len(in.Db.Tracks))
	for _, t := range in.Db.Tracks {
		byDBID[t.DBID] = t
	}

	return e.parallelEach(ctx, len(items), func(i int) error {
		item := items[i]
		track, ok := byDBID[item.DBID]
		if !ok {
			return fmt.Errorf("update-file: dbid %d not found among working tracks", item.DBID)
		}

		oldPath := integrity.DevicePath(e.opts.MountPoint, track.Location)
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale file %s: %w", oldPath, err)
		}

		ext := filepath.Ext(item.PC.AbsPath)
		targetExt := transcoder.PlanFor(ext).TargetExtension(ext)
		cacheKey := transcodecache.Key{Fingerprint: item.Fingerprint, TargetFormat: targetExt, BitrateKbps: e.opts.TranscodeOpts.AACBitrateKbps}
		if e.opts.Cache != nil {
			if err := e.opts.Cache.Invalidate(cacheKey); err != nil {
				return fmt.Errorf("invalidating transcode cache: %w", err)
			}
		}

		folder, devicePath, err := e.placeFile(item.PC.AbsPath, item.Fingerprint, folderIndexFromLocation(track.Location))
		if err != nil {
			return err
		}
		track.Location = locationFor(folder, filepath.Base(devicePath))
		track.FileType = normalizedExt(devicePath)

		info, err := os.Stat(devicePath)
		if err == nil {
			track.FileSize = info.Size()
		}

		e.mappingMu.Lock()
		entries := in.Mapping.GetEntries(item.Fingerprint)
		for _, me := range entries {
			if me.DBID != item.DBID {
				continue
			}
			me.SourceSize = item.PC.Size
			me.SourceModTime = time.Unix(item.PC.ModTime, 0).UTC()
			me.LastSync = e.opts.now()
			in.Mapping.Remove(item.Fingerprint, item.DBID)
			in.Mapping.Add(item.Fingerprint, me)
			break
		}
		e.mappingMu.Unlock()

		e.eta.ItemDone(StageUpdateFile, e.opts.now())
		e.opts.report(StageUpdateFile, i+1, len(items), item.PC.Title)
		return nil
	})
}

// --- Stage 5: update metadata -------------------------------------------

func (e *Executor) updateMetadataStage(in Input) error {
	byDBID := make(map[uint64]*itunesdb.Track, len(in.Db.Tracks))
	for _, t := range in.Db.Tracks {
		byDBID[t.DBID] = t
	}
	for _, item := range in.Plan.ToUpdateMetadata {
		track, ok := byDBID[item.DBID]
		if !ok {
			continue
		}
		applyFieldDiffs(track, item.Metadata)
	}

	for _, item := range in.Plan.ToSyncRating {
		if track, ok := byDBID[item.DBID]; ok {
			track.Rating = item.NewRating // device always wins, spec §4.7
		}
	}

	for _, item := range in.Plan.ToSyncPlayCount {
		track, ok := byDBID[item.DBID]
		if !ok {
			continue
		}
		if path, ok := in.Plan.PCPathByFingerprint[item.Fingerprint]; ok {
			if err := pclibrary.WriteBack(path, track.PlayCount, track.Rating, e.opts.WriteBack); err != nil {
				return err
			}
		}
		track.PlayCountSinceSync = 0
		track.SkipCount = 0
	}
	return nil
}

func applyFieldDiffs(t *itunesdb.Track, diffs []differ.FieldDiff) {
	for _, d := range diffs {
		switch d.Field {
		case "title":
			t.Title = d.New
		case "artist":
			t.Artist = d.New
		case "album":
			t.Album = d.New
		case "album_artist":
			t.AlbumArtist = d.New
		case "genre":
			t.Genre = d.New
		case "year":
			t.Year = atoiSafe(d.New)
		case "track_number":
			t.TrackNumber = atoiSafe(d.New)
		case "disc_number":
			t.DiscNumber = atoiSafe(d.New)
		}
	}
}

func atoiSafe(s string) int {
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// --- Stage 6: update artwork in mapping ---------------------------------

func (e *Executor) updateArtworkMappingStage(in Input) error {
	for _, item := range in.Plan.ToUpdateArtwork {
		entries := in.Mapping.GetEntries(item.Fingerprint)
		for _, me := range entries {
			if me.DBID != item.DBID {
				continue
			}
			me.ArtHash = item.PC.ArtHash
			in.Mapping.Remove(item.Fingerprint, item.DBID)
			in.Mapping.Add(item.Fingerprint, me)
			break
		}
	}
	return nil
}

// --- Stage 7: add --------------------------------------------------------

func (e *Executor) addStage(ctx context.Context, in Input) ([]*addedTrack, error) {
	items := in.Plan.ToAdd
	if len(items) == 0 {
		return nil, nil
	}
	e.eta.StageStart(StageAdd, len(items), e.opts.now())

	added := make([]*addedTrack, len(items))
	var mu sync.Mutex

	err := e.parallelEach(ctx, len(items), func(i int) error {
		item := items[i]
		folderIdx, devicePath, err := e.placeFileRoundRobin(item.PC.AbsPath, item.Fingerprint)
		if err != nil {
			return err
		}

		dbid, err := randomUint64()
		if err != nil {
			return fmt.Errorf("generating dbid: %w", err)
		}

		track := &itunesdb.Track{
			DBID:        dbid,
			Title:       item.PC.Title,
			Artist:      item.PC.Artist,
			Album:       item.PC.Album,
			AlbumArtist: item.PC.AlbumArtist,
			Genre:       item.PC.Genre,
			Composer:    item.PC.Composer,
			Year:        item.PC.Year,
			TrackNumber: item.PC.TrackNumber,
			DiscNumber:  item.PC.DiscNumber,
			Location:    locationFor(folderIdx, filepath.Base(devicePath)),
			FileType:    normalizedExt(devicePath),
			Fingerprint: item.Fingerprint,
		}
		if info, err := os.Stat(devicePath); err == nil {
			track.FileSize = info.Size()
		}

		mu.Lock()
		in.Db.Tracks = append(in.Db.Tracks, track)
		added[i] = &addedTrack{track: track, fingerprint: item.Fingerprint, pc: *item.PC}
		mu.Unlock()

		e.eta.ItemDone(StageAdd, e.opts.now())
		e.opts.report(StageAdd, i+1, len(items), item.PC.Title)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// placeFileRoundRobin selects the next F00..F49 folder in round-robin
// order and copies/transcodes src into it under a unique 4-character
// filename (spec §4.10 stage 7). fingerprint keys the transcode cache.
func (e *Executor) placeFileRoundRobin(src, fingerprint string) (folderIdx int, devicePath string, err error) {
	e.folderMu.Lock()
	folderIdx = e.nextFolder
	e.nextFolder = (e.nextFolder + 1) % numMusicFolders
	e.folderMu.Unlock()

	return e.placeFile(src, fingerprint, folderIdx)
}

// placeFile copies or transcodes src into folderIdx's Music subfolder
// under a freshly generated unique filename, consulting the transcode
// cache first (spec §4.8, §4.10 stage 7). fingerprint is the library
// acoustic fingerprint, the same value update-file invalidates before
// calling this — they must agree or invalidation silently misses.
func (e *Executor) placeFile(src, fingerprint string, folderIdx int) (usedFolder int, devicePath string, err error) {
	folderPath := filepath.Join(e.opts.MountPoint, "iPod_Control", "Music", folderNameFor(folderIdx))
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return 0, "", fmt.Errorf("creating %s: %w", folderPath, err)
	}

	ext := filepath.Ext(src)
	action := transcoder.PlanFor(ext)
	targetExt := action.TargetExtension(ext)

	name, err := uniqueFilename(folderPath, targetExt)
	if err != nil {
		return 0, "", err
	}
	devicePath = filepath.Join(folderPath, name)

	if action == transcoder.ActionCopy {
		if err := copyFileContents(src, devicePath); err != nil {
			return 0, "", err
		}
		return folderIdx, devicePath, nil
	}

	info, statErr := os.Stat(src)
	var sourceSize int64
	if statErr == nil {
		sourceSize = info.Size()
	}

	cacheKey := transcodecache.Key{
		Fingerprint:  fingerprint,
		TargetFormat: targetExt,
		BitrateKbps:  e.opts.TranscodeOpts.AACBitrateKbps,
	}
	if e.opts.Cache != nil {
		if entry, hit, cacheErr := e.opts.Cache.Get(cacheKey, sourceSize); cacheErr == nil && hit {
			metrics.IncTranscodeCacheHit()
			if err := copyFileContents(entry.CachedPath, devicePath); err != nil {
				return 0, "", err
			}
			return folderIdx, devicePath, nil
		}
		metrics.IncTranscodeCacheMiss()
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.transcodeTimeout())
	defer cancel()
	outPath, err := e.opts.Transcoder.Transcode(ctx, src, folderPath, action, e.opts.TranscodeOpts)
	if err != nil {
		return 0, "", err
	}
	if outPath != devicePath {
		if err := os.Rename(outPath, devicePath); err != nil {
			return 0, "", fmt.Errorf("renaming transcoded output into place: %w", err)
		}
	}
	if e.opts.Cache != nil {
		if _, err := e.opts.Cache.Add(cacheKey, devicePath, sourceSize); err != nil {
			return 0, "", fmt.Errorf("populating transcode cache: %w", err)
		}
	}
	return folderIdx, devicePath, nil
}

func (e *Executor) transcodeTimeout() time.Duration {
	if e.opts.TranscodeOpts.Timeout > 0 {
		return e.opts.TranscodeOpts.Timeout
	}
	return transcoder.DefaultOptions().Timeout
}

// --- Stage 8: artwork rewrite --------------------------------------------

func (e *Executor) artworkRewriteStage(in Input, added []*addedTrack) error {
	needed := len(in.Plan.ToUpdateArtwork) > 0
	for _, a := range added {
		if a.pc.ArtHash != "" {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	// Indexes into in.ArtDB.Entries, not pointers: the slice reallocates
	// on append, which would otherwise leave stale pointers behind.
	byHash := make(map[string]int, len(in.ArtDB.Entries))
	for i := range in.ArtDB.Entries {
		byHash[in.ArtDB.Entries[i].ArtHash] = i
	}

	ensureEntry := func(dbid uint64, artHash, pcAbsPath string) error {
		if artHash == "" {
			return nil
		}
		if idx, ok := byHash[artHash]; ok {
			existing := &in.ArtDB.Entries[idx]
			if !containsU64(existing.TrackDBIDs, dbid) {
				existing.TrackDBIDs = append(existing.TrackDBIDs, dbid)
			}
			existing.SongID = dbid
			return nil
		}
		data, err := pclibrary.ExtractArt(pcAbsPath)
		if err != nil || len(data) == 0 {
			return nil // no embedded art to extract; not fatal
		}
		img, err := artworkdb.DecodeSourceImage(data)
		if err != nil {
			return fmt.Errorf("decoding art for %s: %w", pcAbsPath, err)
		}
		entry := artworkdb.Entry{
			SongID:     dbid,
			ArtHash:    artHash,
			SourceSize: len(data),
			Formats:    make(map[artworkdb.FormatID]artworkdb.Raster),
			TrackDBIDs: []uint64{dbid},
		}
		for _, format := range artworkdb.SupportedFormats {
			raster, err := artworkdb.ConvertForFormat(img, format)
			if err != nil {
				return err
			}
			entry.Formats[format] = raster
		}
		in.ArtDB.Entries = append(in.ArtDB.Entries, entry)
		byHash[artHash] = len(in.ArtDB.Entries) - 1
		return nil
	}

	for _, item := range in.Plan.ToUpdateArtwork {
		if err := ensureEntry(item.DBID, item.PC.ArtHash, item.PC.AbsPath); err != nil {
			return err
		}
	}
	for _, a := range added {
		if err := ensureEntry(a.track.DBID, a.pc.ArtHash, a.pc.AbsPath); err != nil {
			return err
		}
	}

	artworkBytes, ithmb, err := artworkdb.WriteDatabase(in.ArtDB, artworkdb.WriteOptions{ReferenceMHFD: e.opts.ReferenceMHFD})
	if err != nil {
		return fmt.Errorf("rebuilding ArtworkDB: %w", err)
	}
	if err := os.WriteFile(e.opts.ArtworkDBPath, artworkBytes, 0o644); err != nil {
		return fmt.Errorf("writing ArtworkDB: %w", err)
	}
	for format, data := range ithmb {
		path := filepath.Join(e.opts.MountPoint, "iPod_Control", "Artwork", ithmbBasename(format))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

func containsU64(xs []uint64, v uint64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func ithmbBasename(format artworkdb.FormatID) string {
	return fmt.Sprintf("F%d_1.ithmb", format)
}

// --- Stage 9: database write ---------------------------------------------

func (e *Executor) databaseWriteStage(in Input) error {
	data, err := itunesdb.WriteDatabase(in.Db, itunesdb.WriteOptions{
		Scheme:        e.opts.ChecksumScheme,
		Keys:          e.opts.ChecksumKeys,
		ReferenceMHBD: e.opts.ReferenceMHBD,
	})
	if err != nil {
		return fmt.Errorf("serializing iTunesDB: %w", err)
	}

	tmp := e.opts.ItunesDBPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp iTunesDB: %w", err)
	}
	if err := os.Rename(tmp, e.opts.ItunesDBPath); err != nil {
		return fmt.Errorf("renaming iTunesDB into place: %w", err)
	}
	return nil
}

// --- Stage 10: preferences stamp -----------------------------------------

func (e *Executor) preferencesStampStage(in Input) (bool, error) {
	var totalBytes int64
	var totalDuration time.Duration
	for _, t := range in.Db.Tracks {
		totalBytes += t.FileSize
		totalDuration += t.Duration
	}

	prefs := devprefs.Prefs{
		SetupDone:     true,
		SyncMode:      devprefs.SyncModeManual,
		LibraryLinkID: e.opts.LibraryLinkID,
		SyncUsername:  e.opts.SyncUsername,
		SyncHostname:  e.opts.SyncHostname,
		TrackCount:    len(in.Db.Tracks),
		TotalBytes:    totalBytes,
		TotalDuration: totalDuration,
	}
	return devprefs.Write(e.opts.PrefsBinPath, e.opts.PrefsPlistPath, prefs, e.opts.LibraryLinkID)
}

// --- helpers --------------------------------------------------------------

// parallelEach runs fn(0..n) across the executor's configured worker
// count, stopping early (without starting new items) once ctx is
// canceled or any item returns an error, and returning the first error
// encountered.
func (e *Executor) parallelEach(ctx context.Context, n int, fn func(i int) error) error {
	workers := e.opts.workerCount()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	idx := make(chan int)
	errc := make(chan error, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				if ctx.Err() != nil {
					errc <- ctx.Err()
					return
				}
				if err := fn(i); err != nil {
					errc <- err
					return
				}
			}
		}()
	}

	go func() {
		for i := 0; i < n; i++ {
			idx <- i
		}
		close(idx)
	}()

	wg.Wait()
	close(errc)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func folderNameFor(i int) string {
	digits := "0123456789"
	return "F" + string(digits[i/10]) + string(digits[i%10])
}

// folderIndexFromLocation recovers the numeric folder index from an
// existing track's device location, so update-file keeps the track in
// its current folder rather than picking a new one.
func folderIndexFromLocation(location string) int {
	var folder string
	parts := splitColon(location)
	if len(parts) >= 2 {
		folder = parts[len(parts)-2]
	}
	if len(folder) == 3 && folder[0] == 'F' {
		idx := int(folder[1]-'0')*10 + int(folder[2]-'0')
		if idx >= 0 && idx < numMusicFolders {
			return idx
		}
	}
	return 0
}

func splitColon(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func locationFor(folderIdx int, filename string) string {
	return ":iPod_Control:Music:" + folderNameFor(folderIdx) + ":" + filename
}

func normalizedExt(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 0 && ext[0] == '.' {
		ext = ext[1:]
	}
	return ext
}

// uniqueFilename generates a random 4-character uppercase-alphanumeric
// filename (spec §4.10 stage 7) that doesn't already exist in dir.
func uniqueFilename(dir, ext string) (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		stem, err := randomStem(4)
		if err != nil {
			return "", err
		}
		name := stem + "." + ext
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			return name, nil
		}
	}
	return "", fmt.Errorf("executor: could not generate a unique filename in %s after 100 attempts", dir)
}

const filenameAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomStem(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(filenameAlphabet))))
		if err != nil {
			return "", err
		}
		out[i] = filenameAlphabet[idx.Int64()]
	}
	return string(out), nil
}

func randomUint64() (uint64, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

func copyFileContents(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	return nil
}
