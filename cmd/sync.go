// file: cmd/sync.go
// version: 1.0.0
// guid: 4d5e6f7a-8b9c-0d1e-2f3a-4b5c6d7e8f9a

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jdfalk/ipodsync/internal/artworkdb"
	"github.com/jdfalk/ipodsync/internal/config"
	"github.com/jdfalk/ipodsync/internal/differ"
	"github.com/jdfalk/ipodsync/internal/executor"
	"github.com/jdfalk/ipodsync/internal/integrity"
	"github.com/jdfalk/ipodsync/internal/metrics"
	"github.com/jdfalk/ipodsync/internal/synclog"
	"github.com/jdfalk/ipodsync/internal/transcodecache"
	"github.com/jdfalk/ipodsync/internal/transcoder"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// syncCmd represents the sync command: the full eleven-stage transactional
// sync (spec §4.10).
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the PC library onto the iPod Classic",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireMountPoint(); err != nil {
			return err
		}
		if err := requirePCLibrary(); err != nil {
			return err
		}

		metrics.Register()

		db, rawDB, err := loadDeviceDatabase()
		if err != nil {
			return err
		}
		artRaw, err := readFileOrEmpty(devicePath(config.AppConfig.ArtworkDBPath))
		if err != nil {
			return err
		}
		artDB, rasterIndex, err := artworkdb.ReadDatabase(artRaw)
		if err != nil {
			return fmt.Errorf("parsing ArtworkDB: %w", err)
		}
		ithmb := map[artworkdb.FormatID][]byte{}
		for _, format := range artworkdb.SupportedFormats {
			data, err := readFileOrEmpty(devicePath(fmt.Sprintf("iPod_Control/Artwork/F%d_1.ithmb", format)))
			if err != nil {
				return fmt.Errorf("reading ithmb file for format %d: %w", format, err)
			}
			ithmb[format] = data
		}
		if err := artworkdb.LoadRasters(artDB, rasterIndex, ithmb); err != nil {
			return fmt.Errorf("loading ithmb rasters: %w", err)
		}

		mappingStore, err := loadMappingStore()
		if err != nil {
			return err
		}

		survivingTracks, integrityReport := integrity.Check(config.AppConfig.MountPoint, db.Tracks, mappingStore)
		db.Tracks = survivingTracks
		fmt.Printf("Integrity check: missing=%d stale-mappings=%d orphans=%d\n",
			integrityReport.MissingFiles, integrityReport.StaleMappings, integrityReport.OrphanFiles)

		pcTracks, scanErrs := scanPCLibrary()
		for _, e := range scanErrs {
			fmt.Printf("Warning: %v\n", e)
		}
		pcByFingerprint := make(map[string]differ.PCTrack, len(pcTracks))
		for _, t := range pcTracks {
			pcByFingerprint[t.Fingerprint] = t
		}

		plan := differ.Run(differ.Input{
			PCTracks:     pcTracks,
			DeviceTracks: db.Tracks,
			Mapping:      mappingStore,
		})
		printPlanSummary(plan)

		cache, err := transcodecache.Open(config.AppConfig.TranscodeCacheDir)
		if err != nil {
			return fmt.Errorf("opening transcode cache: %w", err)
		}
		defer cache.Close()

		keys, err := checksumKeys()
		if err != nil {
			return err
		}

		bar := progressbar.Default(-1)
		opts := executor.Options{
			MountPoint:     config.AppConfig.MountPoint,
			ItunesDBPath:   devicePath(config.AppConfig.ItunesDBPath),
			ArtworkDBPath:  devicePath(config.AppConfig.ArtworkDBPath),
			MappingPath:    devicePath(config.AppConfig.MappingPath),
			PrefsBinPath:   devicePath(config.AppConfig.PrefsBinPath),
			PrefsPlistPath: devicePath(config.AppConfig.PrefsPlistPath),
			WorkerCount:    config.AppConfig.WorkerCount,
			Transcoder:     transcoder.FFmpegEncoder{},
			TranscodeOpts:  transcodeOptions(),
			Cache:          cache,
			ChecksumScheme: checksumScheme(),
			ChecksumKeys:   keys,
			ReferenceMHBD:  rawDB,
			ReferenceMHFD:  artRaw,
			LibraryLinkID:  config.AppConfig.LibraryLinkID,
			SyncUsername:   config.AppConfig.SyncUsername,
			SyncHostname:   config.AppConfig.SyncHostname,
			WriteBack:      writeBackOptions(),
			Progress: func(stage string, current, total int, message string) {
				bar.Describe(fmt.Sprintf("%s: %s", stage, message))
				if total > 0 {
					bar.ChangeMax(total)
					bar.Set(current)
				}
			},
		}

		history, err := synclog.Open(config.AppConfig.SyncLogPath)
		if err != nil {
			return fmt.Errorf("opening sync log: %w", err)
		}
		defer history.Close()

		startedAt := time.Now()
		runID, err := history.BeginRun(startedAt)
		if err != nil {
			return fmt.Errorf("beginning sync run: %w", err)
		}

		exec := executor.New(opts)
		result, runErr := exec.Run(context.Background(), executor.Input{
			Db:              db,
			ArtDB:           artDB,
			ITHMB:           ithmb,
			Mapping:         mappingStore,
			Plan:            &plan,
			PCByFingerprint: pcByFingerprint,
		})
		bar.Finish()

		status := "success"
		added, removed, updated := 0, 0, 0
		if result != nil {
			added, removed, updated = result.Added, result.Removed, result.Updated
		}
		if runErr != nil {
			status = "failed"
		}
		if finishErr := history.FinishRun(runID, time.Now(), status, added, removed, updated, runErr); finishErr != nil {
			fmt.Printf("Warning: could not record sync run: %v\n", finishErr)
		}

		if runErr != nil {
			return fmt.Errorf("sync failed: %w", runErr)
		}

		metrics.SetSyncCounts(result.Added, result.Removed, result.Updated)
		fmt.Printf("Sync complete: +%d -%d ~%d\n", result.Added, result.Removed, result.Updated)
		if result.ForeignSyncDetected {
			fmt.Println("Warning: this device shows signs of a foreign iTunes sync since the last ipodsync run.")
		}
		return nil
	},
}

func readFileOrEmpty(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
