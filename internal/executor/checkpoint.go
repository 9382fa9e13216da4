// Package executor runs the eleven-stage transactional sync (spec
// §4.10): pre-flight, checkpoint, remove, update-file, update-metadata,
// update-artwork-in-mapping, add, artwork rewrite, database write,
// preferences stamp, commit mapping. It is the only component allowed
// to mutate the device's on-disk iTunesDB, ArtworkDB, and mapping file.
package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// checkpointRoot is the device-relative directory checkpoints live
// under, spec §4.10 stage 2.
const checkpointRoot = "iPod_Control/.iOpenPod"

// maxCheckpoints is how many prior checkpoints are retained; the oldest
// is deleted once a new one pushes the count over this, spec §4.10
// stage 2 "keep at most 3".
const maxCheckpoints = 3

// Checkpoint names one timestamped snapshot directory.
type Checkpoint struct {
	Dir       string
	CreatedAt time.Time
}

// writeCheckpoint copies the current iTunesDB and mapping file into a
// new timestamped subdirectory of checkpointRoot, then prunes old
// checkpoints down to maxCheckpoints. now is injected rather than taken
// from time.Now() so the stage remains deterministic under test.
func writeCheckpoint(mountPoint string, now time.Time, itunesDBPath, mappingPath string) (Checkpoint, error) {
	dir := filepath.Join(mountPoint, checkpointRoot, now.UTC().Format("20060102T150405.000000000"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Checkpoint{}, fmt.Errorf("executor: creating checkpoint dir: %w", err)
	}

	if err := copyIfExists(itunesDBPath, filepath.Join(dir, "iTunesDB")); err != nil {
		return Checkpoint{}, err
	}
	if err := copyIfExists(mappingPath, filepath.Join(dir, "iOpenPod.json")); err != nil {
		return Checkpoint{}, err
	}

	if err := pruneCheckpoints(mountPoint); err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{Dir: dir, CreatedAt: now}, nil
}

func copyIfExists(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("executor: reading %s for checkpoint: %w", src, err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("executor: writing checkpoint copy %s: %w", dst, err)
	}
	return nil
}

// pruneCheckpoints deletes the oldest checkpoint directories beyond
// maxCheckpoints, ordered by directory name (the timestamp format sorts
// lexically in chronological order).
func pruneCheckpoints(mountPoint string) error {
	root := filepath.Join(mountPoint, checkpointRoot)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("executor: listing %s: %w", root, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for len(names) > maxCheckpoints {
		if err := os.RemoveAll(filepath.Join(root, names[0])); err != nil {
			return fmt.Errorf("executor: pruning checkpoint %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return nil
}

// ListCheckpoints returns every retained checkpoint, oldest first, for
// the rollback command.
func ListCheckpoints(mountPoint string) ([]Checkpoint, error) {
	root := filepath.Join(mountPoint, checkpointRoot)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("executor: listing %s: %w", root, err)
	}

	var out []Checkpoint
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		t, err := time.Parse("20060102T150405.000000000", e.Name())
		if err != nil {
			continue
		}
		out = append(out, Checkpoint{Dir: filepath.Join(root, e.Name()), CreatedAt: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Rollback restores the iTunesDB and mapping file from checkpoint back
// onto the device, undoing every stage that ran after it committed.
func Rollback(mountPoint string, checkpoint Checkpoint, itunesDBPath, mappingPath string) error {
	if err := copyIfExists(filepath.Join(checkpoint.Dir, "iTunesDB"), itunesDBPath); err != nil {
		return err
	}
	if err := copyIfExists(filepath.Join(checkpoint.Dir, "iOpenPod.json"), mappingPath); err != nil {
		return err
	}
	return nil
}
