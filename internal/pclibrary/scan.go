// Package pclibrary is the PC-side collaborator: it walks the music
// folder, extracts tags via the delegated tagging library (spec §1), and
// computes the fingerprint-keyed art hash the differ's Phase 1/4 rely on.
// It also watches the folder for changes, indexes it for browsing, and
// optionally writes play-count/rating updates back to the PC files
// (spec §4.10 "Play count write-back to PC").
package pclibrary

import (
	"context"
	"crypto/md5" //nolint:gosec // dedup key only, matches artworkdb.ArtHash.
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/jdfalk/ipodsync/internal/differ"
	"github.com/jdfalk/ipodsync/internal/fingerprint"
)

// audioExtensions are the file types the scanner considers (mirrors
// internal/watcher's set, extended with aif/aiff/opus/wma per spec
// §4.9's transcode table).
var audioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".m4p": true, ".aac": true,
	".flac": true, ".wav": true, ".aif": true, ".aiff": true,
	".ogg": true, ".opus": true, ".wma": true,
}

// Scanner walks a PC music root, extracting tags and fingerprints.
type Scanner struct {
	Root        string
	Fingerprint fingerprint.Computer
}

// NewScanner returns a Scanner rooted at root using the given
// fingerprint collaborator.
func NewScanner(root string, fp fingerprint.Computer) *Scanner {
	return &Scanner{Root: root, Fingerprint: fp}
}

// Scan walks the root and returns one differ.PCTrack per audio file,
// spec §4.7 Phase 1. Files that cannot be opened or fingerprinted are
// skipped with their error recorded rather than aborting the scan; files
// whose tags cannot be read are kept, titled after their filename.
func (s *Scanner) Scan(ctx context.Context) ([]differ.PCTrack, []error) {
	var tracks []differ.PCTrack
	var errs []error

	walkErr := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if d.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		t, err := s.scanFile(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("pclibrary: scanning %s: %w", path, err))
			return nil
		}
		tracks = append(tracks, t)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return tracks, errs
}

func (s *Scanner) scanFile(ctx context.Context, path string) (differ.PCTrack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return differ.PCTrack{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return differ.PCTrack{}, err
	}
	defer f.Close()

	m, tagErr := tag.ReadFrom(f)

	fp, err := s.Fingerprint.Compute(ctx, path)
	if err != nil {
		return differ.PCTrack{}, err
	}

	track := differ.PCTrack{
		Fingerprint: fp,
		AbsPath:     path,
		RelPath:     differ.RelPath(s.Root, path),
		Size:        info.Size(),
		ModTime:     info.ModTime().Unix(),
	}

	if tagErr == nil && m != nil {
		track.Title = m.Title()
		track.Artist = m.Artist()
		track.Album = m.Album()
		track.AlbumArtist = m.AlbumArtist()
		track.Genre = m.Genre()
		track.Composer = m.Composer()
		track.Year = m.Year()
		tn, _ := m.Track()
		track.TrackNumber = tn
		dn, _ := m.Disc()
		track.DiscNumber = dn
		if pic := m.Picture(); pic != nil && len(pic.Data) > 0 {
			sum := md5.Sum(pic.Data) //nolint:gosec
			track.ArtHash = hex.EncodeToString(sum[:])
		}
	} else {
		track.Title = filenameFallback(path)
	}

	return track, nil
}

// filenameFallback derives a title from the filename when tag extraction
// fails entirely (spec §9 "explicit tagged result types and per-source-
// format dispatch tables" — no exception-driven guess chains, just a
// single deterministic fallback).
func filenameFallback(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
