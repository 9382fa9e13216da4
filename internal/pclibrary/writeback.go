package pclibrary

import (
	"fmt"

	taglib "go.senan.xyz/taglib"
)

// playCountTag and ratingTag are the custom tag keys written back to PC
// files. There is no standard cross-format play-count tag, so we use the
// same vendor field names iTunes itself writes (spec §4.10 "Play count
// write-back to PC").
const (
	playCountTag = "ITUNESPLAYCOUNT"
	ratingTag    = "ITUNESRATING"
)

// WriteBackOptions controls the optional play-count/rating write-back
// described in spec §4.10. The default is disabled: write-back mutates
// files the user did not ask us to touch, so it must be opted in.
type WriteBackOptions struct {
	Enabled bool
}

// WriteBack applies an absolute play count and a 0-100 rating to the PC
// file at path, via the delegated tagging library. It is a no-op unless
// opts.Enabled is set.
func WriteBack(path string, playCount, rating int, opts WriteBackOptions) error {
	if !opts.Enabled {
		return nil
	}
	tags := map[string][]string{
		playCountTag: {fmt.Sprintf("%d", playCount)},
		ratingTag:    {fmt.Sprintf("%d", rating)},
	}
	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("pclibrary: writing back tags for %s: %w", path, err)
	}
	return nil
}
