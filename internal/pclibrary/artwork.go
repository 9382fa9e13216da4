package pclibrary

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// ExtractArt reads the embedded picture from a PC audio file's tags, for
// the executor's artwork rewrite stage (spec §4.10 stage 8). It returns
// nil, nil if the file has no embedded picture.
func ExtractArt(absPath string) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("pclibrary: opening %s for artwork extraction: %w", absPath, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("pclibrary: reading tags from %s: %w", absPath, err)
	}
	pic := m.Picture()
	if pic == nil {
		return nil, nil
	}
	return pic.Data, nil
}
