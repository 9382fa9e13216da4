package pclibrary

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/jdfalk/ipodsync/internal/differ"
)

// indexedTrack is the document shape stored in the bleve index: the
// three fields a user actually searches by (spec's "ipodsync search").
type indexedTrack struct {
	Fingerprint string `json:"fingerprint"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	RelPath     string `json:"rel_path"`
}

// Index is a full-text search index over a scanned PC library, a
// read-only browsing aid outside the sync path proper.
type Index struct {
	idx bleve.Index
}

// OpenIndex opens or creates a bleve index at dir.
func OpenIndex(dir string) (*Index, error) {
	if _, err := os.Stat(dir); err == nil {
		idx, err := bleve.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("pclibrary: opening index: %w", err)
		}
		return &Index{idx: idx}, nil
	}
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.New(dir, mapping)
	if err != nil {
		return nil, fmt.Errorf("pclibrary: creating index: %w", err)
	}
	return &Index{idx: idx}, nil
}

// Close releases the underlying bleve index.
func (i *Index) Close() error { return i.idx.Close() }

// Rebuild clears and repopulates the index from a fresh scan.
func (i *Index) Rebuild(tracks []differ.PCTrack) error {
	batch := i.idx.NewBatch()
	for _, t := range tracks {
		doc := indexedTrack{
			Fingerprint: t.Fingerprint,
			Title:       t.Title,
			Artist:      t.Artist,
			Album:       t.Album,
			RelPath:     t.RelPath,
		}
		if err := batch.Index(t.Fingerprint, doc); err != nil {
			return fmt.Errorf("pclibrary: indexing %s: %w", t.RelPath, err)
		}
	}
	return i.idx.Batch(batch)
}

// SearchResult is one match returned by Search.
type SearchResult struct {
	Fingerprint string
	Title       string
	Artist      string
	Album       string
	RelPath     string
	Score       float64
}

// Search runs a free-text query over title/artist/album.
func (i *Index) Search(query string, limit int) ([]SearchResult, error) {
	q := bleve.NewQueryStringQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"fingerprint", "title", "artist", "album", "rel_path"}
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("pclibrary: searching: %w", err)
	}
	out := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, SearchResult{
			Fingerprint: fieldString(hit.Fields, "fingerprint"),
			Title:       fieldString(hit.Fields, "title"),
			Artist:      fieldString(hit.Fields, "artist"),
			Album:       fieldString(hit.Fields, "album"),
			RelPath:     fieldString(hit.Fields, "rel_path"),
			Score:       hit.Score,
		})
	}
	return out, nil
}

func fieldString(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
