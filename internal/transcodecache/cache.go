// Package transcodecache is the content-addressed cache of prior
// transcode outputs (spec §4.8), keyed by (fingerprint, target format,
// bitrate-if-lossy). The index is backed by an embedded pebble KV store
// rather than a flat file, grounded in the teacher's
// internal/database/pebble_store.go key-schema idiom — a natural fit
// since the cache key space is a simple byte-string lookup with no
// relational structure, unlike the teacher's book/author/series schema.
package transcodecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/pebble/v2"
)

// Entry is one cached transcode output: where it lives and a witness of
// the source file's size at the time it was created, used to invalidate
// the entry if the source has since changed (spec §4.8 "get returns None
// if source size has changed since the cache entry was created").
type Entry struct {
	CachedPath string `json:"cached_path"`
	SourceSize int64  `json:"source_size"`
}

// Key identifies one cache slot.
type Key struct {
	Fingerprint  string
	TargetFormat string // "alac" or "aac"
	BitrateKbps  int    // 0 for lossless targets
}

func (k Key) indexKey() []byte {
	return []byte(strings.Join([]string{"transcode", k.Fingerprint, k.TargetFormat, strconv.Itoa(k.BitrateKbps)}, ":"))
}

// Cache is a pebble-backed content-addressed store of transcoded files.
// The transcoded file bytes themselves live under dir/blobs; the index
// (dir/index) maps cache keys to Entry records.
type Cache struct {
	dir string
	db  *pebble.DB
}

// Open opens (creating if needed) the cache rooted at dir.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0o755); err != nil {
		return nil, fmt.Errorf("transcodecache: creating %s: %w", dir, err)
	}
	db, err := pebble.Open(filepath.Join(dir, "index"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("transcodecache: opening index: %w", err)
	}
	return &Cache{dir: dir, db: db}, nil
}

// Close releases the underlying pebble handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached entry for key if present and still valid (its
// recorded source size matches currentSourceSize); otherwise it returns
// false, matching spec §4.8's invalidation rule.
func (c *Cache) Get(key Key, currentSourceSize int64) (Entry, bool, error) {
	val, closer, err := c.db.Get(key.indexKey())
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("transcodecache: get: %w", err)
	}
	defer closer.Close()

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, false, fmt.Errorf("transcodecache: decoding entry: %w", err)
	}
	if e.SourceSize != currentSourceSize {
		return Entry{}, false, nil
	}
	if _, err := os.Stat(e.CachedPath); err != nil {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Add copies transcodedPath into the cache directory under a
// hash-derived filename and records the index entry for key.
func (c *Cache) Add(key Key, transcodedPath string, sourceSize int64) (Entry, error) {
	dest := filepath.Join(c.dir, "blobs", blobName(key)+filepath.Ext(transcodedPath))
	if err := copyFile(transcodedPath, dest); err != nil {
		return Entry{}, fmt.Errorf("transcodecache: copying into cache: %w", err)
	}
	e := Entry{CachedPath: dest, SourceSize: sourceSize}
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("transcodecache: encoding entry: %w", err)
	}
	if err := c.db.Set(key.indexKey(), data, pebble.Sync); err != nil {
		return Entry{}, fmt.Errorf("transcodecache: writing index: %w", err)
	}
	return e, nil
}

// Invalidate removes any cached entry for key (spec §4.10 stage 4:
// "invalidate transcode cache for the fingerprint" before re-transcoding).
func (c *Cache) Invalidate(key Key) error {
	if err := c.db.Delete(key.indexKey(), pebble.Sync); err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("transcodecache: deleting index entry: %w", err)
	}
	return nil
}

func blobName(key Key) string {
	h := strings.NewReplacer(":", "_", "/", "_").Replace(key.Fingerprint)
	return fmt.Sprintf("%s_%s_%d", h, key.TargetFormat, key.BitrateKbps)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
