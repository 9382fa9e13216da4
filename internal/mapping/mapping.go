// Package mapping implements the on-device fingerprint→dbid relation
// (iOpenPod.json, spec §4.5): the sidecar file that lets the differ match
// PC files to iPod tracks without trusting iTunesDB metadata. Keys are
// acoustic fingerprints; a fingerprint may hold more than one entry when
// the same song appears on two albums (spec §3's "same-song-on-two-albums
// collisions").
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Entry is one mapping record, spec §3 "Mapping entry".
type Entry struct {
	DBID            uint64    `json:"dbid"`
	SourceFormat    string    `json:"source_format"`
	IPodFormat      string    `json:"ipod_format"`
	SourceSize      int64     `json:"source_size"`
	SourceModTime   time.Time `json:"source_mtime"`
	LastSync        time.Time `json:"last_sync"`
	WasTranscoded   bool      `json:"was_transcoded"`
	SourcePathHint  string    `json:"source_path_hint,omitempty"`
	ArtHash         string    `json:"art_hash,omitempty"`
}

// Store is the in-memory, JSON-file-backed mapping. Not safe for
// concurrent use without an external lock — the executor guards the
// mutations made by its stage-4 worker pool with its own mutex.
type Store struct {
	path    string
	entries map[string][]Entry // fingerprint -> entries
}

// New returns an empty store bound to path; call Load to populate it from
// disk, or Save to create it fresh.
func New(path string) *Store {
	return &Store{path: path, entries: make(map[string][]Entry)}
}

// Load reads path into a new Store. A missing file is not an error — a
// first sync against a blank iPod starts from an empty mapping.
func Load(path string) (*Store, error) {
	s := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("mapping: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("mapping: parsing %s: %w", path, err)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// GetEntries returns every entry recorded for fingerprint, or nil if none.
// The slice is a copy; mutating it does not affect the store.
func (s *Store) GetEntries(fingerprint string) []Entry {
	es := s.entries[fingerprint]
	if len(es) == 0 {
		return nil
	}
	out := make([]Entry, len(es))
	copy(out, es)
	return out
}

// Fingerprints returns every fingerprint currently tracked, in no
// particular order.
func (s *Store) Fingerprints() []string {
	out := make([]string, 0, len(s.entries))
	for fp := range s.entries {
		out = append(out, fp)
	}
	return out
}

// Add appends entry under fingerprint.
func (s *Store) Add(fingerprint string, entry Entry) {
	s.entries[fingerprint] = append(s.entries[fingerprint], entry)
}

// Remove deletes the entry for fingerprint whose DBID matches dbid. It is
// a no-op if no such entry exists.
func (s *Store) Remove(fingerprint string, dbid uint64) {
	es := s.entries[fingerprint]
	for i, e := range es {
		if e.DBID == dbid {
			s.entries[fingerprint] = append(es[:i], es[i+1:]...)
			break
		}
	}
	if len(s.entries[fingerprint]) == 0 {
		delete(s.entries, fingerprint)
	}
}

// RemoveByDBID searches every fingerprint for an entry matching dbid and
// removes it, returning the fingerprint it was found under (empty string
// if not found). Used for stale-mapping cleanup (spec §4.6 step 2) where
// only the dbid, not the fingerprint, is known.
func (s *Store) RemoveByDBID(dbid uint64) string {
	for fp, es := range s.entries {
		for _, e := range es {
			if e.DBID == dbid {
				s.Remove(fp, dbid)
				return fp
			}
		}
	}
	return ""
}

// Len returns the total number of entries across all fingerprints.
func (s *Store) Len() int {
	n := 0
	for _, es := range s.entries {
		n += len(es)
	}
	return n
}

// Save atomically persists the store to its backing path: write to a
// temp file in the same directory, then rename over the target (spec
// §4.5 "Saved atomically via write-temp-then-rename"). Callers must only
// invoke this after the paired database rewrite has durably succeeded
// (spec §4.5 invariant, enforced by internal/executor stage 11).
func (s *Store) Save() error {
	return s.SaveTo(s.path)
}

// SaveTo atomically persists the store to an explicit path, updating the
// store's backing path on success.
func (s *Store) SaveTo(path string) error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("mapping: marshaling: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mapping: creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".iopenpod-*.json.tmp")
	if err != nil {
		return fmt.Errorf("mapping: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("mapping: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mapping: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mapping: renaming into place: %w", err)
	}
	s.path = path
	return nil
}
