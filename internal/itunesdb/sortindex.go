package itunesdb

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// sortKey builds a case-insensitive, unicode-normalized sort key,
// stripping a leading "the " article (iTunes convention).
func sortKey(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "the ") {
		s = s[4:]
	}
	return strings.ToLower(norm.NFKD.String(s))
}

// jumpLetter returns the uppercase first alphanumeric rune of s for
// jump-table grouping, after dropping a leading "the " article as
// sortKey does, or '0' for strings starting with a digit or containing
// no alphanumeric character.
func jumpLetter(s string) rune {
	if strings.HasPrefix(strings.ToLower(s), "the ") {
		s = s[4:]
	}
	for _, r := range s {
		if unicode.IsDigit(r) {
			return '0'
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToUpper(r)
		}
	}
	return '0'
}

type sortFields struct {
	keys   []string
	letter rune
}

func trackSortFields(t *Track, category SortCategory) sortFields {
	title := sortKey(t.Title)
	album := sortKey(t.Album)
	artist := sortKey(firstNonEmpty(t.SortArtist, t.Artist))
	genre := sortKey(t.Genre)
	composer := sortKey(t.Composer)

	switch category {
	case SortByTitle:
		return sortFields{keys: []string{title}, letter: jumpLetter(t.Title)}
	case SortByAlbum:
		return sortFields{keys: []string{album, itoa(t.DiscNumber), itoa(t.TrackNumber), title}, letter: jumpLetter(t.Album)}
	case SortByArtist:
		return sortFields{keys: []string{artist, album, itoa(t.DiscNumber), itoa(t.TrackNumber), title}, letter: jumpLetter(firstNonEmpty(t.SortArtist, t.Artist))}
	case SortByGenre:
		return sortFields{keys: []string{genre, artist, album, itoa(t.DiscNumber), itoa(t.TrackNumber), title}, letter: jumpLetter(t.Genre)}
	case SortByComposer:
		return sortFields{keys: []string{composer, album, itoa(t.DiscNumber), itoa(t.TrackNumber), title}, letter: jumpLetter(t.Composer)}
	default:
		return sortFields{keys: []string{title}, letter: jumpLetter(t.Title)}
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// itoa zero-pads small integers so lexical string comparison matches
// numeric comparison for the track/disc-number range iTunes uses.
func itoa(n int) string {
	const digits = "0123456789"
	if n < 0 {
		n = 0
	}
	buf := [6]byte{}
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf[:])
}

// libSortCode maps a SortCategory to the wire-format sort_type code
// used inside MHOD 52/53 bodies (mhod52_writer.py's MHOD52_SORTTYPE).
func libSortCode(c SortCategory) uint32 {
	switch c {
	case SortByTitle:
		return LibSortTitle
	case SortByAlbum:
		return LibSortAlbum
	case SortByArtist:
		return LibSortArtist
	case SortByGenre:
		return LibSortGenre
	case SortByComposer:
		return LibSortComposer
	default:
		return LibSortTitle
	}
}

// BuildSortIndices computes the five library sort indices (position
// array + jump table) over tracks, in the order they appear in the
// master playlist. Required for the iPod's Songs/Artists/Albums/
// Genres/Composers browsing views; an iTunesDB without them shows an
// empty library even though tracks exist (spec §4.2).
func BuildSortIndices(tracks []*Track) []SortIndex {
	indices := make([]SortIndex, 0, len(SortCategories))
	for _, cat := range SortCategories {
		indices = append(indices, buildOneSortIndex(tracks, cat))
	}
	return indices
}

func buildOneSortIndex(tracks []*Track, category SortCategory) SortIndex {
	type entry struct {
		idx    int
		fields sortFields
	}
	entries := make([]entry, len(tracks))
	for i, t := range tracks {
		entries[i] = entry{idx: i, fields: trackSortFields(t, category)}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		ka, kb := entries[a].fields.keys, entries[b].fields.keys
		for i := range ka {
			if ka[i] != kb[i] {
				return ka[i] < kb[i]
			}
		}
		return false
	})

	position := make([]uint32, len(entries))
	var jumps []JumpEntry
	for pos, e := range entries {
		position[pos] = uint32(e.idx)
		letter := e.fields.letter
		if len(jumps) == 0 || jumps[len(jumps)-1].Letter != letter {
			jumps = append(jumps, JumpEntry{Letter: letter, Start: pos, Count: 0})
		}
		jumps[len(jumps)-1].Count++
	}

	return SortIndex{Category: category, Position: position, Jumps: jumps}
}
