// Package routes computes which localized URLs one build invocation pre-renders.
//
// Every entry expands to one URL per configured locale, so a route chunk of
// chunkSize entries holds chunkSize*len(locales) URLs. That multiplier bounds
// the memory of a partial static-generation job.
package routes

import (
	"net/url"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// StaticPages are the non-entry pages of the site.
var StaticPages = []string{"/", "/browse", "/about", "/bookmarks", "/my-learning"}

// RouteRange is the half-open index range [Start, End) into the entry ID list.
type RouteRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of entries in the range.
func (r RouteRange) Len() int {
	return r.End - r.Start
}

// Empty reports whether the range selects nothing.
func (r RouteRange) Empty() bool {
	return r.End <= r.Start
}

// ChunkMetadata summarizes the route chunks of a build.
type ChunkMetadata struct {
	TotalEntries   int `json:"totalEntries"`
	TotalChunks    int `json:"totalChunks"`
	ChunkSize      int `json:"chunkSize"`
	RoutesPerChunk int `json:"routesPerChunk"`
}

func checkParams(chunkIndex, chunkSize int) error {
	if chunkIndex < 0 {
		return errors.NewInvalidConfig(config.EnvChunkIndex, "must be a non-negative integer")
	}
	if chunkSize <= 0 {
		return errors.NewInvalidConfig(config.EnvChunkSize, "must be a positive integer")
	}
	return nil
}

// Range returns [chunkIndex*chunkSize, min(start+chunkSize, total)). An index
// past the end yields an empty range so callers can walk sequential indices.
func Range(chunkIndex, chunkSize, total int) (RouteRange, error) {
	if err := checkParams(chunkIndex, chunkSize); err != nil {
		return RouteRange{}, err
	}
	if total < 0 {
		total = 0
	}
	// Compare by division so huge indices cannot overflow the multiplication.
	if chunkIndex >= chunk.TotalChunks(total, chunkSize) {
		return RouteRange{Start: total, End: total}, nil
	}
	start := chunkIndex * chunkSize
	return RouteRange{Start: start, End: min(start+chunkSize, total)}, nil
}

// TotalChunks returns the number of route chunks for total entries.
func TotalChunks(total, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		return 0, errors.NewInvalidConfig(config.EnvChunkSize, "must be a positive integer")
	}
	return chunk.TotalChunks(total, chunkSize), nil
}

// Metadata describes the route chunking of total entries across locales.
func Metadata(total, chunkSize int, locales []config.Locale) (ChunkMetadata, error) {
	n, err := TotalChunks(total, chunkSize)
	if err != nil {
		return ChunkMetadata{}, err
	}
	return ChunkMetadata{
		TotalEntries:   total,
		TotalChunks:    n,
		ChunkSize:      chunkSize,
		RoutesPerChunk: chunkSize * len(locales),
	}, nil
}

// EntryPath returns the unlocalized path of an entry page.
func EntryPath(id string) string {
	return "/entry/" + url.PathEscape(id)
}

// CategoryPath returns the unlocalized path of a category page.
func CategoryPath(id string) string {
	return "/category/" + url.PathEscape(id)
}

// Localize prefixes p with the locale's prefix. The root of a prefixed locale
// is the bare prefix ("/ko", not "/ko/").
func Localize(l config.Locale, p string) string {
	if l.Prefix == "" {
		return p
	}
	if p == "/" {
		return l.Prefix
	}
	return l.Prefix + p
}

// Expand returns one URL per (path, locale) pair, path-major.
func Expand(paths []string, locales []config.Locale) []string {
	out := make([]string, 0, len(paths)*len(locales))
	for _, p := range paths {
		for _, l := range locales {
			out = append(out, Localize(l, p))
		}
	}
	return out
}

// Chunk returns the localized entry URLs of one route chunk, id-major: for
// locales [en, ko] entry x yields /entry/x then /ko/entry/x.
func Chunk(ids []string, chunkIndex, chunkSize int, locales []config.Locale) ([]string, error) {
	r, err := Range(chunkIndex, chunkSize, len(ids))
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, r.Len())
	for _, id := range ids[r.Start:r.End] {
		paths = append(paths, EntryPath(id))
	}
	return Expand(paths, locales), nil
}
