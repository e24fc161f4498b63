package routes

import (
	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// SelectInput carries everything route selection depends on.
type SelectInput struct {
	Target      config.BuildTarget
	IDs         []string
	CategoryIDs []string
	Locales     []config.Locale

	ChunkIndex    int
	HasChunkIndex bool
	ChunkSize     int
}

// Select returns the routes a build invocation pre-renders:
//   - pages: static pages and category pages
//   - all: pages plus every entry page
//   - chunked: the entry pages of route chunk ChunkIndex
func Select(in SelectInput) ([]string, error) {
	switch in.Target {
	case config.TargetPages:
		return Pages(in.CategoryIDs, in.Locales), nil
	case config.TargetAll, "":
		out := Pages(in.CategoryIDs, in.Locales)
		paths := make([]string, len(in.IDs))
		for i, id := range in.IDs {
			paths[i] = EntryPath(id)
		}
		return append(out, Expand(paths, in.Locales)...), nil
	case config.TargetChunked:
		if !in.HasChunkIndex {
			return nil, errors.NewInvalidConfig(config.EnvChunkIndex, "required when BUILD_TARGET=chunked")
		}
		return Chunk(in.IDs, in.ChunkIndex, in.ChunkSize, in.Locales)
	default:
		return nil, errors.NewInvalidConfig(config.EnvBuildTarget, "must be one of: pages, all, chunked")
	}
}

// Pages returns the localized static and category pages.
func Pages(categoryIDs []string, locales []config.Locale) []string {
	paths := make([]string, 0, len(StaticPages)+len(categoryIDs))
	paths = append(paths, StaticPages...)
	for _, id := range categoryIDs {
		paths = append(paths, CategoryPath(id))
	}
	return Expand(paths, locales)
}
