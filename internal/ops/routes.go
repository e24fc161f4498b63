package ops

import (
	"context"

	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/routes"
)

// RoutesInput contains parameters for the Routes operation. Zero values fall
// back to the build environment and then to the config file.
type RoutesInput struct {
	Target        config.BuildTarget
	ChunkIndex    int
	HasChunkIndex bool
	ChunkSize     int
}

// RoutesOutput contains the result of the Routes operation.
type RoutesOutput struct {
	Target   config.BuildTarget   `json:"target"`
	Metadata routes.ChunkMetadata `json:"metadata"`
	Range    *routes.RouteRange   `json:"range,omitempty"`
	Count    int                  `json:"count"`
	Routes   []string             `json:"routes"`
}

// Routes computes the routes one build invocation pre-renders.
// Chunk parameters are checked before any source file is read.
func Routes(ctx context.Context, rt *Runtime, input RoutesInput) (*RoutesOutput, error) {
	target := input.Target
	if target == "" {
		target = rt.Env.Target
	}
	if target == "" {
		target = config.TargetAll
	}

	chunkIndex, hasChunkIndex := input.ChunkIndex, input.HasChunkIndex
	if !hasChunkIndex && rt.Env.HasChunkIndex {
		chunkIndex, hasChunkIndex = rt.Env.ChunkIndex, true
	}

	chunkSize := input.ChunkSize
	if chunkSize == 0 {
		chunkSize = rt.Env.ChunkSize
	}
	if chunkSize == 0 {
		chunkSize = rt.Config.RouteChunkSize
	}

	switch target {
	case config.TargetPages, config.TargetAll:
	case config.TargetChunked:
		if !hasChunkIndex {
			return nil, errors.NewInvalidConfig(config.EnvChunkIndex, "required when BUILD_TARGET=chunked")
		}
		if _, err := routes.Range(chunkIndex, chunkSize, 0); err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewInvalidConfig(config.EnvBuildTarget, "must be one of: pages, all, chunked")
	}
	if chunkSize <= 0 {
		return nil, errors.NewInvalidConfig(config.EnvChunkSize, "must be a positive integer")
	}

	data, err := rt.loadIndexed(ctx)
	if err != nil {
		return nil, err
	}
	ids := data.idx.IDs

	meta, err := routes.Metadata(len(ids), chunkSize, rt.Config.Locales)
	if err != nil {
		return nil, err
	}

	paths, err := routes.Select(routes.SelectInput{
		Target:        target,
		IDs:           ids,
		CategoryIDs:   categoryIDs(data.ds),
		Locales:       rt.Config.Locales,
		ChunkIndex:    chunkIndex,
		HasChunkIndex: hasChunkIndex,
		ChunkSize:     chunkSize,
	})
	if err != nil {
		return nil, err
	}

	out := &RoutesOutput{
		Target:   target,
		Metadata: meta,
		Count:    len(paths),
		Routes:   paths,
	}
	if target == config.TargetChunked {
		r, err := routes.Range(chunkIndex, chunkSize, len(ids))
		if err != nil {
			return nil, err
		}
		out.Range = &r
	}
	return out, nil
}
