package ops

import (
	"context"
	"path/filepath"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/db"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/routes"
)

// MetaOutput describes the artifacts of the last build.
type MetaOutput struct {
	Browse     *chunk.Metadata      `json:"browse"`
	Partitions *chunk.PartitionMeta `json:"partitions,omitempty"`
	Categories *chunk.CategoryMeta  `json:"categories,omitempty"`
	Routes     routes.ChunkMetadata `json:"routes"`
	OfflineDB  *db.BuildRun         `json:"offline_db,omitempty"`
}

// Meta reads the metadata files of the last build from the output directory.
// browse/meta.json is required; the other files are reported when present.
func Meta(ctx context.Context, rt *Runtime) (*MetaOutput, error) {
	dataDir := rt.Config.DataDir()
	out := &MetaOutput{}

	out.Browse = &chunk.Metadata{}
	if err := artifact.ReadJSON(filepath.Join(dataDir, chunk.BrowseDir, "meta.json"), out.Browse); err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound("browse/meta.json (run dictgen build first)")
		}
		return nil, err
	}

	partitions := &chunk.PartitionMeta{}
	if err := readOptional(filepath.Join(dataDir, chunk.ChunksDir, "meta.json"), partitions); err != nil {
		return nil, err
	} else if partitions.Partition != "" {
		out.Partitions = partitions
	}

	categories := &chunk.CategoryMeta{}
	if err := readOptional(filepath.Join(dataDir, chunk.ByCategoryDir, "meta.json"), categories); err != nil {
		return nil, err
	} else if categories.GeneratedAt != "" {
		out.Categories = categories
	}

	meta, err := routes.Metadata(out.Browse.TotalEntries, rt.Config.RouteChunkSize, rt.Config.Locales)
	if err != nil {
		return nil, err
	}
	out.Routes = meta

	if database, err := db.Open(db.Path(dataDir)); err == nil {
		defer database.Close()
		if run, err := db.LatestBuildRun(ctx, database); err == nil {
			out.OfflineDB = run
		}
	}
	return out, nil
}

func readOptional(path string, v any) error {
	err := artifact.ReadJSON(path, v)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	return err
}
