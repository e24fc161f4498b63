package chunk

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// BrowseDir is the browse output directory relative to the data root.
const BrowseDir = "browse"

// TimeLayout matches JavaScript's Date.toISOString.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Metadata is browse/meta.json.
type Metadata struct {
	TotalEntries int      `json:"totalEntries"`
	ChunkSize    int      `json:"chunkSize"`
	TotalChunks  int      `json:"totalChunks"`
	SortTypes    []string `json:"sortTypes"`
	GeneratedAt  string   `json:"generatedAt"`
}

// SortMeta is browse/<sortType>/meta.json.
type SortMeta struct {
	TotalChunks  int `json:"totalChunks"`
	TotalEntries int `json:"totalEntries"`
	ChunkSize    int `json:"chunkSize"`
}

// Options configures Generate.
type Options struct {
	ChunkSize  int
	Strategies []Strategy

	// Now is recorded as generatedAt. Identical input and Now give identical bytes.
	Now time.Time
}

// Result summarizes a Generate run.
type Result struct {
	Metadata Metadata
	Sorts    map[string]SortMeta
	Removed  int
}

// Generate writes browse/meta.json, browse/initial.json and, per strategy,
// browse/<sortType>/chunk-<N>.json plus browse/<sortType>/meta.json. Chunk
// files left over from an earlier, larger build are removed. With zero entries
// no chunk files are written and initial.json holds empty chunks.
func Generate(ctx context.Context, w *artifact.Writer, entries []entry.Entry, opts Options) (*Result, error) {
	if opts.ChunkSize <= 0 {
		return nil, errors.NewInvalidConfig("browse_chunk_size", "must be a positive integer")
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}

	result := &Result{Sorts: make(map[string]SortMeta, len(strategies))}
	initial := make(map[string]Chunk[entry.LightEntry], len(strategies))
	total := TotalChunks(len(entries), opts.ChunkSize)

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("browse chunks")
		}

		ordered := s.Order(entries)
		light := make([]entry.LightEntry, len(ordered))
		for i := range ordered {
			light[i] = ordered[i].ToLight()
		}

		chunks, err := Split(light, opts.ChunkSize)
		if err != nil {
			return nil, err
		}
		dir := path.Join(BrowseDir, s.Name)
		for _, c := range chunks {
			if err := w.WriteJSON(path.Join(dir, chunkFileName(c.ChunkIndex)), c); err != nil {
				return nil, err
			}
		}

		meta := SortMeta{TotalChunks: len(chunks), TotalEntries: len(light), ChunkSize: opts.ChunkSize}
		if err := w.WriteJSON(path.Join(dir, "meta.json"), meta); err != nil {
			return nil, err
		}
		result.Sorts[s.Name] = meta

		removed, err := w.Prune(dir, "chunk-*.json", func(name string) bool {
			n, ok := parseChunkFileName(name)
			return ok && n < len(chunks)
		})
		if err != nil {
			return nil, err
		}
		result.Removed += removed

		if len(chunks) > 0 {
			initial[s.Name] = chunks[0]
		} else {
			initial[s.Name] = Empty[entry.LightEntry]()
		}
	}

	if err := w.WriteJSON(path.Join(BrowseDir, "initial.json"), initial); err != nil {
		return nil, err
	}

	result.Metadata = Metadata{
		TotalEntries: len(entries),
		ChunkSize:    opts.ChunkSize,
		TotalChunks:  total,
		SortTypes:    StrategyNames(strategies),
		GeneratedAt:  opts.Now.UTC().Format(TimeLayout),
	}
	if err := w.WriteMeta(path.Join(BrowseDir, "meta.json"), result.Metadata); err != nil {
		return nil, err
	}

	return result, nil
}

func chunkFileName(index int) string {
	return fmt.Sprintf("chunk-%d.json", index)
}

func parseChunkFileName(name string) (int, bool) {
	s, ok := strings.CutPrefix(name, "chunk-")
	if !ok {
		return 0, false
	}
	s, ok = strings.CutSuffix(s, ".json")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
