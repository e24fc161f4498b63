// Package ops implements the dictgen operations shared by the CLI, the MCP
// server and the preview server.
package ops

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/config"
	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/index"
	"github.com/soundbluemusic/dictgen/internal/loader"
)

// Runtime holds the handles shared by every operation of one process.
type Runtime struct {
	Config *config.Config
	Env    *config.BuildEnv
	Cache  *loader.Cache
	Logger *zap.Logger
}

// NewRuntime wires a runtime for cfg. env and logger may be nil.
func NewRuntime(cfg *config.Config, env *config.BuildEnv, logger *zap.Logger) *Runtime {
	if env == nil {
		env = &config.BuildEnv{Target: config.TargetAll}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		Config: cfg,
		Env:    env,
		Cache:  loader.NewCache(cfg.EntriesDir, cfg.CategoriesPath),
		Logger: logger,
	}
}

// Now returns the build clock (SOURCE_DATE_EPOCH when set).
func (rt *Runtime) Now() time.Time {
	return rt.Env.Now()
}

// indexed is the result of phase A: validated data plus its partition index.
type indexed struct {
	ds  *loader.Dataset
	idx *index.Index
}

// loadIndexed loads (through the cache), validates and indexes the source data.
func (rt *Runtime) loadIndexed(ctx context.Context) (*indexed, error) {
	p, err := index.ForName(rt.Config.Partition)
	if err != nil {
		return nil, err
	}
	ds, err := rt.Cache.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := index.Build(ds.Entries, p)
	if err != nil {
		return nil, err
	}
	return &indexed{ds: ds, idx: idx}, nil
}

// categoryIDs lists the category set in order, then ids only seen on entries.
func categoryIDs(ds *loader.Dataset) []string {
	order, _ := chunk.GroupByCategory(ds.Entries, ds.Categories)
	seen := make(map[string]bool, len(ds.Categories))
	out := make([]string, 0, len(ds.Categories)+len(order))
	for _, c := range ds.Categories {
		seen[c.ID] = true
		out = append(out, c.ID)
	}
	for _, id := range order {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// categoryMembers maps category id to entry ids in merge order.
func categoryMembers(ds *loader.Dataset) map[string][]string {
	_, groups := chunk.GroupByCategory(ds.Entries, ds.Categories)
	out := make(map[string][]string, len(groups))
	for id, g := range groups {
		out[id] = entry.IDs(g)
	}
	return out
}

func newRunID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}
