package chunk

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/index"
)

// ChunksDir holds the index-partitioned entry files read by the verifier.
const ChunksDir = "chunks"

// PartitionFileName returns the file name of one partition.
func PartitionFileName(key string) string {
	return "entries-" + key + ".json"
}

// PartitionPath returns the data-root relative path of one partition.
func PartitionPath(key string) string {
	return path.Join(ChunksDir, PartitionFileName(key))
}

// PartitionInfo describes one partition file in chunks/meta.json.
type PartitionInfo struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	File  string `json:"file"`
}

// PartitionMeta is chunks/meta.json.
type PartitionMeta struct {
	TotalEntries int             `json:"totalEntries"`
	Partition    string          `json:"partition"`
	Chunks       []PartitionInfo `json:"chunks"`
	GeneratedAt  string          `json:"generatedAt"`

	// Removed counts stale partition files deleted by this run.
	Removed int `json:"-"`
}

// EntryIndexFile is chunks/index.json, letting clients resolve an entry id to
// its partition and category without loading any partition.
type EntryIndexFile struct {
	EntryIndex      map[string]string `json:"entryIndex"`
	EntryToCategory map[string]string `json:"entryToCategory"`
}

// WritePartitions writes chunks/entries-<key>.json with the full entries of
// every partition in index order, plus chunks/meta.json and chunks/index.json.
// Partition files for keys that no longer exist are removed.
func WritePartitions(ctx context.Context, w *artifact.Writer, entries []entry.Entry, idx *index.Index, partition string, now time.Time) (*PartitionMeta, error) {
	meta := &PartitionMeta{
		TotalEntries: idx.Len(),
		Partition:    partition,
		Chunks:       make([]PartitionInfo, 0, len(idx.Keys)),
		GeneratedAt:  now.UTC().Format(TimeLayout),
	}
	files := make(map[string]bool, len(idx.Keys))

	for _, key := range idx.Keys {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("partition files")
		}
		if err := artifact.CheckKey("partition key", key); err != nil {
			return nil, err
		}
		group := idx.Group(entries, key)
		if err := w.WriteJSONCompressible(PartitionPath(key), group); err != nil {
			return nil, err
		}
		name := PartitionFileName(key)
		files[name] = true
		meta.Chunks = append(meta.Chunks, PartitionInfo{Key: key, Count: len(group), File: name})
	}

	removed, err := w.Prune(ChunksDir, "entries-*", keepWritten(w, files))
	if err != nil {
		return nil, err
	}
	meta.Removed = removed

	toCategory := make(map[string]string, len(entries))
	for i := range entries {
		toCategory[entries[i].ID] = entries[i].CategoryID
	}
	if err := w.WriteJSON(path.Join(ChunksDir, "index.json"), EntryIndexFile{
		EntryIndex:      idx.Mapping(),
		EntryToCategory: toCategory,
	}); err != nil {
		return nil, err
	}

	if err := w.WriteMeta(path.Join(ChunksDir, "meta.json"), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// keepWritten keeps the files written this run. A zstd sibling survives only
// while compression is on.
func keepWritten(w *artifact.Writer, written map[string]bool) func(string) bool {
	return func(name string) bool {
		if base, ok := strings.CutSuffix(name, artifact.ZstdExt); ok {
			return w.Compress() && written[base]
		}
		return written[name]
	}
}
