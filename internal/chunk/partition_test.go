package chunk

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/index"
)

func TestWritePartitions(t *testing.T) {
	root := t.TempDir()
	w := artifact.NewWriter(root, true)
	entries := sevenEntries()
	idx, err := index.Build(entries, index.ChoseongPartitioner{})
	require.NoError(t, err)

	meta, err := WritePartitions(context.Background(), w, entries, idx, "choseong", fixedNow)
	require.NoError(t, err)
	require.Equal(t, 7, meta.TotalEntries)
	require.Len(t, meta.Chunks, len(idx.Keys))
	require.Equal(t, "ㅅ", meta.Chunks[0].Key)
	require.Equal(t, "entries-ㅅ.json", meta.Chunks[0].File)

	var group []entry.Entry
	require.NoError(t, artifact.ReadJSON(filepath.Join(root, PartitionPath("ㅅ")), &group))
	require.Equal(t, []string{"e0"}, entry.IDs(group))

	_, err = os.Stat(filepath.Join(root, PartitionPath("ㅅ")+artifact.ZstdExt))
	require.NoError(t, err, "compressed sibling")

	var ix EntryIndexFile
	require.NoError(t, artifact.ReadJSON(filepath.Join(root, ChunksDir, "index.json"), &ix))
	require.Equal(t, "ㄱ", ix.EntryIndex["e1"])
	require.Equal(t, "nature", ix.EntryToCategory["e1"])

	total := 0
	for _, c := range meta.Chunks {
		total += c.Count
	}
	require.Equal(t, 7, total)
}

func TestWritePartitions_RemovesStaleKeys(t *testing.T) {
	root := t.TempDir()
	w := artifact.NewWriter(root, true)
	entries := sevenEntries()

	idx, err := index.Build(entries, index.ChoseongPartitioner{})
	require.NoError(t, err)
	_, err = WritePartitions(context.Background(), w, entries, idx, "choseong", fixedNow)
	require.NoError(t, err)

	idx, err = index.Build(entries[:1], index.ChoseongPartitioner{})
	require.NoError(t, err)
	_, err = WritePartitions(context.Background(), w, entries[:1], idx, "choseong", fixedNow)
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(root, ChunksDir, "entries-*"))
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(root, PartitionPath("ㅅ")),
		filepath.Join(root, PartitionPath("ㅅ")+artifact.ZstdExt),
	}, matches)
}

func TestWritePartitions_RejectsUnsafeKey(t *testing.T) {
	entries := []entry.Entry{{ID: "x", Korean: "가", CategoryID: "../escape"}}
	idx, err := index.Build(entries, index.CategoryPartitioner{})
	require.NoError(t, err)

	_, err = WritePartitions(context.Background(), artifact.NewWriter(t.TempDir(), false), entries, idx, "category", fixedNow)
	require.True(t, errors.Is(err, errors.ErrDataIntegrity), "got %v", err)
}

func TestWriteCategoryChunks(t *testing.T) {
	root := t.TempDir()
	w := artifact.NewWriter(root, false)
	entries := sevenEntries()
	entries[2].Translations["en"] = entry.Translation{
		Word:     "tree",
		Dialogue: &entry.Dialogue{Context: "park", Dialogue: []entry.DialogueLine{{Speaker: "A", Text: "나무"}}},
	}
	categories := []entry.Category{
		{ID: "nature", Name: map[string]string{"en": "Nature"}, Order: 1},
		{ID: "food", Name: map[string]string{"en": "Food"}, Order: 2},
		{ID: "unused", Order: 3},
	}

	meta, err := WriteCategoryChunks(context.Background(), w, entries, categories, []string{"en", "ko"}, fixedNow)
	require.NoError(t, err)

	require.Len(t, meta.Categories, 2)
	require.Equal(t, "nature", meta.Categories[0].ID)
	require.Equal(t, 3, meta.Categories[0].Count)
	require.Equal(t, "food", meta.Categories[1].ID)
	require.Equal(t, 4, meta.Categories[1].Count)

	var light []entry.LightEntry
	require.NoError(t, artifact.ReadJSON(filepath.Join(root, ByCategoryDir, "food.json"), &light))
	require.Equal(t, []string{"e0", "e2", "e4", "e6"}, []string{light[0].ID, light[1].ID, light[2].ID, light[3].ID})

	var full []entry.LocaleEntry
	require.NoError(t, artifact.ReadJSON(filepath.Join(root, CategoryFullPath("en", "food")), &full))
	require.Len(t, full, 4)
	require.True(t, full[1].HasDialogue)
	require.Equal(t, "tree", full[1].Translation.Word)

	var dialogue entry.Dialogue
	require.NoError(t, artifact.ReadJSON(filepath.Join(root, DialoguesDir, "en", "e2.json"), &dialogue))
	require.Equal(t, "park", dialogue.Context)

	_, err = os.Stat(filepath.Join(root, DialoguesDir, "ko", "e2.json"))
	require.True(t, os.IsNotExist(err))
}

func TestWritePartitions_DropsCompressedSiblingsWhenCompressionOff(t *testing.T) {
	root := t.TempDir()
	entries := sevenEntries()
	idx, err := index.Build(entries, index.ChoseongPartitioner{})
	require.NoError(t, err)

	_, err = WritePartitions(context.Background(), artifact.NewWriter(root, true), entries, idx, "choseong", fixedNow)
	require.NoError(t, err)

	meta, err := WritePartitions(context.Background(), artifact.NewWriter(root, false), entries, idx, "choseong", fixedNow)
	require.NoError(t, err)
	require.Equal(t, len(idx.Keys), meta.Removed)

	matches, err := filepath.Glob(filepath.Join(root, ChunksDir, "entries-*"+artifact.ZstdExt))
	require.NoError(t, err)
	require.Empty(t, matches)
	_, err = os.Stat(filepath.Join(root, PartitionPath("ㅅ")))
	require.NoError(t, err)
}

func TestWriteCategoryChunks_RemovesStaleFiles(t *testing.T) {
	root := t.TempDir()
	entries := sevenEntries()
	entries[2].Translations["en"] = entry.Translation{
		Word:     "tree",
		Dialogue: &entry.Dialogue{Context: "park", Dialogue: []entry.DialogueLine{{Speaker: "A", Text: "나무"}}},
	}
	locales := []string{"en", "ko"}

	_, err := WriteCategoryChunks(context.Background(), artifact.NewWriter(root, true), entries, nil, locales, fixedNow)
	require.NoError(t, err)
	for _, rel := range []string{
		path.Join(ByCategoryDir, "nature.json"),
		CategoryFullPath("en", "nature"),
		CategoryFullPath("en", "nature") + artifact.ZstdExt,
		path.Join(DialoguesDir, "en", "e2.json"),
	} {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
	}

	// Second run: nature and e2 are gone, compression is off.
	food := []entry.Entry{entries[0], entries[4], entries[6]}
	meta, err := WriteCategoryChunks(context.Background(), artifact.NewWriter(root, false), food, nil, locales, fixedNow)
	require.NoError(t, err)

	for _, rel := range []string{
		path.Join(ByCategoryDir, "nature.json"),
		CategoryFullPath("en", "nature"),
		CategoryFullPath("en", "nature") + artifact.ZstdExt,
		CategoryFullPath("ko", "nature"),
		CategoryFullPath("en", "food") + artifact.ZstdExt,
		path.Join(DialoguesDir, "en", "e2.json"),
	} {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		require.True(t, os.IsNotExist(err), "%s should be removed", rel)
	}
	for _, rel := range []string{
		path.Join(ByCategoryDir, "meta.json"),
		path.Join(ByCategoryDir, "food.json"),
		CategoryFullPath("en", "food"),
	} {
		_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
	}
	// nature light + 2 full + 2 zstd for nature, 2 zstd for food, 1 dialogue
	require.Equal(t, 1+2+2+2+1, meta.Removed)
}
