package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/soundbluemusic/dictgen/internal/entry"
	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

const greetingsJSON = `[
  {
    "id": "hello-1",
    "korean": "안녕하세요",
    "romanization": "annyeonghaseyo",
    "partOfSpeech": "expression",
    "categoryId": "greetings",
    "difficulty": "beginner",
    "tags": ["formal"],
    "translations": {
      "ko": {"word": "안녕하세요", "explanation": "인사말"},
      "en": {"word": "Hello", "explanation": "A greeting"}
    }
  },
  {
    "id": "bye-1",
    "korean": "잘 가",
    "romanization": "jal ga",
    "partOfSpeech": "expression",
    "categoryId": "greetings",
    "difficulty": "beginner",
    "translations": {
      "ko": {"word": "잘 가", "explanation": "작별 인사"},
      "en": {"word": "Bye", "explanation": "A farewell"}
    }
  }
]`

const appleJSON = `{
  "id": "apple-1",
  "korean": "사과",
  "romanization": "sagwa",
  "partOfSpeech": "noun",
  "categoryId": "food",
  "difficulty": "beginner",
  "tags": [],
  "translations": {
    "ko": {"word": "사과", "explanation": "과일"},
    "en": {"word": "apple", "explanation": "A fruit"}
  }
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
	return path
}

func TestLoadEntries_MergeOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-greetings.json", greetingsJSON)
	writeFile(t, dir, "a-food.json", appleJSON)
	writeFile(t, dir, "notes.txt", "ignored")

	entries, err := LoadEntries(dir)
	if err != nil {
		t.Fatalf("LoadEntries() error = %v", err)
	}

	if diff := cmp.Diff([]string{"apple-1", "hello-1", "bye-1"}, entry.IDs(entries)); diff != "" {
		t.Errorf("merge order mismatch (-want +got):\n%s", diff)
	}
	if entries[2].Tags == nil {
		t.Error("missing tags should load as an empty list")
	}
	if entries[1].Translations["en"].Word != "Hello" {
		t.Errorf("en word = %q", entries[1].Translations["en"].Word)
	}
}

func TestLoadEntries_MalformedNamesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `[{"id": "x",`)

	_, err := LoadEntries(dir)
	if !dicterrors.Is(err, dicterrors.ErrDataIntegrity) {
		t.Fatalf("LoadEntries() error = %v, want DATA_INTEGRITY", err)
	}
	if !strings.Contains(err.Error(), "broken.json") {
		t.Errorf("error %q should name the file", err.Error())
	}
}

func TestLoadEntries_MissingDir(t *testing.T) {
	_, err := LoadEntries(filepath.Join(t.TempDir(), "nope"))
	if !dicterrors.Is(err, dicterrors.ErrInvalidConfig) {
		t.Fatalf("LoadEntries() error = %v, want INVALID_CONFIG", err)
	}
}

func TestLoadEntries_Empty(t *testing.T) {
	entries, err := LoadEntries(t.TempDir())
	if err != nil {
		t.Fatalf("LoadEntries() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len = %d, want 0", len(entries))
	}
}

func TestValidate(t *testing.T) {
	valid := entry.Entry{
		ID: "a", Korean: "가", Romanization: "ga", PartOfSpeech: "noun",
		CategoryID: "c", Difficulty: "beginner",
		Translations: map[string]entry.Translation{"ko": {}, "en": {}},
	}

	if err := Validate([]entry.Entry{valid}); err != nil {
		t.Fatalf("Validate(valid) error = %v", err)
	}

	noKorean := valid
	noKorean.ID = "b"
	noKorean.Korean = ""

	noEnglish := valid
	noEnglish.ID = "c"
	noEnglish.Translations = map[string]entry.Translation{"ko": {}}

	err := Validate([]entry.Entry{valid, valid, noKorean, noEnglish})
	if !dicterrors.Is(err, dicterrors.ErrDataIntegrity) {
		t.Fatalf("Validate() error = %v, want DATA_INTEGRITY", err)
	}

	dErr := err.(*dicterrors.DictError)
	problems := dErr.Details["problems"].([]string)
	want := []string{
		"Duplicate ID: a",
		"[b] Missing required field: korean",
		"[c] Missing translation for en",
	}
	if diff := cmp.Diff(want, problems); diff != "" {
		t.Errorf("problems mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, dErr.Details["ids"]); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCategories(t *testing.T) {
	dir := t.TempDir()

	jsonPath := writeFile(t, dir, "categories.json", `[
  {"id": "food", "name": {"ko": "음식", "en": "Food"}, "order": 2},
  {"id": "greetings", "name": {"ko": "인사", "en": "Greetings"}, "order": 1},
  {"id": "animals", "name": {"en": "Animals"}, "order": 2}
]`)
	yamlPath := writeFile(t, dir, "categories.yaml", `
- id: food
  name: {ko: 음식, en: Food}
  order: 2
- id: greetings
  name: {ko: 인사, en: Greetings}
  icon: "👋"
  order: 1
- id: animals
  name: {en: Animals}
  order: 2
`)

	for _, path := range []string{jsonPath, yamlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cats, err := LoadCategories(path)
			if err != nil {
				t.Fatalf("LoadCategories() error = %v", err)
			}
			var ids []string
			for _, c := range cats {
				ids = append(ids, c.ID)
			}
			if diff := cmp.Diff([]string{"greetings", "animals", "food"}, ids); diff != "" {
				t.Errorf("order mismatch (-want +got):\n%s", diff)
			}
			if cats[0].Name["en"] != "Greetings" {
				t.Errorf("name = %v", cats[0].Name)
			}
		})
	}
}

func TestLoadCategories_Duplicate(t *testing.T) {
	path := writeFile(t, t.TempDir(), "categories.json", `[{"id": "a", "order": 1}, {"id": "a", "order": 2}]`)

	_, err := LoadCategories(path)
	if !dicterrors.Is(err, dicterrors.ErrDataIntegrity) {
		t.Fatalf("LoadCategories() error = %v, want DATA_INTEGRITY", err)
	}
}

func TestLoadCategories_EmptyPath(t *testing.T) {
	cats, err := LoadCategories("")
	if err != nil || cats != nil {
		t.Fatalf("LoadCategories(\"\") = %v, %v; want nil, nil", cats, err)
	}
}

func TestCache_PopulateOnceAndInvalidate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "food.json", appleJSON)
	cache := NewCache(dir, "")
	ctx := context.Background()

	first, err := cache.Dataset(ctx)
	if err != nil {
		t.Fatalf("Dataset() error = %v", err)
	}
	second, err := cache.Dataset(ctx)
	if err != nil {
		t.Fatalf("Dataset() error = %v", err)
	}
	if first != second {
		t.Error("second call should return the cached dataset")
	}
	if cache.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", cache.Loads())
	}

	writeFile(t, dir, "greetings.json", greetingsJSON)
	cache.Invalidate()

	third, err := cache.Dataset(ctx)
	if err != nil {
		t.Fatalf("Dataset() error = %v", err)
	}
	if len(third.Entries) != 3 {
		t.Errorf("after Invalidate len = %d, want 3", len(third.Entries))
	}
	if _, ok := third.Lookup("bye-1"); !ok {
		t.Error("Lookup(bye-1) should find the reloaded entry")
	}
	if cache.Loads() != 2 {
		t.Errorf("Loads() = %d, want 2", cache.Loads())
	}
}

func TestCache_ErrorNotCached(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", `{`)
	cache := NewCache(dir, "")

	if _, err := cache.Dataset(context.Background()); err == nil {
		t.Fatal("Dataset() expected error")
	}

	writeFile(t, dir, "broken.json", appleJSON)
	if _, err := cache.Dataset(context.Background()); err != nil {
		t.Fatalf("Dataset() after fix error = %v", err)
	}
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, t.TempDir(), "")
	if !dicterrors.Is(err, dicterrors.ErrCancelled) {
		t.Fatalf("Load() error = %v, want CANCELLED", err)
	}
}

func TestWatcher_InvalidatesOnSourceChange(t *testing.T) {
	dir := t.TempDir()
	entriesDir := filepath.Join(dir, "entries")
	if err := os.MkdirAll(entriesDir, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	writeFile(t, entriesDir, "greetings.json", greetingsJSON)

	cache := NewCache(entriesDir, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := cache.Dataset(ctx); err != nil {
		t.Fatalf("Dataset() error = %v", err)
	}

	w, err := NewWatcher(cache, nil, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	invalidated := make(chan string, 4)
	w.OnInvalidate = func(path string) { invalidated <- path }
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Non-source files are ignored.
	writeFile(t, entriesDir, "notes.txt", "scratch")
	select {
	case p := <-invalidated:
		t.Fatalf("invalidated for %s, want no invalidation", p)
	case <-time.After(150 * time.Millisecond):
	}

	writeFile(t, entriesDir, "greetings.json", strings.Replace(greetingsJSON, `"hello-1"`, `"hello-9"`, 1))
	select {
	case p := <-invalidated:
		if filepath.Base(p) != "greetings.json" {
			t.Errorf("invalidated for %s, want greetings.json", p)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cache was not invalidated after the entries file changed")
	}

	ds, err := cache.Dataset(ctx)
	if err != nil {
		t.Fatalf("Dataset() error = %v", err)
	}
	if _, ok := ds.Lookup("hello-9"); !ok {
		t.Error("reloaded dataset is missing hello-9")
	}
	if cache.Loads() != 2 {
		t.Errorf("Loads() = %d, want 2", cache.Loads())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
