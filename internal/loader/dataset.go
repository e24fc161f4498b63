package loader

import (
	"context"
	"sync"

	"github.com/soundbluemusic/dictgen/internal/entry"
	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

// Dataset is a validated, merged view of the source data.
type Dataset struct {
	Entries    []entry.Entry
	Categories []entry.Category

	byID map[string]int
}

// NewDataset indexes entries by ID. Entries must already be validated.
func NewDataset(entries []entry.Entry, categories []entry.Category) *Dataset {
	byID := make(map[string]int, len(entries))
	for i := range entries {
		byID[entries[i].ID] = i
	}
	return &Dataset{Entries: entries, Categories: categories, byID: byID}
}

// Lookup returns the entry with the given ID.
func (d *Dataset) Lookup(id string) (*entry.Entry, bool) {
	i, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	return &d.Entries[i], true
}

// Category returns the category with the given ID.
func (d *Dataset) Category(id string) (*entry.Category, bool) {
	for i := range d.Categories {
		if d.Categories[i].ID == id {
			return &d.Categories[i], true
		}
	}
	return nil, false
}

// Load reads, validates and indexes the source data.
func Load(ctx context.Context, entriesDir, categoriesPath string) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, dicterrors.NewCancelled("load")
	}
	entries, err := LoadEntries(entriesDir)
	if err != nil {
		return nil, err
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	categories, err := LoadCategories(categoriesPath)
	if err != nil {
		return nil, err
	}
	return NewDataset(entries, categories), nil
}

// Cache loads the dataset at most once per process until Invalidate is called.
// Long-lived processes (serve, mcp) share one Cache; batch commands call Load.
// A failed load is not cached.
type Cache struct {
	entriesDir     string
	categoriesPath string

	mu      sync.Mutex
	dataset *Dataset
	loads   int
}

// NewCache creates an empty cache for the given source locations.
func NewCache(entriesDir, categoriesPath string) *Cache {
	return &Cache{entriesDir: entriesDir, categoriesPath: categoriesPath}
}

// Dataset returns the cached dataset, loading it on first use.
func (c *Cache) Dataset(ctx context.Context) (*Dataset, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dataset != nil {
		return c.dataset, nil
	}
	ds, err := Load(ctx, c.entriesDir, c.categoriesPath)
	if err != nil {
		return nil, err
	}
	c.dataset = ds
	c.loads++
	return ds, nil
}

// Invalidate drops the cached dataset; the next Dataset call reloads from disk.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.dataset = nil
	c.mu.Unlock()
}

// Loads reports how many times the dataset was read from disk.
func (c *Cache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}
