package ops

import (
	"context"
	"os"
	"strings"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/db"
	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/index"
	"github.com/soundbluemusic/dictgen/internal/routes"
)

// Lookup sources.
const (
	SourceData = "data"
	SourceDB   = "db"
)

// LookupInput contains parameters for the Lookup operation.
type LookupInput struct {
	ID string

	// Locale projects the entry onto one locale (full entry when empty)
	Locale string

	// Source is "data" (entry files, default) or "db" (offline database)
	Source string
}

// LookupOutput contains the result of the Lookup operation.
type LookupOutput struct {
	Source        string             `json:"source"`
	PartitionKey  string             `json:"partition_key"`
	PartitionFile string             `json:"partition_file"`
	Category      *entry.Category    `json:"category,omitempty"`
	Routes        []string           `json:"routes"`
	Entry         *entry.Entry       `json:"entry,omitempty"`
	Localized     *entry.LocaleEntry `json:"localized,omitempty"`
}

// Lookup resolves one entry id to its data, partition and routes.
func Lookup(ctx context.Context, rt *Runtime, input LookupInput) (*LookupOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidConfig("id", "is required")
	}
	p, err := index.ForName(rt.Config.Partition)
	if err != nil {
		return nil, err
	}

	source := input.Source
	if source == "" {
		source = SourceData
	}

	var (
		e          *entry.Entry
		categories []entry.Category
	)
	switch source {
	case SourceData:
		ds, err := rt.Cache.Dataset(ctx)
		if err != nil {
			return nil, err
		}
		found, ok := ds.Lookup(id)
		if !ok {
			return nil, errors.NewNotFound(id)
		}
		e = found
		categories = ds.Categories
	case SourceDB:
		database, err := db.Open(db.Path(rt.Config.DataDir()))
		if err != nil {
			return nil, err
		}
		defer database.Close()
		e, err = db.GetByID(ctx, database, id)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewInvalidConfig("source", "must be one of: data, db")
	}

	key, ok := p.Key(e)
	if !ok {
		return nil, errors.NewDataIntegrity("entry "+e.ID+" has no value for the "+p.Name()+" partition", e.ID)
	}

	out := &LookupOutput{
		Source:        source,
		PartitionKey:  key,
		PartitionFile: "/data/" + chunk.PartitionPath(key),
		Routes:        routes.Expand([]string{routes.EntryPath(e.ID)}, rt.Config.Locales),
	}
	for i := range categories {
		if categories[i].ID == e.CategoryID {
			out.Category = &categories[i]
			break
		}
	}

	if input.Locale != "" {
		le, ok := e.ToLocale(input.Locale)
		if !ok {
			return nil, errors.NewNotFound(e.ID + " (" + input.Locale + ")")
		}
		out.Localized = &le
	} else {
		out.Entry = e
	}
	return out, nil
}

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
