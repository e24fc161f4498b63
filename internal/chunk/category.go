package chunk

import (
	"context"
	"path"
	"time"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// Category output directories relative to the data root.
const (
	ByCategoryDir     = "by-category"
	ByCategoryFullDir = "by-category-full"
	DialoguesDir      = "dialogues"
)

// CategoryInfo describes one category in by-category/meta.json.
type CategoryInfo struct {
	ID    string            `json:"id"`
	Name  map[string]string `json:"name,omitempty"`
	Count int               `json:"count"`
	File  string            `json:"file"`
}

// CategoryMeta is by-category/meta.json.
type CategoryMeta struct {
	TotalEntries int            `json:"totalEntries"`
	Locales      []string       `json:"locales"`
	Categories   []CategoryInfo `json:"categories"`
	GeneratedAt  string         `json:"generatedAt"`

	// Removed counts stale category and dialogue files deleted by this run.
	Removed int `json:"-"`
}

// CategoryFullPath returns the data-root relative path of one locale's full category file.
func CategoryFullPath(locale, categoryID string) string {
	return path.Join(ByCategoryFullDir, locale, categoryID+".json")
}

// WriteCategoryChunks writes per category: by-category/<cat>.json with light
// entries and by-category-full/<locale>/<cat>.json with single-locale entries.
// Dialogues are split into dialogues/<locale>/<id>.json. Categories are listed
// in the order of the category set, then unknown ids in order of appearance.
// Files of categories, entries or dialogues no longer produced are removed.
func WriteCategoryChunks(ctx context.Context, w *artifact.Writer, entries []entry.Entry, categories []entry.Category, locales []string, now time.Time) (*CategoryMeta, error) {
	order, groups := GroupByCategory(entries, categories)

	meta := &CategoryMeta{
		TotalEntries: len(entries),
		Locales:      locales,
		Categories:   make([]CategoryInfo, 0, len(order)),
		GeneratedAt:  now.UTC().Format(TimeLayout),
	}
	light := make(map[string]bool, len(order)+1)
	light["meta.json"] = true
	full := make(map[string]map[string]bool, len(locales))
	dialogues := make(map[string]map[string]bool, len(locales))
	for _, locale := range locales {
		full[locale] = make(map[string]bool, len(order))
		dialogues[locale] = make(map[string]bool)
	}
	names := make(map[string]map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	for _, catID := range order {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("category files")
		}
		if err := artifact.CheckKey("category id", catID); err != nil {
			return nil, err
		}
		group := groups[catID]

		lightGroup := make([]entry.LightEntry, len(group))
		for i := range group {
			lightGroup[i] = group[i].ToLight()
		}
		if err := w.WriteJSON(path.Join(ByCategoryDir, catID+".json"), lightGroup); err != nil {
			return nil, err
		}
		light[catID+".json"] = true

		for _, locale := range locales {
			localized := make([]entry.LocaleEntry, 0, len(group))
			for i := range group {
				le, ok := group[i].ToLocale(locale)
				if !ok {
					continue
				}
				localized = append(localized, le)
				if d := group[i].Translations[locale].Dialogue; d != nil {
					if err := artifact.CheckKey("entry id", group[i].ID); err != nil {
						return nil, err
					}
					if err := w.WriteJSON(path.Join(DialoguesDir, locale, group[i].ID+".json"), d); err != nil {
						return nil, err
					}
					dialogues[locale][group[i].ID+".json"] = true
				}
			}
			if err := w.WriteJSONCompressible(CategoryFullPath(locale, catID), localized); err != nil {
				return nil, err
			}
			full[locale][catID+".json"] = true
		}

		meta.Categories = append(meta.Categories, CategoryInfo{
			ID:    catID,
			Name:  names[catID],
			Count: len(group),
			File:  catID + ".json",
		})
	}

	removed, err := w.Prune(ByCategoryDir, "*.json", keepWritten(w, light))
	if err != nil {
		return nil, err
	}
	meta.Removed += removed
	for _, locale := range locales {
		removed, err := w.Prune(path.Join(ByCategoryFullDir, locale), "*.json*", keepWritten(w, full[locale]))
		if err != nil {
			return nil, err
		}
		meta.Removed += removed
		removed, err = w.Prune(path.Join(DialoguesDir, locale), "*.json", keepWritten(w, dialogues[locale]))
		if err != nil {
			return nil, err
		}
		meta.Removed += removed
	}

	if err := w.WriteMeta(path.Join(ByCategoryDir, "meta.json"), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// GroupByCategory groups entries by category id in merge order. The returned ids
// follow the category set order, then unknown ids in order of appearance.
func GroupByCategory(entries []entry.Entry, categories []entry.Category) ([]string, map[string][]entry.Entry) {
	groups := make(map[string][]entry.Entry)
	var appearance []string
	for i := range entries {
		id := entries[i].CategoryID
		if _, ok := groups[id]; !ok {
			appearance = append(appearance, id)
		}
		groups[id] = append(groups[id], entries[i])
	}

	order := make([]string, 0, len(groups))
	listed := make(map[string]bool, len(categories))
	for _, c := range categories {
		listed[c.ID] = true
		if _, ok := groups[c.ID]; ok {
			order = append(order, c.ID)
		}
	}
	for _, id := range appearance {
		if !listed[id] {
			order = append(order, id)
		}
	}
	return order, groups
}
