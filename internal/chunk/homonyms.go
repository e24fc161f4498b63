package chunk

import (
	"context"
	"strings"

	"github.com/soundbluemusic/dictgen/internal/artifact"
	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// HomonymsFile is the data-root relative path of the homonym index.
const HomonymsFile = "homonyms.json"

// HomonymEntry is one meaning of a homonym.
type HomonymEntry struct {
	ID         string            `json:"id"`
	Word       map[string]string `json:"word"`
	CategoryID string            `json:"categoryId"`
}

// HomonymResult summarizes a written homonym index.
type HomonymResult struct {
	Words   int
	Entries int
}

// Homonyms groups entries sharing a Korean spelling. Within a group only the
// first entry of each English meaning (case-insensitive) is kept, in merge
// order; groups left with fewer than two meanings are dropped.
func Homonyms(entries []entry.Entry) map[string][]HomonymEntry {
	var order []string
	groups := make(map[string][]*entry.Entry)
	for i := range entries {
		k := entries[i].Korean
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], &entries[i])
	}

	out := make(map[string][]HomonymEntry)
	for _, k := range order {
		group := groups[k]
		if len(group) < 2 {
			continue
		}
		seen := make(map[string]bool, len(group))
		var meanings []HomonymEntry
		for _, e := range group {
			meaning := strings.ToLower(e.Translations["en"].Word)
			if seen[meaning] {
				continue
			}
			seen[meaning] = true
			meanings = append(meanings, HomonymEntry{
				ID:         e.ID,
				Word:       e.ToLight().Word,
				CategoryID: e.CategoryID,
			})
		}
		if len(meanings) >= 2 {
			out[k] = meanings
		}
	}
	return out
}

// WriteHomonyms writes homonyms.json, an object keyed by Korean spelling.
// Keys are written in sorted order.
func WriteHomonyms(ctx context.Context, w *artifact.Writer, entries []entry.Entry) (*HomonymResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("homonym index")
	}
	homonyms := Homonyms(entries)
	if err := w.WriteJSON(HomonymsFile, homonyms); err != nil {
		return nil, err
	}
	res := &HomonymResult{Words: len(homonyms)}
	for _, meanings := range homonyms {
		res.Entries += len(meanings)
	}
	return res, nil
}
