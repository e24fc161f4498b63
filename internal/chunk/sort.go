package chunk

import (
	"bytes"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/soundbluemusic/dictgen/internal/entry"
	"github.com/soundbluemusic/dictgen/internal/errors"
)

// Sort type names, also used as directory names under browse/.
const (
	SortAlphabetical = "alphabetical"
	SortCategory     = "category"
	SortRecent       = "recent"
)

// Strategy is a named total order over entries.
type Strategy struct {
	Name string

	// Order returns the entries in this strategy's order without modifying the input.
	Order func(entries []entry.Entry) []entry.Entry
}

// DefaultStrategies returns the browse strategies in publication order.
func DefaultStrategies() []Strategy {
	return []Strategy{Alphabetical(), ByCategory(), Recent()}
}

// StrategyNames returns the names of strategies in order.
func StrategyNames(strategies []Strategy) []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = s.Name
	}
	return names
}

// StrategiesByName resolves sort type names. An empty list means the defaults.
func StrategiesByName(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		return DefaultStrategies(), nil
	}
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		switch n {
		case SortAlphabetical:
			out = append(out, Alphabetical())
		case SortCategory:
			out = append(out, ByCategory())
		case SortRecent:
			out = append(out, Recent())
		default:
			return nil, errors.NewInvalidConfig("sort", "unknown sort type "+n)
		}
	}
	return out, nil
}

// Alphabetical orders by Korean collation of the headword, then by id.
func Alphabetical() Strategy {
	return Strategy{
		Name: SortAlphabetical,
		Order: func(entries []entry.Entry) []entry.Entry {
			korean := collationKeys(entries, func(e *entry.Entry) string { return e.Korean })
			return orderBy(entries, func(i, j int) int {
				return bytes.Compare(korean[i], korean[j])
			})
		},
	}
}

// ByCategory orders by category id, then by Korean collation of the headword, then by id.
func ByCategory() Strategy {
	return Strategy{
		Name: SortCategory,
		Order: func(entries []entry.Entry) []entry.Entry {
			category := collationKeys(entries, func(e *entry.Entry) string { return e.CategoryID })
			korean := collationKeys(entries, func(e *entry.Entry) string { return e.Korean })
			return orderBy(entries, func(i, j int) int {
				if c := bytes.Compare(category[i], category[j]); c != 0 {
					return c
				}
				return bytes.Compare(korean[i], korean[j])
			})
		},
	}
}

// Recent orders by reverse merge order. Entries carry no timestamps, so the
// last authored entry is treated as the most recent.
func Recent() Strategy {
	return Strategy{
		Name: SortRecent,
		Order: func(entries []entry.Entry) []entry.Entry {
			out := make([]entry.Entry, len(entries))
			for i := range entries {
				out[len(entries)-1-i] = entries[i]
			}
			return out
		},
	}
}

// collationKeys computes Korean sort keys once per entry. Collators are not
// safe for concurrent use, so each call builds its own.
func collationKeys(entries []entry.Entry, field func(*entry.Entry) string) [][]byte {
	col := collate.New(language.Korean)
	var buf collate.Buffer
	keys := make([][]byte, len(entries))
	for i := range entries {
		k := col.KeyFromString(&buf, field(&entries[i]))
		keys[i] = append([]byte(nil), k...)
		buf.Reset()
	}
	return keys
}

// orderBy sorts a permutation of entries by cmp, breaking ties by id.
func orderBy(entries []entry.Entry, cmp func(i, j int) int) []entry.Entry {
	perm := make([]int, len(entries))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		if c := cmp(i, j); c != 0 {
			return c < 0
		}
		return entries[i].ID < entries[j].ID
	})
	out := make([]entry.Entry, len(entries))
	for k, i := range perm {
		out[k] = entries[i]
	}
	return out
}
