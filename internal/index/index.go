// Package index derives the entry ID to partition key mapping used to shard
// entries into small lookup files.
package index

import (
	"fmt"

	"github.com/soundbluemusic/dictgen/internal/entry"
	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

// Partitioner derives a partition key from an entry. It must be pure.
// ok is false when the entry lacks the attribute the key depends on.
type Partitioner interface {
	Name() string
	Key(e *entry.Entry) (key string, ok bool)
}

// Index maps every entry ID to exactly one partition key.
type Index struct {
	// IDs is every entry ID in merge order
	IDs []string

	// Keys is every partition key in order of first appearance
	Keys []string

	byID   map[string]string
	groups map[string][]int
}

// Build computes the index in a single pass. It fails on a duplicate ID or on
// an entry whose partition attribute is missing; entries are never dropped.
func Build(entries []entry.Entry, p Partitioner) (*Index, error) {
	idx := &Index{
		IDs:    make([]string, 0, len(entries)),
		byID:   make(map[string]string, len(entries)),
		groups: make(map[string][]int),
	}

	for i := range entries {
		e := &entries[i]
		if _, dup := idx.byID[e.ID]; dup {
			return nil, dicterrors.NewDataIntegrity("duplicate entry id "+e.ID, e.ID)
		}
		key, ok := p.Key(e)
		if !ok {
			return nil, dicterrors.NewDataIntegrity(
				fmt.Sprintf("entry %s has no value for the %s partition", e.ID, p.Name()), e.ID)
		}
		if _, seen := idx.groups[key]; !seen {
			idx.Keys = append(idx.Keys, key)
		}
		idx.groups[key] = append(idx.groups[key], i)
		idx.byID[e.ID] = key
		idx.IDs = append(idx.IDs, e.ID)
	}

	return idx, nil
}

// Key returns the partition key of id.
func (x *Index) Key(id string) (string, bool) {
	k, ok := x.byID[id]
	return k, ok
}

// Len returns the number of indexed entries.
func (x *Index) Len() int {
	return len(x.IDs)
}

// Group returns the entries of one partition in merge order.
func (x *Index) Group(entries []entry.Entry, key string) []entry.Entry {
	positions := x.groups[key]
	out := make([]entry.Entry, len(positions))
	for i, pos := range positions {
		out[i] = entries[pos]
	}
	return out
}

// GroupIDs returns the IDs of one partition in merge order.
func (x *Index) GroupIDs(key string) []string {
	positions := x.groups[key]
	out := make([]string, len(positions))
	for i, pos := range positions {
		out[i] = x.IDs[pos]
	}
	return out
}

// Mapping returns a copy of the ID to key map.
func (x *Index) Mapping() map[string]string {
	out := make(map[string]string, len(x.byID))
	for id, k := range x.byID {
		out[id] = k
	}
	return out
}
