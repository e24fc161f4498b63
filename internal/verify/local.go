package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soundbluemusic/dictgen/internal/chunk"
	"github.com/soundbluemusic/dictgen/internal/errors"
	"github.com/soundbluemusic/dictgen/internal/index"
)

// LocalFailure is one entry the local output does not resolve.
type LocalFailure struct {
	ID     string `json:"id"`
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// LocalReport is the outcome of VerifyLocal.
type LocalReport struct {
	Checked  int            `json:"checked"`
	Failures []LocalFailure `json:"failures"`
}

// OK reports whether every entry resolved.
func (r *LocalReport) OK() bool {
	return len(r.Failures) == 0
}

// LocalInput configures VerifyLocal.
type LocalInput struct {
	DataDir string
	Index   *index.Index

	// CategoryOf maps an entry id to its category id
	CategoryOf func(id string) string

	// Locale selects the by-category-full tree that is checked
	Locale string
}

// VerifyLocal checks without network access that every indexed id is present
// in its partition file and in its full category file.
func VerifyLocal(ctx context.Context, in LocalInput) (*LocalReport, error) {
	report := &LocalReport{Failures: []LocalFailure{}}
	cache := make(map[string]map[string]bool)
	missingFiles := make(map[string]bool)

	check := func(id, rel string) error {
		if missingFiles[rel] {
			report.Failures = append(report.Failures, LocalFailure{ID: id, File: rel, Reason: "file missing"})
			return nil
		}
		set, ok := cache[rel]
		if !ok {
			ids, err := readIDSet(filepath.Join(in.DataDir, filepath.FromSlash(rel)))
			if os.IsNotExist(err) {
				missingFiles[rel] = true
				report.Failures = append(report.Failures, LocalFailure{ID: id, File: rel, Reason: "file missing"})
				return nil
			}
			if err != nil {
				return errors.NewDataIntegrity(fmt.Sprintf("%s: %v", rel, err))
			}
			set = ids
			cache[rel] = set
		}
		if !set[id] {
			report.Failures = append(report.Failures, LocalFailure{ID: id, File: rel, Reason: "id not in file"})
		}
		return nil
	}

	for i, id := range in.Index.IDs {
		if i%1000 == 0 && ctx.Err() != nil {
			return nil, errors.NewCancelled("verify-local")
		}
		report.Checked++

		key, _ := in.Index.Key(id)
		if err := check(id, chunk.PartitionPath(key)); err != nil {
			return nil, err
		}
		if in.CategoryOf == nil || in.Locale == "" {
			continue
		}
		if cat := in.CategoryOf(id); cat != "" {
			if err := check(id, chunk.CategoryFullPath(in.Locale, cat)); err != nil {
				return nil, err
			}
		}
	}
	return report, nil
}

func readIDSet(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ids, err := ParseIDs(data)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
