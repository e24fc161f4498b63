package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soundbluemusic/dictgen/internal/entry"
	dicterrors "github.com/soundbluemusic/dictgen/internal/errors"
)

// RequiredLocales must be present in every entry's translations.
var RequiredLocales = []string{"ko", "en"}

// LoadEntries reads every *.json file in dir in file-name order. A file holds
// either an array of entries or a single entry object. The returned slice is in
// merge order: file-name order, then in-file order.
func LoadEntries(dir string) ([]entry.Entry, error) {
	files, err := entryFiles(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]entry.Entry, 0, len(files)*64)
	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		fileEntries, err := decodeEntries(data)
		if err != nil {
			return nil, dicterrors.NewDataIntegrity(fmt.Sprintf("malformed JSON in %s: %v", name, err))
		}
		entries = append(entries, fileEntries...)
	}

	for i := range entries {
		if entries[i].Tags == nil {
			entries[i].Tags = []string{}
		}
	}
	return entries, nil
}

func entryFiles(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, dicterrors.NewInvalidConfig("entries_dir", "directory not found: "+dir)
		}
		return nil, fmt.Errorf("read entries dir: %w", err)
	}

	var files []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		files = append(files, de.Name())
	}
	sort.Strings(files)
	return files, nil
}

func decodeEntries(data []byte) ([]entry.Entry, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []entry.Entry
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var single entry.Entry
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []entry.Entry{single}, nil
}

// LoadCategories reads the category set from a .json, .yaml or .yml file and
// returns it sorted by order, then id. An empty path yields no categories.
func LoadCategories(path string) ([]entry.Category, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, dicterrors.NewInvalidConfig("categories_path", "file not found: "+path)
		}
		return nil, fmt.Errorf("read categories: %w", err)
	}

	var categories []entry.Category
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &categories)
	default:
		err = json.Unmarshal(data, &categories)
	}
	if err != nil {
		return nil, dicterrors.NewDataIntegrity(fmt.Sprintf("malformed categories file %s: %v", filepath.Base(path), err))
	}

	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if c.ID == "" {
			return nil, dicterrors.NewDataIntegrity("category with empty id in " + filepath.Base(path))
		}
		if seen[c.ID] {
			return nil, dicterrors.NewDataIntegrity("duplicate category id: "+c.ID, c.ID)
		}
		seen[c.ID] = true
	}

	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].Order != categories[j].Order {
			return categories[i].Order < categories[j].Order
		}
		return categories[i].ID < categories[j].ID
	})
	return categories, nil
}

// Validate reports every problem in entries at once. The returned error is a
// data integrity error whose details name the offending entry IDs.
func Validate(entries []entry.Entry) error {
	var problems []string
	var ids []string
	flagged := make(map[string]bool)
	flag := func(id, problem string) {
		problems = append(problems, problem)
		if !flagged[id] {
			flagged[id] = true
			ids = append(ids, id)
		}
	}

	seen := make(map[string]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		label := e.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}

		if e.ID != "" {
			if seen[e.ID] {
				flag(label, "Duplicate ID: "+e.ID)
			}
			seen[e.ID] = true
		}

		for _, field := range missingFields(e) {
			flag(label, fmt.Sprintf("[%s] Missing required field: %s", label, field))
		}

		if e.Translations != nil {
			for _, locale := range RequiredLocales {
				if _, ok := e.Translations[locale]; !ok {
					flag(label, fmt.Sprintf("[%s] Missing translation for %s", label, locale))
				}
			}
		}
	}

	if len(problems) == 0 {
		return nil
	}
	err := dicterrors.NewValidationFailed(problems)
	err.Details["ids"] = ids
	return err
}

func missingFields(e *entry.Entry) []string {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("id", e.ID)
	check("korean", e.Korean)
	check("romanization", e.Romanization)
	check("partOfSpeech", e.PartOfSpeech)
	check("categoryId", e.CategoryID)
	check("difficulty", e.Difficulty)
	if e.Translations == nil {
		missing = append(missing, "translations")
	}
	return missing
}
