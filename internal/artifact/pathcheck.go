package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/soundbluemusic/dictgen/internal/errors"
)

// CheckRel rejects artifact paths that would escape the output root.
func CheckRel(rel string) error {
	if rel == "" {
		return errors.NewInternal(fmt.Errorf("empty artifact path"))
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return errors.NewInternal(fmt.Errorf("artifact path %q must be relative", rel))
	}
	if containsTraversal(rel) {
		return errors.NewInternal(fmt.Errorf("artifact path %q must not contain directory traversal (..)", rel))
	}
	return nil
}

// CheckKey validates a data-derived file name component such as a partition
// key, category id or entry id. Keys come from authored content, so they are
// checked before they are spliced into a path.
func CheckKey(kind, key string) error {
	switch {
	case key == "":
		return errors.NewDataIntegrity(fmt.Sprintf("empty %s cannot name a file", kind))
	case key == "." || key == "..":
		return errors.NewDataIntegrity(fmt.Sprintf("%s %q cannot name a file", kind, key), key)
	case strings.ContainsAny(key, "/\\\x00"):
		return errors.NewDataIntegrity(fmt.Sprintf("%s %q contains a path separator", kind, key), key)
	}
	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
