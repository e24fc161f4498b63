// Package artifact writes generated files atomically and deterministically.
package artifact

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"

	"github.com/soundbluemusic/dictgen/internal/errors"
)

// ZstdExt is appended to the path of compressed siblings.
const ZstdExt = ".zst"

// Writer writes artifacts under a root directory. It is safe for concurrent use
// as long as every path has a single writer.
type Writer struct {
	root     string
	compress bool

	files atomic.Int64
	bytes atomic.Int64

	encOnce sync.Once
	enc     *zstd.Encoder
	encErr  error
}

// NewWriter returns a Writer rooted at root. With compress set, WriteJSON
// callers that ask for it also get a .zst sibling.
func NewWriter(root string, compress bool) *Writer {
	return &Writer{root: root, compress: compress}
}

// Root returns the directory artifacts are written under.
func (w *Writer) Root() string {
	return w.root
}

// Compress reports whether zstd siblings are written.
func (w *Writer) Compress() bool {
	return w.compress
}

// Path joins rel onto the root.
func (w *Writer) Path(rel ...string) string {
	return filepath.Join(append([]string{w.root}, rel...)...)
}

// Stats reports how many files and bytes were written.
func (w *Writer) Stats() (files, bytes int64) {
	return w.files.Load(), w.bytes.Load()
}

// Encode renders v as compact JSON without HTML escaping and without the
// trailing newline json.Encoder adds.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// EncodeIndent is Encode with two-space indentation, used for metadata files.
func EncodeIndent(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// WriteJSON encodes v compactly and writes it to rel.
func (w *Writer) WriteJSON(rel string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("encode %s: %w", rel, err))
	}
	return w.WriteFile(rel, data)
}

// WriteMeta encodes v with indentation and writes it to rel.
func (w *Writer) WriteMeta(rel string, v any) error {
	data, err := EncodeIndent(v)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("encode %s: %w", rel, err))
	}
	return w.WriteFile(rel, data)
}

// WriteJSONCompressible is WriteJSON plus a zstd sibling when compression is on.
func (w *Writer) WriteJSONCompressible(rel string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("encode %s: %w", rel, err))
	}
	if err := w.WriteFile(rel, data); err != nil {
		return err
	}
	if !w.compress {
		return nil
	}
	compressed, err := w.compressBytes(data)
	if err != nil {
		return err
	}
	return w.WriteFile(rel+ZstdExt, compressed)
}

func (w *Writer) compressBytes(data []byte) ([]byte, error) {
	w.encOnce.Do(func() {
		// A single-threaded encoder produces the same frame for the same input.
		w.enc, w.encErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1))
	})
	if w.encErr != nil {
		return nil, errors.NewInternal(fmt.Errorf("zstd encoder: %w", w.encErr))
	}
	return w.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// WriteFile atomically replaces rel with data: the bytes go to a temp file in
// the same directory, are synced, then renamed into place.
func (w *Writer) WriteFile(rel string, data []byte) error {
	if err := CheckRel(rel); err != nil {
		return err
	}
	path := w.Path(rel)
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	w.files.Add(1)
	w.bytes.Add(int64(len(data)))
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create %s: %w", filepath.Base(path), err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close %s: %w", filepath.Base(path), err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInternal(fmt.Errorf("artifact path %s is a symlink", path))
	}
	if err := os.Rename(tempPath, path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize %s: %w", filepath.Base(path), err))
	}

	success = true
	return nil
}

// ReadJSON decodes the artifact at path into v.
func ReadJSON(path string, v any) error {
	f, err := openFileNoFollowRead(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return errors.NewDataIntegrity(fmt.Sprintf("malformed JSON in %s: %v", filepath.Base(path), err))
	}
	return nil
}

// Decompress decodes a zstd artifact.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

// Prune removes files in relDir matching pattern that keep rejects. It
// returns the number of files removed. A missing directory is not an error.
func (w *Writer) Prune(relDir, pattern string, keep func(name string) bool) (int, error) {
	if err := CheckRel(relDir); err != nil {
		return 0, err
	}
	matches, err := filepath.Glob(filepath.Join(w.Path(relDir), pattern))
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	removed := 0
	for _, m := range matches {
		if keep(filepath.Base(m)) {
			continue
		}
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return removed, errors.NewInternal(fmt.Errorf("remove stale %s: %w", filepath.Base(m), err))
		}
		removed++
	}
	return removed, nil
}
