package loader

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Watcher invalidates a Cache when the source files change. It watches the
// entries directory and the directory holding the categories file, since
// editors often replace a file rather than write it in place.
type Watcher struct {
	cache    *Cache
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	// OnInvalidate is called after each invalidation with the last changed path.
	OnInvalidate func(path string)
}

// NewWatcher starts watching the source locations of cache.
func NewWatcher(cache *Cache, logger *zap.Logger, debounce time.Duration) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(cache.entriesDir); err != nil {
		fw.Close()
		return nil, err
	}
	if cache.categoriesPath != "" {
		dir := filepath.Dir(cache.categoriesPath)
		if dir != filepath.Clean(cache.entriesDir) {
			if err := fw.Add(dir); err != nil {
				fw.Close()
				return nil, err
			}
		}
	}
	return &Watcher{cache: cache, watcher: fw, logger: logger, debounce: debounce}, nil
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	// fire is nil while no change is pending.
	var fire <-chan time.Time
	pending := ""

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Source file changed", zap.String("path", event.Name), zap.String("op", event.Op.String()))
			if fire == nil {
				fire = time.After(w.debounce)
			}
			pending = event.Name

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Source watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			w.cache.Invalidate()
			w.logger.Info("Source data changed, cache invalidated", zap.String("path", pending))
			if w.OnInvalidate != nil {
				w.OnInvalidate(pending)
			}
			pending = ""
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.cache.categoriesPath != "" && name == filepath.Clean(w.cache.categoriesPath) {
		return true
	}
	return filepath.Dir(name) == filepath.Clean(w.cache.entriesDir) && strings.HasSuffix(name, ".json")
}
