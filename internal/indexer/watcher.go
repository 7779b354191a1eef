package indexer

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/mediatypes"
	"photoalbum/internal/metrics"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce is how long the watcher waits for the filesystem to
// settle before reporting a change.
const DefaultWatchDebounce = 2 * time.Second

// Watcher follows the media directory with fsnotify. A media file that is
// written, removed or renamed has its cached thumbnail invalidated at once;
// onChange runs after a quiet period so a rescan can pick up the result.
type Watcher struct {
	mediaDir    string
	invalidator Invalidator
	onChange    func()
	debounce    time.Duration

	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	watched int
	closed  bool
}

// NewWatcher creates a watcher. invalidator and onChange may be nil.
func NewWatcher(mediaDir string, invalidator Invalidator, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return nil, err
	}
	return &Watcher{
		mediaDir:    mediaDir,
		invalidator: invalidator,
		onChange:    onChange,
		debounce:    DefaultWatchDebounce,
		fsw:         fsw,
		done:        make(chan struct{}),
	}, nil
}

// SetDebounce changes the quiet period.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounce = d
	w.mu.Unlock()
}

// Start watches every non-hidden directory under the media directory and
// begins processing events.
func (w *Watcher) Start() {
	count := w.addTree(w.mediaDir)
	logging.Debug("watcher started, watching %d directories", count)

	w.wg.Add(1)
	go w.loop()
}

// Close stops the watcher and any pending onChange timer.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// Directories returns the number of directories being watched.
func (w *Watcher) Directories() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watched
}

// addTree adds root and every directory below it.
func (w *Watcher) addTree(root string) int {
	added := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("failed to watch %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		added++
		return nil
	})
	if err != nil {
		logging.Error("failed to walk %s for watcher: %v", root, err)
		metrics.WatcherErrors.Inc()
	}

	w.mu.Lock()
	w.watched += added
	metrics.WatcherDirectories.Set(float64(w.watched))
	w.mu.Unlock()
	return added
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if hiddenPath(w.mediaDir, event.Name) {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(opLabel(event.Op)).Inc()

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
			w.changed()
			return
		}
	}

	if mediatypes.Classify(event.Name) == mediatypes.FileTypeOther {
		return
	}

	// Removed watches are dropped by fsnotify itself.
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if w.invalidator != nil {
			w.invalidator.RemoveFile(event.Name)
			metrics.IndexerInvalidationsTotal.Inc()
		}
	}
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}
	w.changed()
}

// changed (re)arms the debounce timer.
func (w *Watcher) changed() {
	if w.onChange == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Reset(w.debounce)
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.onChange)
}

func hiddenPath(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

func opLabel(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "chmod"
	}
}
