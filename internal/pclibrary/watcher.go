package pclibrary

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ScanFunc is invoked (debounced) when a watched folder changes.
type ScanFunc func(path string)

// Watcher monitors a PC music folder for changes and triggers a
// debounced rescan, supplementing the differ with incremental re-scans
// instead of requiring a manual "ipodsync scan" between syncs (grounded
// in the teacher's internal/watcher.go debounce idiom).
type Watcher struct {
	root     string
	onScan   ScanFunc
	debounce time.Duration

	fsw *fsnotify.Watcher

	mu    sync.Mutex
	timer *time.Timer
	stop  chan struct{}
}

// NewWatcher creates a recursive watcher over root. Call Start to begin
// watching and Close to stop.
func NewWatcher(root string, debounce time.Duration, onScan ScanFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, onScan: onScan, debounce: debounce, fsw: fsw, stop: make(chan struct{})}
	return w, nil
}

// Start adds every directory under root to the watch set and begins the
// event loop in a background goroutine.
func (w *Watcher) Start() error {
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !audioExtensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.scheduleScan()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("pclibrary: watcher error: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) scheduleScan() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.onScan(w.root)
	})
}

// Close stops the event loop and releases the fsnotify handle.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fsw.Close()
}
