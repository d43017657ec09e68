package specification

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"autodev/internal/logging"
)

// WatchSource wraps a FileSource and invalidates its cached scan whenever a
// watched path changes on disk, so a long-running orchestrator cycle picks
// up new TODO/FIXME markers without restarting. Rapid successive writes to
// the same file (editors that save in multiple steps) are collapsed by
// debounce.
type WatchSource struct {
	mu       sync.Mutex
	inner    *FileSource
	watcher  *fsnotify.Watcher
	debounce time.Duration
	dirty    bool
	started  bool
	lastHit  map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatchSource watches root (and its subdirectories, excluding the same
// .git/.autodev/node_modules set FileSource already skips) for changes,
// rescanning for markers matching patterns whenever something changes.
func NewWatchSource(root string, patterns []string, debounce time.Duration) (*WatchSource, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	ws := &WatchSource{
		inner:    NewFileSource(root, patterns),
		watcher:  watcher,
		debounce: debounce,
		lastHit:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if err := ws.addTree(root); err != nil {
		watcher.Close()
		return nil, err
	}
	return ws, nil
}

func (ws *WatchSource) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if base == ".git" || base == ".autodev" || base == "node_modules" {
			return filepath.SkipDir
		}
		return ws.watcher.Add(path)
	})
}

// Start begins the background event loop. Non-blocking. A WatchSource that
// is never started still works for one-shot Next() calls; it just never
// picks up filesystem changes.
func (ws *WatchSource) Start(ctx context.Context) {
	ws.mu.Lock()
	if ws.started {
		ws.mu.Unlock()
		return
	}
	ws.started = true
	ws.mu.Unlock()
	go ws.run(ctx)
}

// Stop shuts the watcher down and waits for its goroutine to exit, if Start
// was ever called.
func (ws *WatchSource) Stop() {
	ws.mu.Lock()
	started := ws.started
	ws.mu.Unlock()

	if started {
		close(ws.stopCh)
		<-ws.doneCh
	}
	ws.watcher.Close()
}

func (ws *WatchSource) run(ctx context.Context) {
	defer close(ws.doneCh)
	log := logging.Get(logging.CategorySpecification)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ws.stopCh:
			return
		case event, ok := <-ws.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			ws.handleEvent(event)
		case err, ok := <-ws.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("watch error", "error", err)
		}
	}
}

func (ws *WatchSource) handleEvent(event fsnotify.Event) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	now := time.Now()
	if last, ok := ws.lastHit[event.Name]; ok && now.Sub(last) < ws.debounce {
		return
	}
	ws.lastHit[event.Name] = now
	ws.dirty = true
}

// Next returns the next unconsumed marker, rescanning from disk first if a
// filesystem event has invalidated the prior scan.
func (ws *WatchSource) Next(ctx context.Context) (*Specification, error) {
	ws.mu.Lock()
	dirty := ws.dirty
	ws.dirty = false
	ws.mu.Unlock()

	if dirty {
		ws.inner = NewFileSource(ws.inner.Root, ws.inner.Patterns)
	}
	return ws.inner.Next(ctx)
}
