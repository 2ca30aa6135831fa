package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Root whenever one of its file sources changes.
type Watcher struct {
	root      *Root
	watcher   *fsnotify.Watcher
	mu        sync.RWMutex
	watched   map[string]struct{}
	onError   func(error)
	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewWatcher creates a watcher for the file sources of root.
func NewWatcher(root *Root) (*Watcher, error) {
	if root == nil {
		return nil, ErrRootMissing
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		root:    root,
		watcher: fsWatcher,
		watched: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
	}, nil
}

// OnError registers a handler for reload and watch errors.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start begins watching every file path of the root. The watcher stops when
// ctx is canceled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, p := range w.root.FilePaths() {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		// Watch the directory so editors that replace files are still seen.
		if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
			return fmt.Errorf("failed to watch %s: %w", absPath, err)
		}
		w.mu.Lock()
		w.watched[absPath] = struct{}{}
		w.mu.Unlock()
	}
	go w.handleEvents(ctx)
	return nil
}

func (w *Watcher) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.mu.RLock()
			_, tracked := w.watched[filepath.Clean(event.Name)]
			w.mu.RUnlock()
			if !tracked {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				if err := w.root.Reload(); err != nil {
					w.reportError(err)
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) reportError(err error) {
	w.mu.RLock()
	fn := w.onError
	w.mu.RUnlock()
	if fn != nil && err != nil {
		fn(err)
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	var closeErr error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		if err := w.watcher.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			closeErr = fmt.Errorf("failed to close watcher: %w", err)
		}
	})
	return closeErr
}
