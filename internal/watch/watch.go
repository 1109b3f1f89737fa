// Package watch optionally auto-triggers an import session when new
// files appear under a source path — useful for a card-reader mount
// point or a network share that fills up over the course of a shoot day.
// Grounded on vjache-cie's cmd/cie/watch.go: an fsnotify.Watcher over the
// watched tree, events coalesced behind one debounce timer so a burst of
// writes (a whole card copying in) triggers one run, not one per file.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nightfoxfilms/ingestcore/internal/logger"
)

// TriggerFunc is invoked once per debounce window once new filesystem
// activity has settled under any watched root.
type TriggerFunc func(ctx context.Context)

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration // default 5s
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = 5 * time.Second
	}
	return o
}

// Watcher watches one or more source roots and calls Trigger, debounced,
// whenever new activity appears under any of them.
type Watcher struct {
	opts    Options
	trigger TriggerFunc
	fsw     *fsnotify.Watcher
}

// New builds a Watcher over roots, recursively adding every subdirectory
// (skipping dot-prefixed names, the same hidden-directory convention
// Scan uses).
func New(roots []string, opts Options, trigger TriggerFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{opts: opts.withDefaults(), trigger: trigger, fsw: fsw}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			logger.Warn("watch: failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// Run blocks, coalescing fsnotify events behind one debounce timer and
// calling Trigger each time the timer fires, until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.opts.Debounce)
			timerCh = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("watch: fsnotify error", "error", err)

		case <-timerCh:
			timerCh = nil
			w.trigger(ctx)
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
