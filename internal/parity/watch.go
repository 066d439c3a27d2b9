package parity

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dryxio/auto-re-agent/internal/logging"
)

// Watch re-runs onChange whenever a file under sourceRoot changes, after a
// debounce window so bulk edits (git checkout, format-on-save) trigger a
// single run. Blocks until ctx is cancelled.
func Watch(ctx context.Context, sourceRoot string, debounce time.Duration, onChange func() error) error {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// fsnotify does not recurse, so register every subdirectory.
	addDirs := func(root string) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return watcher.Add(path)
			}
			return nil
		})
	}
	if err := addDirs(sourceRoot); err != nil {
		return err
	}

	logging.Parity("[watch] watching %s (debounce %s)", sourceRoot, debounce)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New directories need their own watch.
				_ = addDirs(event.Name)
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Parity("[watch] watcher error: %v", err)

		case <-timerC:
			timer = nil
			timerC = nil
			if err := onChange(); err != nil {
				logging.Parity("[watch] run failed: %v", err)
			}
		}
	}
}
