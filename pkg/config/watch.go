package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch calls onChange whenever the file at path is created, written,
// renamed or removed, coalescing bursts into one call. It blocks until ctx
// ends. onChange runs on Watch's goroutine.
//
// The parent directory is watched so editors that replace the file
// atomically stay observed. Callers typically open a fresh tool session on
// change; an existing session is never mutated.
func Watch(ctx context.Context, path string, onChange func()) error {
	path = filepath.Clean(ExpandPath(path))

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	const relevant = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == path && ev.Op&relevant != 0 {
				debounce.Reset(watchDebounce)
			}
		case <-debounce.C:
			onChange()
		case _, ok := <-w.Errors:
			if !ok {
				return nil
			}
		}
	}
}
