package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/signalsfoundry/starcat/internal/logging"
)

// watchDebounce coalesces the burst of events a single save produces.
const watchDebounce = 200 * time.Millisecond

// watchFile runs fn once, then again after every change to path, until ctx
// is cancelled. Run failures are logged and do not stop the watch.
func watchFile(ctx context.Context, path string, log logging.Logger, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file rather than
	// writing to it.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch: %s: %w", filepath.Dir(abs), err)
	}

	runLogged := func() {
		if err := fn(); err != nil {
			log.Error(ctx, "run failed", logging.String("input", path), logging.Err(err))
		}
	}
	runLogged()
	log.Info(ctx, "watching for changes", logging.String("input", path))

	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "watch error", logging.Err(err))
		case <-timer.C:
			log.Info(ctx, "input changed, re-running", logging.String("input", path))
			runLogged()
		}
	}
}
