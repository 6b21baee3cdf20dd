package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the config whenever config.yaml in dataDir changes and
// passes the result to fn. The directory is watched so that editors which
// replace the file on save are seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, dataDir string, fn func(*Config, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dataDir); err != nil {
		return fmt.Errorf("watch %s: %w", dataDir, err)
	}
	target := filepath.Join(dataDir, "config.yaml")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			fn(LoadFrom(dataDir))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fn(nil, fmt.Errorf("watch config: %w", err))
		}
	}
}
