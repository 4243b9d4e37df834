package mapping

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce window for editors that write a file in several events.
const reloadDelay = 250 * time.Millisecond

// Watch reloads the table whenever the mapping file changes on disk. It
// watches the parent directory so atomic rename-into-place saves are seen.
// Blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, table *Table) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var timer *time.Timer
	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
				reload = timer.C
			} else {
				timer.Reset(reloadDelay)
			}
		case <-reload:
			timer = nil
			reload = nil
			if err := table.ReloadFile(path); err != nil {
				log.Printf("[WARN] mapping reload failed, keeping previous document: %v", err)
				continue
			}
			log.Printf("[INFO] mapping reloaded from %s", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WARN] mapping watcher: %v", err)
		}
	}
}
