package icao

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the identifier map whenever the backing file is rewritten,
// so device mappings can change without restarting the bridge. Blocks until
// stopCh is closed; run it in its own goroutine.
func (m *Map) Watch(stopCh <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(m.path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", m.path, err)
	}

	absPath, _ := filepath.Abs(m.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&fsnotify.Write == fsnotify.Write {
				absEventPath, _ := filepath.Abs(event.Name)
				if absEventPath != absPath {
					continue
				}
				log.Printf("Identifier map modified: %s", event.Name)
				if err := m.Reload(); err != nil {
					log.Printf("Error reloading identifier map: %v", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("File watcher error: %v", err)

		case <-stopCh:
			return nil
		}
	}
}
