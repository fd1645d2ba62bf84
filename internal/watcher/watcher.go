package watcher

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// GEDCOMExt is the extension of files picked up from the inbox
const GEDCOMExt = ".ged"

// Inbox watches a directory and reports GEDCOM files once they stop changing
type Inbox struct {
	dir      string
	onFile   func(path string)
	debounce time.Duration
}

// NewInbox creates a watcher for dir. onFile runs on its own goroutine for
// each created or rewritten *.ged file.
func NewInbox(dir string, onFile func(path string)) *Inbox {
	return &Inbox{
		dir:      dir,
		onFile:   onFile,
		debounce: 500 * time.Millisecond,
	}
}

// WithDebounce sets the debounce duration
func (w *Inbox) WithDebounce(d time.Duration) *Inbox {
	w.debounce = d
	return w
}

// isGEDCOM reports whether name has the GEDCOM extension, ignoring case
func isGEDCOM(name string) bool {
	return strings.EqualFold(filepath.Ext(name), GEDCOMExt)
}

// Watch blocks until the context is cancelled or the watcher fails
func (w *Inbox) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	log.Printf("Watching %s for GEDCOM files", dir)

	var mu sync.Mutex
	timers := make(map[string]*time.Timer)
	stopAll := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, timer := range timers {
			timer.Stop()
		}
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				stopAll()
				return nil
			}

			if !isGEDCOM(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			path := event.Name
			mu.Lock()
			if timer, exists := timers[path]; exists {
				timer.Stop()
			}
			timers[path] = time.AfterFunc(w.debounce, func() {
				mu.Lock()
				delete(timers, path)
				mu.Unlock()

				if ctx.Err() != nil {
					return
				}
				log.Printf("GEDCOM file ready: %s", path)
				w.onFile(path)
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				stopAll()
				return nil
			}
			log.Printf("Watcher error: %v", err)

		case <-ctx.Done():
			stopAll()
			return ctx.Err()
		}
	}
}
