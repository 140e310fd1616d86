// Reloads the destination file when something outside the process edits
// it, so hand-edits take effect without a restart.

package pushtarget

import (
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the handle whenever the destination file changes on
// disk. Events are debounced so editors that write in several steps
// trigger a single reload. Close the returned channel to stop watching.
func (h *Handle) Watch() (chan<- struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the parent directory: editors often replace the file, which
	// would invalidate a watch on the file itself.
	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		watcher.Close()
		return nil, err
	}

	// Writes before this point (such as Load creating the file) produced
	// no event for this watcher, so their flag must not linger.
	h.mu.Lock()
	h.selfWrite = false
	h.mu.Unlock()

	stop := make(chan struct{})
	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(h.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					h.mu.Lock()
					defer h.mu.Unlock()
					if h.selfWrite {
						h.selfWrite = false
						return
					}
					if err := h.reloadLocked(); err != nil {
						log.Printf("PushTarget: reload after external edit failed: %v", err)
						return
					}
					log.Printf("PushTarget: destination file reloaded after external edit")
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("PushTarget: watcher error: %v", err)
			case <-stop:
				return
			}
		}
	}()
	return stop, nil
}
