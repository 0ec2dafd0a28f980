package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/weedbot/console/internal/models"
	"github.com/weedbot/console/internal/observability"
)

// CaptureWatcher watches the image directory for files written by the
// camera process and broadcasts a change event for each completed
// capture. Creation events are debounced briefly because the camera
// writes captures in several chunks.
type CaptureWatcher struct {
	store *Store
	hub   *Hub
	log   *observability.Logger
}

// NewCaptureWatcher creates a watcher over the store's directory.
func NewCaptureWatcher(store *Store, hub *Hub) *CaptureWatcher {
	return &CaptureWatcher{
		store: store,
		hub:   hub,
		log:   observability.GetLogger(),
	}
}

// Run watches until ctx is cancelled.
func (w *CaptureWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.store.Dir()); err != nil {
		return err
	}
	w.log.Infof("watching capture directory: %s", w.store.Dir())

	const settle = 500 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(settle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(event.Name)
			if !models.IsImageFilename(name) {
				continue
			}
			pending[name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warnf("capture watcher: %v", err)

		case now := <-ticker.C:
			var settled []string
			for name, last := range pending {
				if now.Sub(last) >= settle {
					settled = append(settled, name)
					delete(pending, name)
				}
			}
			if len(settled) > 0 {
				w.log.Infof("new captures detected: %d", len(settled))
				w.hub.BroadcastChange("capture", settled)
			}
		}
	}
}
