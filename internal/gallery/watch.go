package gallery

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/weedbot/console/internal/observability"
)

// GalleryEvent is one message from the server's event stream.
type GalleryEvent struct {
	Type    string `json:"type"`
	Payload struct {
		Action    string   `json:"action"`
		Filenames []string `json:"filenames,omitempty"`
	} `json:"payload"`
}

// EventTypeChanged is broadcast after every mutating gallery operation
// and whenever a new capture lands in the image directory.
const EventTypeChanged = "gallery.changed"

// Watcher subscribes to the gallery event stream and triggers a refresh
// on every change event, so the mirror converges faster than the
// periodic timer alone. Losing the stream is not fatal: the timer keeps
// running and the watcher reconnects with backoff.
type Watcher struct {
	endpoint string
	sync     *Synchronizer
	log      *observability.Logger
}

// NewWatcher creates a watcher for the gallery API at baseURL.
func NewWatcher(baseURL string, sync *Synchronizer) *Watcher {
	return &Watcher{
		endpoint: wsEndpoint(baseURL),
		sync:     sync,
		log:      observability.GetLogger(),
	}
}

// Run connects and processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		if err := w.consume(ctx); err != nil && ctx.Err() == nil {
			w.log.Warnf("gallery event stream lost: %v (reconnect in %s)", err, backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (w *Watcher) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	w.log.Infof("gallery event stream connected: %s", w.endpoint)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event GalleryEvent
		if err := json.Unmarshal(data, &event); err != nil {
			w.log.Warnf("malformed gallery event: %v", err)
			continue
		}
		if event.Type != EventTypeChanged {
			continue
		}

		if err := w.sync.Refresh(ctx); err != nil {
			w.log.Warnf("refresh after %s event: %v", event.Payload.Action, err)
		}
	}
}

// wsEndpoint rewrites an http(s) base URL into the ws(s) events URL.
func wsEndpoint(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + "/api/gallery/events"
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/gallery/events"
	return u.String()
}
