package visionlink

import (
	"context"
	"net/http"
	"sync"
)

// DisabledLink is a no-op Link for touch-only installs with no vision unit
// (--disable-vision). The server and admin routes run unchanged; subscriber
// channels are tracked so they close deterministically on Unsubscribe or
// Close and readers unblock during shutdown.
type DisabledLink struct {
	mu          sync.Mutex
	subscribers map[string]chan string
	closing     bool
}

func NewDisabledLink() *DisabledLink {
	return &DisabledLink{
		subscribers: make(map[string]chan string),
	}
}

func (d *DisabledLink) Subscribe() (string, chan string) {
	id := randomID()
	ch := make(chan string)

	d.mu.Lock()
	if d.closing {
		// Already closing: hand back a closed channel so callers don't block.
		close(ch)
		d.mu.Unlock()
		return id, ch
	}
	d.subscribers[id] = ch
	d.mu.Unlock()
	return id, ch
}

func (d *DisabledLink) Unsubscribe(id string) {
	d.mu.Lock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
}

func (d *DisabledLink) SendCommand(string) error { return nil }

func (d *DisabledLink) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledLink) Close() error {
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	d.mu.Unlock()
	return nil
}

func (d *DisabledLink) Initialize() error { return nil }

func (d *DisabledLink) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/vision-disabled", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("vision disabled"))
	})
}
