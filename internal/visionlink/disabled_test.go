package visionlink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDisabledLink_UnsubscribeClosesChannel(t *testing.T) {
	d := NewDisabledLink()
	id, ch := d.Subscribe()

	done := make(chan struct{})
	go func() {
		_, ok := <-ch
		if ok {
			t.Errorf("expected channel to be closed on unsubscribe")
		}
		close(done)
	}()

	// Give goroutine a moment to start and block on read
	time.Sleep(10 * time.Millisecond)

	d.Unsubscribe(id)

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for subscriber to be unblocked after Unsubscribe")
	}
}

func TestDisabledLink_CloseClosesAllChannels(t *testing.T) {
	d := NewDisabledLink()
	id1, ch1 := d.Subscribe()
	_, ch2 := d.Subscribe()

	done1 := make(chan struct{})
	done2 := make(chan struct{})

	go func() {
		_, ok := <-ch1
		if ok {
			t.Errorf("expected ch1 to be closed on Close")
		}
		close(done1)
	}()

	go func() {
		_, ok := <-ch2
		if ok {
			t.Errorf("expected ch2 to be closed on Close")
		}
		close(done2)
	}()

	// Give goroutines a moment to start and block on read
	time.Sleep(10 * time.Millisecond)

	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	select {
	case <-done1:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for ch1 to be closed after Close")
	}

	select {
	case <-done2:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for ch2 to be closed after Close")
	}

	// Unsubscribing an already-removed id is a no-op
	d.Unsubscribe(id1)
}

func TestDisabledLink_SubscribeAfterClose(t *testing.T) {
	d := NewDisabledLink()
	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}

	_, ch := d.Subscribe()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel from Subscribe after Close")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("channel from Subscribe after Close should not block")
	}
}

func TestDisabledLink_NoOps(t *testing.T) {
	d := NewDisabledLink()

	if err := d.SendCommand("FJ"); err != nil {
		t.Errorf("SendCommand on disabled link = %v, want nil", err)
	}
	if err := d.Initialize(); err != nil {
		t.Errorf("Initialize on disabled link = %v, want nil", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Monitor(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor = %v, want context.Canceled", err)
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Monitor did not return after context cancel")
	}
}

func TestDisabledLink_AdminRoute(t *testing.T) {
	d := NewDisabledLink()
	mux := http.NewServeMux()
	d.AttachAdminRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/debug/vision-disabled", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "vision disabled" {
		t.Errorf("body = %q", w.Body.String())
	}
}
