package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/othala/internal/layer"
	"github.com/starford/othala/internal/store"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishEffectDelivery(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	id := store.NewNoteID()
	b.PublishEffect(layer.InvalidateNote(id))

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: invalidate.note") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, id.String()) {
			t.Errorf("missing note id in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishEffectKinds(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishEffect(layer.InvalidateQuery())
	b.PublishEffect(layer.InvalidateSubjects())

	want := []string{"invalidate.query", "invalidate.subjects"}
	for _, typ := range want {
		select {
		case msg := <-ch:
			if !strings.Contains(string(msg), "event: "+typ) {
				t.Errorf("got %q, want %s", msg, typ)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", typ)
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishEffect(layer.InvalidateQuery())
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: invalidate.query") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandlerKeepalive(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	b.keepalive = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// No events published; the idle connection must still see comments.
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if !strings.Contains(w.Body.String(), ": keepalive\n\n") {
		t.Errorf("idle handler output missing keepalive comment: %q", w.Body.String())
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill the client buffer (capacity 64) and then some; Publish must
	// never block the broker loop.
	for i := 0; i < 70; i++ {
		b.PublishEffect(layer.InvalidateQuery())
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Safe no-ops after close.
	b.Publish(Event{Type: "invalidate.query", Data: map[string]string{}})
	b.PublishEffect(layer.InvalidateSubjects())
}
