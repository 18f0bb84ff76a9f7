package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "find.count", Doc: "alpha", Data: map[string]any{"term": "x", "count": 3}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: find.count") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"count":3`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestDocumentFilter(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	alpha := b.Subscribe("alpha")
	defer b.Unsubscribe(alpha)

	b.Publish(Event{Type: "find.count", Doc: "beta", Data: 1})
	b.Publish(Event{Type: "find.count", Doc: "alpha", Data: 2})
	b.Publish(Event{Type: "workspace.changed", Data: 3})

	time.Sleep(50 * time.Millisecond)
	var got []string
loop:
	for {
		select {
		case msg := <-alpha:
			got = append(got, string(msg))
		default:
			break loop
		}
	}
	if len(got) != 1 || !strings.Contains(got[0], "data: 2") {
		t.Errorf("filtered delivery = %q", got)
	}
}

func TestPublishDocumentEvent_ListingThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent("created", "a")
	b.PublishDocumentEvent("updated", "b")

	time.Sleep(50 * time.Millisecond)
	listing, docs := 0, 0
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "workspace.changed") {
				listing++
			} else {
				docs++
			}
		default:
			break loop
		}
	}

	if docs != 2 {
		t.Errorf("document events = %d, want 2", docs)
	}
	if listing != 1 {
		t.Errorf("listing events = %d, want 1 (throttled)", listing)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?doc=x", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishDocumentEvent("updated", "x")
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if body := w.Body.String(); !strings.Contains(body, "event: document.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
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

	b.Publish(Event{Type: "document.updated", Data: map[string]string{"id": "x"}})
	b.PublishDocumentEvent("updated", "x")
}
