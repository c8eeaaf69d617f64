package sse

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/quill/internal/engine"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "custom", Data: map[string]string{"k": "v"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: custom") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"k":"v"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestObserve_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Observe(engine.Event{Kind: engine.EventCreated, Title: "A"})
	b.Observe(engine.Event{Kind: engine.EventUpdated, Title: "B"})

	graphCount, noteCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, TypeGraphUpdated) {
			graphCount++
		} else {
			noteCount++
		}
	}
	if noteCount != 2 {
		t.Errorf("note events = %d, want 2", noteCount)
	}
	if graphCount != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graphCount)
	}
}

func TestObserve_Payloads(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Observe(engine.Event{Kind: engine.EventRenamed, Title: "New", OldTitle: "Old"})
	b.Observe(engine.Event{Kind: engine.EventStale, Title: "x.md"})

	msgs := drain(ch)
	if len(msgs) != 3 {
		t.Fatalf("got %d frames, want rename + graph + stale: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "event: note.renamed") || !strings.Contains(msgs[0], `"old_title":"Old"`) {
		t.Errorf("rename frame = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "event: graph.updated") {
		t.Errorf("graph frame = %q", msgs[1])
	}
	if !strings.Contains(msgs[2], "event: notes.stale") || !strings.Contains(msgs[2], `"file":"x.md"`) {
		t.Errorf("stale frame = %q", msgs[2])
	}
}

func TestObserve_FromEngine(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	e, err := engine.Open(context.Background(), t.TempDir(),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithObserver(b.Observe))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.Create(context.Background(), "Hello", "world"); err != nil {
		t.Fatal(err)
	}
	msgs := drain(ch)
	if len(msgs) == 0 || !strings.Contains(msgs[0], `"title":"Hello"`) {
		t.Errorf("frames = %q", msgs)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Observe(engine.Event{Kind: engine.EventUpdated, Title: "X"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Buffer holds 64; the rest must be dropped without blocking.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

	b.Publish(Event{Type: "custom", Data: map[string]string{}})
	b.Observe(engine.Event{Kind: engine.EventUpdated, Title: "X"})
}
