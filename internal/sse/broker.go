// Package sse streams note changes to browsers as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/quill/internal/engine"
)

// Event types sent to clients.
const (
	TypeNoteCreated  = "note.created"
	TypeNoteUpdated  = "note.updated"
	TypeNoteDeleted  = "note.deleted"
	TypeNoteRenamed  = "note.renamed"
	TypeNotesReload  = "notes.reloaded"
	TypeNotesStale   = "notes.stale"
	TypeGraphUpdated = "graph.updated"
)

// Event is one SSE frame.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker fans engine events out to connected clients.
//
// A single goroutine owns the client set and the graph throttle timestamp.
// Public methods talk to it over channels.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan engine.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that sends at most one graph.updated per
// graphThrottle.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan engine.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGraph time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.changeCh:
			out, graphChanged := translate(ev)
			broadcast(out)
			if !graphChanged {
				continue
			}
			now := time.Now()
			if now.Sub(lastGraph) >= b.graphMin {
				lastGraph = now
				broadcast(Event{Type: TypeGraphUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// translate maps an engine event to its SSE frame and reports whether the
// link graph may have changed.
func translate(ev engine.Event) (Event, bool) {
	switch ev.Kind {
	case engine.EventCreated:
		return Event{Type: TypeNoteCreated, Data: map[string]string{"title": ev.Title}}, true
	case engine.EventUpdated:
		return Event{Type: TypeNoteUpdated, Data: map[string]string{"title": ev.Title}}, true
	case engine.EventDeleted:
		return Event{Type: TypeNoteDeleted, Data: map[string]string{"title": ev.Title}}, true
	case engine.EventRenamed:
		return Event{Type: TypeNoteRenamed, Data: map[string]string{"title": ev.Title, "old_title": ev.OldTitle}}, true
	case engine.EventReloaded:
		return Event{Type: TypeNotesReload, Data: map[string]string{}}, true
	default:
		return Event{Type: TypeNotesStale, Data: map[string]string{"file": ev.Title}}, false
	}
}

// Close stops the loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an arbitrary event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Observe forwards an engine event. It has the signature engine.WithObserver
// expects.
func (b *Broker) Observe(ev engine.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- ev:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
