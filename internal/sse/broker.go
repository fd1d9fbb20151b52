// Package sse streams medication, dose and reminder changes to browsers as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Event names pushed to clients.
const (
	EventMedicationsChanged = "medications.changed"
	EventDoseLogged         = "dose.logged"
	EventProfileChanged     = "profile.changed"
	EventAdherenceUpdated   = "adherence.updated"
)

const (
	clientBuffer      = 64
	heartbeatInterval = 25 * time.Second
	// Browsers wait this long before reconnecting a dropped stream.
	retryMillis = 3000
)

// Event is one message on the stream.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// refreshesAdherence reports whether kind invalidates adherence statistics.
func refreshesAdherence(kind string) bool {
	return kind == EventMedicationsChanged || kind == EventDoseLogged
}

type subscription struct {
	ch    chan []byte
	kinds map[string]bool // empty means every kind
}

func (s subscription) wants(kind string) bool {
	return len(s.kinds) == 0 || s.kinds[kind]
}

// Broker fans events out to subscribers. Every event carries a sequence id.
// Medication and dose events are followed by an adherence.updated hint, at
// most once per refresh throttle.
//
// A single goroutine owns the subscriber set, the sequence counter and the
// throttle; public methods talk to it over channels.
type Broker struct {
	refreshMin time.Duration
	heartbeat  time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	eventCh       chan Event
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. A non-positive refreshThrottle means two seconds.
func NewBroker(refreshThrottle time.Duration) *Broker {
	if refreshThrottle <= 0 {
		refreshThrottle = 2 * time.Second
	}
	b := &Broker{
		refreshMin:    refreshThrottle,
		heartbeat:     heartbeatInterval,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		eventCh:       make(chan Event, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	subs := make(map[chan []byte]subscription)
	var seq uint64
	var lastRefresh time.Time

	send := func(ev Event) {
		payload, err := json.Marshal(ev.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, ev.Type, payload))
		for ch, sub := range subs {
			if !sub.wants(ev.Type) {
				continue
			}
			select {
			case ch <- frame:
			default:
				// slow client, drop
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range subs {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			subs[sub.ch] = sub

		case ch := <-b.unsubscribeCh:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case ev := <-b.eventCh:
			send(ev)
			if !refreshesAdherence(ev.Type) {
				continue
			}
			if now := time.Now(); now.Sub(lastRefresh) >= b.refreshMin {
				lastRefresh = now
				send(Event{Type: EventAdherenceUpdated, Data: map[string]string{}})
			}

		case resp := <-b.countCh:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. Safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client for the given event kinds, or for all kinds
// when none are given. The returned channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe(kinds ...string) chan []byte {
	sub := subscription{ch: make(chan []byte, clientBuffer)}
	if len(kinds) > 0 {
		sub.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	if b.closed.Load() {
		close(sub.ch)
		return sub.ch
	}
	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(sub.ch)
	}
	return sub.ch
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

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.countCh <- resp:
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

// Publish queues ev for every interested subscriber.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.eventCh <- ev:
	case <-b.stopped:
	}
}

// PublishChange is Publish for a domain change of the given kind.
func (b *Broker) PublishChange(kind string, data any) {
	b.Publish(Event{Type: kind, Data: data})
}

// ServeHTTP streams events until the client goes away. The optional
// "types" query parameter is a comma separated list of event kinds.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var kinds []string
	for _, k := range strings.Split(r.URL.Query().Get("types"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	flusher.Flush()

	ch := b.Subscribe(kinds...)
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
