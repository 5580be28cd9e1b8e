// Package sse implements a Server-Sent Events broker streaming scene frames.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/cardring/internal/scene"
)

// Event represents an SSE event to broadcast on a topic.
type Event struct {
	Topic string      `json:"-"`
	Type  string      `json:"type"`
	Data  interface{} `json:"data"`
}

type frameReq struct {
	topic string
	kind  string
	frame scene.Frame
}

type client struct {
	topic string
	ch    chan []byte
}

// Broker manages SSE client connections and broadcasts events per topic.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-topic frame throttle timestamps). Public methods communicate
// with this loop through channels, so no mutexes are required.
type Broker struct {
	frameMin time.Duration

	subscribeCh   chan client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	frameCh       chan frameReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Intermediate frames of one topic are
// delivered at most once per frameThrottle; zero delivers every frame.
func NewBroker(frameThrottle time.Duration) *Broker {
	b := &Broker{
		frameMin:      max(frameThrottle, 0),
		subscribeCh:   make(chan client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		frameCh:       make(chan frameReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// Encode renders an event in the SSE wire format.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastFrame := make(map[string]time.Time)

	broadcast := func(event Event) {
		raw, err := Encode(event)
		if err != nil {
			return
		}
		for ch, topic := range clients {
			if topic != event.Topic {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
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

		case c := <-b.subscribeCh:
			clients[c.ch] = c.topic

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.frameCh:
			// Resets and the last frame of a transition always go out so
			// clients settle on the exact final pose.
			now := time.Now()
			final := req.kind == scene.EventReset || req.frame.FramesRemaining == 0
			if !final && now.Sub(lastFrame[req.topic]) < b.frameMin {
				continue
			}
			lastFrame[req.topic] = now
			broadcast(Event{Topic: req.topic, Type: req.kind, Data: req.frame})

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client of topic and returns its channel.
func (b *Broker) Subscribe(topic string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- client{topic: topic, ch: ch}:
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

// Publish sends an event to all clients of its topic.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishFrame sends a scene frame to the clients of topic, subject to the
// frame throttle.
func (b *Broker) PublishFrame(topic, kind string, f scene.Frame) {
	if b.closed.Load() {
		return
	}
	select {
	case b.frameCh <- frameReq{topic: topic, kind: kind, frame: f}:
	case <-b.stopped:
	}
}

// Sink returns a scene frame sink publishing to topic.
func (b *Broker) Sink(topic string) scene.FrameSink {
	return func(kind string, f scene.Frame) { b.PublishFrame(topic, kind, f) }
}

// ServeTopic streams the events of topic until the client disconnects.
// opening, if non-nil, runs once the subscription is in place and its
// events open the stream, so nothing published meanwhile is missed. An
// error from opening is returned before anything is written.
func (b *Broker) ServeTopic(w http.ResponseWriter, r *http.Request, topic string, opening func() ([]Event, error)) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil
	}

	ch := b.Subscribe(topic)
	defer b.Unsubscribe(ch)

	var initial []Event
	if opening != nil {
		events, err := opening()
		if err != nil {
			return err
		}
		initial = events
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)

	for _, ev := range initial {
		if raw, err := Encode(ev); err == nil {
			_, _ = w.Write(raw)
		}
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
