package httpapi

import (
	"context"
	"encoding/json"
	"sync"

	"pkt.systems/panecast/internal/logx"
	"pkt.systems/panecast/schema"
)

// Hub routes outbound events to connected clients. Control events are
// buffered per client; frames are volatile and a congested client loses
// them instead of building a backlog.
type Hub struct {
	mu      sync.Mutex
	clients map[schema.ClientID]*clientHub
}

type clientHub struct {
	events        chan schema.Envelope
	frames        chan schema.Envelope
	droppedFrames uint64
	droppedEvents uint64
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[schema.ClientID]*clientHub)}
}

// Subscribe registers the outbound channels for a client. Calling the
// returned function closes both channels and removes the entry.
func (h *Hub) Subscribe(id schema.ClientID) (events, frames <-chan schema.Envelope, unsub func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := &clientHub{
		events: make(chan schema.Envelope, 64),
		frames: make(chan schema.Envelope, 1),
	}
	if prev, ok := h.clients[id]; ok {
		close(prev.events)
		close(prev.frames)
	}
	h.clients[id] = ch
	log := logx.WithClient(context.Background(), id)
	log.Debug("hub subscribe", "clients", len(h.clients))
	return ch.events, ch.frames, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.clients[id] != ch {
			return
		}
		delete(h.clients, id)
		close(ch.events)
		close(ch.frames)
		log.Debug("hub unsubscribe",
			"clients", len(h.clients),
			"droppedFrames", ch.droppedFrames,
			"droppedEvents", ch.droppedEvents)
	}
}

// EmitFrame implements core.EventSink. A frame that cannot be queued
// immediately is dropped; the next tick supersedes it anyway.
func (h *Hub) EmitFrame(id schema.ClientID, frame schema.FramePayload) {
	env, err := envelope(schema.EventFrame, frame)
	if err != nil {
		return
	}
	// The sends stay under the lock so an unsubscribe cannot close the
	// channel mid-send. Nothing here blocks; on congestion the queued
	// frame is discarded so the newest one always wins.
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.clients[id]
	if !ok {
		return
	}
	select {
	case ch.frames <- env:
		return
	default:
	}
	select {
	case <-ch.frames:
		ch.droppedFrames++
	default:
	}
	select {
	case ch.frames <- env:
	default:
		ch.droppedFrames++
	}
}

// Emit implements core.EventSink for control events.
func (h *Hub) Emit(id schema.ClientID, event schema.EventName, payload any) {
	env, err := envelope(event, payload)
	if err != nil {
		logx.WithClient(context.Background(), id).Warn("hub event marshal failed", "event", event, "err", err)
		return
	}
	h.mu.Lock()
	ch, ok := h.clients[id]
	var dropped uint64
	if ok {
		select {
		case ch.events <- env:
		default:
			ch.droppedEvents++
			dropped = ch.droppedEvents
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		logx.WithClient(context.Background(), id).Warn("hub event dropped", "event", event, "dropped", dropped)
	}
}

// Broadcast sends one control event to every connected client.
func (h *Hub) Broadcast(event schema.EventName, payload any) {
	h.mu.Lock()
	ids := make([]schema.ClientID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.Emit(id, event, payload)
	}
}

func envelope(event schema.EventName, payload any) (schema.Envelope, error) {
	env := schema.Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return schema.Envelope{}, err
		}
		env.Payload = data
	}
	return env, nil
}
