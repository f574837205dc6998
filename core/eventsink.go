package core

import "pkt.systems/panecast/schema"

// EventSink receives outbound client events from the engine. Frame events
// are volatile: a congested sink may drop them instead of blocking the
// capture loop.
type EventSink interface {
	EmitFrame(id schema.ClientID, frame schema.FramePayload)
	Emit(id schema.ClientID, event schema.EventName, payload any)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) EmitFrame(schema.ClientID, schema.FramePayload) {}
func (NopSink) Emit(schema.ClientID, schema.EventName, any)    {}
