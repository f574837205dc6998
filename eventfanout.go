package panecast

import (
	"pkt.systems/panecast/core"
	"pkt.systems/panecast/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) EmitFrame(id schema.ClientID, frame schema.FramePayload) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.EmitFrame(id, frame)
	}
}

func (f eventFanout) Emit(id schema.ClientID, event schema.EventName, payload any) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.Emit(id, event, payload)
	}
}
