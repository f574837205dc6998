package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"pkt.systems/panecast/schema"
)

func TestHandleEventUnknownEvent(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Connect("c1")
	err := f.engine.HandleEvent(context.Background(), "c1", schema.Envelope{Event: "bogus:event"})
	if !errors.Is(err, schema.ErrUnknownEvent) {
		t.Fatalf("err = %v, want ErrUnknownEvent", err)
	}
}

func TestHandleEventUnknownClient(t *testing.T) {
	f := newFixture(t, nil)
	err := f.engine.HandleEvent(context.Background(), "ghost", schema.Envelope{Event: schema.EventCheckFocus})
	if !errors.Is(err, schema.ErrClientNotFound) {
		t.Fatalf("err = %v, want ErrClientNotFound", err)
	}
}

func TestHandleEventMalformedPayload(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Connect("c1")
	cases := []struct {
		name    string
		event   schema.EventName
		payload string
	}{
		{"click missing coordinates", schema.EventClick, `{"x":5}`},
		{"click not json", schema.EventClick, `nope`},
		{"mode unknown", schema.EventSetMode, `{"mode":"tv"}`},
		{"mode empty payload", schema.EventSetMode, ``},
		{"keytap empty key", schema.EventKeyTap, `{"key":""}`},
		{"source unknown type", schema.EventSetSource, `{"type":"webcam"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := schema.Envelope{Event: tc.event, Payload: json.RawMessage(tc.payload)}
			err := f.engine.HandleEvent(context.Background(), "c1", env)
			if !errors.Is(err, schema.ErrInvalidEvent) {
				t.Fatalf("err = %v, want ErrInvalidEvent", err)
			}
		})
	}
	if len(f.injector.clicks)+len(f.injector.keys) != 0 {
		t.Fatal("malformed events must not reach the injector")
	}
}

func TestClickRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.engine.Connect("c1")
	sess.lastCaptureArea = schema.Rect{X: 100, Y: 50, Width: 400, Height: 300}
	sess.lastAreaSet = true
	sess.lastFrameScale = 1
	f.engine.dpi = schema.DPIScale{X: 2, Y: 2}

	x, y := 30, 20
	mustHandle(t, f.engine, "c1", schema.EventClick, schema.ClickPayload{X: &x, Y: &y})
	if len(f.injector.clicks) != 1 {
		t.Fatalf("clicks = %d, want 1", len(f.injector.clicks))
	}
	got := f.injector.clicks[0]
	if got.x != 65 || got.y != 35 {
		t.Fatalf("click landed at (%d,%d), want (65,35)", got.x, got.y)
	}
}

func TestClickWithoutFrameFails(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Connect("c1")
	x, y := 10, 10
	b, _ := json.Marshal(schema.ClickPayload{X: &x, Y: &y})
	err := f.engine.HandleEvent(context.Background(), "c1", schema.Envelope{Event: schema.EventClick, Payload: b})
	if !errors.Is(err, schema.ErrNoCaptureArea) {
		t.Fatalf("err = %v, want ErrNoCaptureArea", err)
	}
}

func TestScrollAccumulatesFractionalDeltas(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.engine.Connect("c1")
	sess.lastCaptureArea = schema.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	sess.lastAreaSet = true

	for range 2 {
		mustHandle(t, f.engine, "c1", schema.EventScroll, schema.ScrollPayload{DeltaY: 0.4})
	}
	if len(f.injector.scrolls) != 0 {
		t.Fatalf("scrolls = %d before a whole tick accumulated, want 0", len(f.injector.scrolls))
	}
	mustHandle(t, f.engine, "c1", schema.EventScroll, schema.ScrollPayload{DeltaY: 0.4})
	if len(f.injector.scrolls) != 1 {
		t.Fatalf("scrolls = %d, want 1", len(f.injector.scrolls))
	}
	if got := f.injector.scrolls[0].ticks; got != 1 {
		t.Fatalf("ticks = %d, want 1", got)
	}
	// 1.2 accumulated, 1 emitted, 0.2 residue carried forward.
	mustHandle(t, f.engine, "c1", schema.EventScroll, schema.ScrollPayload{DeltaY: 0.8})
	if len(f.injector.scrolls) != 2 {
		t.Fatalf("scrolls = %d, want 2 after residue topped up", len(f.injector.scrolls))
	}
}

func TestScrollUsesExplicitCoordinates(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.engine.Connect("c1")
	sess.lastCaptureArea = schema.Rect{X: 100, Y: 100, Width: 200, Height: 200}
	sess.lastAreaSet = true

	x, y := 10, 20
	mustHandle(t, f.engine, "c1", schema.EventScroll, schema.ScrollPayload{
		DeltaY: 3, IsThreeFinger: true, X: &x, Y: &y,
	})
	if len(f.injector.scrolls) != 1 {
		t.Fatalf("scrolls = %d, want 1", len(f.injector.scrolls))
	}
	got := f.injector.scrolls[0]
	if got.x != 110 || got.y != 120 || got.ticks != 3 || !got.threeFinger {
		t.Fatalf("scroll = %+v, want ticks=3 at (110,120) threeFinger", got)
	}
}

func TestCheckFocusPrefersRecentClick(t *testing.T) {
	f := newFixture(t, nil)
	sess := f.engine.Connect("c1")
	mustHandle(t, f.engine, "c1", schema.EventSetMode, schema.SetModePayload{Mode: schema.ViewChat})
	sess.lastCaptureArea = schema.Rect{X: 100, Y: 0, Width: 400, Height: 400}
	sess.lastAreaSet = true
	f.probe.focus = "SomeOtherPanel"

	x, y := 50, 100
	mustHandle(t, f.engine, "c1", schema.EventClick, schema.ClickPayload{X: &x, Y: &y})
	mustHandle(t, f.engine, "c1", schema.EventCheckFocus, nil)

	if f.probe.focusCalls != 0 {
		t.Fatalf("focus probe called %d times, want 0 when a recent click exists", f.probe.focusCalls)
	}
	if len(f.sink.events) != 1 || f.sink.events[0].name != schema.EventFocusLocation {
		t.Fatalf("events = %+v, want one focusLocation", f.sink.events)
	}
	loc, ok := f.sink.events[0].payload.(schema.FocusLocationPayload)
	if !ok {
		t.Fatalf("payload type %T", f.sink.events[0].payload)
	}
	if !loc.IsInChat {
		t.Fatal("click in the chat region must answer isInChat")
	}
	if loc.RelativeY != 0.25 {
		t.Fatalf("relativeY = %v, want 0.25", loc.RelativeY)
	}
}

func TestCheckFocusFallsBackToProbe(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Connect("c1")
	f.probe.focus = "Chat Input"

	mustHandle(t, f.engine, "c1", schema.EventCheckFocus, nil)
	if f.probe.focusCalls != 1 {
		t.Fatalf("focus probe calls = %d, want 1", f.probe.focusCalls)
	}
	loc := f.sink.events[0].payload.(schema.FocusLocationPayload)
	if !loc.IsInChat || loc.FocusName != "Chat Input" {
		t.Fatalf("focusLocation = %+v, want isInChat with the probed name", loc)
	}
}

func TestCalibrationResetEmitsStatus(t *testing.T) {
	f := newFixture(t, []locResult{
		{bounds: schema.PaneBounds{X: 500, Width: 500, Height: 800}, ok: true},
	})
	sess := connectChatClient(t, f, "c1")
	for range 3 {
		f.engine.tick(context.Background())
	}
	if sess.detection[schema.ViewChat] == nil {
		t.Fatal("expected detection state before reset")
	}
	mustHandle(t, f.engine, "c1", schema.EventCalibrationReset, nil)
	if sess.detection[schema.ViewChat] != nil {
		t.Fatal("reset must discard the current mode's detection state")
	}
	last := f.sink.events[len(f.sink.events)-1]
	if last.name != schema.EventCalibrationStatus {
		t.Fatalf("last event = %s, want calibration:status", last.name)
	}
	if st := last.payload.(schema.CalibrationStatusPayload); !st.Reset {
		t.Fatal("status payload must report reset")
	}
}

func TestCalibrationResetFixedDiscardsAllZones(t *testing.T) {
	f := newFixture(t, nil)
	sess := connectChatClient(t, f, "c1")
	sess.fixedZones[schema.ViewChat] = schema.Rect{X: 1, Width: 2, Height: 3}
	sess.fixedZones[schema.ViewTerminal] = schema.Rect{X: 4, Width: 5, Height: 6}

	mustHandle(t, f.engine, "c1", schema.EventCalibrationResetFixed, nil)
	if len(sess.fixedZones) != 0 {
		t.Fatalf("fixedZones = %v, want all discarded", sess.fixedZones)
	}
}

func TestSetSourceResetsDetection(t *testing.T) {
	f := newFixture(t, []locResult{
		{bounds: schema.PaneBounds{X: 500, Width: 500, Height: 800}, ok: true},
	})
	sess := connectChatClient(t, f, "c1")
	f.engine.tick(context.Background())
	if sess.detection[schema.ViewChat] == nil {
		t.Fatal("expected detection state before source switch")
	}
	mustHandle(t, f.engine, "c1", schema.EventSetSource, schema.SetSourcePayload{Type: schema.SourceGlobal})
	if len(sess.detection) != 0 {
		t.Fatal("source switch must discard detection state")
	}
	if sess.source.Type != schema.SourceGlobal {
		t.Fatalf("source = %+v, want global", sess.source)
	}
}

func TestTerminalEventsRouted(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Connect("c1")
	mustHandle(t, f.engine, "c1", schema.EventTerminalInput, schema.TerminalInputPayload{ID: "t1", Data: "ls\n"})
	mustHandle(t, f.engine, "c1", schema.EventTerminalResize, schema.TerminalResizePayload{ID: "t1", Cols: 80, Rows: 24})
	if len(f.terms.inputs) != 1 || f.terms.inputs[0] != "t1" {
		t.Fatalf("terminal inputs = %v, want [t1]", f.terms.inputs)
	}
	if len(f.terms.resizes) != 1 {
		t.Fatalf("terminal resizes = %v, want one", f.terms.resizes)
	}
}

func TestAgentSendRouted(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Connect("c1")
	payload := json.RawMessage(`{"prompt":"hello"}`)
	mustHandle(t, f.engine, "c1", schema.EventAgentSend, payload)
	if len(f.agent.sent) != 1 || string(f.agent.sent[0]) != string(payload) {
		t.Fatalf("agent sent = %v, want the raw payload relayed", f.agent.sent)
	}
}

func TestTypeEventReachesInjector(t *testing.T) {
	f := newFixture(t, nil)
	f.engine.Connect("c1")
	mustHandle(t, f.engine, "c1", schema.EventType, schema.TypePayload{Text: "hello"})
	mustHandle(t, f.engine, "c1", schema.EventKeyTap, schema.KeyTapPayload{Key: "enter"})
	if len(f.injector.texts) != 1 || f.injector.texts[0] != "hello" {
		t.Fatalf("texts = %v, want [hello]", f.injector.texts)
	}
	if len(f.injector.keys) != 1 || f.injector.keys[0] != "enter" {
		t.Fatalf("keys = %v, want [enter]", f.injector.keys)
	}
}
