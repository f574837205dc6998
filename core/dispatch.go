package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"pkt.systems/panecast/schema"
)

// handlerFunc applies one inbound event to a session. The engine mutex is
// held for the duration of the call.
type handlerFunc func(e *Engine, ctx context.Context, sess *ClientSession, payload json.RawMessage) error

var handlers = map[schema.EventName]handlerFunc{
	schema.EventSetMode:               (*Engine).handleSetMode,
	schema.EventClick:                 (*Engine).handleClick,
	schema.EventScroll:                (*Engine).handleScroll,
	schema.EventKeyTap:                (*Engine).handleKeyTap,
	schema.EventType:                  (*Engine).handleType,
	schema.EventCheckFocus:            (*Engine).handleCheckFocus,
	schema.EventSetSource:             (*Engine).handleSetSource,
	schema.EventCalibrationReset:      (*Engine).handleCalibrationReset,
	schema.EventCalibrationResetFixed: (*Engine).handleCalibrationResetFixed,
	schema.EventTerminalInput:         (*Engine).handleTerminalInput,
	schema.EventTerminalResize:        (*Engine).handleTerminalResize,
	schema.EventAgentSend:             (*Engine).handleAgentSend,
}

// HandleEvent dispatches one inbound client event. Malformed payloads and
// unknown events return an error for the transport to log; they never
// disturb other clients or the tick loop.
func (e *Engine) HandleEvent(ctx context.Context, id schema.ClientID, env schema.Envelope) error {
	handler, ok := handlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: %q", schema.ErrUnknownEvent, env.Event)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.clients[id]
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrClientNotFound, id)
	}
	sess.lastActivity = e.now()
	return handler(e, ctx, sess, env.Payload)
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, fmt.Errorf("%w: empty payload", schema.ErrInvalidEvent)
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %v", schema.ErrInvalidEvent, err)
	}
	return v, nil
}

func (e *Engine) handleSetMode(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.SetModePayload](payload)
	if err != nil {
		return err
	}
	switch p.Mode {
	case schema.ViewChat, schema.ViewTerminal, schema.ViewApps, schema.ViewConfig, schema.ViewIdle:
	default:
		return fmt.Errorf("%w: mode %q", schema.ErrInvalidEvent, p.Mode)
	}
	sess.setMode(p.Mode, e.now())
	e.log.Debug("mode switched", "client", sess.ID, "mode", p.Mode)
	return nil
}

func (e *Engine) handleClick(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.ClickPayload](payload)
	if err != nil {
		return err
	}
	if p.X == nil || p.Y == nil {
		return fmt.Errorf("%w: click needs x and y", schema.ErrInvalidEvent)
	}
	px, py, ok := sess.frameToPixel(*p.X, *p.Y)
	if !ok {
		return schema.ErrNoCaptureArea
	}
	sess.rememberClick(px, py, e.now())
	if e.deps.Injector == nil {
		return nil
	}
	lx, ly := e.toLogical(px, py)
	return e.deps.Injector.Click(ctx, lx, ly)
}

func (e *Engine) handleScroll(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.ScrollPayload](payload)
	if err != nil {
		return err
	}
	ticks := sess.accumulateScroll(p.DeltaY)
	if ticks == 0 || e.deps.Injector == nil {
		return nil
	}
	var px, py int
	switch {
	case p.X != nil && p.Y != nil:
		var ok bool
		px, py, ok = sess.frameToPixel(*p.X, *p.Y)
		if !ok {
			return schema.ErrNoCaptureArea
		}
	case sess.lastAreaSet:
		px = sess.lastCaptureArea.X + sess.lastCaptureArea.Width/2
		py = sess.lastCaptureArea.Y + sess.lastCaptureArea.Height/2
	default:
		return schema.ErrNoCaptureArea
	}
	lx, ly := e.toLogical(px, py)
	return e.deps.Injector.Scroll(ctx, ticks, lx, ly, p.IsThreeFinger)
}

func (e *Engine) handleKeyTap(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.KeyTapPayload](payload)
	if err != nil {
		return err
	}
	if p.Key == "" {
		return fmt.Errorf("%w: empty key", schema.ErrInvalidEvent)
	}
	if e.deps.Injector == nil {
		return nil
	}
	return e.deps.Injector.KeyTap(ctx, p.Key)
}

func (e *Engine) handleType(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.TypePayload](payload)
	if err != nil {
		return err
	}
	if p.Text == "" {
		return nil
	}
	if e.deps.Injector == nil {
		return nil
	}
	return e.deps.Injector.TypeText(ctx, p.Text)
}

// handleCheckFocus answers with the focus location. A click the client made
// within the last couple of seconds inside the resolved region takes
// priority over an OS focus query, since the click is the better signal of
// where the user believes focus is.
func (e *Engine) handleCheckFocus(ctx context.Context, sess *ClientSession, _ json.RawMessage) error {
	now := e.now()
	if cx, cy, ok := sess.recentClick(now); ok && sess.lastAreaSet {
		area := sess.lastCaptureArea
		inside := cx >= area.X && cx < area.X+area.Width &&
			cy >= area.Y && cy < area.Y+area.Height
		if inside {
			rel := 0.0
			if area.Height > 0 {
				rel = float64(cy-area.Y) / float64(area.Height)
			}
			e.deps.Sink.Emit(sess.ID, schema.EventFocusLocation, schema.FocusLocationPayload{
				IsInChat:  sess.mode == schema.ViewChat,
				RelativeY: rel,
			})
			return nil
		}
	}
	var name string
	if e.deps.Probe != nil {
		var err error
		name, err = e.deps.Probe.FocusName(ctx)
		if err != nil {
			e.log.Debug("focus query failed", "client", sess.ID, "error", err)
			name = ""
		}
	}
	e.deps.Sink.Emit(sess.ID, schema.EventFocusLocation, schema.FocusLocationPayload{
		IsInChat:  strings.Contains(strings.ToLower(name), "chat"),
		FocusName: name,
	})
	return nil
}

func (e *Engine) handleSetSource(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.SetSourcePayload](payload)
	if err != nil {
		return err
	}
	switch p.Type {
	case schema.SourceAuto, schema.SourceGlobal, schema.SourceWindow:
	default:
		return fmt.Errorf("%w: source type %q", schema.ErrInvalidEvent, p.Type)
	}
	sess.source = schema.StreamSource{Type: p.Type, Handle: p.Handle, Title: p.Target}
	// The base region changed, so every mode's pane is stale.
	sess.detection = make(map[schema.ViewMode]*detectionState)
	e.log.Debug("source switched", "client", sess.ID, "type", p.Type, "handle", p.Handle, "title", p.Target)
	return nil
}

func (e *Engine) handleCalibrationReset(ctx context.Context, sess *ClientSession, _ json.RawMessage) error {
	sess.resetDetection()
	e.deps.Sink.Emit(sess.ID, schema.EventCalibrationStatus, schema.CalibrationStatusPayload{Reset: true})
	e.log.Debug("calibration reset", "client", sess.ID, "mode", sess.mode)
	return nil
}

func (e *Engine) handleCalibrationResetFixed(ctx context.Context, sess *ClientSession, _ json.RawMessage) error {
	sess.resetFixedZones()
	e.deps.Sink.Emit(sess.ID, schema.EventCalibrationStatus, schema.CalibrationStatusPayload{Reset: true})
	e.log.Debug("fixed zones reset", "client", sess.ID)
	return nil
}

func (e *Engine) handleTerminalInput(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.TerminalInputPayload](payload)
	if err != nil {
		return err
	}
	if e.deps.Terminals == nil {
		return schema.ErrTerminalNotFound
	}
	return e.deps.Terminals.Input(p.ID, []byte(p.Data))
}

func (e *Engine) handleTerminalResize(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	p, err := decode[schema.TerminalResizePayload](payload)
	if err != nil {
		return err
	}
	if e.deps.Terminals == nil {
		return schema.ErrTerminalNotFound
	}
	return e.deps.Terminals.Resize(p.ID, p.Cols, p.Rows)
}

func (e *Engine) handleAgentSend(ctx context.Context, sess *ClientSession, payload json.RawMessage) error {
	if e.deps.Agent == nil {
		return schema.ErrAgentUnavailable
	}
	return e.deps.Agent.Send(payload)
}

// toLogical converts snapshot pixels to OS logical input coordinates using
// the DPI scale observed on the most recent tick.
func (e *Engine) toLogical(px, py int) (int, int) {
	lx, ly := float64(px), float64(py)
	if e.dpi.X > 0 {
		lx /= e.dpi.X
	}
	if e.dpi.Y > 0 {
		ly /= e.dpi.Y
	}
	return int(lx), int(ly)
}
