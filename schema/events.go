package schema

import "encoding/json"

// EventName identifies an event on the client channel.
type EventName string

// Inbound events consumed by the core.
const (
	// EventSetMode switches the client's view mode.
	EventSetMode EventName = "view:setMode"
	// EventClick injects a click at a region-relative coordinate.
	EventClick EventName = "input:click"
	// EventScroll injects scroll ticks, accumulating fractional deltas.
	EventScroll EventName = "input:scroll"
	// EventKeyTap injects a single key press.
	EventKeyTap EventName = "input:keyTap"
	// EventType injects a text string.
	EventType EventName = "input:type"
	// EventCheckFocus asks where input focus currently is.
	EventCheckFocus EventName = "input:checkFocus"
	// EventSetSource sets the client's capture source.
	EventSetSource EventName = "apps:setSource"
	// EventCalibrationReset restarts calibration for the current mode.
	EventCalibrationReset EventName = "calibration:reset"
	// EventCalibrationResetFixed additionally discards all fixed zones.
	EventCalibrationResetFixed EventName = "calibration:resetFixed"
	// EventTerminalInput relays bytes into a terminal session.
	EventTerminalInput EventName = "terminal:input"
	// EventTerminalResize resizes a terminal session.
	EventTerminalResize EventName = "terminal:resize"
	// EventAgentSend relays a payload to the editor agent.
	EventAgentSend EventName = "agent:send"
)

// Outbound events produced by the core.
const (
	// EventFrame carries one encoded frame for the client.
	EventFrame EventName = "frame"
	// EventFocusLocation answers input:checkFocus.
	EventFocusLocation EventName = "input:focusLocation"
	// EventCalibrationStatus reports calibration resets.
	EventCalibrationStatus EventName = "calibration:status"
	// EventTerminalData relays terminal output bytes to the client.
	EventTerminalData EventName = "terminal:data"
	// EventAgentRecv relays a payload from the editor agent.
	EventAgentRecv EventName = "agent:recv"
)

// Envelope is the wire shape of every event in both directions.
type Envelope struct {
	Event   EventName       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SetModePayload is the payload of view:setMode.
type SetModePayload struct {
	Mode ViewMode `json:"mode"`
}

// ClickPayload is the payload of input:click. Coordinates are relative to
// the client's last delivered frame.
type ClickPayload struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// ScrollPayload is the payload of input:scroll.
type ScrollPayload struct {
	DeltaY        float64 `json:"deltaY"`
	IsThreeFinger bool    `json:"isThreeFinger,omitempty"`
	X             *int    `json:"x,omitempty"`
	Y             *int    `json:"y,omitempty"`
}

// KeyTapPayload is the payload of input:keyTap.
type KeyTapPayload struct {
	Key string `json:"key"`
}

// TypePayload is the payload of input:type.
type TypePayload struct {
	Text string `json:"text"`
}

// SetSourcePayload is the payload of apps:setSource.
type SetSourcePayload struct {
	Type   SourceType `json:"type"`
	Target string     `json:"target,omitempty"`
	Handle string     `json:"handle,omitempty"`
}

// FramePayload is the payload of frame events.
type FramePayload struct {
	Seq   uint64   `json:"seq"`
	Mode  ViewMode `json:"mode"`
	Image string   `json:"image"` // base64 JPEG
}

// FocusLocationPayload is the payload of input:focusLocation.
type FocusLocationPayload struct {
	IsInChat  bool    `json:"isInChat"`
	RelativeY float64 `json:"relativeY"`
	FocusName string  `json:"focusName,omitempty"`
}

// CalibrationStatusPayload is the payload of calibration:status.
type CalibrationStatusPayload struct {
	Reset bool `json:"reset"`
}

// TerminalInputPayload is the payload of terminal:input.
type TerminalInputPayload struct {
	ID   TerminalID `json:"id"`
	Data string     `json:"data"`
}

// TerminalResizePayload is the payload of terminal:resize.
type TerminalResizePayload struct {
	ID   TerminalID `json:"id"`
	Cols int        `json:"cols"`
	Rows int        `json:"rows"`
}

// TerminalDataPayload is the payload of terminal:data.
type TerminalDataPayload struct {
	ID   TerminalID `json:"id"`
	Data string     `json:"data"`
}
