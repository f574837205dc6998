package schema

import "errors"

var (
	// ErrInvalidEvent indicates a malformed event payload.
	ErrInvalidEvent = errors.New("invalid event payload")
	// ErrUnknownEvent indicates an event name with no handler.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrClientNotFound indicates an unknown client identifier.
	ErrClientNotFound = errors.New("client not found")
	// ErrNoCaptureArea indicates the client has not received a frame yet.
	ErrNoCaptureArea = errors.New("no capture area resolved yet")
	// ErrCaptureFailed indicates the screen snapshot could not be taken.
	ErrCaptureFailed = errors.New("capture failed")
	// ErrWorkerUnavailable indicates the helper process is not running.
	ErrWorkerUnavailable = errors.New("worker unavailable")
	// ErrWorkerTimeout indicates a helper call timed out.
	ErrWorkerTimeout = errors.New("worker call timed out")
	// ErrTerminalNotFound indicates an unknown terminal identifier.
	ErrTerminalNotFound = errors.New("terminal not found")
	// ErrAgentUnavailable indicates no editor agent is connected.
	ErrAgentUnavailable = errors.New("agent not connected")
	// ErrSettingUnknown indicates an unrecognized settings key.
	ErrSettingUnknown = errors.New("unknown setting")
	// ErrSettingRange indicates a settings value outside its allowed range.
	ErrSettingRange = errors.New("setting out of range")
)
