package core

import (
	"context"
	"image"

	"pkt.systems/panecast/internal/settings"
	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

// Capturer produces full-screen snapshots and the logical screen size used
// to derive the DPI scale factor.
type Capturer interface {
	Capture(ctx context.Context) (*image.RGBA, error)
	LogicalSize() (width, height int)
}

// WindowProbe answers window geometry and focus queries in logical
// coordinates.
type WindowProbe interface {
	WindowByTitle(ctx context.Context, title string) (schema.Rect, bool, error)
	WindowByHandle(ctx context.Context, handle string) (schema.Rect, bool, error)
	ActiveWindow(ctx context.Context) (schema.Rect, bool, error)
	FocusName(ctx context.Context) (string, error)
}

// InputInjector drives synthetic input at absolute logical coordinates.
type InputInjector interface {
	Click(ctx context.Context, x, y int) error
	KeyTap(ctx context.Context, key string) error
	TypeText(ctx context.Context, text string) error
	Scroll(ctx context.Context, ticks, x, y int, threeFinger bool) error
}

// PaneLocator proposes a pane inside a buffer for a view mode.
type PaneLocator interface {
	Locate(mode schema.ViewMode, img *image.RGBA) (schema.PaneBounds, bool)
}

// SettingsSource resolves effective per-client settings. Writes go through
// the store directly; the engine only reads and releases overrides.
type SettingsSource interface {
	Effective(id schema.ClientID) settings.Values
	Global() settings.Values
	Release(id schema.ClientID)
}

// TerminalRelay is the terminal session manager surface the engine forwards
// terminal events to.
type TerminalRelay interface {
	Input(id schema.TerminalID, data []byte) error
	Resize(id schema.TerminalID, cols, rows int) error
}

// AgentRelay forwards payloads to the connected editor agent.
type AgentRelay interface {
	Send(payload []byte) error
}

// EngineDeps captures dependencies for the stream engine.
type EngineDeps struct {
	Capturer  Capturer
	Probe     WindowProbe
	Injector  InputInjector
	Locator   PaneLocator
	Settings  SettingsSource
	Sink      EventSink
	Terminals TerminalRelay
	Agent     AgentRelay
	Logger    pslog.Logger
}
