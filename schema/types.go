package schema

import "fmt"

// ClientID identifies a connected client.
type ClientID string

// TerminalID identifies a terminal session.
type TerminalID string

// ViewMode selects what a client is looking at.
type ViewMode string

const (
	// ViewChat streams the chat pane of the tracked window.
	ViewChat ViewMode = "chat"
	// ViewTerminal streams the terminal pane of the tracked window.
	ViewTerminal ViewMode = "terminal"
	// ViewApps streams a window or the full desktop without pane detection.
	ViewApps ViewMode = "apps"
	// ViewConfig shows client settings; no frames are streamed.
	ViewConfig ViewMode = "config"
	// ViewIdle is the default mode before the client picks anything.
	ViewIdle ViewMode = "idle"
)

// Streaming reports whether the mode receives frames.
func (m ViewMode) Streaming() bool {
	switch m {
	case ViewChat, ViewTerminal, ViewApps:
		return true
	}
	return false
}

// Detectable reports whether the mode runs pane detection.
func (m ViewMode) Detectable() bool {
	return m == ViewChat || m == ViewTerminal
}

// SourceType selects how the capture region is resolved.
type SourceType string

const (
	// SourceAuto tracks the globally detected window, else the default rect.
	SourceAuto SourceType = "auto"
	// SourceGlobal streams the whole desktop.
	SourceGlobal SourceType = "global"
	// SourceWindow tracks a specific window by handle or title.
	SourceWindow SourceType = "window"
)

// StreamSource is a client's configured capture source.
type StreamSource struct {
	Type   SourceType `json:"type"`
	Handle string     `json:"handle,omitempty"`
	Title  string     `json:"title,omitempty"`
}

// DetectionMode controls whether pane detection keeps running or locks.
type DetectionMode string

const (
	// DetectDynamic re-detects on the regular cadence forever.
	DetectDynamic DetectionMode = "dynamic"
	// DetectFixed locks onto the first stable pane per mode.
	DetectFixed DetectionMode = "fixed"
)

// DetectionPhase is the per-(client, mode) detection state.
type DetectionPhase string

const (
	// PhaseCalibrating seeks a stable pane during the calibration window.
	PhaseCalibrating DetectionPhase = "calibrating"
	// PhaseTracking has a stable pane and re-detects on cadence.
	PhaseTracking DetectionPhase = "tracking"
	// PhaseLocked holds a fixed zone and skips detection entirely.
	PhaseLocked DetectionPhase = "locked"
)

// Rect is an axis-aligned rectangle in pixels.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Clip intersects r with bounds, returning the overlap.
func (r Rect) Clip(bounds Rect) Rect {
	x0 := max(r.X, bounds.X)
	y0 := max(r.Y, bounds.Y)
	x1 := min(r.X+r.Width, bounds.X+bounds.Width)
	y1 := min(r.Y+r.Height, bounds.Y+bounds.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Scale multiplies all rect fields by the given factors.
func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{
		X:      int(float64(r.X) * sx),
		Y:      int(float64(r.Y) * sy),
		Width:  int(float64(r.Width) * sx),
		Height: int(float64(r.Height) * sy),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// PaneBounds is a detected pane, relative to the region it was found in.
type PaneBounds = Rect

// DPIScale translates between snapshot pixels and logical screen points.
type DPIScale struct {
	X float64
	Y float64
}

// Identity reports whether the scale is a no-op.
func (s DPIScale) Identity() bool {
	return s.X == 1 && s.Y == 1
}
