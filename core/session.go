package core

import (
	"time"

	"pkt.systems/panecast/schema"
)

// clickMemory remembers the most recent synthetic click so that a focus
// probe immediately after a click can answer from the click location
// instead of the window system.
type clickMemory struct {
	x, y int
	at   time.Time
	set  bool
}

const clickMemoryTTL = 2 * time.Second

// ClientSession holds the per-client streaming state: current view mode,
// stream source, detection state per mode, remembered fixed zones, and the
// bookkeeping needed to translate client coordinates back onto the screen.
type ClientSession struct {
	ID schema.ClientID

	mode   schema.ViewMode
	source schema.StreamSource

	detection  map[schema.ViewMode]*detectionState
	fixedZones map[schema.ViewMode]schema.Rect

	// lastCaptureArea is the screen-space rectangle of the most recently
	// pushed frame, before downscaling. lastFrameScale is the factor the
	// frame was scaled by before encoding.
	lastCaptureArea schema.Rect
	lastAreaSet     bool
	lastFrameScale  float64

	frameSeq      uint64
	scrollResidue float64
	lastClick     clickMemory

	lastActivity time.Time
	active       bool
}

func newClientSession(id schema.ClientID, now time.Time) *ClientSession {
	return &ClientSession{
		ID:             id,
		mode:           schema.ViewIdle,
		source:         schema.StreamSource{Type: schema.SourceAuto},
		detection:      make(map[schema.ViewMode]*detectionState),
		fixedZones:     make(map[schema.ViewMode]schema.Rect),
		lastFrameScale: 1,
		lastActivity:   now,
		active:         true,
	}
}

// detectionFor returns the detection state for a mode, creating a fresh
// calibrating state on first use. In fixed detection mode a remembered zone
// for the mode restores directly into the locked phase.
func (s *ClientSession) detectionFor(mode schema.ViewMode, dm schema.DetectionMode, now time.Time) *detectionState {
	if st, ok := s.detection[mode]; ok {
		return st
	}
	st := newDetectionState(now)
	if dm == schema.DetectFixed {
		if zone, ok := s.fixedZones[mode]; ok {
			st.lockTo(zone)
		}
	}
	s.detection[mode] = st
	return st
}

// resetDetection discards the detection state for the current mode so the
// next frame starts a new calibration. In fixed detection mode a remembered
// zone re-locks immediately; discarding zones is resetFixedZones' job.
func (s *ClientSession) resetDetection() {
	delete(s.detection, s.mode)
}

// resetFixedZones forgets every remembered fixed zone and restarts
// calibration for all modes.
func (s *ClientSession) resetFixedZones() {
	s.fixedZones = make(map[schema.ViewMode]schema.Rect)
	s.detection = make(map[schema.ViewMode]*detectionState)
}

// setMode switches the client's view mode. Detection state for other modes
// is kept so switching back does not recalibrate.
func (s *ClientSession) setMode(mode schema.ViewMode, now time.Time) {
	s.mode = mode
	s.lastActivity = now
}

// accumulateScroll folds a fractional scroll delta into the residue and
// returns the whole ticks to inject now.
func (s *ClientSession) accumulateScroll(delta float64) int {
	s.scrollResidue += delta
	ticks := int(s.scrollResidue)
	s.scrollResidue -= float64(ticks)
	return ticks
}

// rememberClick records a screen-space click for focus answering.
func (s *ClientSession) rememberClick(x, y int, now time.Time) {
	s.lastClick = clickMemory{x: x, y: y, at: now, set: true}
}

// recentClick returns the last click location if it is still fresh.
func (s *ClientSession) recentClick(now time.Time) (x, y int, ok bool) {
	if !s.lastClick.set || now.Sub(s.lastClick.at) > clickMemoryTTL {
		return 0, 0, false
	}
	return s.lastClick.x, s.lastClick.y, true
}

// frameToPixel maps a client frame coordinate to an absolute snapshot pixel
// using the last pushed frame's capture area and scale factor. The caller
// applies the DPI scale to reach logical input coordinates.
func (s *ClientSession) frameToPixel(cx, cy int) (int, int, bool) {
	if !s.lastAreaSet {
		return 0, 0, false
	}
	scale := s.lastFrameScale
	if scale <= 0 {
		scale = 1
	}
	px := s.lastCaptureArea.X + int(float64(cx)/scale)
	py := s.lastCaptureArea.Y + int(float64(cy)/scale)
	return px, py, true
}
