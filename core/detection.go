package core

import (
	"time"

	"pkt.systems/panecast/schema"
)

// detectionState tracks pane detection for one client in one view mode.
// A fresh state starts calibrating: every frame runs detection until the
// calibration window elapses. After calibration the state is tracking and
// re-detects on a fixed frame cadence, or locked when a fixed zone has been
// committed in fixed detection mode.
type detectionState struct {
	phase                schema.DetectionPhase
	calibrationStartedAt time.Time
	frameCount           uint64

	lastX, lastY int
	lastSet      bool

	stable    schema.Rect
	stableSet bool

	stabilityCount int
}

func newDetectionState(now time.Time) *detectionState {
	return &detectionState{
		phase:                schema.PhaseCalibrating,
		calibrationStartedAt: now,
	}
}

// shouldDetect reports whether this frame should run pane detection.
// The frame counter advances on every call.
func (d *detectionState) shouldDetect(cfg schema.EngineConfig, now time.Time) bool {
	d.frameCount++
	switch {
	case d.phase == schema.PhaseLocked:
		return false
	case d.phase == schema.PhaseCalibrating:
		if now.Sub(d.calibrationStartedAt) >= cfg.CalibrationWindow {
			d.phase = schema.PhaseTracking
		} else {
			return true
		}
	}
	if !d.stableSet {
		return true
	}
	return d.frameCount%uint64(cfg.RedetectEveryNFrames) == 0
}

// observe feeds a detection result into the stability tracker. When the
// locator found nothing the previous stable bounds survive untouched. A
// result within the pixel tolerance of the previous one extends the
// consecutive run; an outlier restarts it at one. Once the run reaches the
// quorum the observed bounds are committed as the new stable pane. In fixed
// detection mode a commit also locks the state.
func (d *detectionState) observe(bounds schema.PaneBounds, ok bool, cfg schema.EngineConfig, mode schema.DetectionMode) (committed bool) {
	if !ok {
		return false
	}
	if d.lastSet &&
		absInt(bounds.X-d.lastX) <= cfg.StabilityTolerancePx &&
		absInt(bounds.Y-d.lastY) <= cfg.StabilityTolerancePx {
		d.stabilityCount++
	} else {
		d.stabilityCount = 1
	}
	d.lastX, d.lastY = bounds.X, bounds.Y
	d.lastSet = true

	if d.stabilityCount < cfg.StabilityQuorum {
		return false
	}
	d.stable = bounds
	d.stableSet = true
	if mode == schema.DetectFixed {
		d.phase = schema.PhaseLocked
	} else if d.phase == schema.PhaseCalibrating {
		d.phase = schema.PhaseTracking
	}
	return true
}

// lockTo restores a remembered fixed zone without re-running detection.
func (d *detectionState) lockTo(zone schema.Rect) {
	d.stable = zone
	d.stableSet = true
	d.phase = schema.PhaseLocked
	d.stabilityCount = 0
	d.lastSet = false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
