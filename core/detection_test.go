package core

import (
	"testing"
	"time"

	"pkt.systems/panecast/schema"
)

func testEngineConfig(t *testing.T) schema.EngineConfig {
	t.Helper()
	cfg, err := schema.NormalizeEngineConfig(schema.EngineConfig{})
	if err != nil {
		t.Fatalf("NormalizeEngineConfig: %v", err)
	}
	return cfg
}

func TestStabilityCommitAfterQuorum(t *testing.T) {
	cfg := testEngineConfig(t)
	st := newDetectionState(time.Now())
	obs := []schema.PaneBounds{
		{X: 620, Y: 0, Width: 380, Height: 800},
		{X: 622, Y: 0, Width: 378, Height: 800},
		{X: 619, Y: 0, Width: 381, Height: 800},
	}
	for i, b := range obs {
		committed := st.observe(b, true, cfg, schema.DetectDynamic)
		if want := i == 2; committed != want {
			t.Fatalf("observation %d committed = %v, want %v", i, committed, want)
		}
	}
	if !st.stableSet || st.stable.X != 619 {
		t.Fatalf("stable = %+v (set=%v), want the last observed X=619", st.stable, st.stableSet)
	}
	if st.phase != schema.PhaseTracking {
		t.Fatalf("phase = %s, want %s", st.phase, schema.PhaseTracking)
	}
}

func TestOutlierRestartsStabilityRun(t *testing.T) {
	cfg := testEngineConfig(t)
	st := newDetectionState(time.Now())
	feed := []struct {
		x      int
		commit bool
	}{
		{620, false},
		{622, false},
		{700, false}, // beyond tolerance, run restarts here
		{703, false},
		{698, true},
	}
	for i, f := range feed {
		got := st.observe(schema.PaneBounds{X: f.x, Width: 100, Height: 100}, true, cfg, schema.DetectDynamic)
		if got != f.commit {
			t.Fatalf("observation %d (x=%d) committed = %v, want %v", i, f.x, got, f.commit)
		}
	}
	if st.stable.X != 698 {
		t.Fatalf("stable.X = %d, want 698", st.stable.X)
	}
}

func TestInconclusiveDetectionKeepsStable(t *testing.T) {
	cfg := testEngineConfig(t)
	st := newDetectionState(time.Now())
	pane := schema.PaneBounds{X: 500, Width: 200, Height: 200}
	for range cfg.StabilityQuorum {
		st.observe(pane, true, cfg, schema.DetectDynamic)
	}
	if !st.stableSet {
		t.Fatal("expected stable pane after quorum")
	}
	st.observe(schema.PaneBounds{}, false, cfg, schema.DetectDynamic)
	if st.stable != pane {
		t.Fatalf("stable = %+v changed on a no-result observation", st.stable)
	}
	if st.stabilityCount != cfg.StabilityQuorum {
		t.Fatalf("stabilityCount = %d disturbed by a no-result observation", st.stabilityCount)
	}
}

func TestFixedModeCommitLocks(t *testing.T) {
	cfg := testEngineConfig(t)
	st := newDetectionState(time.Now())
	pane := schema.PaneBounds{X: 500, Width: 200, Height: 200}
	for range cfg.StabilityQuorum {
		st.observe(pane, true, cfg, schema.DetectFixed)
	}
	if st.phase != schema.PhaseLocked {
		t.Fatalf("phase = %s, want %s", st.phase, schema.PhaseLocked)
	}
	if st.shouldDetect(cfg, time.Now()) {
		t.Fatal("locked state must not request detection")
	}
}

func TestShouldDetectEveryFrameDuringCalibration(t *testing.T) {
	cfg := testEngineConfig(t)
	start := time.Now()
	st := newDetectionState(start)
	for i := range 20 {
		if !st.shouldDetect(cfg, start.Add(time.Duration(i)*100*time.Millisecond)) {
			t.Fatalf("frame %d inside the calibration window skipped detection", i)
		}
	}
}

func TestCalibrationWindowSelfTerminates(t *testing.T) {
	cfg := testEngineConfig(t)
	start := time.Now()
	st := newDetectionState(start)
	st.shouldDetect(cfg, start.Add(cfg.CalibrationWindow))
	if st.phase != schema.PhaseTracking {
		t.Fatalf("phase = %s after the window elapsed, want %s", st.phase, schema.PhaseTracking)
	}
}

func TestRedetectCadenceAfterTracking(t *testing.T) {
	cfg := testEngineConfig(t)
	start := time.Now()
	st := newDetectionState(start)
	pane := schema.PaneBounds{X: 500, Width: 200, Height: 200}
	for range cfg.StabilityQuorum {
		st.shouldDetect(cfg, start)
		st.observe(pane, true, cfg, schema.DetectDynamic)
	}
	after := start.Add(cfg.CalibrationWindow + time.Second)
	detections := 0
	const frames = 40
	for range frames {
		if st.shouldDetect(cfg, after) {
			detections++
		}
	}
	want := frames / cfg.RedetectEveryNFrames
	if detections != want {
		t.Fatalf("detections = %d over %d frames, want %d", detections, frames, want)
	}
}

func TestShouldDetectWhenStableUnset(t *testing.T) {
	cfg := testEngineConfig(t)
	start := time.Now()
	st := newDetectionState(start)
	after := start.Add(cfg.CalibrationWindow + time.Second)
	for i := range 5 {
		if !st.shouldDetect(cfg, after) {
			t.Fatalf("frame %d with no stable pane skipped detection", i)
		}
	}
}

func TestLockToRestoresZone(t *testing.T) {
	st := newDetectionState(time.Now())
	zone := schema.Rect{X: 400, Y: 100, Width: 300, Height: 500}
	st.lockTo(zone)
	if st.phase != schema.PhaseLocked || !st.stableSet || st.stable != zone {
		t.Fatalf("state = %+v, want locked at %+v", st, zone)
	}
}
