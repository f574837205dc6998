package schema

import (
	"fmt"
	"time"
)

// EngineConfig defines defaults and limits for the stream engine.
type EngineConfig struct {
	// DefaultRect is the capture region used when no window is tracked.
	DefaultRect Rect
	// CalibrationWindow bounds how long calibration may run per mode switch.
	CalibrationWindow time.Duration
	// StabilityQuorum is how many consecutive agreeing detections commit.
	StabilityQuorum int
	// StabilityTolerancePx is the agreement tolerance between detections.
	StabilityTolerancePx int
	// RedetectEveryNFrames is the detection cadence outside calibration.
	RedetectEveryNFrames int
	// DetectionRefresh is the interval of the window-geometry refresh loop.
	DetectionRefresh time.Duration
	// MaxFPS caps the shared tick rate regardless of client settings.
	MaxFPS int
}

// Engine tuning defaults.
const (
	DefaultCalibrationWindow    = 5 * time.Second
	DefaultStabilityQuorum      = 3
	DefaultStabilityTolerancePx = 5
	DefaultRedetectFrames       = 10
	DefaultDetectionRefresh     = 2 * time.Second
	DefaultMaxFPS               = 30
)

// NormalizeEngineConfig applies defaults and validates the config.
func NormalizeEngineConfig(cfg EngineConfig) (EngineConfig, error) {
	if cfg.DefaultRect.Empty() {
		cfg.DefaultRect = Rect{Width: 1920, Height: 1080}
	}
	if cfg.CalibrationWindow <= 0 {
		cfg.CalibrationWindow = DefaultCalibrationWindow
	}
	if cfg.StabilityQuorum <= 0 {
		cfg.StabilityQuorum = DefaultStabilityQuorum
	}
	if cfg.StabilityTolerancePx <= 0 {
		cfg.StabilityTolerancePx = DefaultStabilityTolerancePx
	}
	if cfg.RedetectEveryNFrames <= 0 {
		cfg.RedetectEveryNFrames = DefaultRedetectFrames
	}
	if cfg.DetectionRefresh <= 0 {
		cfg.DetectionRefresh = DefaultDetectionRefresh
	}
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = DefaultMaxFPS
	}
	if cfg.MaxFPS > 120 {
		return EngineConfig{}, fmt.Errorf("max fps %d exceeds 120", cfg.MaxFPS)
	}
	return cfg, nil
}
