package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/panecast/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string         `mapstructure:"state_dir" yaml:"state_dir"`
	Engine        EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Capture       CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Worker        WorkerConfig   `mapstructure:"worker" yaml:"worker"`
	Input         InputConfig    `mapstructure:"input" yaml:"input"`
	Terminal      TerminalConfig `mapstructure:"terminal" yaml:"terminal"`
	Settings      SettingsConfig `mapstructure:"settings" yaml:"settings"`
	HTTP          HTTPConfig     `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// EngineConfig tunes the capture tick loop and pane detection.
type EngineConfig struct {
	DefaultX                 int `mapstructure:"default_x" yaml:"default_x"`
	DefaultY                 int `mapstructure:"default_y" yaml:"default_y"`
	DefaultWidth             int `mapstructure:"default_width" yaml:"default_width"`
	DefaultHeight            int `mapstructure:"default_height" yaml:"default_height"`
	CalibrationWindowSeconds int `mapstructure:"calibration_window_seconds" yaml:"calibration_window_seconds"`
	StabilityQuorum          int `mapstructure:"stability_quorum" yaml:"stability_quorum"`
	StabilityTolerancePx     int `mapstructure:"stability_tolerance_px" yaml:"stability_tolerance_px"`
	RedetectEveryNFrames     int `mapstructure:"redetect_every_n_frames" yaml:"redetect_every_n_frames"`
	DetectionRefreshSeconds  int `mapstructure:"detection_refresh_seconds" yaml:"detection_refresh_seconds"`
	MaxFPS                   int `mapstructure:"max_fps" yaml:"max_fps"`
}

// CaptureConfig configures the external screenshot command.
type CaptureConfig struct {
	Command string   `mapstructure:"command" yaml:"command"`
	Args    []string `mapstructure:"args" yaml:"args"`
	// LogicalWidth/LogicalHeight are the OS logical screen dimensions used
	// to derive the DPI scale. Zero means snapshot pixels are logical pixels.
	LogicalWidth  int `mapstructure:"logical_width" yaml:"logical_width"`
	LogicalHeight int `mapstructure:"logical_height" yaml:"logical_height"`
}

// WorkerConfig configures the long-lived scripting helper process.
type WorkerConfig struct {
	Binary              string   `mapstructure:"binary" yaml:"binary"`
	Args                []string `mapstructure:"args" yaml:"args"`
	CallTimeoutSeconds  int      `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	RespawnDelaySeconds int      `mapstructure:"respawn_delay_seconds" yaml:"respawn_delay_seconds"`
	CacheTTLSeconds     int      `mapstructure:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
}

// InputConfig configures the per-call input injection binary.
type InputConfig struct {
	Binary string   `mapstructure:"binary" yaml:"binary"`
	Args   []string `mapstructure:"args" yaml:"args"`
}

// TerminalConfig configures the shell started in relay pseudo-terminals.
type TerminalConfig struct {
	Shell string   `mapstructure:"shell" yaml:"shell"`
	Args  []string `mapstructure:"args" yaml:"args"`
}

// SettingsConfig locates the persisted stream settings store.
type SettingsConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr                     string `mapstructure:"addr" yaml:"addr"`
	BasePath                 string `mapstructure:"base_path" yaml:"base_path"`
	InactivityTimeoutMinutes int    `mapstructure:"inactivity_timeout_minutes" yaml:"inactivity_timeout_minutes"`
	WriteTimeoutSeconds      int    `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	PingIntervalSeconds      int    `mapstructure:"ping_interval_seconds" yaml:"ping_interval_seconds"`
	ReadLimitBytes           int64  `mapstructure:"read_limit_bytes" yaml:"read_limit_bytes"`
}

// EngineSettings converts the file representation into the engine's config.
func (e EngineConfig) EngineSettings() schema.EngineConfig {
	return schema.EngineConfig{
		DefaultRect: schema.Rect{
			X:      e.DefaultX,
			Y:      e.DefaultY,
			Width:  e.DefaultWidth,
			Height: e.DefaultHeight,
		},
		CalibrationWindow:    time.Duration(e.CalibrationWindowSeconds) * time.Second,
		StabilityQuorum:      e.StabilityQuorum,
		StabilityTolerancePx: e.StabilityTolerancePx,
		RedetectEveryNFrames: e.RedetectEveryNFrames,
		DetectionRefresh:     time.Duration(e.DetectionRefreshSeconds) * time.Second,
		MaxFPS:               e.MaxFPS,
	}
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".panecast", "state"),
		Engine: EngineConfig{
			DefaultX:                 0,
			DefaultY:                 0,
			DefaultWidth:             1920,
			DefaultHeight:            1080,
			CalibrationWindowSeconds: int(schema.DefaultCalibrationWindow / time.Second),
			StabilityQuorum:          schema.DefaultStabilityQuorum,
			StabilityTolerancePx:     schema.DefaultStabilityTolerancePx,
			RedetectEveryNFrames:     schema.DefaultRedetectFrames,
			DetectionRefreshSeconds:  int(schema.DefaultDetectionRefresh / time.Second),
			MaxFPS:                   schema.DefaultMaxFPS,
		},
		Capture: CaptureConfig{
			Command:       "panecast-capture",
			Args:          []string{},
			LogicalWidth:  0,
			LogicalHeight: 0,
		},
		Worker: WorkerConfig{
			Binary:              "panecast-helper",
			Args:                []string{},
			CallTimeoutSeconds:  3,
			RespawnDelaySeconds: 1,
			CacheTTLSeconds:     2,
		},
		Input: InputConfig{
			Binary: "panecast-input",
			Args:   []string{},
		},
		Terminal: TerminalConfig{
			Shell: "",
			Args:  []string{},
		},
		Settings: SettingsConfig{
			Path: filepath.Join(home, ".panecast", "settings.json"),
		},
		HTTP: HTTPConfig{
			Addr:                     ":27460",
			BasePath:                 "",
			InactivityTimeoutMinutes: 5,
			WriteTimeoutSeconds:      10,
			PingIntervalSeconds:      30,
			ReadLimitBytes:           1 << 20,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".panecast", "config.yaml"), nil
}
