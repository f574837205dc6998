package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("engine.default_x", cfg.Engine.DefaultX)
	v.SetDefault("engine.default_y", cfg.Engine.DefaultY)
	v.SetDefault("engine.default_width", cfg.Engine.DefaultWidth)
	v.SetDefault("engine.default_height", cfg.Engine.DefaultHeight)
	v.SetDefault("engine.calibration_window_seconds", cfg.Engine.CalibrationWindowSeconds)
	v.SetDefault("engine.stability_quorum", cfg.Engine.StabilityQuorum)
	v.SetDefault("engine.stability_tolerance_px", cfg.Engine.StabilityTolerancePx)
	v.SetDefault("engine.redetect_every_n_frames", cfg.Engine.RedetectEveryNFrames)
	v.SetDefault("engine.detection_refresh_seconds", cfg.Engine.DetectionRefreshSeconds)
	v.SetDefault("engine.max_fps", cfg.Engine.MaxFPS)
	v.SetDefault("capture.command", cfg.Capture.Command)
	v.SetDefault("capture.args", cfg.Capture.Args)
	v.SetDefault("capture.logical_width", cfg.Capture.LogicalWidth)
	v.SetDefault("capture.logical_height", cfg.Capture.LogicalHeight)
	v.SetDefault("worker.binary", cfg.Worker.Binary)
	v.SetDefault("worker.args", cfg.Worker.Args)
	v.SetDefault("worker.call_timeout_seconds", cfg.Worker.CallTimeoutSeconds)
	v.SetDefault("worker.respawn_delay_seconds", cfg.Worker.RespawnDelaySeconds)
	v.SetDefault("worker.cache_ttl_seconds", cfg.Worker.CacheTTLSeconds)
	v.SetDefault("input.binary", cfg.Input.Binary)
	v.SetDefault("input.args", cfg.Input.Args)
	v.SetDefault("terminal.shell", cfg.Terminal.Shell)
	v.SetDefault("terminal.args", cfg.Terminal.Args)
	v.SetDefault("settings.path", cfg.Settings.Path)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.inactivity_timeout_minutes", cfg.HTTP.InactivityTimeoutMinutes)
	v.SetDefault("http.write_timeout_seconds", cfg.HTTP.WriteTimeoutSeconds)
	v.SetDefault("http.ping_interval_seconds", cfg.HTTP.PingIntervalSeconds)
	v.SetDefault("http.read_limit_bytes", cfg.HTTP.ReadLimitBytes)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		if !v.IsSet("capture.command") {
			return Config{}, fmt.Errorf("capture.command is required for config_version %d", CurrentConfigVersion)
		}
		if !v.IsSet("worker.binary") {
			return Config{}, fmt.Errorf("worker.binary is required for config_version %d", CurrentConfigVersion)
		}
		if !v.IsSet("input.binary") {
			return Config{}, fmt.Errorf("input.binary is required for config_version %d", CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateEngineConfig(cfg.Engine); err != nil {
		return Config{}, err
	}
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.MaxFPS < 1 || cfg.MaxFPS > 120 {
		return fmt.Errorf("engine.max_fps must be between 1 and 120, got %d", cfg.MaxFPS)
	}
	if cfg.StabilityQuorum < 1 {
		return fmt.Errorf("engine.stability_quorum must be at least 1, got %d", cfg.StabilityQuorum)
	}
	if cfg.StabilityTolerancePx < 0 {
		return fmt.Errorf("engine.stability_tolerance_px must not be negative, got %d", cfg.StabilityTolerancePx)
	}
	if cfg.RedetectEveryNFrames < 1 {
		return fmt.Errorf("engine.redetect_every_n_frames must be at least 1, got %d", cfg.RedetectEveryNFrames)
	}
	if cfg.DefaultWidth < 1 || cfg.DefaultHeight < 1 {
		return fmt.Errorf("engine default capture region must have positive dimensions")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	basePath := strings.TrimSpace(cfg.BasePath)
	if basePath != "" {
		if strings.Contains(basePath, "://") {
			return fmt.Errorf("http.base_path must be a path prefix, not a URL")
		}
		if strings.ContainsAny(basePath, "?#") {
			return fmt.Errorf("http.base_path must not include query or fragment")
		}
	}
	if cfg.ReadLimitBytes < 0 {
		return fmt.Errorf("http.read_limit_bytes must not be negative")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Capture.Command = expandEnv(cfg.Capture.Command)
	cfg.Worker.Binary = expandEnv(cfg.Worker.Binary)
	cfg.Input.Binary = expandEnv(cfg.Input.Binary)
	cfg.Terminal.Shell = expandEnv(cfg.Terminal.Shell)
	cfg.Settings.Path = expandEnv(cfg.Settings.Path)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
