// Package settings is the flat key-value configuration store: global
// defaults merged with per-client overrides, range-validated on write,
// persisted to one JSON file, and reloaded when that file changes on disk.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

// Values is one client's effective configuration after merging.
type Values struct {
	FPS            int                  `json:"fps"`
	Quality        int                  `json:"quality"`
	CropLeft       int                  `json:"cropLeft"`
	CropRight      int                  `json:"cropRight"`
	CropTop        int                  `json:"cropTop"`
	CropBottom     int                  `json:"cropBottom"`
	LowResource    bool                 `json:"lowResource"`
	LowResourceFPS int                  `json:"lowResourceFPS"`
	Scale          float64              `json:"scale"`
	DetectionMode  schema.DetectionMode `json:"detectionMode"`
}

// Defaults are the global values before any file or override applies.
func Defaults() Values {
	return Values{
		FPS:            10,
		Quality:        60,
		LowResourceFPS: 2,
		Scale:          1.0,
		DetectionMode:  schema.DetectDynamic,
	}
}

// Override is an explicit per-client value: Set distinguishes "unset" from
// an explicitly zero or false value.
type Override[T any] struct {
	Set   bool `json:"set"`
	Value T    `json:"value"`
}

// Overrides is the full per-client override record.
type Overrides struct {
	FPS           Override[int]                  `json:"fps,omitempty"`
	Quality       Override[int]                  `json:"quality,omitempty"`
	CropLeft      Override[int]                  `json:"cropLeft,omitempty"`
	CropRight     Override[int]                  `json:"cropRight,omitempty"`
	CropTop       Override[int]                  `json:"cropTop,omitempty"`
	CropBottom    Override[int]                  `json:"cropBottom,omitempty"`
	Scale         Override[float64]              `json:"scale,omitempty"`
	DetectionMode Override[schema.DetectionMode] `json:"detectionMode,omitempty"`
}

type storeFile struct {
	Version   int                  `json:"version"`
	Global    Values               `json:"global"`
	Overrides map[string]Overrides `json:"overrides,omitempty"`
}

// Store owns the merged configuration.
type Store struct {
	path string
	log  pslog.Logger

	mu        sync.Mutex
	global    Values
	overrides map[schema.ClientID]Overrides
}

// NewStore loads (or initializes) the store at path. An empty path keeps the
// store memory-only.
func NewStore(path string, logger pslog.Logger) (*Store, error) {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Store{
		path:      strings.TrimSpace(path),
		log:       logger,
		global:    Defaults(),
		overrides: make(map[schema.ClientID]Overrides),
	}
	if s.path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Effective merges the client's overrides over the global values. The
// merge is the single place override resolution happens.
func (s *Store) Effective(id schema.ClientID) Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.global
	o, ok := s.overrides[id]
	if !ok {
		return v
	}
	if o.FPS.Set {
		v.FPS = o.FPS.Value
	}
	if o.Quality.Set {
		v.Quality = o.Quality.Value
	}
	if o.CropLeft.Set {
		v.CropLeft = o.CropLeft.Value
	}
	if o.CropRight.Set {
		v.CropRight = o.CropRight.Value
	}
	if o.CropTop.Set {
		v.CropTop = o.CropTop.Value
	}
	if o.CropBottom.Set {
		v.CropBottom = o.CropBottom.Value
	}
	if o.Scale.Set {
		v.Scale = o.Scale.Value
	}
	if o.DetectionMode.Set {
		v.DetectionMode = o.DetectionMode.Value
	}
	return v
}

// Global returns the current global values.
func (s *Store) Global() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

// Set writes one key. An empty client id targets the global values. Range
// violations are rejected, never clamped.
func (s *Store) Set(id schema.ClientID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		if err := applyGlobal(&s.global, key, value); err != nil {
			return err
		}
	} else {
		o := s.overrides[id]
		if err := applyOverride(&o, key, value); err != nil {
			return err
		}
		s.overrides[id] = o
	}
	return s.persistLocked()
}

// Release drops all overrides for a client, typically on disconnect.
func (s *Store) Release(id schema.ClientID) {
	s.mu.Lock()
	if _, ok := s.overrides[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.overrides, id)
	err := s.persistLocked()
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("settings persist failed", "err", err)
	}
}

// Watch reloads the store when its file changes on disk; returns when ctx
// ends. No-op for memory-only stores.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.load(); err != nil {
				s.log.Warn("settings reload failed", "err", err)
				continue
			}
			s.log.Info("settings reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("settings watch error", "err", err)
		}
	}
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return err
	}
	if err := validate(file.Global); err != nil {
		return err
	}
	s.mu.Lock()
	s.global = file.Global
	s.overrides = make(map[schema.ClientID]Overrides, len(file.Overrides))
	for id, o := range file.Overrides {
		s.overrides[schema.ClientID(id)] = o
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	file := storeFile{Version: 1, Global: s.global, Overrides: make(map[string]Overrides, len(s.overrides))}
	for id, o := range s.overrides {
		file.Overrides[string(id)] = o
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "settings-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func applyGlobal(v *Values, key, value string) error {
	switch key {
	case "lowResource":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: lowResource: %v", schema.ErrSettingRange, err)
		}
		v.LowResource = b
		return nil
	case "lowResourceFPS":
		n, err := intInRange(value, 1, 10)
		if err != nil {
			return err
		}
		v.LowResourceFPS = n
		return nil
	}
	o := Overrides{}
	if err := applyOverride(&o, key, value); err != nil {
		return err
	}
	applyOverridesToValues(v, o)
	return nil
}

func applyOverride(o *Overrides, key, value string) error {
	switch key {
	case "fps":
		n, err := intInRange(value, 1, 60)
		if err != nil {
			return err
		}
		o.FPS = Override[int]{Set: true, Value: n}
	case "quality":
		n, err := intInRange(value, 1, 100)
		if err != nil {
			return err
		}
		o.Quality = Override[int]{Set: true, Value: n}
	case "cropLeft", "cropRight", "cropTop", "cropBottom":
		n, err := intInRange(value, 0, 2000)
		if err != nil {
			return err
		}
		ov := Override[int]{Set: true, Value: n}
		switch key {
		case "cropLeft":
			o.CropLeft = ov
		case "cropRight":
			o.CropRight = ov
		case "cropTop":
			o.CropTop = ov
		case "cropBottom":
			o.CropBottom = ov
		}
	case "scale":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0.2 || f > 1.0 {
			return fmt.Errorf("%w: scale %q not in [0.2, 1.0]", schema.ErrSettingRange, value)
		}
		o.Scale = Override[float64]{Set: true, Value: f}
	case "detectionMode":
		mode := schema.DetectionMode(value)
		if mode != schema.DetectDynamic && mode != schema.DetectFixed {
			return fmt.Errorf("%w: detectionMode %q", schema.ErrSettingRange, value)
		}
		o.DetectionMode = Override[schema.DetectionMode]{Set: true, Value: mode}
	default:
		return fmt.Errorf("%w: %q", schema.ErrSettingUnknown, key)
	}
	return nil
}

func applyOverridesToValues(v *Values, o Overrides) {
	if o.FPS.Set {
		v.FPS = o.FPS.Value
	}
	if o.Quality.Set {
		v.Quality = o.Quality.Value
	}
	if o.CropLeft.Set {
		v.CropLeft = o.CropLeft.Value
	}
	if o.CropRight.Set {
		v.CropRight = o.CropRight.Value
	}
	if o.CropTop.Set {
		v.CropTop = o.CropTop.Value
	}
	if o.CropBottom.Set {
		v.CropBottom = o.CropBottom.Value
	}
	if o.Scale.Set {
		v.Scale = o.Scale.Value
	}
	if o.DetectionMode.Set {
		v.DetectionMode = o.DetectionMode.Value
	}
}

func validate(v Values) error {
	if v.FPS < 1 || v.FPS > 60 {
		return fmt.Errorf("%w: fps %d", schema.ErrSettingRange, v.FPS)
	}
	if v.Quality < 1 || v.Quality > 100 {
		return fmt.Errorf("%w: quality %d", schema.ErrSettingRange, v.Quality)
	}
	if v.Scale < 0.2 || v.Scale > 1.0 {
		return fmt.Errorf("%w: scale %v", schema.ErrSettingRange, v.Scale)
	}
	if v.LowResourceFPS < 1 || v.LowResourceFPS > 10 {
		return fmt.Errorf("%w: lowResourceFPS %d", schema.ErrSettingRange, v.LowResourceFPS)
	}
	return nil
}

func intInRange(value string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: %q not in [%d, %d]", schema.ErrSettingRange, value, lo, hi)
	}
	return n, nil
}
