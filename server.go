package panecast

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/panecast/core"
	"pkt.systems/panecast/httpapi"
	"pkt.systems/panecast/internal/term"
	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

// Server composes the stream engine and the HTTP transport.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Engine   schema.EngineConfig
	HTTP     httpapi.Config
	Terminal term.Config
}

// SettingsStore is the full settings surface: the engine reads effective
// values and the HTTP layer writes global keys.
type SettingsStore interface {
	core.SettingsSource
	Set(id schema.ClientID, key, value string) error
}

// ServerDeps captures the OS-backed dependencies required to build the
// server. Locator and EventSink are optional; everything else is required.
type ServerDeps struct {
	Capturer core.Capturer
	Probe    core.WindowProbe
	Injector core.InputInjector
	Locator  core.PaneLocator
	Settings SettingsStore
	// EventSink receives a copy of every outbound event alongside the hub.
	EventSink core.EventSink
	Logger    pslog.Logger
}

// New constructs a panecast server.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	if deps.Capturer == nil {
		return nil, errors.New("capturer dependency is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("settings dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	hub := httpapi.NewHub()
	agent := httpapi.NewAgentBridge(hub, logger)

	terminals := term.NewManager(cfg.Terminal, func(id schema.TerminalID, data []byte) {
		hub.Broadcast(schema.EventTerminalData, schema.TerminalDataPayload{
			ID:   id,
			Data: string(data),
		})
	}, logger)

	var sink core.EventSink = hub
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{hub, deps.EventSink}}
	}

	engine, err := core.NewEngine(cfg.Engine, core.EngineDeps{
		Capturer:  deps.Capturer,
		Probe:     deps.Probe,
		Injector:  deps.Injector,
		Locator:   deps.Locator,
		Settings:  deps.Settings,
		Sink:      sink,
		Terminals: terminals,
		Agent:     agent,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &compositeServer{
		cfg:       cfg,
		engine:    engine,
		httpSrv:   httpapi.NewServer(cfg.HTTP, engine, hub, agent, deps.Settings),
		terminals: terminals,
	}, nil
}

type compositeServer struct {
	cfg       ServerConfig
	engine    *core.Engine
	httpSrv   *httpapi.Server
	terminals *term.Manager
	logger    pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
		"max_fps", s.cfg.Engine.MaxFPS,
	)
	go func() {
		if err := s.engine.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("engine failed", "err", err)
			s.errCh <- err
		}
	}()
	go func() {
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	s.terminals.CloseAll()
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
