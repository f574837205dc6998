package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"

	"pkt.systems/panecast/core"
	"pkt.systems/panecast/internal/logx"
	"pkt.systems/panecast/internal/settings"
	"pkt.systems/panecast/schema"

	"github.com/gorilla/websocket"
)

// SettingsAccess is the slice of the settings store the HTTP surface
// needs: reading the global values and writing one global key.
type SettingsAccess interface {
	Global() settings.Values
	Set(id schema.ClientID, key, value string) error
}

// Server exposes the duplex event channel over WebSocket plus a small
// health and settings surface.
type Server struct {
	cfg      Config
	engine   *core.Engine
	hub      *Hub
	agent    *AgentBridge
	store    SettingsAccess
	upgrader websocket.Upgrader
	basePath string
}

// NewServer wires the transport around a stream engine. The hub must be
// the same one registered as the engine's event sink.
func NewServer(cfg Config, engine *core.Engine, hub *Hub, agent *AgentBridge, store SettingsAccess) *Server {
	s := &Server{
		cfg:      cfg.normalized(),
		engine:   engine,
		hub:      hub,
		agent:    agent,
		store:    store,
		basePath: normalizeBasePath(cfg.BasePath),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return s
}

// Handler returns the HTTP handler, mounted under the configured base path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/ws", s.handleClientWS)
	mux.HandleFunc("/ws/agent", s.handleAgentWS)

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"clients": s.engine.ClientCount(),
		"agent":   s.agent.Connected(),
	})
}

// handleSettings reads and writes the global settings. Per-client
// overrides stay on the event channel; this surface only touches the
// values every client inherits.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Global())
	case http.MethodPut, http.MethodPost:
		var req struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body"})
			return
		}
		if err := s.store.Set("", req.Key, req.Value); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, schema.ErrSettingUnknown) || errors.Is(err, schema.ErrSettingRange) {
				status = http.StatusBadRequest
			}
			logx.Ctx(r.Context()).Warn("settings write rejected", "key", req.Key, "err", err)
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		logx.Ctx(r.Context()).Info("global setting changed", "key", req.Key, "value", req.Value)
		writeJSON(w, http.StatusOK, s.store.Global())
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleClientWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Ctx(r.Context()).Warn("websocket upgrade failed", "remote", clientIP(r), "err", err)
		return
	}
	id := core.NewClientID()
	log := logx.WithClient(r.Context(), id).With("remote", clientIP(r))
	s.engine.Connect(id)
	events, frames, unsub := s.hub.Subscribe(id)

	cc := &clientConn{
		cfg:  s.cfg,
		id:   id,
		conn: conn,
		log:  log,
	}
	done := make(chan struct{})
	go func() {
		cc.writePump(events, frames)
		close(done)
	}()
	cc.readPump(r.Context(), s.engine)

	unsub()
	s.engine.Disconnect(id)
	_ = conn.Close()
	<-done
	log.Info("client channel closed")
}

func (s *Server) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logx.Ctx(r.Context()).Warn("agent upgrade failed", "remote", clientIP(r), "err", err)
		return
	}
	s.agent.Run(r.Context(), conn)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// checkOrigin accepts same-host and loopback origins. The transport sits
// behind a reverse proxy in every other deployment shape.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	originHost := originURL.Hostname()
	if originHost == "" {
		return false
	}
	requestHost, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		requestHost = r.Host
	}
	if originHost == requestHost {
		return true
	}
	return originHost == "localhost" || originHost == "127.0.0.1"
}

func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}

var _ core.EventSink = (*Hub)(nil)
