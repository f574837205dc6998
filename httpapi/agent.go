package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"

	"github.com/gorilla/websocket"
)

// AgentBridge relays payloads between the connected editor agent and the
// client hub. At most one agent is connected; a newer connection replaces
// the previous one.
type AgentBridge struct {
	hub          *Hub
	log          pslog.Logger
	writeTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewAgentBridge constructs a bridge publishing agent traffic to the hub.
func NewAgentBridge(hub *Hub, logger pslog.Logger) *AgentBridge {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &AgentBridge{
		hub:          hub,
		log:          logger.With("component", "agent"),
		writeTimeout: DefaultWriteTimeout,
	}
}

// Connected reports whether an agent is currently attached.
func (b *AgentBridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// Send implements core.AgentRelay. The payload is forwarded verbatim.
func (b *AgentBridge) Send(payload []byte) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return schema.ErrAgentUnavailable
	}
	env := schema.Envelope{Event: schema.EventAgentSend, Payload: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("agent send: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrAgentUnavailable, err)
	}
	return nil
}

// Run attaches a connection and relays its messages to all clients until
// it drops. Blocks for the connection's lifetime.
func (b *AgentBridge) Run(ctx context.Context, conn *websocket.Conn) {
	b.mu.Lock()
	if b.conn != nil {
		b.log.Warn("replacing connected agent")
		_ = b.conn.Close()
	}
	b.conn = conn
	b.mu.Unlock()
	b.log.Info("agent connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				b.log.Debug("agent read ended", "err", err)
			}
			break
		}
		b.hub.Broadcast(schema.EventAgentRecv, json.RawMessage(data))
	}

	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
	}
	b.mu.Unlock()
	_ = conn.Close()
	b.log.Info("agent disconnected")
}
