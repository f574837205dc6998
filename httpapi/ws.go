package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"pkt.systems/panecast/core"
	"pkt.systems/panecast/internal/logx"
	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"

	"github.com/gorilla/websocket"
)

// clientConn owns one client WebSocket. The read pump feeds inbound events
// to the engine; the write pump drains the hub channels, preferring control
// events over frames, and enforces the inactivity timeout.
type clientConn struct {
	cfg  Config
	id   schema.ClientID
	conn *websocket.Conn
	log  pslog.Logger

	lastEvent atomic.Int64
}

func (c *clientConn) touch() {
	c.lastEvent.Store(time.Now().UnixNano())
}

func (c *clientConn) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastEvent.Load()))
}

// readPump blocks until the connection drops. Malformed payloads and
// handler errors are logged and dropped; they never end the connection.
func (c *clientConn) readPump(ctx context.Context, engine *core.Engine) {
	ctx = logx.ContextWithClientLogger(ctx, c.log, c.id)
	c.conn.SetReadLimit(c.cfg.ReadLimitBytes)
	c.touch()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				c.log.Debug("client read ended", "err", err)
			}
			return
		}
		c.touch()
		var env schema.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Debug("client event unreadable", "err", err)
			continue
		}
		if err := engine.HandleEvent(ctx, c.id, env); err != nil {
			if errors.Is(err, schema.ErrClientNotFound) {
				return
			}
			c.log.Debug("client event rejected", "event", env.Event, "err", err)
		}
	}
}

// writePump serializes all writes to the connection. It closes the
// connection when the client has been silent past the inactivity timeout.
func (c *clientConn) writePump(events, frames <-chan schema.Envelope) {
	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case env, ok := <-events:
			if !ok {
				return
			}
			if !c.write(env) {
				return
			}
		case env, ok := <-frames:
			if !ok {
				return
			}
			// Drain any control event queued in the same window first.
			select {
			case ctrl, ok := <-events:
				if ok && !c.write(ctrl) {
					return
				}
			default:
			}
			if !c.write(env) {
				return
			}
		case <-ping.C:
			if c.idleFor() > c.cfg.InactivityTimeout {
				c.log.Info("client inactive, closing", "idle", c.idleFor().Round(time.Second))
				_ = c.conn.Close()
				return
			}
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *clientConn) write(env schema.Envelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		c.log.Warn("event marshal failed", "event", env.Event, "err", err)
		return true
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !isExpectedClose(err) {
			c.log.Debug("client write failed", "event", env.Event, "err", err)
		}
		return false
	}
	return true
}
