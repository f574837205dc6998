// Package term manages pseudo-terminal sessions and relays their bytes.
package term

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

// OutputFunc receives output bytes from a terminal session.
type OutputFunc func(id schema.TerminalID, data []byte)

// Config defines how terminal sessions are spawned.
type Config struct {
	// Shell is the command started in each pseudo-terminal.
	Shell string
	// Args are passed to the shell.
	Args []string
	// ReadBuffer is the pty read chunk size.
	ReadBuffer int
}

const defaultReadBuffer = 4096

// Manager owns one pseudo-terminal per session id. Sessions are created
// lazily on first input or resize and torn down when the shell exits.
type Manager struct {
	cfg    Config
	output OutputFunc
	log    pslog.Logger

	mu       sync.Mutex
	sessions map[schema.TerminalID]*session
	closed   bool
}

type session struct {
	id   schema.TerminalID
	cmd  *exec.Cmd
	tty  *os.File
	done chan struct{}
}

// NewManager constructs a terminal manager. The output function is called
// from per-session reader goroutines.
func NewManager(cfg Config, output OutputFunc, logger pslog.Logger) *Manager {
	if cfg.Shell == "" {
		cfg.Shell = os.Getenv("SHELL")
		if cfg.Shell == "" {
			cfg.Shell = "/bin/sh"
		}
	}
	if cfg.ReadBuffer <= 0 {
		cfg.ReadBuffer = defaultReadBuffer
	}
	if output == nil {
		output = func(schema.TerminalID, []byte) {}
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Manager{
		cfg:      cfg,
		output:   output,
		log:      logger.With("component", "term"),
		sessions: make(map[schema.TerminalID]*session),
	}
}

// Input writes bytes into the session's pty, starting it first if needed.
func (m *Manager) Input(id schema.TerminalID, data []byte) error {
	sess, err := m.ensure(id)
	if err != nil {
		return err
	}
	if _, err := sess.tty.Write(data); err != nil {
		return fmt.Errorf("terminal %s write: %w", id, err)
	}
	return nil
}

// Resize adjusts the session's window size, starting it first if needed.
func (m *Manager) Resize(id schema.TerminalID, cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("terminal %s resize: invalid size %dx%d", id, cols, rows)
	}
	sess, err := m.ensure(id)
	if err != nil {
		return err
	}
	size := &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)}
	if err := pty.Setsize(sess.tty, size); err != nil {
		return fmt.Errorf("terminal %s resize: %w", id, err)
	}
	return nil
}

// Close tears down one session.
func (m *Manager) Close(id schema.TerminalID) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", schema.ErrTerminalNotFound, id)
	}
	m.stop(sess)
	return nil
}

// CloseAll tears down every session. The manager accepts no new sessions
// afterwards.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[schema.TerminalID]*session)
	m.mu.Unlock()
	for _, sess := range sessions {
		m.stop(sess)
	}
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) ensure(id schema.TerminalID) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("%w: manager closed", schema.ErrTerminalNotFound)
	}
	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	cmd := exec.Command(m.cfg.Shell, m.cfg.Args...)
	tty, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("terminal %s start %s: %w", id, m.cfg.Shell, err)
	}
	sess := &session{
		id:   id,
		cmd:  cmd,
		tty:  tty,
		done: make(chan struct{}),
	}
	m.sessions[id] = sess
	m.log.Info("terminal started", "terminal", id, "shell", m.cfg.Shell, "sessions", len(m.sessions))
	go m.readLoop(sess)
	return sess, nil
}

func (m *Manager) readLoop(sess *session) {
	defer close(sess.done)
	buf := make([]byte, m.cfg.ReadBuffer)
	for {
		n, err := sess.tty.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			m.output(sess.id, data)
		}
		if err != nil {
			break
		}
	}
	_ = sess.cmd.Wait()
	m.mu.Lock()
	if m.sessions[sess.id] == sess {
		delete(m.sessions, sess.id)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()
	m.log.Info("terminal exited", "terminal", sess.id, "sessions", remaining)
}

func (m *Manager) stop(sess *session) {
	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Kill()
	}
	_ = sess.tty.Close()
	<-sess.done
}
