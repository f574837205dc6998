// Package worker multiplexes request/response calls over a single long-lived
// external helper process. Commands are written to the helper's stdin tagged
// with a monotonically increasing correlation id; its stdout is line-buffered
// and parsed as "id:result". Each call carries an independent timeout, and a
// crashed helper is respawned after a delay with all in-flight calls failed.
package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

// Config controls how the helper process is invoked and supervised.
type Config struct {
	Binary       string
	Args         []string
	CallTimeout  time.Duration
	RespawnDelay time.Duration
}

// DefaultCallTimeout bounds a single helper call.
const DefaultCallTimeout = 3 * time.Second

// DefaultRespawnDelay is the pause before restarting a crashed helper.
const DefaultRespawnDelay = time.Second

// process is the running helper's handle. The spawn function is injectable
// so tests can drive the channel over pipes.
type process struct {
	stdin io.WriteCloser
	out   io.Reader
	wait  func() error
	kill  func()
}

type spawnFunc func(ctx context.Context, cfg Config) (*process, error)

type pendingCall struct {
	ch       chan string
	issuedAt time.Time
}

// Channel is a correlation-id multiplexer over one helper process.
type Channel struct {
	cfg   Config
	log   pslog.Logger
	spawn spawnFunc

	mu      sync.Mutex
	proc    *process
	nextID  uint64
	pending map[uint64]pendingCall
	closed  bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New constructs a Channel. Start must be called before Call.
func New(cfg Config, logger pslog.Logger) (*Channel, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		return nil, errors.New("worker binary is required")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.RespawnDelay <= 0 {
		cfg.RespawnDelay = DefaultRespawnDelay
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Channel{
		cfg:     cfg,
		log:     logger.With("worker", cfg.Binary),
		spawn:   spawnProcess,
		pending: make(map[uint64]pendingCall),
	}, nil
}

// Start spawns the helper and begins reading its output. The channel keeps
// respawning the helper until ctx is done or Close is called.
func (c *Channel) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return schema.ErrWorkerUnavailable
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()
	return c.respawn()
}

func (c *Channel) respawn() error {
	c.mu.Lock()
	if c.closed || c.ctx.Err() != nil {
		c.mu.Unlock()
		return schema.ErrWorkerUnavailable
	}
	ctx := c.ctx
	c.mu.Unlock()

	proc, err := c.spawn(ctx, c.cfg)
	if err != nil {
		c.log.Warn("worker spawn failed", "err", err)
		c.scheduleRespawn()
		return err
	}
	c.mu.Lock()
	c.proc = proc
	c.mu.Unlock()
	c.log.Info("worker started")
	go c.readLoop(proc)
	return nil
}

func (c *Channel) scheduleRespawn() {
	go func() {
		select {
		case <-time.After(c.cfg.RespawnDelay):
		case <-c.ctx.Done():
			return
		}
		_ = c.respawn()
	}()
}

// readLoop parses "id:result" lines and resolves matching pending calls.
// Unparseable lines are logged and dropped.
func (c *Channel) readLoop(proc *process) {
	scanner := bufio.NewScanner(proc.out)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		idText, result, ok := strings.Cut(line, ":")
		if !ok {
			c.log.Warn("worker output unparseable", "line", preview(line))
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idText), 10, 64)
		if err != nil {
			c.log.Warn("worker output bad id", "line", preview(line))
			continue
		}
		c.resolve(id, result)
	}
	if proc.wait != nil {
		if err := proc.wait(); err != nil {
			c.log.Warn("worker exited", "err", err)
		} else {
			c.log.Info("worker exited")
		}
	}
	c.failInFlight()
	c.mu.Lock()
	closed := c.closed || c.ctx == nil || c.ctx.Err() != nil
	c.proc = nil
	c.mu.Unlock()
	if !closed {
		c.scheduleRespawn()
	}
}

func (c *Channel) resolve(id uint64, result string) {
	c.mu.Lock()
	call, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		c.log.Debug("worker response without caller", "id", id)
		return
	}
	call.ch <- result
}

// failInFlight resolves every pending call as failed. At most one resolution
// per call is guaranteed: entries are removed under the lock before sending.
func (c *Channel) failInFlight() {
	c.mu.Lock()
	calls := c.pending
	c.pending = make(map[uint64]pendingCall)
	c.mu.Unlock()
	for _, call := range calls {
		close(call.ch)
	}
}

// Call writes a payload to the helper and waits for the matching response.
// A call that never receives its correlation id resolves with
// schema.ErrWorkerTimeout and leaves no pending entry behind.
func (c *Channel) Call(ctx context.Context, payload string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.closed || c.proc == nil {
		c.mu.Unlock()
		return "", schema.ErrWorkerUnavailable
	}
	c.nextID++
	id := c.nextID
	ch := make(chan string, 1)
	c.pending[id] = pendingCall{ch: ch, issuedAt: time.Now()}
	stdin := c.proc.stdin
	c.mu.Unlock()

	if _, err := fmt.Fprintf(stdin, "%d:%s\n", id, payload); err != nil {
		c.evict(id)
		return "", fmt.Errorf("worker write: %w", err)
	}

	timer := time.NewTimer(c.cfg.CallTimeout)
	defer timer.Stop()
	select {
	case result, ok := <-ch:
		if !ok {
			return "", schema.ErrWorkerUnavailable
		}
		return result, nil
	case <-timer.C:
		c.evict(id)
		c.log.Warn("worker call timed out", "id", id)
		return "", schema.ErrWorkerTimeout
	case <-ctx.Done():
		c.evict(id)
		return "", ctx.Err()
	}
}

// Notify writes a payload without registering a pending call: fire-and-forget
// for injection commands that must execute exactly once and never from cache.
func (c *Channel) Notify(payload string) error {
	c.mu.Lock()
	if c.closed || c.proc == nil {
		c.mu.Unlock()
		return schema.ErrWorkerUnavailable
	}
	c.nextID++
	id := c.nextID
	stdin := c.proc.stdin
	c.mu.Unlock()
	if _, err := fmt.Fprintf(stdin, "%d:%s\n", id, payload); err != nil {
		return fmt.Errorf("worker write: %w", err)
	}
	return nil
}

func (c *Channel) evict(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// PendingCalls reports how many calls are awaiting responses.
func (c *Channel) PendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close terminates the helper and fails all in-flight calls. The channel
// cannot be restarted.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	proc := c.proc
	c.proc = nil
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if proc != nil {
		_ = proc.stdin.Close()
		if proc.kill != nil {
			proc.kill()
		}
	}
	c.failInFlight()
	c.log.Info("worker closed")
	return nil
}

func spawnProcess(ctx context.Context, cfg Config) (*process, error) {
	cmd := exec.CommandContext(ctx, cfg.Binary, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &process{
		stdin: stdin,
		out:   stdout,
		wait:  cmd.Wait,
		kill: func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		},
	}, nil
}

func preview(line string) string {
	const limit = 120
	if len(line) <= limit {
		return line
	}
	return line[:limit]
}
