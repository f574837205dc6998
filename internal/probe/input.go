package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"pkt.systems/pslog"
)

// InjectorConfig controls the synthetic-input binding.
type InjectorConfig struct {
	// Binary is invoked per click/key/type call (low-frequency operations
	// where spawn overhead is acceptable).
	Binary string
	Args   []string
}

// InputInjector drives synthetic mouse and keyboard input. Scroll goes
// through the worker channel fire-and-forget because it is high-frequency;
// everything else execs the injector binary per call.
type InputInjector struct {
	cfg InjectorConfig
	ch  Caller
	log pslog.Logger
}

// NewInputInjector constructs an injector. ch may be the same worker channel
// the window probe uses.
func NewInputInjector(cfg InjectorConfig, ch Caller, logger pslog.Logger) (*InputInjector, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		return nil, fmt.Errorf("injector binary is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &InputInjector{cfg: cfg, ch: ch, log: logger.With("injector", cfg.Binary)}, nil
}

// Click presses the primary button at absolute logical coordinates.
func (i *InputInjector) Click(ctx context.Context, x, y int) error {
	return i.run(ctx, "click", fmt.Sprint(x), fmt.Sprint(y))
}

// KeyTap presses a single named key.
func (i *InputInjector) KeyTap(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return i.run(ctx, "key", key)
}

// TypeText types a string.
func (i *InputInjector) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return i.run(ctx, "type", text)
}

// Scroll emits whole scroll ticks at absolute logical coordinates,
// fire-and-forget through the worker. Never cached, never retried.
func (i *InputInjector) Scroll(ctx context.Context, ticks, x, y int, threeFinger bool) error {
	if ticks == 0 {
		return nil
	}
	kind := "wheel"
	if threeFinger {
		kind = "swipe"
	}
	return i.ch.Notify(fmt.Sprintf("scroll %s %d %d %d", kind, ticks, x, y))
}

func (i *InputInjector) run(ctx context.Context, args ...string) error {
	full := append(append([]string{}, i.cfg.Args...), args...)
	cmd := exec.CommandContext(ctx, i.cfg.Binary, full...)
	if out, err := cmd.CombinedOutput(); err != nil {
		i.log.Warn("input injection failed", "op", args[0], "err", err, "output", strings.TrimSpace(string(out)))
		return fmt.Errorf("inject %s: %w", args[0], err)
	}
	return nil
}
