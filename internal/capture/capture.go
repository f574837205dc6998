// Package capture takes full-screen snapshots through a configured external
// screenshot command that writes PNG to stdout. The command is the OS
// binding; everything above it works on plain RGBA buffers.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"

	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

// Capturer produces full-screen snapshots and knows the logical screen size
// used to derive the DPI scale factor.
type Capturer interface {
	Capture(ctx context.Context) (*image.RGBA, error)
	LogicalSize() (width, height int)
}

// Config controls the command-backed capturer.
type Config struct {
	Command string
	Args    []string
	// LogicalWidth/LogicalHeight are the OS logical screen dimensions.
	// Zero means "same as snapshot pixels" (DPI scale 1).
	LogicalWidth  int
	LogicalHeight int
}

// CommandCapturer shells out to a screenshot tool per capture.
type CommandCapturer struct {
	cfg Config
	log pslog.Logger
}

// NewCommand constructs a command-backed capturer.
func NewCommand(cfg Config, logger pslog.Logger) (*CommandCapturer, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, errors.New("capture command is required")
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &CommandCapturer{cfg: cfg, log: logger.With("capture_cmd", cfg.Command)}, nil
}

// Capture runs the screenshot command and decodes its PNG output.
func (c *CommandCapturer) Capture(ctx context.Context) (*image.RGBA, error) {
	cmd := exec.CommandContext(ctx, c.cfg.Command, c.cfg.Args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		c.log.Warn("capture command failed", "err", err)
		return nil, fmt.Errorf("%w: %v", schema.ErrCaptureFailed, err)
	}
	img, err := png.Decode(&out)
	if err != nil {
		c.log.Warn("capture decode failed", "err", err)
		return nil, fmt.Errorf("%w: decode: %v", schema.ErrCaptureFailed, err)
	}
	return toRGBA(img), nil
}

// LogicalSize returns the configured logical screen dimensions.
func (c *CommandCapturer) LogicalSize() (int, int) {
	return c.cfg.LogicalWidth, c.cfg.LogicalHeight
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
