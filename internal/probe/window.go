// Package probe binds OS-level window geometry and synthetic input to the
// worker helper process. Geometry lookups are idempotent and wrapped with a
// short TTL cache; injection calls always execute exactly once.
package probe

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"pkt.systems/panecast/internal/worker"
	"pkt.systems/panecast/schema"
	"pkt.systems/pslog"
)

// geometryPattern matches helper geometry responses: "x,y,WxH".
var geometryPattern = regexp.MustCompile(`^(-?\d+),(-?\d+),(\d+)x(\d+)$`)

// Caller is the worker surface the probe needs; satisfied by *worker.Channel.
type Caller interface {
	Call(ctx context.Context, payload string) (string, error)
	Notify(payload string) error
}

// WindowProbe answers window geometry and focus queries.
type WindowProbe struct {
	ch    Caller
	cache *worker.Cache
	log   pslog.Logger
}

// NewWindowProbe constructs a probe over the given worker channel.
func NewWindowProbe(ch Caller, ttl time.Duration, logger pslog.Logger) *WindowProbe {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &WindowProbe{ch: ch, cache: worker.NewCache(ttl), log: logger}
}

// WindowByTitle resolves the geometry of the first window whose title
// matches. Results are cached for the probe's TTL.
func (p *WindowProbe) WindowByTitle(ctx context.Context, title string) (schema.Rect, bool, error) {
	return p.lookup(ctx, "geometry title "+title)
}

// WindowByHandle resolves the geometry of a window by its OS handle.
func (p *WindowProbe) WindowByHandle(ctx context.Context, handle string) (schema.Rect, bool, error) {
	return p.lookup(ctx, "geometry handle "+handle)
}

// ActiveWindow resolves the geometry of the frontmost window.
func (p *WindowProbe) ActiveWindow(ctx context.Context) (schema.Rect, bool, error) {
	return p.lookup(ctx, "geometry active")
}

// FocusName reports the accessibility name of the focused element. Never
// cached: focus moves constantly.
func (p *WindowProbe) FocusName(ctx context.Context) (string, error) {
	result, err := p.ch.Call(ctx, "focus")
	if err != nil {
		return "", err
	}
	result = strings.TrimSpace(result)
	if result == "" || result == "none" {
		return "", nil
	}
	return result, nil
}

func (p *WindowProbe) lookup(ctx context.Context, query string) (schema.Rect, bool, error) {
	if cached, ok := p.cache.Get(query); ok {
		return parseGeometry(cached)
	}
	result, err := p.ch.Call(ctx, query)
	if err != nil {
		return schema.Rect{}, false, err
	}
	result = strings.TrimSpace(result)
	p.cache.Put(query, result)
	return parseGeometry(result)
}

func parseGeometry(result string) (schema.Rect, bool, error) {
	if result == "" || result == "none" {
		return schema.Rect{}, false, nil
	}
	m := geometryPattern.FindStringSubmatch(result)
	if m == nil {
		return schema.Rect{}, false, fmt.Errorf("unparseable geometry %q", result)
	}
	x, _ := strconv.Atoi(m[1])
	y, _ := strconv.Atoi(m[2])
	w, _ := strconv.Atoi(m[3])
	h, _ := strconv.Atoi(m[4])
	return schema.Rect{X: x, Y: y, Width: w, Height: h}, true, nil
}
