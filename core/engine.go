package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/panecast/internal/settings"
	"pkt.systems/panecast/schema"
	"pkt.systems/panecast/vision"
	"pkt.systems/pslog"
)

const minLowResourceScale = 0.2

// Engine is the capture scheduler. It owns the shared capture tick, the
// per-client sessions, and the inbound event dispatch. All session state is
// guarded by one mutex; the tick loop and the transport goroutines are the
// only writers.
type Engine struct {
	cfg  schema.EngineConfig
	deps EngineDeps
	log  pslog.Logger

	mu       sync.Mutex
	clients  map[schema.ClientID]*ClientSession
	order    []schema.ClientID
	tracked  schema.Rect
	hasTrack bool
	dpi      schema.DPIScale

	inFlight atomic.Bool
	now      func() time.Time
}

// NewEngine validates the config and wires the dependencies. A nil Locator
// falls back to the built-in contrast-based pane locator; a nil Sink
// discards events.
func NewEngine(cfg schema.EngineConfig, deps EngineDeps) (*Engine, error) {
	cfg, err := schema.NormalizeEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	if deps.Capturer == nil {
		return nil, errors.New("core: capturer is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("core: settings source is required")
	}
	if deps.Locator == nil {
		deps.Locator = defaultLocator{}
	}
	if deps.Sink == nil {
		deps.Sink = NopSink{}
	}
	log := deps.Logger
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		log:     log.With("component", "engine"),
		clients: make(map[schema.ClientID]*ClientSession),
		dpi:     schema.DPIScale{X: 1, Y: 1},
		now:     time.Now,
	}, nil
}

// defaultLocator routes view modes to the vision package's pane policies.
type defaultLocator struct{}

func (defaultLocator) Locate(mode schema.ViewMode, img *image.RGBA) (schema.PaneBounds, bool) {
	switch mode {
	case schema.ViewChat:
		return vision.LocateChatPane(img, vision.EdgeOptions{})
	case schema.ViewTerminal:
		return vision.LocateTerminalPane(img, vision.EdgeOptions{})
	}
	return schema.PaneBounds{}, false
}

// Connect registers a new client session and returns it.
func (e *Engine) Connect(id schema.ClientID) *ClientSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess := newClientSession(id, e.now())
	e.clients[id] = sess
	e.order = append(e.order, id)
	e.log.Info("client connected", "client", id, "clients", len(e.clients))
	return sess
}

// Disconnect removes a client session and releases its settings overrides.
// Pending work for the client simply stops being scheduled.
func (e *Engine) Disconnect(id schema.ClientID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.clients[id]; !ok {
		return
	}
	delete(e.clients, id)
	for i, oid := range e.order {
		if oid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.deps.Settings.Release(id)
	e.log.Info("client disconnected", "client", id, "clients", len(e.clients))
}

// SetActive pauses or resumes streaming for a client without disconnecting.
func (e *Engine) SetActive(id schema.ClientID, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sess, ok := e.clients[id]; ok {
		sess.active = active
	}
}

// ClientCount reports the number of connected sessions.
func (e *Engine) ClientCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.clients)
}

// Run drives the capture tick and the window refresh loop until the context
// is cancelled. The tick interval is re-derived after every tick from the
// connected clients' effective frame rates.
func (e *Engine) Run(ctx context.Context) error {
	refresh := time.NewTicker(e.cfg.DetectionRefresh)
	defer refresh.Stop()
	timer := time.NewTimer(e.tickInterval())
	defer timer.Stop()
	e.log.Info("stream engine running",
		"maxFps", e.cfg.MaxFPS,
		"detectionRefresh", e.cfg.DetectionRefresh)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			e.refreshWindows(ctx)
		case <-timer.C:
			e.tick(ctx)
			timer.Reset(e.tickInterval())
		}
	}
}

// tickInterval derives the shared tick period from the highest effective
// frame rate among active streaming clients. In low-resource mode the
// global low-resource rate wins regardless of client overrides.
func (e *Engine) tickInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	global := e.deps.Settings.Global()
	fps := 0
	if global.LowResource {
		fps = global.LowResourceFPS
	} else {
		for _, id := range e.order {
			sess := e.clients[id]
			if sess == nil || !sess.active || !sess.mode.Streaming() {
				continue
			}
			if v := e.deps.Settings.Effective(id).FPS; v > fps {
				fps = v
			}
		}
	}
	if fps <= 0 {
		fps = 1
	}
	if fps > e.cfg.MaxFPS {
		fps = e.cfg.MaxFPS
	}
	return time.Second / time.Duration(fps)
}

// tick captures one snapshot and serves every eligible client from it.
// Overlapping ticks are skipped outright so a slow capture never stacks.
func (e *Engine) tick(ctx context.Context) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer e.inFlight.Store(false)

	if !e.hasEligibleClient() {
		return
	}
	snapshot, err := e.deps.Capturer.Capture(ctx)
	if err != nil {
		e.log.Warn("capture failed", "error", err)
		return
	}
	dpi := e.computeDPI(snapshot)
	windows := e.resolveWindowSources(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dpi = dpi
	for _, id := range e.order {
		sess := e.clients[id]
		if sess == nil || !sess.active || !sess.mode.Streaming() {
			continue
		}
		if err := e.serveClient(sess, snapshot, dpi, windows); err != nil {
			e.log.Warn("frame skipped", "client", id, "mode", sess.mode, "error", err)
		}
	}
}

// resolveWindowSources resolves the geometry of every window-backed stream
// source before the session lock is taken. A slow helper call must never
// stall event handling; only the lookup results enter the locked section.
func (e *Engine) resolveWindowSources(ctx context.Context) map[schema.StreamSource]schema.Rect {
	e.mu.Lock()
	sources := make(map[schema.StreamSource]struct{})
	for _, id := range e.order {
		sess := e.clients[id]
		if sess != nil && sess.active && sess.mode.Streaming() && sess.source.Type == schema.SourceWindow {
			sources[sess.source] = struct{}{}
		}
	}
	e.mu.Unlock()
	if len(sources) == 0 {
		return nil
	}
	windows := make(map[schema.StreamSource]schema.Rect, len(sources))
	for src := range sources {
		if rect, ok := e.lookupWindow(ctx, src); ok {
			windows[src] = rect
		}
	}
	return windows
}

func (e *Engine) hasEligibleClient() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, sess := range e.clients {
		if sess.active && sess.mode.Streaming() {
			return true
		}
	}
	return false
}

func (e *Engine) computeDPI(snapshot *image.RGBA) schema.DPIScale {
	lw, lh := e.deps.Capturer.LogicalSize()
	dpi := schema.DPIScale{X: 1, Y: 1}
	if lw > 0 {
		dpi.X = float64(snapshot.Bounds().Dx()) / float64(lw)
	}
	if lh > 0 {
		dpi.Y = float64(snapshot.Bounds().Dy()) / float64(lh)
	}
	return dpi
}

// serveClient resolves the client's region, runs detection on cadence,
// crops, scales, encodes and pushes one frame. Called with e.mu held;
// window geometry was resolved beforehand and arrives in windows.
func (e *Engine) serveClient(sess *ClientSession, snapshot *image.RGBA, dpi schema.DPIScale, windows map[schema.StreamSource]schema.Rect) error {
	vals := e.deps.Settings.Effective(sess.ID)
	snapBounds := schema.Rect{
		Width:  snapshot.Bounds().Dx(),
		Height: snapshot.Bounds().Dy(),
	}
	region := e.resolveBaseRegion(sess, snapBounds, dpi, windows)
	if region.Empty() {
		return schema.ErrNoCaptureArea
	}

	if sess.mode.Detectable() {
		region = e.applyDetection(sess, vals.DetectionMode, snapshot, region)
	}
	region = applyMarginCrop(region, vals).Clip(snapBounds)
	if region.Empty() {
		return schema.ErrNoCaptureArea
	}

	slice := vision.CropRGBA(snapshot, region)
	scale := effectiveScale(vals)
	if scale < 1 {
		slice = vision.ScaleRGBA(slice, scale)
	}
	encoded, err := encodeJPEG(slice, vals.Quality)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	sess.frameSeq++
	e.deps.Sink.EmitFrame(sess.ID, schema.FramePayload{
		Seq:   sess.frameSeq,
		Mode:  sess.mode,
		Image: encoded,
	})
	sess.lastCaptureArea = region
	sess.lastAreaSet = true
	sess.lastFrameScale = scale
	return nil
}

// resolveBaseRegion maps the client's stream source to an absolute snapshot
// rectangle. Window geometry arrives pre-resolved in logical coordinates
// and is scaled by DPI before clipping.
func (e *Engine) resolveBaseRegion(sess *ClientSession, snapBounds schema.Rect, dpi schema.DPIScale, windows map[schema.StreamSource]schema.Rect) schema.Rect {
	switch sess.source.Type {
	case schema.SourceGlobal:
		return snapBounds
	case schema.SourceWindow:
		if rect, ok := windows[sess.source]; ok {
			return rect.Scale(dpi.X, dpi.Y).Clip(snapBounds)
		}
	case schema.SourceAuto:
		if e.hasTrack {
			return e.tracked.Scale(dpi.X, dpi.Y).Clip(snapBounds)
		}
	}
	return e.cfg.DefaultRect.Clip(snapBounds)
}

func (e *Engine) lookupWindow(ctx context.Context, src schema.StreamSource) (schema.Rect, bool) {
	if e.deps.Probe == nil {
		return schema.Rect{}, false
	}
	var (
		rect schema.Rect
		ok   bool
		err  error
	)
	if src.Handle != "" {
		rect, ok, err = e.deps.Probe.WindowByHandle(ctx, src.Handle)
	} else {
		rect, ok, err = e.deps.Probe.WindowByTitle(ctx, src.Title)
	}
	if err != nil {
		e.log.Debug("window lookup failed", "handle", src.Handle, "title", src.Title, "error", err)
		return schema.Rect{}, false
	}
	return rect, ok
}

// applyDetection runs the pane locator on cadence and narrows the base
// region to the stable pane when one is committed. An inconclusive
// detection leaves the previous stable pane in effect.
func (e *Engine) applyDetection(sess *ClientSession, dm schema.DetectionMode, snapshot *image.RGBA, base schema.Rect) schema.Rect {
	now := e.now()
	st := sess.detectionFor(sess.mode, dm, now)
	if st.shouldDetect(e.cfg, now) {
		buf := vision.CropRGBA(snapshot, base)
		bounds, ok := e.deps.Locator.Locate(sess.mode, buf)
		if st.observe(bounds, ok, e.cfg, dm) && dm == schema.DetectFixed {
			sess.fixedZones[sess.mode] = st.stable
		}
	}
	if !st.stableSet {
		return base
	}
	pane := st.stable
	pane.X += base.X
	pane.Y += base.Y
	return pane.Clip(base)
}

func applyMarginCrop(region schema.Rect, vals settings.Values) schema.Rect {
	region.X += vals.CropLeft
	region.Y += vals.CropTop
	region.Width -= vals.CropLeft + vals.CropRight
	region.Height -= vals.CropTop + vals.CropBottom
	return region
}

func effectiveScale(vals settings.Values) float64 {
	scale := vals.Scale
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	if vals.LowResource {
		scale *= 0.5
		if scale < minLowResourceScale {
			scale = minLowResourceScale
		}
	}
	return scale
}

// refreshWindows re-resolves window geometry outside the capture tick so
// ticks can serve lookups from the probe's cache.
func (e *Engine) refreshWindows(ctx context.Context) {
	if e.deps.Probe == nil {
		return
	}
	rect, ok, err := e.deps.Probe.ActiveWindow(ctx)
	if err != nil {
		e.log.Debug("active window refresh failed", "error", err)
	} else {
		e.mu.Lock()
		e.tracked, e.hasTrack = rect, ok
		e.mu.Unlock()
	}
	e.mu.Lock()
	sources := make([]schema.StreamSource, 0, len(e.order))
	for _, id := range e.order {
		sess := e.clients[id]
		if sess != nil && sess.active && sess.source.Type == schema.SourceWindow {
			sources = append(sources, sess.source)
		}
	}
	e.mu.Unlock()
	for _, src := range sources {
		e.lookupWindow(ctx, src)
	}
}

func encodeJPEG(img *image.RGBA, quality int) (string, error) {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
