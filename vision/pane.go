package vision

import (
	"image"

	"pkt.systems/panecast/schema"
)

// Chat pane search band, fractions of buffer width. The band excludes
// scrollbars near the right margin and sidebars near the left.
const (
	chatScanMinFrac = 0.35
	chatScanMaxFrac = 0.90
	// nearTieFrac treats candidates within this fraction of the best score
	// as ties, broken by position.
	nearTieFrac = 0.10
)

// Terminal pane constants. The bottom-proximity correction (25px/45px)
// assumes a thin strip at the bottom of the band is the status bar rather
// than the panel edge; tunable, not derived from measurement.
const (
	terminalScanMinFrac     = 0.30
	terminalStatusBarMargin = 40
	terminalBridgeGapPx     = 100
	terminalMinGatheredPx   = 80
	terminalMinSeparationPx = 100
	terminalBottomSnapPx    = 25
	terminalBottomNextPx    = 45
	terminalMinHeightPx     = 120
	terminalLeftMinFrac     = 0.02
	terminalLeftMaxFrac     = 0.60
	terminalRightMinFrac    = 0.40
	terminalRightMaxFrac    = 0.98
)

// LocateChatPane proposes the chat pane inside the buffer: a single vertical
// separator scan across the full height, spanning from the chosen boundary
// to the right edge. Returns false when no candidate passes filtering.
func LocateChatPane(img *image.RGBA, opts EdgeOptions) (schema.PaneBounds, bool) {
	if img == nil {
		return schema.PaneBounds{}, false
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	opts.ScanMin = int(float64(width) * chatScanMinFrac)
	opts.ScanMax = int(float64(width) * chatScanMaxFrac)
	edges := FindEdges(img, AxisVertical, opts)
	if len(edges) == 0 {
		return schema.PaneBounds{}, false
	}
	// Highest score wins; near-ties go to the rightmost candidate, which is
	// closer to the conventional chat-panel boundary. Edges arrive sorted
	// by position descending, so the first near-tie is the rightmost.
	best := edges[0].Score
	for _, e := range edges[1:] {
		if e.Score > best {
			best = e.Score
		}
	}
	for _, e := range edges {
		if e.Score >= best*(1-nearTieFrac) {
			return schema.PaneBounds{X: e.Position, Y: 0, Width: width - e.Position, Height: height}, true
		}
	}
	return schema.PaneBounds{}, false
}

// LocateTerminalPane proposes the terminal pane: a horizontal pass finds the
// top and bottom separators of the panel, then a vertical pass over the full
// width of that slice finds independent left and right sidebar separators.
// Returns false when no acceptable candidate combination exists.
func LocateTerminalPane(img *image.RGBA, opts EdgeOptions) (schema.PaneBounds, bool) {
	if img == nil {
		return schema.PaneBounds{}, false
	}
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	hOpts := opts
	hOpts.ScanMin = int(float64(height) * terminalScanMinFrac)
	hOpts.ScanMax = height - terminalStatusBarMargin
	horiz := FindEdges(img, AxisHorizontal, hOpts)
	if len(horiz) == 0 {
		return schema.PaneBounds{}, false
	}

	top, bottom, ok := selectTerminalBand(horiz, hOpts.ScanMax)
	if !ok || bottom-top < terminalMinHeightPx {
		return schema.PaneBounds{}, false
	}

	slice := CropRGBA(img, schema.Rect{X: 0, Y: top, Width: width, Height: bottom - top})

	left := 0
	lOpts := opts
	lOpts.ScanMin = int(float64(width) * terminalLeftMinFrac)
	lOpts.ScanMax = int(float64(width) * terminalLeftMaxFrac)
	if e, found := pickNearTie(FindEdges(slice, AxisVertical, lOpts), false); found {
		left = e.Position
	}

	right := width
	rOpts := opts
	rOpts.ScanMin = int(float64(width) * terminalRightMinFrac)
	rOpts.ScanMax = int(float64(width) * terminalRightMaxFrac)
	if e, found := pickNearTie(FindEdges(slice, AxisVertical, rOpts), true); found {
		right = e.Position
	}

	if right <= left {
		return schema.PaneBounds{}, false
	}
	return schema.PaneBounds{X: left, Y: top, Width: right - left, Height: bottom - top}, true
}

// selectTerminalBand walks horizontal candidates bottom-to-top (they arrive
// sorted by position descending) to pick the panel's top separator, bridging
// gaps up to terminalBridgeGapPx (tab strips), stopping at a larger gap once
// enough height is gathered. The bottom separator is the lowest candidate at
// least terminalMinSeparationPx below the top, corrected when the lowest
// candidate hugs the bottom of the scan band.
func selectTerminalBand(edges []Edge, scanBottom int) (top, bottom int, ok bool) {
	if len(edges) == 0 {
		return 0, 0, false
	}
	anchor := edges[0].Position
	top = anchor
	for _, e := range edges[1:] {
		gap := top - e.Position
		if gap > terminalBridgeGapPx && anchor-top > terminalMinGatheredPx {
			break
		}
		top = e.Position
	}

	bottomIdx := -1
	for i, e := range edges {
		if e.Position >= top+terminalMinSeparationPx {
			bottomIdx = i
			break
		}
	}
	if bottomIdx < 0 {
		return 0, 0, false
	}
	bottom = edges[bottomIdx].Position
	if scanBottom-bottom <= terminalBottomSnapPx && bottomIdx+1 < len(edges) {
		next := edges[bottomIdx+1].Position
		if scanBottom-next <= terminalBottomNextPx && next >= top+terminalMinSeparationPx {
			bottom = next
		}
	}
	return top, bottom, true
}

// pickNearTie selects the best-scoring edge; among near-tied scores it
// prefers the candidate nearer the terminal interior. Edges are sorted by
// position descending, so for a right separator (interiorLeft) the tie goes
// to the last near-tie, and for a left separator to the first.
func pickNearTie(edges []Edge, interiorLeft bool) (Edge, bool) {
	if len(edges) == 0 {
		return Edge{}, false
	}
	best := edges[0].Score
	for _, e := range edges[1:] {
		if e.Score > best {
			best = e.Score
		}
	}
	threshold := best * (1 - nearTieFrac)
	if interiorLeft {
		for i := len(edges) - 1; i >= 0; i-- {
			if edges[i].Score >= threshold {
				return edges[i], true
			}
		}
	}
	for _, e := range edges {
		if e.Score >= threshold {
			return e, true
		}
	}
	return Edge{}, false
}
