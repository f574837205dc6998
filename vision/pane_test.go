package vision

import (
	"image"
	"image/color"
	"testing"
)

// chatScreen builds a 1000x800 screenshot with a sidebar boundary at 400 and
// the chat panel boundary at the given x.
func chatScreen(chatX int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 800))
	fillRect(img, 0, 0, 400, 800, color.RGBA{25, 25, 35, 255})
	fillRect(img, 400, 0, chatX, 800, color.RGBA{40, 44, 52, 255})
	fillRect(img, chatX, 0, 1000, 800, color.RGBA{215, 218, 225, 255})
	return img
}

func TestLocateChatPane(t *testing.T) {
	const chatX = 620
	pane, ok := LocateChatPane(chatScreen(chatX), EdgeOptions{})
	if !ok {
		t.Fatalf("expected chat pane")
	}
	if d := absInt(pane.X - chatX); d > defaultSampleStep {
		t.Fatalf("pane x = %d, want near %d", pane.X, chatX)
	}
	if pane.Y != 0 || pane.Height != 800 {
		t.Fatalf("chat pane must span full height, got %v", pane)
	}
	if pane.X+pane.Width != 1000 {
		t.Fatalf("chat pane must reach the right edge, got %v", pane)
	}
}

func TestLocateChatPanePrefersRightmostNearTie(t *testing.T) {
	// Two equally sharp boundaries inside the scan band; the rightmost is
	// the conventional chat-panel boundary.
	img := image.NewRGBA(image.Rect(0, 0, 1000, 800))
	fillRect(img, 0, 0, 450, 800, color.RGBA{30, 30, 30, 255})
	fillRect(img, 450, 0, 700, 800, color.RGBA{220, 220, 220, 255})
	fillRect(img, 700, 0, 1000, 800, color.RGBA{30, 30, 30, 255})

	pane, ok := LocateChatPane(img, EdgeOptions{})
	if !ok {
		t.Fatalf("expected chat pane")
	}
	if d := absInt(pane.X - 700); d > defaultSampleStep {
		t.Fatalf("expected rightmost boundary near 700, got %d", pane.X)
	}
}

func TestLocateChatPaneNoBoundary(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1000, 800))
	fillRect(img, 0, 0, 1000, 800, color.RGBA{40, 44, 52, 255})
	if _, ok := LocateChatPane(img, EdgeOptions{}); ok {
		t.Fatalf("expected no pane on a uniform buffer")
	}
}

func TestSelectTerminalBandBottomCorrection(t *testing.T) {
	// Snapshot 1200x900: scan band bottom is 900-40=860. The lowest
	// candidate hugs the band bottom, so the next one up is the panel edge.
	edges := []Edge{
		{Position: 850, Score: 0.95},
		{Position: 820, Score: 0.90},
		{Position: 700, Score: 0.90},
	}
	top, bottom, ok := selectTerminalBand(edges, 860)
	if !ok {
		t.Fatalf("expected a band")
	}
	if top != 700 {
		t.Fatalf("top = %d, want 700", top)
	}
	if bottom != 820 {
		t.Fatalf("bottom = %d, want 820 (not 850)", bottom)
	}
}

func TestSelectTerminalBandBridgesTabStrip(t *testing.T) {
	// A tab strip sits 60px above the panel body; the walk bridges it.
	edges := []Edge{
		{Position: 800, Score: 0.9},
		{Position: 740, Score: 0.8},
		{Position: 500, Score: 0.9},
	}
	top, bottom, ok := selectTerminalBand(edges, 860)
	if !ok {
		t.Fatalf("expected a band")
	}
	// 800->740 gap 60 bridges; 740->500 gap 200 with only 60px gathered, so
	// the walk keeps extending to 500.
	if top != 500 {
		t.Fatalf("top = %d, want 500", top)
	}
	if bottom != 800 {
		t.Fatalf("bottom = %d, want 800", bottom)
	}
}

func TestSelectTerminalBandStopsAfterGatheredHeight(t *testing.T) {
	edges := []Edge{
		{Position: 800, Score: 0.9},
		{Position: 710, Score: 0.8},
		{Position: 400, Score: 0.9},
	}
	top, _, ok := selectTerminalBand(edges, 860)
	if !ok {
		t.Fatalf("expected a band")
	}
	// 90px gathered before the 310px gap, so the walk stops at 710.
	if top != 710 {
		t.Fatalf("top = %d, want 710", top)
	}
}

func TestSelectTerminalBandNoSeparation(t *testing.T) {
	edges := []Edge{
		{Position: 800, Score: 0.9},
		{Position: 780, Score: 0.9},
	}
	if _, _, ok := selectTerminalBand(edges, 860); ok {
		t.Fatalf("expected no band when candidates are too close together")
	}
}

// terminalScreen builds a 1200x900 screenshot with a terminal panel between
// y=600 and y=810, sidebars ending at x=120 and starting at x=1080.
func terminalScreen() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1200, 900))
	fillRect(img, 0, 0, 1200, 600, color.RGBA{60, 66, 76, 255})
	fillRect(img, 0, 600, 1200, 810, color.RGBA{10, 10, 12, 255})
	fillRect(img, 0, 810, 1200, 900, color.RGBA{180, 185, 190, 255})
	// Full-height sidebars with contrast against both bands.
	fillRect(img, 0, 0, 120, 900, color.RGBA{230, 120, 40, 255})
	fillRect(img, 1080, 0, 1200, 900, color.RGBA{230, 120, 40, 255})
	return img
}

func TestLocateTerminalPane(t *testing.T) {
	pane, ok := LocateTerminalPane(terminalScreen(), EdgeOptions{})
	if !ok {
		t.Fatalf("expected terminal pane")
	}
	if d := absInt(pane.Y - 600); d > defaultSampleStep {
		t.Fatalf("pane top = %d, want near 600", pane.Y)
	}
	if d := absInt(pane.Y + pane.Height - 810); d > defaultSampleStep {
		t.Fatalf("pane bottom = %d, want near 810", pane.Y+pane.Height)
	}
	if d := absInt(pane.X - 120); d > defaultSampleStep {
		t.Fatalf("pane left = %d, want near 120", pane.X)
	}
	if d := absInt(pane.X + pane.Width - 1080); d > defaultSampleStep {
		t.Fatalf("pane right = %d, want near 1080", pane.X+pane.Width)
	}
}

func TestLocateTerminalPaneRejectsShortPanel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1200, 900))
	fillRect(img, 0, 0, 1200, 700, color.RGBA{60, 66, 76, 255})
	fillRect(img, 0, 700, 1200, 805, color.RGBA{10, 10, 12, 255})
	fillRect(img, 0, 805, 1200, 900, color.RGBA{60, 66, 76, 255})
	if pane, ok := LocateTerminalPane(img, EdgeOptions{}); ok && pane.Height < terminalMinHeightPx {
		t.Fatalf("accepted pane below minimum height: %v", pane)
	}
}
