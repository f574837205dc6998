package vision

import (
	"image"
	"image/color"
	"testing"
)

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func twoTone(width, height, boundaryX int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRect(img, 0, 0, boundaryX, height, color.RGBA{30, 30, 30, 255})
	fillRect(img, boundaryX, 0, width, height, color.RGBA{220, 220, 220, 255})
	return img
}

func TestFindEdgesSingleVerticalBoundary(t *testing.T) {
	const boundary = 250
	img := twoTone(400, 300, boundary)

	edges := FindEdges(img, AxisVertical, EdgeOptions{})
	if len(edges) == 0 {
		t.Fatalf("expected at least one edge")
	}
	best := edges[0]
	for _, e := range edges[1:] {
		if e.Score > best.Score {
			best = e
		}
	}
	if d := absInt(best.Position - boundary); d > defaultSampleStep {
		t.Fatalf("edge at %d, want within %d of %d", best.Position, defaultSampleStep, boundary)
	}
	if best.Score < 0.9 {
		t.Fatalf("edge score %.2f, want >= 0.9", best.Score)
	}
}

func TestFindEdgesSingleHorizontalBoundary(t *testing.T) {
	const boundary = 180
	img := image.NewRGBA(image.Rect(0, 0, 300, 400))
	fillRect(img, 0, 0, 300, boundary, color.RGBA{20, 60, 20, 255})
	fillRect(img, 0, boundary, 300, 400, color.RGBA{200, 120, 240, 255})

	edges := FindEdges(img, AxisHorizontal, EdgeOptions{})
	if len(edges) != 1 {
		t.Fatalf("expected single merged edge, got %d", len(edges))
	}
	if d := absInt(edges[0].Position - boundary); d > defaultSampleStep {
		t.Fatalf("edge at %d, want near %d", edges[0].Position, boundary)
	}
}

func TestFindEdgesNoContrast(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	fillRect(img, 0, 0, 200, 200, color.RGBA{128, 128, 128, 255})

	if edges := FindEdges(img, AxisVertical, EdgeOptions{}); len(edges) != 0 {
		t.Fatalf("expected no edges, got %v", edges)
	}
	if edges := FindEdges(img, AxisHorizontal, EdgeOptions{}); len(edges) != 0 {
		t.Fatalf("expected no edges, got %v", edges)
	}
}

func TestFindEdgesSortedDescending(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 500, 200))
	fillRect(img, 0, 0, 150, 200, color.RGBA{10, 10, 10, 255})
	fillRect(img, 150, 0, 350, 200, color.RGBA{230, 230, 230, 255})
	fillRect(img, 350, 0, 500, 200, color.RGBA{10, 10, 10, 255})

	edges := FindEdges(img, AxisVertical, EdgeOptions{})
	if len(edges) < 2 {
		t.Fatalf("expected two edges, got %d", len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i].Position >= edges[i-1].Position {
			t.Fatalf("edges not sorted descending: %v", edges)
		}
	}
}

func TestFindEdgesScanRange(t *testing.T) {
	img := twoTone(400, 300, 250)
	edges := FindEdges(img, AxisVertical, EdgeOptions{ScanMin: 300, ScanMax: 390})
	if len(edges) != 0 {
		t.Fatalf("expected boundary outside scan range to be ignored, got %v", edges)
	}
}

func TestMergeEdgesKeepsHighestScore(t *testing.T) {
	in := []Edge{
		{Position: 100, Score: 0.6},
		{Position: 102, Score: 0.9},
		{Position: 103, Score: 0.7},
		{Position: 200, Score: 0.5},
	}
	out := mergeEdges(in, 4)
	if len(out) != 2 {
		t.Fatalf("expected 2 merged edges, got %d: %v", len(out), out)
	}
	if out[0].Position != 102 || out[0].Score != 0.9 {
		t.Fatalf("expected merged run to keep highest score, got %v", out[0])
	}
}
