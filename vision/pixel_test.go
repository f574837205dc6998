package vision

import (
	"image"
	"image/color"
	"testing"

	"pkt.systems/panecast/schema"
)

func TestCropRGBAIsIndependentCopy(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))
	fillRect(src, 0, 0, 100, 100, color.RGBA{50, 60, 70, 255})

	crop := CropRGBA(src, schema.Rect{X: 10, Y: 20, Width: 30, Height: 40})
	if got := crop.Bounds(); got.Dx() != 30 || got.Dy() != 40 {
		t.Fatalf("crop bounds = %v", got)
	}
	crop.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	if src.RGBAAt(10, 20) != (color.RGBA{50, 60, 70, 255}) {
		t.Fatalf("crop aliases source pixels")
	}
}

func TestCropRGBAClipsToBuffer(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 50, 50))
	crop := CropRGBA(src, schema.Rect{X: 40, Y: 40, Width: 100, Height: 100})
	if got := crop.Bounds(); got.Dx() != 10 || got.Dy() != 10 {
		t.Fatalf("crop bounds = %v, want 10x10", got)
	}
}

func TestScaleRGBA(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	out := ScaleRGBA(src, 0.5)
	if got := out.Bounds(); got.Dx() != 100 || got.Dy() != 50 {
		t.Fatalf("scaled bounds = %v, want 100x50", got)
	}
	if same := ScaleRGBA(src, 1.0); same != src {
		t.Fatalf("factor 1.0 must return the input unchanged")
	}
}
