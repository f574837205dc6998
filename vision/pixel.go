package vision

import (
	"image"

	"golang.org/x/image/draw"

	"pkt.systems/panecast/schema"
)

// CropRGBA returns an independent copy of the region, never an aliased
// sub-image: per-client slices must not share pixels across a tick. The
// region is clipped to the buffer; an empty intersection yields a 1x1 buffer.
func CropRGBA(img *image.RGBA, region schema.Rect) *image.RGBA {
	b := img.Bounds()
	r := region.Clip(schema.Rect{X: 0, Y: 0, Width: b.Dx(), Height: b.Dy()})
	if r.Empty() {
		return image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		srcOff := img.PixOffset(b.Min.X+r.X, b.Min.Y+r.Y+y)
		dstOff := out.PixOffset(0, y)
		copy(out.Pix[dstOff:dstOff+r.Width*4], img.Pix[srcOff:srcOff+r.Width*4])
	}
	return out
}

// ScaleRGBA resamples the buffer by the given factor. Factors >= 1 or
// non-positive return the input unchanged.
func ScaleRGBA(img *image.RGBA, factor float64) *image.RGBA {
	if factor <= 0 || factor >= 1 {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), img, b, draw.Src, nil)
	return out
}
