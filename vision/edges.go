// Package vision locates pane boundaries inside captured screenshots using
// local color-contrast statistics. It is theme-agnostic: any stable color
// boundary (panel separator, sidebar, status bar) registers, without knowing
// foreground or background colors. All functions are pure.
package vision

import (
	"image"
	"sort"
)

// Axis selects the scan direction for edge detection.
type Axis int

const (
	// AxisVertical scans for vertical separator lines (candidates are x positions).
	AxisVertical Axis = iota
	// AxisHorizontal scans for horizontal separator lines (candidates are y positions).
	AxisHorizontal
)

// Edge is one separator-line candidate along the scan axis.
type Edge struct {
	// Position is the candidate coordinate on the scan axis.
	Position int
	// Score is the fraction of sampled cross-axis pairs exceeding the
	// contrast threshold, in [0, 1].
	Score float64
}

// EdgeOptions tunes a single detection pass.
type EdgeOptions struct {
	// MinScore filters candidates below this score.
	MinScore float64
	// ContrastThreshold is the channel-wise absolute color difference sum
	// a sample pair must exceed to count as a hit.
	ContrastThreshold int
	// SampleStep is the spacing of samples along the perpendicular axis.
	SampleStep int
	// SampleOffset is how far to each side of the candidate position the
	// compared colors are read, avoiding single-pixel noise at the line.
	SampleOffset int
	// ScanMin and ScanMax bound candidate positions on the scan axis.
	// ScanMax <= 0 means the far edge of the buffer.
	ScanMin int
	ScanMax int
	// CrossMargin is skipped at both ends of the perpendicular axis.
	CrossMargin int
	// MergeTolerancePx merges candidates this close together, keeping the
	// highest score.
	MergeTolerancePx int
}

// Defaults for EdgeOptions fields left zero.
const (
	defaultMinScore          = 0.5
	defaultContrastThreshold = 90
	defaultSampleStep        = 10
	defaultSampleOffset      = 3
	defaultMergeTolerance    = 4
)

func (o EdgeOptions) normalized() EdgeOptions {
	if o.MinScore <= 0 {
		o.MinScore = defaultMinScore
	}
	if o.ContrastThreshold <= 0 {
		o.ContrastThreshold = defaultContrastThreshold
	}
	if o.SampleStep <= 0 {
		o.SampleStep = defaultSampleStep
	}
	if o.SampleOffset <= 0 {
		o.SampleOffset = defaultSampleOffset
	}
	if o.MergeTolerancePx <= 0 {
		o.MergeTolerancePx = defaultMergeTolerance
	}
	return o
}

// FindEdges returns separator-line candidates along the given axis, merged
// within MergeTolerancePx and sorted by position descending. Both axes scan
// from the far edge inward because target panes are conventionally anchored
// away from the origin corner.
func FindEdges(img *image.RGBA, axis Axis, opts EdgeOptions) []Edge {
	if img == nil {
		return nil
	}
	opts = opts.normalized()
	b := img.Bounds()
	width := b.Dx()
	height := b.Dy()

	scanLen := width
	crossLen := height
	if axis == AxisHorizontal {
		scanLen = height
		crossLen = width
	}

	scanMin := opts.ScanMin
	scanMax := opts.ScanMax
	if scanMax <= 0 || scanMax > scanLen {
		scanMax = scanLen
	}
	// Room to read SampleOffset pixels on each side of the candidate.
	if scanMin < opts.SampleOffset {
		scanMin = opts.SampleOffset
	}
	if scanMax > scanLen-opts.SampleOffset {
		scanMax = scanLen - opts.SampleOffset
	}
	if scanMin >= scanMax {
		return nil
	}

	crossStart := opts.CrossMargin
	crossEnd := crossLen - opts.CrossMargin
	if crossStart >= crossEnd {
		return nil
	}

	var raw []Edge
	for pos := scanMin; pos < scanMax; pos++ {
		hits, samples := 0, 0
		for cross := crossStart; cross < crossEnd; cross += opts.SampleStep {
			var d int
			if axis == AxisVertical {
				d = colorDiff(img, b.Min.X+pos-opts.SampleOffset, b.Min.Y+cross,
					b.Min.X+pos+opts.SampleOffset, b.Min.Y+cross)
			} else {
				d = colorDiff(img, b.Min.X+cross, b.Min.Y+pos-opts.SampleOffset,
					b.Min.X+cross, b.Min.Y+pos+opts.SampleOffset)
			}
			if d > opts.ContrastThreshold {
				hits++
			}
			samples++
		}
		if samples == 0 {
			continue
		}
		score := float64(hits) / float64(samples)
		if score >= opts.MinScore {
			raw = append(raw, Edge{Position: pos, Score: score})
		}
	}

	merged := mergeEdges(raw, opts.MergeTolerancePx)
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Position > merged[j].Position
	})
	return merged
}

// mergeEdges collapses runs of candidates within tolerance of each other,
// keeping the highest-scoring member of each run.
func mergeEdges(edges []Edge, tolerance int) []Edge {
	if len(edges) == 0 {
		return nil
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].Position < edges[j].Position
	})
	out := []Edge{edges[0]}
	for _, e := range edges[1:] {
		last := &out[len(out)-1]
		if e.Position-last.Position <= tolerance {
			if e.Score > last.Score {
				*last = e
			}
			continue
		}
		out = append(out, e)
	}
	return out
}

// colorDiff returns the sum of absolute RGB channel differences between two
// pixels. Coordinates are in the image's own coordinate space.
func colorDiff(img *image.RGBA, x1, y1, x2, y2 int) int {
	i1 := img.PixOffset(x1, y1)
	i2 := img.PixOffset(x2, y2)
	p := img.Pix
	return absInt(int(p[i1])-int(p[i2])) +
		absInt(int(p[i1+1])-int(p[i2+1])) +
		absInt(int(p[i1+2])-int(p[i2+2]))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
