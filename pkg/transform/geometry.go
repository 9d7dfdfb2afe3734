package transform

import "math"

// Geometry describes how a source picture is placed on the target canvas.
type Geometry struct {
	SrcWidth  int
	SrcHeight int
	// Width and Height are the output (canvas) dimensions.
	Width  int
	Height int
	// ScaledWidth and ScaledHeight are the picture size after scaling.
	ScaledWidth  int
	ScaledHeight int
	Scale        float64

	Left   int
	Right  int
	Top    int
	Bottom int
}

// Fit computes the aspect-preserving letterbox placement of a w0 x h0 picture
// on a w x h canvas. Odd padding puts the extra pixel on the right or bottom.
func Fit(w0, h0, w, h int) Geometry {
	scale := math.Min(float64(w)/float64(w0), float64(h)/float64(h0))
	w1 := clampInt(int(math.Round(float64(w0)*scale)), 1, w)
	h1 := clampInt(int(math.Round(float64(h0)*scale)), 1, h)

	left := (w - w1) / 2
	top := (h - h1) / 2
	return Geometry{
		SrcWidth:     w0,
		SrcHeight:    h0,
		Width:        w,
		Height:       h,
		ScaledWidth:  w1,
		ScaledHeight: h1,
		Scale:        scale,
		Left:         left,
		Right:        w - w1 - left,
		Top:          top,
		Bottom:       h - h1 - top,
	}
}

// identity is the geometry of passthrough mode.
func identity(w0, h0 int) Geometry {
	return Geometry{
		SrcWidth:     w0,
		SrcHeight:    h0,
		Width:        w0,
		Height:       h0,
		ScaledWidth:  w0,
		ScaledHeight: h0,
		Scale:        1,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
