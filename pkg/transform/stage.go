// Package transform turns decoded pictures into fixed-size packed BGR
// buffers: color conversion, aspect-preserving scaling and letterbox padding.
package transform

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"

	"golang.org/x/image/draw"
)

// DefaultPadColor is the letterbox fill used when Options.PadColor is nil.
var DefaultPadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

var (
	// ErrEmptyImage is returned for pictures with no pixels.
	ErrEmptyImage = errors.New("transform: empty source image")

	// ErrShortBuffer is returned when dst cannot hold the output frame.
	ErrShortBuffer = errors.New("transform: destination buffer too small")
)

// areaKernel weighs each source pixel by the fraction of it covered by a
// destination pixel, for a shrink of scale source pixels per destination
// pixel. t is measured in destination pixels.
func areaKernel(scale float64) *draw.Kernel {
	if scale < 1 {
		scale = 1
	}
	return &draw.Kernel{
		Support: 0.5 + 0.5/scale,
		At: func(t float64) float64 {
			return min(max(scale*(0.5-t)+0.5, 0), 1)
		},
	}
}

// Options configures a Stage.
type Options struct {
	// Width and Height are the target size. Both zero selects passthrough.
	Width  int
	Height int
	// PadColor fills the letterbox bars. Nil means DefaultPadColor.
	PadColor color.Color
	// Workers is the number of goroutines converting rows. Zero means
	// runtime.NumCPU().
	Workers int
}

// Stage converts pictures for one stream. It keeps scratch buffers between
// calls and is not safe for concurrent use.
type Stage struct {
	width   int
	height  int
	pad     color.RGBA
	workers int

	native *image.RGBA
	scaled *image.RGBA
	// half holds the horizontally shrunk picture between area passes.
	half *image.RGBA
}

// New validates opts and creates a stage.
func New(opts Options) (*Stage, error) {
	if opts.Width < 0 || opts.Height < 0 {
		return nil, fmt.Errorf("transform: negative target size %dx%d", opts.Width, opts.Height)
	}
	if (opts.Width == 0) != (opts.Height == 0) {
		return nil, fmt.Errorf("transform: target size %dx%d must set both dimensions or neither", opts.Width, opts.Height)
	}

	pad := DefaultPadColor
	if opts.PadColor != nil {
		pad = color.RGBAModel.Convert(opts.PadColor).(color.RGBA)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Stage{
		width:   opts.Width,
		height:  opts.Height,
		pad:     pad,
		workers: workers,
	}, nil
}

// Passthrough reports whether frames keep their native size.
func (s *Stage) Passthrough() bool {
	return s.width == 0 && s.height == 0
}

// OutputSize returns the frame size produced for a srcW x srcH stream.
func (s *Stage) OutputSize(srcW, srcH int) (int, int) {
	if s.Passthrough() {
		return srcW, srcH
	}
	return s.width, s.height
}

// Geometry returns the placement used for a srcW x srcH picture.
func (s *Stage) Geometry(srcW, srcH int) Geometry {
	if s.Passthrough() {
		return identity(srcW, srcH)
	}
	return Fit(srcW, srcH, s.width, s.height)
}

// Transform writes src into dst as packed BGR rows of the output size.
// dst must hold at least width*height*3 bytes.
func (s *Stage) Transform(src image.Image, dst []byte) (Geometry, error) {
	b := src.Bounds()
	if b.Empty() {
		return Geometry{}, ErrEmptyImage
	}

	g := s.Geometry(b.Dx(), b.Dy())
	if need := g.Width * g.Height * 3; len(dst) < need {
		return g, fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, need, len(dst))
	}

	s.native = reuseRGBA(s.native, b.Dx(), b.Dy())
	toRGBA(s.native, src, s.workers)

	picture := s.native
	if g.ScaledWidth != g.SrcWidth || g.ScaledHeight != g.SrcHeight {
		s.scaled = reuseRGBA(s.scaled, g.ScaledWidth, g.ScaledHeight)
		if g.Scale < 1 {
			s.shrink(s.scaled, s.native)
		} else {
			draw.BiLinear.Scale(s.scaled, s.scaled.Bounds(), s.native, s.native.Bounds(), draw.Src, nil)
		}
		picture = s.scaled
	}

	s.writeBGR(dst, picture, g)
	return g, nil
}

// shrink area-resamples src into dst, one axis at a time so each axis uses
// its own ratio.
func (s *Stage) shrink(dst, src *image.RGBA) {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()

	s.half = reuseRGBA(s.half, dw, sh)
	areaKernel(float64(sw)/float64(dw)).Scale(s.half, s.half.Bounds(), src, src.Bounds(), draw.Src, nil)
	areaKernel(float64(sh)/float64(dh)).Scale(dst, dst.Bounds(), s.half, s.half.Bounds(), draw.Src, nil)
}

// writeBGR copies picture into dst at the geometry's offset and fills the
// bars with the pad color.
func (s *Stage) writeBGR(dst []byte, picture *image.RGBA, g Geometry) {
	rowBytes := g.Width * 3
	padRow := make([]byte, rowBytes)
	for i := 0; i < rowBytes; i += 3 {
		padRow[i] = s.pad.B
		padRow[i+1] = s.pad.G
		padRow[i+2] = s.pad.R
	}

	parallelRows(g.Height, s.workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := dst[y*rowBytes : (y+1)*rowBytes]
			py := y - g.Top
			if py < 0 || py >= g.ScaledHeight {
				copy(row, padRow)
				continue
			}

			copy(row[:g.Left*3], padRow)
			src := picture.Pix[py*picture.Stride:]
			out := row[g.Left*3:]
			for x := 0; x < g.ScaledWidth; x++ {
				out[x*3] = src[x*4+2]
				out[x*3+1] = src[x*4+1]
				out[x*3+2] = src[x*4]
			}
			copy(row[(g.Left+g.ScaledWidth)*3:], padRow)
		}
	})
}

func reuseRGBA(img *image.RGBA, w, h int) *image.RGBA {
	if img != nil && img.Rect.Dx() == w && img.Rect.Dy() == h {
		return img
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}
