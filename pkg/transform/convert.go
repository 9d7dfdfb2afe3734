package transform

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// parallelRows runs fn over [0,rows) split into contiguous bands.
func parallelRows(rows, workers int, fn func(y0, y1 int)) {
	if workers <= 1 || rows < 2*workers {
		fn(0, rows)
		return
	}

	band := (rows + workers - 1) / workers
	var wg sync.WaitGroup
	for y0 := 0; y0 < rows; y0 += band {
		y1 := min(y0+band, rows)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(y0, y1)
		}()
	}
	wg.Wait()
}

// toRGBA converts src into dst, which has src's size at origin 0,0.
func toRGBA(dst *image.RGBA, src image.Image, workers int) {
	b := src.Bounds()
	ycc, ok := src.(*image.YCbCr)
	if !ok {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return
	}

	w := b.Dx()
	if ycc.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		parallelRows(b.Dy(), workers, func(y0, y1 int) {
			for y := y0; y < y1; y++ {
				sy := b.Min.Y + y
				yRow := ycc.Y[ycc.YOffset(b.Min.X, sy):]
				cBase := (sy/2 - ycc.Rect.Min.Y/2) * ycc.CStride
				out := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
				for x := 0; x < w; x++ {
					ci := cBase + (b.Min.X+x)/2 - ycc.Rect.Min.X/2
					putRGB(out[x*4:x*4+4], yRow[x], ycc.Cb[ci], ycc.Cr[ci])
				}
			}
		})
		return
	}

	parallelRows(b.Dy(), workers, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			sy := b.Min.Y + y
			out := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
			for x := 0; x < w; x++ {
				sx := b.Min.X + x
				ci := ycc.COffset(sx, sy)
				putRGB(out[x*4:x*4+4], ycc.Y[ycc.YOffset(sx, sy)], ycc.Cb[ci], ycc.Cr[ci])
			}
		}
	})
}

// putRGB writes one pixel using the BT.601 limited-range integer transform.
func putRGB(px []byte, yy, cb, cr uint8) {
	c := int(yy) - 16
	d := int(cb) - 128
	e := int(cr) - 128

	px[0] = clamp((298*c + 409*e + 128) >> 8)
	px[1] = clamp((298*c - 100*d - 208*e + 128) >> 8)
	px[2] = clamp((298*c + 516*d + 128) >> 8)
	px[3] = 255
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
