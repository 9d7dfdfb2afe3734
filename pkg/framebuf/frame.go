package framebuf

import (
	"image"
	"sync/atomic"
	"time"
)

// Frame is one delivered picture as packed BGR rows (Height*Width*3 bytes).
type Frame struct {
	Data   []byte
	Width  int
	Height int
	// Index is the zero-based position in presentation order.
	Index int
	PTS   time.Duration

	pool     *Pool
	released atomic.Bool
	invalid  atomic.Bool
}

func newFrame(data []byte, width, height int, pool *Pool) *Frame {
	return &Frame{Data: data, Width: width, Height: height, pool: pool}
}

// Release hands an owned buffer back to its pool. It is safe to call from any
// goroutine and more than once. Data must not be used afterwards.
func (f *Frame) Release() {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return
	}
	if f.pool != nil {
		buf := f.Data
		f.Data = nil
		f.pool.put(buf)
	}
}

// Valid reports whether Data may still be read. Borrowed frames become
// invalid on the next read, released frames immediately.
func (f *Frame) Valid() bool {
	return f != nil && !f.released.Load() && !f.invalid.Load()
}

func (f *Frame) invalidate() {
	f.invalid.Store(true)
}

// Clone returns an independent copy that is not tied to any pool.
func (f *Frame) Clone() *Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &Frame{
		Data:   data,
		Width:  f.Width,
		Height: f.Height,
		Index:  f.Index,
		PTS:    f.PTS,
	}
}

// ToImage converts the frame to an RGBA image.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	n := f.Width * f.Height
	for i := 0; i < n && i*3+2 < len(f.Data); i++ {
		img.Pix[i*4] = f.Data[i*3+2]
		img.Pix[i*4+1] = f.Data[i*3+1]
		img.Pix[i*4+2] = f.Data[i*3]
		img.Pix[i*4+3] = 255
	}
	return img
}
