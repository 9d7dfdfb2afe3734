// Package av1decoder provides an in-process AV1 decoder backed by libaom.
//
// The cgo implementation is compiled with the "libaom" build tag. Without it
// New returns ErrNotAvailable and callers fall back to another backend.
package av1decoder

import (
	"errors"
	"fmt"
	"image"

	"github.com/user/framecap/pkg/ports"
)

var (
	// ErrNotAvailable is returned when the package was built without libaom.
	ErrNotAvailable = errors.New("av1decoder: libaom support not compiled in")

	// ErrClosed is returned when the decoder is used after Close.
	ErrClosed = errors.New("av1decoder: decoder closed")

	// ErrHighBitDepth is returned for pictures with more than 8 bits per sample.
	ErrHighBitDepth = errors.New("av1decoder: high bit depth output not supported")
)

// Options configures the decoder.
type Options struct {
	Logger ports.Logger
	// Threads is the number of decoding threads. Zero uses libaom's default.
	Threads int
}

// subsampleRatio maps libaom's chroma shifts to an image.YCbCr ratio.
func subsampleRatio(xShift, yShift int) (image.YCbCrSubsampleRatio, error) {
	switch {
	case xShift == 1 && yShift == 1:
		return image.YCbCrSubsampleRatio420, nil
	case xShift == 1 && yShift == 0:
		return image.YCbCrSubsampleRatio422, nil
	case xShift == 0 && yShift == 0:
		return image.YCbCrSubsampleRatio444, nil
	default:
		return 0, fmt.Errorf("av1decoder: unsupported chroma shift %d,%d", xShift, yShift)
	}
}

// ptsFIFO remembers submitted timestamps. AV1 shows frames in decode order.
type ptsFIFO struct {
	items []int64
	last  int64
}

func (q *ptsFIFO) push(pts int64) {
	q.items = append(q.items, pts)
}

func (q *ptsFIFO) pop() int64 {
	if len(q.items) == 0 {
		q.last++
		return q.last
	}
	q.last = q.items[0]
	q.items = q.items[1:]
	return q.last
}
