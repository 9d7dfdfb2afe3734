// Package libavdecoder decodes H.264, HEVC and AV1 in-process through the
// FFmpeg libraries using go-astiav.
//
// The implementation is compiled with the "astiav" build tag. Without it New
// returns ErrNotAvailable.
package libavdecoder

import (
	"errors"

	"github.com/user/framecap/pkg/ports"
)

var (
	// ErrNotAvailable is returned when the package was built without astiav.
	ErrNotAvailable = errors.New("libavdecoder: libav support not compiled in")

	// ErrClosed is returned when the decoder is used after Close.
	ErrClosed = errors.New("libavdecoder: decoder closed")
)

// Options configures the decoder.
type Options struct {
	Logger ports.Logger
	// Threads is the number of decoding threads. Zero lets libavcodec decide.
	Threads int
}

// Supports reports whether codec has a libavcodec decoder mapping.
func Supports(codec ports.Codec) bool {
	switch codec {
	case ports.CodecH264, ports.CodecHEVC, ports.CodecAV1:
		return true
	default:
		return false
	}
}
