//go:build !libaom || !cgo

package av1decoder

import "github.com/user/framecap/pkg/ports"

// Decoder is unavailable in this build.
type Decoder struct{}

// Available reports whether libaom support was compiled in.
func Available() bool { return false }

// New always fails with ErrNotAvailable.
func New(desc ports.StreamDescriptor, opts Options) (*Decoder, error) {
	return nil, ErrNotAvailable
}

func (d *Decoder) Submit(pkt *ports.Packet) error  { return ErrNotAvailable }
func (d *Decoder) Drain() (*ports.RawFrame, error) { return nil, ErrNotAvailable }
func (d *Decoder) Close() error                    { return nil }

var _ ports.VideoDecoder = (*Decoder)(nil)
