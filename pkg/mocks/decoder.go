package mocks

import (
	"image"
	"io"

	"github.com/user/framecap/pkg/ports"
)

// Decoder is a mock implementation of ports.VideoDecoder. Every packet
// accepted by SubmitFunc (all of them when it is nil) yields one
// Width x Height 4:2:0 frame carrying the packet's PTS, in submission order.
// DrainFunc replaces that behavior entirely.
type Decoder struct {
	SubmitFunc func(pkt *ports.Packet) error
	DrainFunc  func() (*ports.RawFrame, error)
	CloseFunc  func() error

	Width  int
	Height int

	Submitted  []int
	Flushed    bool
	Released   int
	CloseCalls int
	pending    []int64
}

func (m *Decoder) Submit(pkt *ports.Packet) error {
	if pkt == nil {
		m.Flushed = true
	} else {
		m.Submitted = append(m.Submitted, pkt.Index)
	}
	if m.SubmitFunc != nil {
		if err := m.SubmitFunc(pkt); err != nil {
			return err
		}
	}
	if pkt != nil {
		m.pending = append(m.pending, pkt.PTS)
	}
	return nil
}

func (m *Decoder) Drain() (*ports.RawFrame, error) {
	if m.DrainFunc != nil {
		return m.DrainFunc()
	}
	if len(m.pending) == 0 {
		if m.Flushed {
			return nil, io.EOF
		}
		return nil, ports.ErrNeedMorePackets
	}
	pts := m.pending[0]
	m.pending = m.pending[1:]
	return m.Frame(pts), nil
}

// Frame builds a mid-gray frame that counts its release.
func (m *Decoder) Frame(pts int64) *ports.RawFrame {
	img := image.NewYCbCr(image.Rect(0, 0, m.Width, m.Height), image.YCbCrSubsampleRatio420)
	for i := range img.Y {
		img.Y[i] = 126
	}
	for i := range img.Cb {
		img.Cb[i] = 128
		img.Cr[i] = 128
	}
	return ports.NewRawFrame(img, pts, func() { m.Released++ })
}

func (m *Decoder) Close() error {
	m.CloseCalls++
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ ports.VideoDecoder = (*Decoder)(nil)
