//go:build astiav

package libavdecoder

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/user/framecap/pkg/adapters/bitstream"
	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/ports"
)

var codecIDs = map[ports.Codec]astiav.CodecID{
	ports.CodecH264: astiav.CodecIDH264,
	ports.CodecHEVC: astiav.CodecIDHevc,
	ports.CodecAV1:  astiav.CodecIDAv1,
}

var logLevelOnce sync.Once

// Decoder implements ports.VideoDecoder with libavcodec.
type Decoder struct {
	logger  ports.Logger
	desc    ports.StreamDescriptor
	ctx     *astiav.CodecContext
	pkt     *astiav.Packet
	frame   *astiav.Frame
	buf     []byte
	flushed bool
	drained bool
}

// Available reports whether libav support was compiled in.
func Available() bool { return true }

// New opens a libavcodec decoder for desc.
func New(desc ports.StreamDescriptor, opts Options) (*Decoder, error) {
	id, ok := codecIDs[desc.Codec]
	if !ok {
		return nil, fmt.Errorf("libavdecoder: unsupported codec %s", desc.Codec)
	}

	logLevelOnce.Do(func() {
		astiav.SetLogLevel(astiav.LogLevelError)
	})

	codec := astiav.FindDecoder(id)
	if codec == nil {
		return nil, fmt.Errorf("libavdecoder: no decoder for %s", desc.Codec)
	}

	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, fmt.Errorf("libavdecoder: failed to allocate codec context")
	}
	ctx.SetWidth(desc.Width)
	ctx.SetHeight(desc.Height)
	ctx.SetThreadCount(opts.Threads)
	ctx.SetThreadType(astiav.ThreadTypeFrame | astiav.ThreadTypeSlice)

	if err := ctx.Open(codec, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("%w: open %s: %v", ports.ErrFatalDecode, desc.Codec, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}

	d := &Decoder{
		logger: log.WithComponent("libav"),
		desc:   desc,
		ctx:    ctx,
		pkt:    astiav.AllocPacket(),
		frame:  astiav.AllocFrame(),
	}
	d.logger.Debug("Started libavcodec decoder %s (%dx%d)", codec.Name(), desc.Width, desc.Height)
	return d, nil
}

// Submit sends one packet to libavcodec. A nil packet enters draining mode.
func (d *Decoder) Submit(pkt *ports.Packet) error {
	if d.ctx == nil {
		return ErrClosed
	}

	if pkt == nil {
		if d.flushed {
			return nil
		}
		d.flushed = true
		if err := d.ctx.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
			return fmt.Errorf("%w: flush: %v", ports.ErrFatalDecode, err)
		}
		return nil
	}

	var err error
	d.buf, err = bitstream.Shape(d.buf[:0], d.desc, pkt)
	if err != nil {
		return fmt.Errorf("%w: packet %d: %v", ports.ErrCorruptPacket, pkt.Index, err)
	}

	d.pkt.Unref()
	if err := d.pkt.FromData(d.buf); err != nil {
		return fmt.Errorf("%w: packet %d: %v", ports.ErrFatalDecode, pkt.Index, err)
	}
	d.pkt.SetPts(pkt.PTS)
	d.pkt.SetDts(pkt.DTS)

	if err := d.ctx.SendPacket(d.pkt); err != nil {
		return d.mapErr(err, pkt.Index)
	}
	return nil
}

func (d *Decoder) mapErr(err error, index int) error {
	switch {
	case errors.Is(err, astiav.ErrInvaliddata):
		return fmt.Errorf("%w: packet %d: %v", ports.ErrCorruptPacket, index, err)
	case errors.Is(err, astiav.ErrEagain):
		// Output must be drained first. The caller drains before every
		// submit, so this only happens with frame threading backlog.
		return fmt.Errorf("%w: packet %d: decoder input full", ports.ErrCorruptPacket, index)
	default:
		return fmt.Errorf("%w: packet %d: %v", ports.ErrFatalDecode, index, err)
	}
}

// Drain receives the next frame from libavcodec.
func (d *Decoder) Drain() (*ports.RawFrame, error) {
	if d.ctx == nil {
		return nil, ErrClosed
	}
	if d.drained {
		return nil, io.EOF
	}

	err := d.ctx.ReceiveFrame(d.frame)
	switch {
	case err == nil:
	case errors.Is(err, astiav.ErrEagain):
		return nil, ports.ErrNeedMorePackets
	case errors.Is(err, astiav.ErrEof):
		d.drained = true
		return nil, io.EOF
	case errors.Is(err, astiav.ErrInvaliddata):
		return nil, fmt.Errorf("%w: %v", ports.ErrCorruptPacket, err)
	default:
		return nil, fmt.Errorf("%w: %v", ports.ErrFatalDecode, err)
	}
	defer d.frame.Unref()

	img, err := d.frame.Data().GuessImageFormat()
	if err != nil {
		return nil, fmt.Errorf("%w: pixel format %s: %v", ports.ErrFatalDecode, d.frame.PixelFormat(), err)
	}
	if err := d.frame.Data().ToImage(img); err != nil {
		return nil, fmt.Errorf("%w: copy frame: %v", ports.ErrFatalDecode, err)
	}
	return ports.NewRawFrame(img, d.frame.Pts(), nil), nil
}

// Close frees the codec context and scratch objects.
func (d *Decoder) Close() error {
	if d.ctx == nil {
		return nil
	}
	d.frame.Free()
	d.pkt.Free()
	d.ctx.Free()
	d.ctx = nil
	d.logger.Debug("libavcodec decoder closed")
	return nil
}

var _ ports.VideoDecoder = (*Decoder)(nil)
