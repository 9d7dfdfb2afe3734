//go:build libaom && cgo

package av1decoder

/*
#cgo pkg-config: aom
#include <aom/aom_decoder.h>
#include <aom/aomdx.h>
#include <stdlib.h>
#include <string.h>

static aom_codec_err_t init_decoder(aom_codec_ctx_t *ctx, unsigned int threads) {
    aom_codec_dec_cfg_t cfg;
    memset(&cfg, 0, sizeof(cfg));
    cfg.threads = threads;
    cfg.allow_lowbitdepth = 1;
    return aom_codec_dec_init(ctx, aom_codec_av1_dx(), &cfg, 0);
}

static unsigned char* get_plane(aom_image_t *img, int plane) {
    return img->planes[plane];
}

static int get_stride(aom_image_t *img, int plane) {
    return img->stride[plane];
}

static int is_high_bitdepth(aom_image_t *img) {
    return (img->fmt & AOM_IMG_FMT_HIGHBITDEPTH) != 0;
}
*/
import "C"

import (
	"fmt"
	"image"
	"io"
	"unsafe"

	"github.com/user/framecap/pkg/adapters/bitstream"
	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/ports"
)

// Decoder implements ports.VideoDecoder with libaom.
type Decoder struct {
	logger  ports.Logger
	desc    ports.StreamDescriptor
	codec   *C.aom_codec_ctx_t
	iter    C.aom_codec_iter_t
	pts     ptsFIFO
	buf     []byte
	flushed bool
	drained bool
}

// Available reports whether libaom support was compiled in.
func Available() bool { return true }

// New initializes a libaom decoder for desc.
func New(desc ports.StreamDescriptor, opts Options) (*Decoder, error) {
	if desc.Codec != ports.CodecAV1 {
		return nil, fmt.Errorf("av1decoder: unsupported codec %s", desc.Codec)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}

	codec := (*C.aom_codec_ctx_t)(C.malloc(C.sizeof_aom_codec_ctx_t))
	if codec == nil {
		return nil, fmt.Errorf("av1decoder: failed to allocate decoder context")
	}
	C.memset(unsafe.Pointer(codec), 0, C.sizeof_aom_codec_ctx_t)

	if res := C.init_decoder(codec, C.uint(opts.Threads)); res != C.AOM_CODEC_OK {
		C.free(unsafe.Pointer(codec))
		return nil, fmt.Errorf("%w: init: %s", ports.ErrFatalDecode, C.GoString(C.aom_codec_err_to_string(res)))
	}

	d := &Decoder{
		logger: log.WithComponent("libaom"),
		desc:   desc,
		codec:  codec,
		pts:    ptsFIFO{last: -1},
	}
	d.logger.Debug("Started libaom decoder (%dx%d)", desc.Width, desc.Height)
	return d, nil
}

// Submit decodes one temporal unit. A nil packet flushes the decoder.
func (d *Decoder) Submit(pkt *ports.Packet) error {
	if d.codec == nil {
		return ErrClosed
	}

	if pkt == nil {
		if d.flushed {
			return nil
		}
		d.flushed = true
		res := C.aom_codec_decode(d.codec, nil, 0, nil)
		d.iter = nil
		if res != C.AOM_CODEC_OK {
			return d.decodeErr(res, -1)
		}
		return nil
	}

	var err error
	d.buf, err = bitstream.Shape(d.buf[:0], d.desc, pkt)
	if err != nil {
		return fmt.Errorf("%w: packet %d: %v", ports.ErrCorruptPacket, pkt.Index, err)
	}

	res := C.aom_codec_decode(
		d.codec,
		(*C.uint8_t)(unsafe.Pointer(&d.buf[0])),
		C.size_t(len(d.buf)),
		nil,
	)
	d.iter = nil
	if res != C.AOM_CODEC_OK {
		return d.decodeErr(res, pkt.Index)
	}
	d.pts.push(pkt.PTS)
	return nil
}

func (d *Decoder) decodeErr(res C.aom_codec_err_t, index int) error {
	msg := C.GoString(C.aom_codec_err_to_string(res))
	if detail := C.aom_codec_error_detail(d.codec); detail != nil {
		msg += ": " + C.GoString(detail)
	}
	switch res {
	case C.AOM_CODEC_MEM_ERROR, C.AOM_CODEC_ABI_MISMATCH, C.AOM_CODEC_INCAPABLE:
		return fmt.Errorf("%w: %s", ports.ErrFatalDecode, msg)
	default:
		return fmt.Errorf("%w: packet %d: %s", ports.ErrCorruptPacket, index, msg)
	}
}

// Drain returns the next shown frame.
func (d *Decoder) Drain() (*ports.RawFrame, error) {
	if d.codec == nil {
		return nil, ErrClosed
	}
	if d.drained {
		return nil, io.EOF
	}

	img := C.aom_codec_get_frame(d.codec, &d.iter)
	if img == nil {
		if d.flushed {
			d.drained = true
			return nil, io.EOF
		}
		return nil, ports.ErrNeedMorePackets
	}

	out, err := copyImage(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrFatalDecode, err)
	}
	return ports.NewRawFrame(out, d.pts.pop(), nil), nil
}

// Close releases decoder resources.
func (d *Decoder) Close() error {
	if d.codec != nil {
		C.aom_codec_destroy(d.codec)
		C.free(unsafe.Pointer(d.codec))
		d.codec = nil
		d.logger.Debug("libaom decoder closed")
	}
	return nil
}

// copyImage copies an 8-bit aom_image_t into Go memory.
func copyImage(img *C.aom_image_t) (*image.YCbCr, error) {
	if C.is_high_bitdepth(img) != 0 {
		return nil, ErrHighBitDepth
	}

	width := int(img.d_w)
	height := int(img.d_h)
	ratio, err := subsampleRatio(int(img.x_chroma_shift), int(img.y_chroma_shift))
	if err != nil {
		return nil, err
	}

	out := image.NewYCbCr(image.Rect(0, 0, width, height), ratio)
	cw := (width + int(img.x_chroma_shift)) >> int(img.x_chroma_shift)
	ch := (height + int(img.y_chroma_shift)) >> int(img.y_chroma_shift)

	copyPlane(out.Y, out.YStride, C.get_plane(img, 0), int(C.get_stride(img, 0)), width, height)
	if img.monochrome != 0 {
		for i := range out.Cb {
			out.Cb[i] = 128
			out.Cr[i] = 128
		}
		return out, nil
	}
	copyPlane(out.Cb, out.CStride, C.get_plane(img, 1), int(C.get_stride(img, 1)), cw, ch)
	copyPlane(out.Cr, out.CStride, C.get_plane(img, 2), int(C.get_stride(img, 2)), cw, ch)
	return out, nil
}

func copyPlane(dst []byte, dstStride int, src *C.uchar, srcStride, w, h int) {
	plane := unsafe.Slice((*byte)(unsafe.Pointer(src)), srcStride*(h-1)+w)
	for y := 0; y < h; y++ {
		copy(dst[y*dstStride:y*dstStride+w], plane[y*srcStride:y*srcStride+w])
	}
}

var _ ports.VideoDecoder = (*Decoder)(nil)
