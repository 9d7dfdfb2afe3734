package ffmpegdecoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/user/framecap/pkg/adapters/ffmpegbin"
	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/adapters/mp4demuxer"
	"github.com/user/framecap/pkg/ports"
	"github.com/user/framecap/pkg/testvideo"
)

func TestPTSQueue(t *testing.T) {
	var q ptsQueue
	for _, v := range []int64{0, 3, 1, 2} {
		q.push(v)
	}
	for want := int64(0); want < 4; want++ {
		if got := q.pop(-1); got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if got := q.pop(42); got != 42 {
		t.Errorf("expected fallback 42, got %d", got)
	}
}

func TestStderrLoop_ReportsDiagnosticsOnce(t *testing.T) {
	var out bytes.Buffer
	d := &Decoder{
		logger:     logger.NewWriter(ports.LevelDebug, &out, &out),
		stderrDone: make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.mu)

	var lines strings.Builder
	lines.WriteString("[h264 @ 0x1] error while decoding MB 3 2\n\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&lines, "[h264 @ 0x1] concealing %d errors\n", i)
	}
	d.stderrLoop(strings.NewReader(lines.String()))

	if !strings.Contains(out.String(), "error while decoding MB 3 2") {
		t.Errorf("expected diagnostic to be logged, got %q", out.String())
	}
	if len(d.tail) != stderrTail || d.tail[stderrTail-1] != "[h264 @ 0x1] concealing 9 errors" {
		t.Errorf("unexpected tail %q", d.tail)
	}

	_, err := d.Drain()
	if !errors.Is(err, ports.ErrCorruptPacket) || !strings.Contains(err.Error(), "error while decoding MB") {
		t.Fatalf("expected ErrCorruptPacket with the first diagnostic, got %v", err)
	}
	if _, err := d.Drain(); !errors.Is(err, ports.ErrNeedMorePackets) {
		t.Errorf("diagnostics must be reported once, got %v", err)
	}
}

func TestWrapYUV420(t *testing.T) {
	w, h := 5, 3
	buf := make([]byte, w*h+2*3*2)
	img := wrapYUV420(buf, w, h)

	if img.Bounds() != image.Rect(0, 0, w, h) {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
	if img.CStride != 3 {
		t.Errorf("expected chroma stride 3, got %d", img.CStride)
	}
	if len(img.Y) != 15 || len(img.Cb) != 6 || len(img.Cr) != 6 {
		t.Errorf("unexpected plane sizes %d/%d/%d", len(img.Y), len(img.Cb), len(img.Cr))
	}
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name string
		desc ports.StreamDescriptor
	}{
		{"unknown codec", ports.StreamDescriptor{Codec: ports.CodecUnknown, Width: 64, Height: 64}},
		{"zero size", ports.StreamDescriptor{Codec: ports.CodecH264}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.desc, Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSupports(t *testing.T) {
	for _, c := range []ports.Codec{ports.CodecH264, ports.CodecHEVC, ports.CodecAV1} {
		if !Supports(c) {
			t.Errorf("expected %s to be supported", c)
		}
	}
	if Supports(ports.CodecUnknown) {
		t.Error("unknown codec must not be supported")
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if !ffmpegbin.Available("") {
		t.Skip("ffmpeg not available")
	}
}

func TestDecoder_CorruptPacketRejected(t *testing.T) {
	requireFFmpeg(t)

	d, err := New(ports.StreamDescriptor{Codec: ports.CodecH264, Width: 64, Height: 64, NALULengthSize: 4}, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	// Length prefix claims more bytes than the sample holds.
	bad := &ports.Packet{Data: []byte{0, 0, 0, 9, 0x65}, Index: 3}
	if err := d.Submit(bad); !errors.Is(err, ports.ErrCorruptPacket) {
		t.Errorf("expected ErrCorruptPacket, got %v", err)
	}
	if _, err := d.Drain(); !errors.Is(err, ports.ErrNeedMorePackets) {
		t.Errorf("expected ErrNeedMorePackets, got %v", err)
	}
}

func TestDecoder_DecodesClip(t *testing.T) {
	tests := []struct {
		name string
		opts testvideo.Options
	}{
		{"h264", testvideo.Options{Width: 160, Height: 120, Frames: 10, Codec: "h264"}},
		{"h264 b-frames", testvideo.Options{Width: 160, Height: 120, Frames: 10, Codec: "h264", BFrames: 2}},
		{"hevc", testvideo.Options{Width: 160, Height: 120, Frames: 6, Codec: "hevc"}},
		{"av1", testvideo.Options{Width: 160, Height: 120, Frames: 4, Codec: "av1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := testvideo.Require(t, tt.opts)

			demux := mp4demuxer.New(logger.NewNoop())
			defer demux.Close()
			desc, err := demux.Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}

			d, err := New(desc, Options{})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer d.Close()

			frames := decodeAll(t, demux, d)
			if len(frames) != tt.opts.Frames {
				t.Fatalf("expected %d frames, got %d", tt.opts.Frames, len(frames))
			}
			for i, f := range frames {
				if f.Image.Bounds().Dx() != tt.opts.Width || f.Image.Bounds().Dy() != tt.opts.Height {
					t.Errorf("frame %d: unexpected size %v", i, f.Image.Bounds())
				}
				if i > 0 && f.PTS <= frames[i-1].PTS {
					t.Errorf("frame %d: pts %d not after %d", i, f.PTS, frames[i-1].PTS)
				}
				f.Release()
			}

			for i := 0; i < 2; i++ {
				if _, err := d.Drain(); !errors.Is(err, io.EOF) {
					t.Errorf("expected io.EOF after flush, got %v", err)
				}
			}
		})
	}
}

func decodeAll(t *testing.T, demux ports.Demuxer, d ports.VideoDecoder) []*ports.RawFrame {
	t.Helper()

	var frames []*ports.RawFrame
	for {
		pkt, err := demux.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextPacket: %v", err)
		}
		if err := d.Submit(&pkt); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		for {
			f, err := d.Drain()
			if errors.Is(err, ports.ErrNeedMorePackets) {
				break
			}
			if err != nil {
				t.Fatalf("Drain: %v", err)
			}
			frames = append(frames, f)
		}
	}

	if err := d.Submit(nil); err != nil {
		t.Fatalf("flush: %v", err)
	}
	for {
		f, err := d.Drain()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Drain after flush: %v", err)
		}
		frames = append(frames, f)
	}
}

func TestDecoder_CloseIsIdempotent(t *testing.T) {
	requireFFmpeg(t)

	d, err := New(ports.StreamDescriptor{Codec: ports.CodecH264, Width: 64, Height: 64}, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := d.Close(); err != nil {
			t.Errorf("close %d: %v", i, err)
		}
	}
	if err := d.Submit(&ports.Packet{}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
