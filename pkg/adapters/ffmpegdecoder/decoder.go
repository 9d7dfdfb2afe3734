// Package ffmpegdecoder decodes H.264, HEVC and AV1 elementary streams with a
// long-running ffmpeg process. Packets are written to its stdin and raw
// YUV 4:2:0 pictures are read back from its stdout.
package ffmpegdecoder

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/user/framecap/pkg/adapters/bitstream"
	"github.com/user/framecap/pkg/adapters/ffmpegbin"
	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/ports"
)

// inputBacklog bounds the number of shaped packets waiting for the writer.
const inputBacklog = 16

// stderrTail is the number of ffmpeg diagnostic lines kept for error reports.
const stderrTail = 8

// probeSize is enough for ffmpeg to see the parameter sets and first picture
// without buffering a large part of the stream.
const probeSize = "262144"

var (
	// ErrClosed is returned when the decoder is used after Close.
	ErrClosed = errors.New("ffmpegdecoder: decoder closed")

	// ErrFlushed is returned by Submit after the end-of-stream flush started.
	ErrFlushed = errors.New("ffmpegdecoder: stream already flushed")
)

var inputFormats = map[ports.Codec]string{
	ports.CodecH264: "h264",
	ports.CodecHEVC: "hevc",
	ports.CodecAV1:  "obu",
}

// Options configures the decoder.
type Options struct {
	// FFmpegPath overrides ffmpeg discovery.
	FFmpegPath string
	Logger     ports.Logger
}

type decoded struct {
	img *image.YCbCr
	buf *[]byte
}

// Decoder implements ports.VideoDecoder on top of an ffmpeg child process.
type Decoder struct {
	logger    ports.Logger
	desc      ports.StreamDescriptor
	frameSize int

	cmd        *exec.Cmd
	stdin      io.WriteCloser
	input      chan []byte
	pool       sync.Pool
	stderrDone chan struct{}

	pts     ptsQueue
	lastPTS int64
	flushed bool

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []decoded
	tail     []string
	warning  string
	readDone bool
	waitErr  error
	writeErr error
	closed   bool
}

// Supports reports whether codec can be fed to ffmpeg as an elementary stream.
func Supports(codec ports.Codec) bool {
	_, ok := inputFormats[codec]
	return ok
}

// Available reports whether an ffmpeg binary can be found.
func Available(custom string) bool {
	return ffmpegbin.Available(custom)
}

// New starts an ffmpeg process configured for desc.
func New(desc ports.StreamDescriptor, opts Options) (*Decoder, error) {
	format, ok := inputFormats[desc.Codec]
	if !ok {
		return nil, fmt.Errorf("ffmpegdecoder: unsupported codec %s", desc.Codec)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("ffmpegdecoder: invalid dimensions %dx%d", desc.Width, desc.Height)
	}

	ffmpegPath, err := ffmpegbin.Find(opts.FFmpegPath)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNoop()
	}

	w, h := desc.Width, desc.Height
	cw, ch := (w+1)/2, (h+1)/2
	d := &Decoder{
		logger:     log.WithComponent("ffmpeg"),
		desc:       desc,
		frameSize:  w*h + 2*cw*ch,
		input:      make(chan []byte, inputBacklog),
		stderrDone: make(chan struct{}),
		lastPTS:    -1,
	}
	d.cond = sync.NewCond(&d.mu)
	d.pool.New = func() any {
		b := make([]byte, d.frameSize)
		return &b
	}

	d.cmd = exec.Command(ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-threads", "0",
		"-flags", "+output_corrupt",
		"-flags2", "+showall",
		"-probesize", probeSize,
		"-f", format,
		"-i", "pipe:0",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-vsync", "0",
		"pipe:1",
	)
	d.stdin, err = d.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpegdecoder: stdin pipe: %w", err)
	}
	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpegdecoder: stdout pipe: %w", err)
	}
	stderr, err := d.cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpegdecoder: stderr pipe: %w", err)
	}
	if err := d.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpegdecoder: start ffmpeg: %w", err)
	}

	d.logger.Debug("Started ffmpeg decoder for %s (%dx%d)", string(desc.Codec), w, h)

	go d.writeLoop()
	go d.stderrLoop(stderr)
	go d.readLoop(stdout)

	return d, nil
}

// Submit shapes pkt into the codec's elementary stream and queues it for
// ffmpeg. A nil packet closes ffmpeg's input so it flushes remaining frames.
func (d *Decoder) Submit(pkt *ports.Packet) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if d.flushed {
		if pkt == nil {
			return nil
		}
		return ErrFlushed
	}

	if pkt == nil {
		d.flushed = true
		close(d.input)
		return nil
	}

	data, err := bitstream.Shape(nil, d.desc, pkt)
	if err != nil {
		return fmt.Errorf("%w: packet %d: %v", ports.ErrCorruptPacket, pkt.Index, err)
	}

	d.pts.push(pkt.PTS)
	d.input <- data
	return nil
}

// Drain returns the next decoded frame. Before the flush it never blocks and
// reports ports.ErrNeedMorePackets when nothing is ready. After the flush it
// waits for ffmpeg until the last frame, then returns io.EOF. Diagnostics
// ffmpeg printed since the previous call are reported once as
// ports.ErrCorruptPacket.
func (d *Decoder) Drain() (*ports.RawFrame, error) {
	d.mu.Lock()
	for {
		if d.closed {
			d.mu.Unlock()
			return nil, ErrClosed
		}
		if d.warning != "" && d.waitErr == nil {
			msg := d.warning
			d.warning = ""
			d.mu.Unlock()
			return nil, fmt.Errorf("%w: ffmpeg: %s", ports.ErrCorruptPacket, msg)
		}
		if len(d.queue) > 0 {
			next := d.queue[0]
			d.queue[0] = decoded{}
			d.queue = d.queue[1:]
			d.mu.Unlock()
			return d.frame(next), nil
		}
		if d.readDone {
			err := d.finishErr()
			d.mu.Unlock()
			return nil, err
		}
		if !d.flushed {
			d.mu.Unlock()
			return nil, ports.ErrNeedMorePackets
		}
		d.cond.Wait()
	}
}

// finishErr is called with d.mu held once ffmpeg has exited.
func (d *Decoder) finishErr() error {
	tail := strings.Join(d.tail, "; ")
	if d.waitErr != nil {
		return fmt.Errorf("%w: ffmpeg: %v: %s", ports.ErrFatalDecode, d.waitErr, tail)
	}
	if d.writeErr != nil {
		return fmt.Errorf("%w: write to ffmpeg: %v", ports.ErrFatalDecode, d.writeErr)
	}
	if !d.flushed {
		return fmt.Errorf("%w: ffmpeg exited before end of stream: %s", ports.ErrFatalDecode, tail)
	}
	return io.EOF
}

func (d *Decoder) frame(next decoded) *ports.RawFrame {
	pts := d.pts.pop(d.lastPTS + 1)
	d.lastPTS = pts
	return ports.NewRawFrame(next.img, pts, func() {
		d.pool.Put(next.buf)
	})
}

// Close stops ffmpeg and waits for its pipes to drain. Frames already handed
// out stay valid.
func (d *Decoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if !d.flushed {
		d.flushed = true
		close(d.input)
	}
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}

	d.mu.Lock()
	for !d.readDone {
		d.cond.Wait()
	}
	d.queue = nil
	d.mu.Unlock()

	d.logger.Debug("ffmpeg decoder closed")
	return nil
}

func (d *Decoder) writeLoop() {
	var werr error
	for data := range d.input {
		if werr != nil {
			continue
		}
		if _, err := d.stdin.Write(data); err != nil {
			werr = err
		}
	}
	if err := d.stdin.Close(); err != nil && werr == nil {
		werr = err
	}

	if werr != nil {
		d.mu.Lock()
		d.writeErr = werr
		d.mu.Unlock()
	}
}

// stderrLoop logs ffmpeg's diagnostics as they arrive and keeps the last
// few for error reports.
func (d *Decoder) stderrLoop(stderr io.Reader) {
	defer close(d.stderrDone)

	sc := bufio.NewScanner(stderr)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		d.logger.Warn("ffmpeg: %s", line)

		d.mu.Lock()
		if len(d.tail) == stderrTail {
			copy(d.tail, d.tail[1:])
			d.tail = d.tail[:stderrTail-1]
		}
		d.tail = append(d.tail, line)
		if d.warning == "" && !d.closed {
			d.warning = line
		}
		d.mu.Unlock()
	}
}

func (d *Decoder) readLoop(stdout io.Reader) {
	w, h := d.desc.Width, d.desc.Height
	for {
		bufp := d.pool.Get().(*[]byte)
		_, err := io.ReadFull(stdout, *bufp)
		if err != nil {
			d.pool.Put(bufp)
			<-d.stderrDone
			waitErr := d.cmd.Wait()
			if waitErr == nil && errors.Is(err, io.ErrUnexpectedEOF) {
				waitErr = fmt.Errorf("truncated picture")
			}

			d.mu.Lock()
			d.readDone = true
			if !d.closed {
				d.waitErr = waitErr
			}
			d.cond.Broadcast()
			d.mu.Unlock()
			return
		}

		img := wrapYUV420(*bufp, w, h)
		d.mu.Lock()
		d.queue = append(d.queue, decoded{img: img, buf: bufp})
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

// wrapYUV420 views a packed yuv420p picture as an image.YCbCr without copying.
func wrapYUV420(buf []byte, w, h int) *image.YCbCr {
	cw, ch := (w+1)/2, (h+1)/2
	ySize := w * h
	cSize := cw * ch
	return &image.YCbCr{
		Y:              buf[:ySize:ySize],
		Cb:             buf[ySize : ySize+cSize : ySize+cSize],
		Cr:             buf[ySize+cSize : ySize+2*cSize : ySize+2*cSize],
		YStride:        w,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, w, h),
	}
}

var _ ports.VideoDecoder = (*Decoder)(nil)
