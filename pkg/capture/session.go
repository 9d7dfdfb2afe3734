// Package capture sequences demuxing, decoding, transformation and buffer
// delivery behind a small open/read/close session.
//
// A Session is not safe for concurrent use. Read blocks until a frame is
// ready or the stream ends; frames arrive one at a time in presentation
// order.
package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"time"

	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/adapters/mp4demuxer"
	"github.com/user/framecap/pkg/adapters/smartdecoder"
	"github.com/user/framecap/pkg/framebuf"
	"github.com/user/framecap/pkg/ports"
	"github.com/user/framecap/pkg/transform"
)

// Options configures a Session. The zero value is usable.
type Options struct {
	// PadColor fills letterbox bars. Nil means transform.DefaultPadColor.
	PadColor color.Color
	Policy   framebuf.Policy
	// Backend forces a decoder backend. Empty selects automatically.
	Backend    smartdecoder.Backend
	FFmpegPath string
	// Workers is the transform row parallelism. Zero means runtime.NumCPU().
	Workers int
	// PoolSize bounds the owned-buffer free list.
	PoolSize int
	Logger   ports.Logger
	// Sink receives the stream descriptor and native frames when enabled.
	Sink ports.DebugSink

	// NewDemuxer and NewDecoder replace the default MP4 demuxer and
	// backend selection.
	NewDemuxer func(logger ports.Logger) ports.Demuxer
	NewDecoder func(desc ports.StreamDescriptor) (ports.VideoDecoder, error)
}

// Stats counts what happened since the last Open. Close keeps the counts.
type Stats struct {
	PacketsRead     int
	FramesDecoded   int
	FramesDelivered int
	// Dropped counts packets skipped as corrupt.
	Dropped int
}

// Session is a capture session over one video file at a time.
type Session struct {
	opts   Options
	logger ports.Logger

	path    string
	desc    ports.StreamDescriptor
	backend smartdecoder.Backend
	demux   ports.Demuxer
	dec     ports.VideoDecoder
	stage   *transform.Stage
	pool    *framebuf.Pool

	open    bool
	flushed bool
	eos     bool
	err     error

	delivered int
	lastPTS   int64
	hasPTS    bool
	stats     Stats
}

// New creates a closed session.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoop()
	}
	return &Session{
		opts:   opts,
		logger: opts.Logger.WithComponent("capture"),
	}
}

// Open starts decoding path. Frames are letterboxed to width x height, or
// delivered at native size when both are zero. An open stream is closed
// first. On failure the session is left closed and the error is an
// *OpenError.
func (s *Session) Open(path string, width, height int) error {
	s.Close()
	s.delivered = 0
	s.stats = Stats{}

	stage, err := transform.New(transform.Options{
		Width:    width,
		Height:   height,
		PadColor: s.opts.PadColor,
		Workers:  s.opts.Workers,
	})
	if err != nil {
		return &OpenError{Path: path, Err: err}
	}

	demux := s.newDemuxer()
	desc, err := demux.Open(path)
	if err != nil {
		demux.Close()
		return &OpenError{Path: path, Err: err}
	}

	dec, backend, err := s.newDecoder(desc)
	if err != nil {
		demux.Close()
		return &OpenError{Path: path, Err: err}
	}

	s.path = path
	s.desc = desc
	s.backend = backend
	s.demux = demux
	s.dec = dec
	s.stage = stage
	s.pool = framebuf.NewPool(s.opts.Policy, s.opts.PoolSize)
	s.open = true

	s.logger.Info("Opened %s: %s %dx%d, %.2f fps, %d frames", path, string(desc.Codec), desc.Width, desc.Height, desc.FrameRate, desc.FrameCount)
	if backend != "" {
		s.logger.Debug("Decoder backend: %s", string(backend))
	}
	s.dumpStream()
	return nil
}

func (s *Session) newDemuxer() ports.Demuxer {
	if s.opts.NewDemuxer != nil {
		return s.opts.NewDemuxer(s.opts.Logger)
	}
	return mp4demuxer.New(s.opts.Logger)
}

func (s *Session) newDecoder(desc ports.StreamDescriptor) (ports.VideoDecoder, smartdecoder.Backend, error) {
	if s.opts.NewDecoder != nil {
		dec, err := s.opts.NewDecoder(desc)
		return dec, "", err
	}
	dec, info, err := smartdecoder.New(desc, smartdecoder.Options{
		Backend:    s.opts.Backend,
		FFmpegPath: s.opts.FFmpegPath,
		Logger:     s.opts.Logger,
	})
	return dec, info.Backend, err
}

func (s *Session) dumpStream() {
	if s.opts.Sink == nil || !s.opts.Sink.Enabled() {
		return
	}
	data, err := json.MarshalIndent(streamInfo{
		Path:        s.path,
		Codec:       string(s.desc.Codec),
		FourCC:      s.desc.FourCC,
		Backend:     string(s.backend),
		Width:       s.desc.Width,
		Height:      s.desc.Height,
		FrameRate:   s.desc.FrameRate,
		FrameCount:  s.desc.FrameCount,
		DurationSec: s.desc.Duration.Seconds(),
		TimeScale:   s.desc.TimeScale,
	}, "", "  ")
	if err == nil {
		err = s.opts.Sink.SaveStreamJSON(data)
	}
	if err != nil {
		s.logger.Warn("Failed to save debug output: %s", err.Error())
	}
}

type streamInfo struct {
	Path        string  `json:"path"`
	Codec       string  `json:"codec"`
	FourCC      string  `json:"fourcc"`
	Backend     string  `json:"backend,omitempty"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FrameRate   float64 `json:"frameRate"`
	FrameCount  int     `json:"frameCount"`
	DurationSec float64 `json:"durationSec"`
	TimeScale   uint32  `json:"timeScale"`
}

// Read returns the next frame. It returns false at the end of the stream,
// after a fatal decode error (see Err) and when the session is closed.
// Under the Borrowed policy the previous frame becomes invalid.
func (s *Session) Read() (*framebuf.Frame, bool) {
	if !s.open || s.eos || s.err != nil {
		return nil, false
	}

	raw, err := s.nextRaw()
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.eos = true
			s.logger.Debug("End of stream after %d frames", s.delivered)
			return nil, false
		}
		s.err = err
		s.logger.Error("Decoding failed: %s", err.Error())
		return nil, false
	}

	frame, err := s.deliver(raw)
	raw.Release()
	if err != nil {
		s.err = fmt.Errorf("%w: %w", ports.ErrFatalDecode, err)
		s.logger.Error("Decoding failed: %s", s.err.Error())
		return nil, false
	}
	return frame, true
}

// nextRaw pulls the decoder, feeding it packets until it yields a frame.
func (s *Session) nextRaw() (*ports.RawFrame, error) {
	for {
		raw, err := s.dec.Drain()
		switch {
		case err == nil:
			s.stats.FramesDecoded++
			return raw, nil
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.Is(err, ports.ErrCorruptPacket):
			s.drop(err)
			continue
		case !errors.Is(err, ports.ErrNeedMorePackets):
			return nil, err
		}

		if s.flushed {
			return nil, io.EOF
		}

		pkt, err := s.demux.NextPacket()
		if errors.Is(err, io.EOF) {
			s.flushed = true
			if err := s.dec.Submit(nil); err != nil && !errors.Is(err, ports.ErrCorruptPacket) {
				return nil, err
			}
			continue
		}
		if err != nil {
			if errors.Is(err, ports.ErrCorruptPacket) {
				s.drop(err)
				continue
			}
			return nil, fmt.Errorf("%w: %w", ports.ErrFatalDecode, err)
		}

		s.stats.PacketsRead++
		if err := s.dec.Submit(&pkt); err != nil {
			if errors.Is(err, ports.ErrCorruptPacket) {
				s.drop(err)
				continue
			}
			return nil, err
		}
	}
}

func (s *Session) drop(err error) {
	s.stats.Dropped++
	s.logger.Warn("Skipping corrupt packet: %s", err.Error())
}

func (s *Session) deliver(raw *ports.RawFrame) (*framebuf.Frame, error) {
	b := raw.Image.Bounds()
	w, h := s.stage.OutputSize(b.Dx(), b.Dy())

	frame, err := s.pool.Acquire(w, h)
	if err != nil {
		return nil, err
	}
	if _, err := s.stage.Transform(raw.Image, frame.Data); err != nil {
		frame.Release()
		return nil, err
	}

	if s.opts.Sink != nil && s.opts.Sink.Enabled() {
		if err := s.opts.Sink.SaveNativeFrame(s.delivered, raw.Image); err != nil {
			s.logger.Warn("Failed to save debug output: %s", err.Error())
		}
	}

	frame.Index = s.delivered
	frame.PTS = ticksToDuration(raw.PTS, s.desc.TimeScale)
	s.delivered++
	s.lastPTS = raw.PTS
	s.hasPTS = true
	s.stats.FramesDelivered++
	return frame, nil
}

// Err returns the fatal error that stopped Read, or nil at a clean end of
// stream.
func (s *Session) Err() error {
	return s.err
}

// Close releases the decoder and the file. It is safe to call in any state
// and more than once. Owned frames stay valid, a borrowed frame does not.
// FrameNumber and Stats keep their values until the next Open.
func (s *Session) Close() error {
	if !s.open {
		return nil
	}

	var errs []error
	if err := s.dec.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.demux.Close(); err != nil {
		errs = append(errs, err)
	}
	s.pool.Close()

	s.logger.Debug("Closed %s after %d frames", s.path, s.delivered)

	*s = Session{
		opts:      s.opts,
		logger:    s.logger,
		delivered: s.delivered,
		stats:     s.stats,
	}
	return errors.Join(errs...)
}

// IsOpened reports whether a stream is open.
func (s *Session) IsOpened() bool {
	return s.open
}

// FrameNumber is the number of frames delivered since the last Open, which
// is also the index of the next frame. It resets on Open, not on Close.
func (s *Session) FrameNumber() int {
	return s.delivered
}

// Width returns the native stream width, or 0 when closed.
func (s *Session) Width() int {
	return s.desc.Width
}

// Height returns the native stream height, or 0 when closed.
func (s *Session) Height() int {
	return s.desc.Height
}

// Stream returns the descriptor of the open stream.
func (s *Session) Stream() ports.StreamDescriptor {
	return s.desc
}

// Backend returns the decoder backend chosen at Open. It is empty when a
// custom decoder factory is used.
func (s *Session) Backend() smartdecoder.Backend {
	return s.backend
}

// Stats returns counters for the current or last closed stream. They reset
// on Open.
func (s *Session) Stats() Stats {
	return s.stats
}

func ticksToDuration(ticks int64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	ts := int64(timescale)
	return time.Duration(ticks/ts)*time.Second + time.Duration(ticks%ts)*time.Second/time.Duration(ts)
}
