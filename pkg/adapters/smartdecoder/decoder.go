// Package smartdecoder selects a decoding backend for a stream.
//
// Backends are tried in preference order per codec:
//   - H.264/HEVC: libavcodec (in-process), then the ffmpeg process
//   - AV1: libaom, then libavcodec, then the ffmpeg process
//
// In-process backends are only present when built with their build tags.
package smartdecoder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/user/framecap/pkg/adapters/av1decoder"
	"github.com/user/framecap/pkg/adapters/ffmpegdecoder"
	"github.com/user/framecap/pkg/adapters/libavdecoder"
	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/ports"
)

// Backend names a decoding implementation.
type Backend string

const (
	// BackendAuto picks the first available backend.
	BackendAuto Backend = ""
	// BackendFFmpeg runs an ffmpeg child process.
	BackendFFmpeg Backend = "ffmpeg"
	// BackendLibaom uses libaom through cgo for AV1.
	BackendLibaom Backend = "libaom"
	// BackendLibav uses libavcodec through go-astiav.
	BackendLibav Backend = "libav"
)

// ParseBackend converts a configuration value to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendAuto, "auto":
		return BackendAuto, nil
	case BackendFFmpeg, BackendLibaom, BackendLibav:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("smartdecoder: unknown backend %q", s)
	}
}

// Info contains information about the selected decoder.
type Info struct {
	Codec   ports.Codec
	Backend Backend
}

// Options configures backend selection.
type Options struct {
	// Backend forces a specific backend. Empty means automatic selection.
	Backend Backend
	// FFmpegPath is an optional custom path to the ffmpeg binary.
	FFmpegPath string
	// Threads is passed to in-process backends.
	Threads int
	Logger  ports.Logger
}

var (
	// ErrUnsupportedCodec is returned when the codec is not supported.
	ErrUnsupportedCodec = errors.New("smartdecoder: unsupported codec")
	// ErrNoDecoderAvailable is returned when no decoder is available for the codec.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
)

type factory struct {
	backend   Backend
	available func(opts Options) bool
	create    func(desc ports.StreamDescriptor, opts Options) (ports.VideoDecoder, error)
}

var (
	registryOnce sync.Once
	registry     map[ports.Codec][]factory
)

func loadRegistry() map[ports.Codec][]factory {
	registryOnce.Do(func() {
		libav := factory{
			backend:   BackendLibav,
			available: func(Options) bool { return libavdecoder.Available() },
			create: func(desc ports.StreamDescriptor, opts Options) (ports.VideoDecoder, error) {
				return libavdecoder.New(desc, libavdecoder.Options{Logger: opts.Logger, Threads: opts.Threads})
			},
		}
		libaom := factory{
			backend:   BackendLibaom,
			available: func(Options) bool { return av1decoder.Available() },
			create: func(desc ports.StreamDescriptor, opts Options) (ports.VideoDecoder, error) {
				return av1decoder.New(desc, av1decoder.Options{Logger: opts.Logger, Threads: opts.Threads})
			},
		}
		ffmpeg := factory{
			backend:   BackendFFmpeg,
			available: func(opts Options) bool { return ffmpegdecoder.Available(opts.FFmpegPath) },
			create: func(desc ports.StreamDescriptor, opts Options) (ports.VideoDecoder, error) {
				return ffmpegdecoder.New(desc, ffmpegdecoder.Options{FFmpegPath: opts.FFmpegPath, Logger: opts.Logger})
			},
		}

		registry = map[ports.Codec][]factory{
			ports.CodecH264: {libav, ffmpeg},
			ports.CodecHEVC: {libav, ffmpeg},
			ports.CodecAV1:  {libaom, libav, ffmpeg},
		}
	})
	return registry
}

// New creates a decoder for desc using the first backend that is available
// and initializes successfully.
func New(desc ports.StreamDescriptor, opts Options) (ports.VideoDecoder, Info, error) {
	candidates, ok := loadRegistry()[desc.Codec]
	if !ok {
		return nil, Info{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, desc.Codec)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoop()
	}
	log := opts.Logger.WithComponent("decoder")

	var errs []error
	for _, f := range candidates {
		if opts.Backend != BackendAuto && f.backend != opts.Backend {
			continue
		}
		if !f.available(opts) {
			errs = append(errs, fmt.Errorf("%s: not available", f.backend))
			continue
		}
		dec, err := f.create(desc, opts)
		if err != nil {
			log.Debug("Backend %s failed: %s", string(f.backend), err.Error())
			errs = append(errs, fmt.Errorf("%s: %w", f.backend, err))
			continue
		}
		info := Info{Codec: desc.Codec, Backend: f.backend}
		log.Info("Using %s backend for %s", string(f.backend), string(desc.Codec))
		return dec, info, nil
	}

	if opts.Backend != BackendAuto && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("backend %s cannot decode %s", opts.Backend, desc.Codec))
	}
	return nil, Info{}, fmt.Errorf("%w for %s: %w", ErrNoDecoderAvailable, desc.Codec, errors.Join(errs...))
}

// Supported lists the codec and backend pairs usable with opts, in
// preference order.
func Supported(opts Options) []Info {
	reg := loadRegistry()
	var out []Info
	for _, codec := range []ports.Codec{ports.CodecH264, ports.CodecHEVC, ports.CodecAV1} {
		for _, f := range reg[codec] {
			if f.available(opts) {
				out = append(out, Info{Codec: codec, Backend: f.backend})
			}
		}
	}
	return out
}
