// Package testvideo builds MP4 fixtures for tests: synthetic fragmented
// files assembled with mp4ff, and real encoded clips produced by ffmpeg.
package testvideo

import (
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framecap/pkg/adapters/ffmpegbin"
)

// SPS and PPS of a 64x64 baseline H.264 stream. They parse, but the
// synthetic slices built from them do not decode.
var (
	SPS = []byte{0x67, 0x42, 0xC0, 0x1E, 0xF4, 0x21, 0x32}
	PPS = []byte{0x68, 0xCE, 0x3C, 0x80}
)

// Sample is one synthetic access unit in AVCC layout.
type Sample struct {
	Data     []byte
	Dur      uint32
	Keyframe bool
	// CTO is the composition time offset.
	CTO int32
}

// AVCCSample wraps payload in a single length-prefixed NAL unit of the given type.
func AVCCSample(naluType byte, payload []byte) []byte {
	n := len(payload) + 1
	out := []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n), naluType}
	return append(out, payload...)
}

// FragmentedH264 assembles ftyp + moov + one moof/mdat carrying samples.
func FragmentedH264(width, height int, timescale uint32, samples []Sample) ([]byte, error) {
	const trackID = 1

	init := mp4.CreateEmptyInit()
	init.AddEmptyTrack(timescale, "video", "und")
	trak := init.Moov.Trak

	avcC, err := mp4.CreateAvcC([][]byte{SPS}, [][]byte{PPS}, true)
	if err != nil {
		return nil, fmt.Errorf("create avcC: %w", err)
	}
	avc1 := mp4.CreateVisualSampleEntryBox("avc1", uint16(width), uint16(height), avcC)
	trak.Mdia.Minf.Stbl.Stsd.AddChild(avc1)
	trak.Tkhd.Width = mp4.Fixed32(width << 16)
	trak.Tkhd.Height = mp4.Fixed32(height << 16)

	frag, err := mp4.CreateFragment(1, trackID)
	if err != nil {
		return nil, fmt.Errorf("create fragment: %w", err)
	}

	var decodeTime uint64
	for _, s := range samples {
		flags := mp4.NonSyncSampleFlags
		if s.Keyframe {
			flags = mp4.SyncSampleFlags
		}
		frag.AddFullSample(mp4.FullSample{
			Sample: mp4.Sample{
				Flags:                 flags,
				Size:                  uint32(len(s.Data)),
				Dur:                   s.Dur,
				CompositionTimeOffset: s.CTO,
			},
			DecodeTime: decodeTime,
			Data:       s.Data,
		})
		decodeTime += uint64(s.Dur)
	}

	var buf bytes.Buffer
	ftyp := mp4.NewFtyp("isom", 0x200, []string{"isom", "iso6", "avc1", "mp41"})
	if err := ftyp.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode ftyp: %w", err)
	}
	if err := init.Moov.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode moov: %w", err)
	}
	if err := frag.Encode(&buf); err != nil {
		return nil, fmt.Errorf("encode fragment: %w", err)
	}
	return buf.Bytes(), nil
}

// Options describes a clip encoded by ffmpeg.
type Options struct {
	Width  int
	Height int
	Frames int
	FPS    int
	// Codec is "h264" (libx264), "hevc" (libx265) or "av1" (libaom-av1).
	Codec string
	// BFrames enables B-frames so decode order differs from presentation order.
	BFrames    int
	Fragmented bool
}

// Generate encodes a lavfi test pattern into an MP4 file at path.
func Generate(path string, opts Options) error {
	ffmpegPath, err := ffmpegbin.Find("")
	if err != nil {
		return err
	}
	if opts.FPS == 0 {
		opts.FPS = 25
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc2=size=%dx%d:rate=%d", opts.Width, opts.Height, opts.FPS),
		"-frames:v", strconv.Itoa(opts.Frames),
		"-pix_fmt", "yuv420p",
	}

	switch opts.Codec {
	case "", "h264":
		args = append(args, "-c:v", "libx264", "-preset", "ultrafast", "-bf", strconv.Itoa(opts.BFrames))
		if opts.BFrames == 0 {
			args = append(args, "-tune", "zerolatency")
		}
	case "hevc":
		args = append(args, "-c:v", "libx265", "-preset", "ultrafast", "-tag:v", "hvc1",
			"-x265-params", fmt.Sprintf("bframes=%d:log-level=error", opts.BFrames))
	case "av1":
		args = append(args, "-c:v", "libaom-av1", "-cpu-used", "8", "-crf", "40")
	default:
		return fmt.Errorf("testvideo: unsupported codec %q", opts.Codec)
	}

	if opts.Fragmented {
		args = append(args, "-movflags", "frag_keyframe+empty_moov+default_base_moof")
	}
	args = append(args, path)

	var stderr bytes.Buffer
	cmd := exec.Command(ffmpegPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("testvideo: ffmpeg failed: %w\nstderr: %s", err, stderr.String())
	}
	return nil
}

// Require generates a clip in a temporary directory and skips the test when
// ffmpeg or the requested encoder is unavailable.
func Require(tb testing.TB, opts Options) string {
	tb.Helper()

	if !ffmpegbin.Available("") {
		tb.Skip("ffmpeg not available")
	}
	path := filepath.Join(tb.TempDir(), "clip.mp4")
	if err := Generate(path, opts); err != nil {
		tb.Skipf("cannot generate fixture: %v", err)
	}
	return path
}
