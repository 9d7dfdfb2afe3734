package smartdecoder

import (
	"errors"
	"testing"

	"github.com/user/framecap/pkg/adapters/av1decoder"
	"github.com/user/framecap/pkg/adapters/ffmpegbin"
	"github.com/user/framecap/pkg/ports"
)

func TestNew_UnknownCodec(t *testing.T) {
	_, _, err := New(ports.StreamDescriptor{Codec: ports.CodecUnknown}, Options{})
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func TestNew_H264(t *testing.T) {
	if !ffmpegbin.Available("") {
		t.Skip("ffmpeg not available")
	}

	dec, info, err := New(ports.StreamDescriptor{Codec: ports.CodecH264, Width: 64, Height: 64}, Options{})
	if err != nil {
		t.Fatalf("failed to create H.264 decoder: %v", err)
	}
	defer dec.Close()

	if info.Codec != ports.CodecH264 {
		t.Errorf("expected codec h264, got %s", info.Codec)
	}
	t.Logf("H.264 decoder backend: %s", info.Backend)
}

func TestNew_ForcedBackend(t *testing.T) {
	// libaom never decodes H.264.
	_, _, err := New(ports.StreamDescriptor{Codec: ports.CodecH264, Width: 64, Height: 64}, Options{Backend: BackendLibaom})
	if !errors.Is(err, ErrNoDecoderAvailable) {
		t.Errorf("expected ErrNoDecoderAvailable, got %v", err)
	}
}

func TestNew_MissingFFmpeg(t *testing.T) {
	_, _, err := New(
		ports.StreamDescriptor{Codec: ports.CodecHEVC, Width: 64, Height: 64},
		Options{Backend: BackendFFmpeg, FFmpegPath: "/nonexistent/ffmpeg"},
	)
	if !errors.Is(err, ErrNoDecoderAvailable) {
		t.Errorf("expected ErrNoDecoderAvailable, got %v", err)
	}
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"", BackendAuto, false},
		{"auto", BackendAuto, false},
		{"ffmpeg", BackendFFmpeg, false},
		{"libaom", BackendLibaom, false},
		{"libav", BackendLibav, false},
		{"gstreamer", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBackend(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSupported(t *testing.T) {
	list := Supported(Options{})
	for _, info := range list {
		if info.Backend == BackendLibaom && info.Codec != ports.CodecAV1 {
			t.Errorf("libaom listed for %s", info.Codec)
		}
		if info.Backend == BackendLibaom && !av1decoder.Available() {
			t.Error("libaom listed but not compiled in")
		}
	}
	t.Logf("supported: %v", list)
}
