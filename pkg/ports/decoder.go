package ports

import (
	"errors"
	"image"
	"time"
)

// Codec identifies a compressed video format.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

var (
	// ErrNeedMorePackets is returned by Drain when the decoder cannot emit a
	// frame until more packets are submitted.
	ErrNeedMorePackets = errors.New("decoder: need more packets")

	// ErrCorruptPacket marks a single packet that could not be parsed or
	// decoded. The packet is dropped and decoding continues.
	ErrCorruptPacket = errors.New("decoder: corrupt packet")

	// ErrFatalDecode marks an unrecoverable decoder failure.
	ErrFatalDecode = errors.New("decoder: fatal decode error")
)

// StreamDescriptor describes the selected video stream. It is populated
// when the demuxer opens a file and never changes afterwards.
type StreamDescriptor struct {
	Width     int
	Height    int
	FrameRate float64
	// FrameCount is -1 when the container does not say.
	FrameCount int
	Codec      Codec
	// FourCC is the sample entry type, e.g. "avc1".
	FourCC   string
	Duration time.Duration
	// TimeScale is the number of packet timestamp ticks per second.
	TimeScale uint32

	// ParameterSets holds SPS/PPS (and VPS) NAL units for H.264/HEVC, or the
	// AV1 configuration OBUs.
	ParameterSets  [][]byte
	NALULengthSize int
}

// Packet is one compressed sample in decode order.
type Packet struct {
	Data     []byte
	PTS      int64
	DTS      int64
	Duration uint32
	Keyframe bool
	Index    int
}

// RawFrame is a decoded picture at native resolution.
type RawFrame struct {
	// Image is usually an *image.YCbCr.
	Image image.Image
	// PTS is in stream time-scale units.
	PTS int64

	release func()
}

// NewRawFrame wraps img. release, if not nil, runs once when the frame is released.
func NewRawFrame(img image.Image, pts int64, release func()) *RawFrame {
	return &RawFrame{Image: img, PTS: pts, release: release}
}

// Release hands the frame's storage back to the decoder.
func (f *RawFrame) Release() {
	if f == nil || f.release == nil {
		return
	}
	f.release()
	f.release = nil
}

// Demuxer splits a container into compressed packets of its first video stream.
type Demuxer interface {
	// Open parses the container and selects the first video stream.
	Open(path string) (StreamDescriptor, error)

	// NextPacket returns the next packet in decode order, or io.EOF.
	NextPacket() (Packet, error)

	// Close releases the file. Calling it more than once is a no-op.
	Close() error
}

// VideoDecoder turns packets into raw frames in presentation order.
type VideoDecoder interface {
	// Submit feeds one packet. A nil packet starts the end-of-stream flush.
	Submit(pkt *Packet) error

	// Drain returns the next frame, ErrNeedMorePackets, io.EOF once a flush
	// has emitted every pending frame, or an error wrapping ErrFatalDecode.
	Drain() (*RawFrame, error)

	// Close releases codec resources. Calling it more than once is a no-op.
	Close() error
}
