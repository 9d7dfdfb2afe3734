// Package mp4demuxer reads compressed video samples from progressive and
// fragmented MP4 files.
package mp4demuxer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framecap/pkg/adapters/codecdetect"
	"github.com/user/framecap/pkg/ports"
)

var (
	// ErrNotOpen is returned by NextPacket before Open or after Close.
	ErrNotOpen = errors.New("mp4demuxer: not open")

	// ErrNoVideoTrack is returned when the file has no video track.
	ErrNoVideoTrack = codecdetect.ErrNoVideoTrack

	// ErrUnsupportedCodec is returned when the video track's sample entry is not recognised.
	ErrUnsupportedCodec = errors.New("mp4demuxer: unsupported codec")
)

// Demuxer implements ports.Demuxer for MP4 files.
type Demuxer struct {
	logger ports.Logger

	file    *os.File
	desc    ports.StreamDescriptor
	samples []sampleRef
	next    int
	ptsBase int64
	buf     []byte
}

// New creates a demuxer.
func New(logger ports.Logger) *Demuxer {
	return &Demuxer{logger: logger.WithComponent("demuxer")}
}

// Open parses path and selects its first video track. Opening while a file is
// already open closes that file first.
func (d *Demuxer) Open(path string) (ports.StreamDescriptor, error) {
	d.Close()

	f, err := os.Open(path)
	if err != nil {
		return ports.StreamDescriptor{}, fmt.Errorf("open file: %w", err)
	}

	desc, samples, err := parse(f)
	if err != nil {
		f.Close()
		return ports.StreamDescriptor{}, err
	}

	d.file = f
	d.desc = desc
	d.samples = samples
	d.next = 0
	d.ptsBase = presentationBase(samples)

	d.logger.Debug("Opened %s: %s %dx%d, %d samples, timescale %d",
		path, desc.FourCC, desc.Width, desc.Height, len(samples), desc.TimeScale)
	return desc, nil
}

// NextPacket returns the next sample in decode order, or io.EOF. The
// returned Data is only valid until the next call.
func (d *Demuxer) NextPacket() (ports.Packet, error) {
	if d.file == nil {
		return ports.Packet{}, ErrNotOpen
	}
	if d.next >= len(d.samples) {
		return ports.Packet{}, io.EOF
	}

	index := d.next
	s := d.samples[index]
	d.next++

	pkt := ports.Packet{
		PTS:      int64(s.dts) + int64(s.cto) - d.ptsBase,
		DTS:      int64(s.dts),
		Duration: s.dur,
		Keyframe: s.sync,
		Index:    index,
	}

	if cap(d.buf) < int(s.size) {
		d.buf = make([]byte, s.size)
	}
	d.buf = d.buf[:s.size]
	if _, err := d.file.ReadAt(d.buf, s.offset); err != nil {
		return pkt, fmt.Errorf("%w: read sample %d at offset %d: %v", ports.ErrCorruptPacket, index, s.offset, err)
	}
	pkt.Data = d.buf
	return pkt, nil
}

// Stream returns the descriptor of the open stream.
func (d *Demuxer) Stream() ports.StreamDescriptor {
	return d.desc
}

// Close releases the file. It is safe to call multiple times.
func (d *Demuxer) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	d.samples = nil
	d.buf = nil
	d.next = 0
	d.desc = ports.StreamDescriptor{}
	return err
}

func parse(f *os.File) (ports.StreamDescriptor, []sampleRef, error) {
	mp4File, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return ports.StreamDescriptor{}, nil, fmt.Errorf("decode mp4: %w", err)
	}

	detected, err := codecdetect.FromFile(mp4File)
	if err != nil {
		return ports.StreamDescriptor{}, nil, err
	}
	if detected.Codec == ports.CodecUnknown {
		return ports.StreamDescriptor{}, nil, fmt.Errorf("%w: sample entry %q", ErrUnsupportedCodec, detected.FourCC)
	}

	trak := findTrack(mp4File, detected.TrackID)
	desc := describe(trak, detected)

	var samples []sampleRef
	if mp4File.IsFragmented() {
		samples, err = fragmentedSamples(mp4File, detected.TrackID)
	} else {
		samples, err = progressiveSamples(trak.Mdia.Minf.Stbl)
	}
	if err != nil {
		return ports.StreamDescriptor{}, nil, err
	}

	finishDescriptor(&desc, samples)
	return desc, samples, nil
}

func findTrack(mp4File *mp4.File, trackID uint32) *mp4.TrakBox {
	moov := mp4File.Moov
	if mp4File.IsFragmented() && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	for _, trak := range moov.Traks {
		if trak.Tkhd.TrackID == trackID {
			return trak
		}
	}
	return nil
}

func describe(trak *mp4.TrakBox, detected codecdetect.Result) ports.StreamDescriptor {
	desc := ports.StreamDescriptor{
		Codec:          detected.Codec,
		FourCC:         detected.FourCC,
		FrameCount:     -1,
		NALULengthSize: 4,
		TimeScale:      1000,
	}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale != 0 {
		desc.TimeScale = trak.Mdia.Mdhd.Timescale
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		vse, ok := child.(*mp4.VisualSampleEntryBox)
		if !ok {
			continue
		}
		desc.Width = int(vse.Width)
		desc.Height = int(vse.Height)

		switch {
		case vse.AvcC != nil:
			desc.ParameterSets = append(desc.ParameterSets, vse.AvcC.SPSnalus...)
			desc.ParameterSets = append(desc.ParameterSets, vse.AvcC.PPSnalus...)
		case vse.HvcC != nil:
			rec := vse.HvcC.DecConfRec
			for _, arr := range rec.NaluArrays {
				desc.ParameterSets = append(desc.ParameterSets, arr.Nalus...)
			}
			desc.NALULengthSize = int(rec.LengthSizeMinusOne) + 1
		case vse.Av1C != nil:
			desc.ParameterSets = [][]byte{vse.Av1C.CodecConfRec.ConfigOBUs}
		}
		break
	}

	if desc.Width == 0 || desc.Height == 0 {
		desc.Width = int(trak.Tkhd.Width >> 16)
		desc.Height = int(trak.Tkhd.Height >> 16)
	}
	return desc
}

func finishDescriptor(desc *ports.StreamDescriptor, samples []sampleRef) {
	desc.FrameCount = len(samples)
	if len(samples) == 0 {
		return
	}

	first := samples[0].dts
	last := samples[len(samples)-1]
	total := last.dts + uint64(last.dur) - first
	if total == 0 {
		return
	}

	desc.Duration = time.Duration(float64(total) / float64(desc.TimeScale) * float64(time.Second))
	desc.FrameRate = float64(len(samples)) * float64(desc.TimeScale) / float64(total)
}

// presentationBase is the earliest presentation time, so the first displayed
// frame starts at zero regardless of edit lists or composition offsets.
func presentationBase(samples []sampleRef) int64 {
	if len(samples) == 0 {
		return 0
	}
	base := int64(samples[0].dts) + int64(samples[0].cto)
	for _, s := range samples[1:] {
		if pts := int64(s.dts) + int64(s.cto); pts < base {
			base = pts
		}
	}
	return base
}

var _ ports.Demuxer = (*Demuxer)(nil)
