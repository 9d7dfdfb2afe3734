// Package codecdetect provides utilities for detecting the video codec of MP4 files.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framecap/pkg/ports"
)

// ErrNoVideoTrack is returned when a file has no video track.
var ErrNoVideoTrack = errors.New("codecdetect: no video track found")

// Result describes the first video track of a file.
type Result struct {
	Codec   ports.Codec
	FourCC  string
	TrackID uint32
}

// DetectFromFile detects the video codec used in an MP4 file.
func DetectFromFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return DetectFromReader(f)
}

// DetectFromReader detects the video codec from an io.ReadSeeker. The reader
// is rewound before returning.
func DetectFromReader(reader io.ReadSeeker) (Result, error) {
	mp4File, err := mp4.DecodeFile(reader, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return Result{}, fmt.Errorf("decode mp4: %w", err)
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("seek: %w", err)
	}

	return FromFile(mp4File)
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Result, error) {
	return DetectFromReader(bytes.NewReader(data))
}

// FromFile inspects the moov box of an already decoded file.
func FromFile(mp4File *mp4.File) (Result, error) {
	moov := mp4File.Moov
	if mp4File.IsFragmented() && mp4File.Init != nil {
		moov = mp4File.Init.Moov
	}
	if moov == nil {
		return Result{}, fmt.Errorf("decode mp4: no moov box")
	}

	for _, trak := range moov.Traks {
		if !IsVideoTrack(trak) {
			continue
		}
		codec, fourcc := FromTrack(trak)
		return Result{Codec: codec, FourCC: fourcc, TrackID: trak.Tkhd.TrackID}, nil
	}

	return Result{}, ErrNoVideoTrack
}

// IsVideoTrack reports whether trak is a video track with a sample description.
func IsVideoTrack(trak *mp4.TrakBox) bool {
	if trak == nil || trak.Tkhd == nil || trak.Mdia == nil || trak.Mdia.Hdlr == nil {
		return false
	}
	if trak.Mdia.Hdlr.HandlerType != "vide" {
		return false
	}
	return trak.Mdia.Minf != nil && trak.Mdia.Minf.Stbl != nil && trak.Mdia.Minf.Stbl.Stsd != nil
}

// FromTrack maps the track's first sample entry to a codec. The sample entry
// type is returned as the fourcc even when the codec is unknown.
func FromTrack(trak *mp4.TrakBox) (ports.Codec, string) {
	if !IsVideoTrack(trak) {
		return ports.CodecUnknown, ""
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		fourcc := child.Type()
		switch fourcc {
		case "avc1", "avc3":
			return ports.CodecH264, fourcc
		case "hvc1", "hev1":
			return ports.CodecHEVC, fourcc
		case "av01":
			return ports.CodecAV1, fourcc
		default:
			return ports.CodecUnknown, fourcc
		}
	}

	return ports.CodecUnknown, ""
}
