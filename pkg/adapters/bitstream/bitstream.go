// Package bitstream reshapes MP4 samples into the elementary stream layouts
// that decoders consume: Annex B for H.264/HEVC and temporal units of
// low-overhead OBUs for AV1.
package bitstream

import (
	"errors"
	"fmt"

	"github.com/user/framecap/pkg/ports"
)

// ErrMalformedSample is returned when a sample's internal framing is inconsistent.
var ErrMalformedSample = errors.New("bitstream: malformed sample")

var startCode = []byte{0, 0, 0, 1}

// temporalDelimiter is an OBU_TEMPORAL_DELIMITER with has_size_field set and a zero payload.
var temporalDelimiter = []byte{0x12, 0x00}

// AVCCToAnnexB appends the NAL units of a length-prefixed sample to dst,
// each preceded by a 4-byte start code. lengthSize is the NALU length field
// size from the decoder configuration record (1, 2 or 4).
func AVCCToAnnexB(dst, sample []byte, lengthSize int) ([]byte, error) {
	if lengthSize != 1 && lengthSize != 2 && lengthSize != 4 {
		return dst, fmt.Errorf("%w: unsupported NALU length size %d", ErrMalformedSample, lengthSize)
	}
	if len(sample) == 0 {
		return dst, fmt.Errorf("%w: empty sample", ErrMalformedSample)
	}

	offset := 0
	for offset < len(sample) {
		if offset+lengthSize > len(sample) {
			return dst, fmt.Errorf("%w: truncated length field at %d", ErrMalformedSample, offset)
		}
		naluLen := 0
		for i := 0; i < lengthSize; i++ {
			naluLen = naluLen<<8 | int(sample[offset+i])
		}
		offset += lengthSize

		if naluLen == 0 || naluLen > len(sample)-offset {
			return dst, fmt.Errorf("%w: NALU length %d exceeds remaining %d bytes", ErrMalformedSample, naluLen, len(sample)-offset)
		}
		// forbidden_zero_bit
		if sample[offset]&0x80 != 0 {
			return dst, fmt.Errorf("%w: forbidden bit set in NALU header", ErrMalformedSample)
		}

		dst = append(dst, startCode...)
		dst = append(dst, sample[offset:offset+naluLen]...)
		offset += naluLen
	}
	return dst, nil
}

// ParameterSetPrefix returns the parameter sets as Annex B NAL units.
func ParameterSetPrefix(sets [][]byte) []byte {
	var out []byte
	for _, ps := range sets {
		out = append(out, startCode...)
		out = append(out, ps...)
	}
	return out
}

// ValidateOBUs walks the OBUs of an AV1 sample and checks that every size
// field stays within the sample.
func ValidateOBUs(sample []byte) error {
	if len(sample) == 0 {
		return fmt.Errorf("%w: empty sample", ErrMalformedSample)
	}

	offset := 0
	for offset < len(sample) {
		header := sample[offset]
		if header&0x80 != 0 {
			return fmt.Errorf("%w: forbidden bit set in OBU header", ErrMalformedSample)
		}
		hasExtension := header&0x04 != 0
		hasSize := header&0x02 != 0

		offset++
		if hasExtension {
			offset++
		}
		if !hasSize {
			// The last OBU of a sample may omit its size and run to the end.
			return nil
		}

		size, n, err := readLEB128(sample[min(offset, len(sample)):])
		if err != nil {
			return err
		}
		offset += n
		if size > uint64(len(sample)-offset) {
			return fmt.Errorf("%w: OBU size %d exceeds remaining %d bytes", ErrMalformedSample, size, len(sample)-offset)
		}
		offset += int(size)
	}
	return nil
}

// AV1TemporalUnit appends a temporal delimiter followed by the sample to dst.
// On keyframes the configuration OBUs are inserted after the delimiter.
func AV1TemporalUnit(dst, sample, configOBUs []byte, keyframe bool) ([]byte, error) {
	if err := ValidateOBUs(sample); err != nil {
		return dst, err
	}
	dst = append(dst, temporalDelimiter...)
	if keyframe && len(configOBUs) > 0 {
		dst = append(dst, configOBUs...)
	}
	return append(dst, sample...), nil
}

// Shape converts a packet into the elementary stream bytes for the codec
// described by desc. Parameter sets are repeated before every keyframe so
// decoding can start at any sync sample.
func Shape(dst []byte, desc ports.StreamDescriptor, pkt *ports.Packet) ([]byte, error) {
	switch desc.Codec {
	case ports.CodecH264, ports.CodecHEVC:
		if pkt.Keyframe {
			dst = append(dst, ParameterSetPrefix(desc.ParameterSets)...)
		}
		lengthSize := desc.NALULengthSize
		if lengthSize == 0 {
			lengthSize = 4
		}
		return AVCCToAnnexB(dst, pkt.Data, lengthSize)
	case ports.CodecAV1:
		var config []byte
		if len(desc.ParameterSets) > 0 {
			config = desc.ParameterSets[0]
		}
		return AV1TemporalUnit(dst, pkt.Data, config, pkt.Keyframe)
	default:
		return dst, fmt.Errorf("bitstream: unsupported codec %s", desc.Codec)
	}
}

func readLEB128(b []byte) (uint64, int, error) {
	var value uint64
	for i := 0; i < 8; i++ {
		if i >= len(b) {
			return 0, 0, fmt.Errorf("%w: truncated leb128", ErrMalformedSample)
		}
		value |= uint64(b[i]&0x7f) << (7 * i)
		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: leb128 too long", ErrMalformedSample)
}
