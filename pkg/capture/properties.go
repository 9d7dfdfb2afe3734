package capture

import (
	"fmt"
	"time"
)

// Property identifies a value readable with Session.Get. The numbering
// follows the usual CAP_PROP_* ids.
type Property int

const (
	PropPosMsec Property = iota
	PropPosFrames
	PropPosAviRatio
	PropFrameWidth
	PropFrameHeight
	PropFPS
	PropFourCC
	PropFrameCount
)

var propertyNames = map[Property]string{
	PropPosMsec:     "pos_msec",
	PropPosFrames:   "pos_frames",
	PropPosAviRatio: "pos_avi_ratio",
	PropFrameWidth:  "frame_width",
	PropFrameHeight: "frame_height",
	PropFPS:         "fps",
	PropFourCC:      "fourcc",
	PropFrameCount:  "frame_count",
}

func (p Property) String() string {
	if name, ok := propertyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Property(%d)", int(p))
}

// Properties lists every readable property in id order.
func Properties() []Property {
	return []Property{
		PropPosMsec, PropPosFrames, PropPosAviRatio, PropFrameWidth,
		PropFrameHeight, PropFPS, PropFourCC, PropFrameCount,
	}
}

// FourCCCode packs a four-character code little-endian, first character in
// the lowest byte.
func FourCCCode(fourcc string) int {
	if len(fourcc) != 4 {
		return 0
	}
	return int(fourcc[0]) | int(fourcc[1])<<8 | int(fourcc[2])<<16 | int(fourcc[3])<<24
}

// Get returns a property of the open stream, or 0 when the session is closed
// or the property is unknown.
func (s *Session) Get(prop Property) float64 {
	if !s.open {
		return 0
	}
	d := s.desc

	switch prop {
	case PropPosMsec:
		if !s.hasPTS {
			return 0
		}
		return float64(ticksToDuration(s.lastPTS, d.TimeScale)) / float64(time.Millisecond)
	case PropPosFrames:
		return float64(s.delivered)
	case PropPosAviRatio:
		return s.progress()
	case PropFrameWidth:
		return float64(d.Width)
	case PropFrameHeight:
		return float64(d.Height)
	case PropFPS:
		return d.FrameRate
	case PropFourCC:
		return float64(FourCCCode(d.FourCC))
	case PropFrameCount:
		if d.FrameCount < 0 {
			return -1
		}
		return float64(d.FrameCount)
	default:
		return 0
	}
}

// progress is the relative position in [0,1], by time when the duration is
// known, otherwise by frame count.
func (s *Session) progress() float64 {
	d := s.desc
	if s.eos {
		return 1
	}
	if d.Duration > 0 && s.hasPTS {
		return min(float64(ticksToDuration(s.lastPTS, d.TimeScale))/float64(d.Duration), 1)
	}
	if d.FrameCount > 0 {
		return min(float64(s.delivered)/float64(d.FrameCount), 1)
	}
	return 0
}

// Snapshot returns every property keyed by name.
func (s *Session) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(propertyNames))
	for _, p := range Properties() {
		out[p.String()] = s.Get(p)
	}
	return out
}
