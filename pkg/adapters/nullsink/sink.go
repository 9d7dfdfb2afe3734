// Package nullsink provides a no-op debug sink implementation.
package nullsink

import (
	"image"

	"github.com/user/framecap/pkg/ports"
)

// Sink discards all debug output.
type Sink struct{}

// New creates a new NullSink.
func New() *Sink {
	return &Sink{}
}

// Enabled returns false as this sink discards all output.
func (s *Sink) Enabled() bool {
	return false
}

// SaveStreamJSON does nothing.
func (s *Sink) SaveStreamJSON(data []byte) error {
	return nil
}

// SaveNativeFrame does nothing.
func (s *Sink) SaveNativeFrame(index int, img image.Image) error {
	return nil
}

var _ ports.DebugSink = (*Sink)(nil)
