package mocks

import (
	"image"
	"sync"

	"github.com/user/framecap/pkg/ports"
)

// DebugSink is a mock implementation of ports.DebugSink.
type DebugSink struct {
	mu sync.RWMutex

	enabled bool

	StreamJSON   []byte
	NativeFrames map[int]image.Image
}

// NewDebugSink creates a new mock DebugSink.
func NewDebugSink(enabled bool) *DebugSink {
	return &DebugSink{
		enabled:      enabled,
		NativeFrames: make(map[int]image.Image),
	}
}

func (m *DebugSink) Enabled() bool {
	return m.enabled
}

func (m *DebugSink) SaveStreamJSON(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamJSON = data
	return nil
}

func (m *DebugSink) SaveNativeFrame(index int, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NativeFrames[index] = img
	return nil
}

// FrameCount returns the number of native frames saved.
func (m *DebugSink) FrameCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.NativeFrames)
}

var _ ports.DebugSink = (*DebugSink)(nil)
