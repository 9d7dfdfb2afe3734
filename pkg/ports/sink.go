package ports

import (
	"image"
)

// DebugSink abstracts debug output for intermediate results.
// It allows saving intermediate processing results for debugging purposes.
type DebugSink interface {
	// Enabled returns true if debug output is enabled.
	Enabled() bool

	// SaveStreamJSON saves the stream descriptor as JSON.
	SaveStreamJSON(data []byte) error

	// SaveNativeFrame saves a decoded frame before the transform.
	SaveNativeFrame(index int, img image.Image) error
}
