// Package filesink provides a file-based debug sink implementation.
package filesink

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/user/framecap/pkg/ports"
)

// Sink saves debug output under a base directory:
//
//	<base>/stream.json
//	<base>/frames/native/frame-0000.png
type Sink struct {
	baseDir  string
	fs       ports.FileSystem
	renderer ports.Renderer
}

// New creates a new FileSink.
func New(baseDir string, fs ports.FileSystem, renderer ports.Renderer) *Sink {
	return &Sink{
		baseDir:  baseDir,
		fs:       fs,
		renderer: renderer,
	}
}

// Enabled returns true as this sink saves output.
func (s *Sink) Enabled() bool {
	return true
}

// SaveStreamJSON saves the stream descriptor.
func (s *Sink) SaveStreamJSON(data []byte) error {
	path := filepath.Join(s.baseDir, "stream.json")
	return s.fs.WriteFile(path, data)
}

// SaveNativeFrame saves a decoded frame at its native size, before
// scaling and padding.
func (s *Sink) SaveNativeFrame(index int, img image.Image) error {
	dir := filepath.Join(s.baseDir, "frames", "native")
	if err := s.fs.MkdirAll(dir); err != nil {
		return err
	}
	data, err := s.renderer.EncodeImage(img, ports.FormatPNG, 0)
	if err != nil {
		return fmt.Errorf("encode native frame: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", index))
	return s.fs.WriteFile(path, data)
}

var _ ports.DebugSink = (*Sink)(nil)
