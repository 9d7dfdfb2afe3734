package pipeline

import (
	"image"
	"image/color"
	"time"

	"github.com/user/framecap/pkg/ports"
)

// =============================================================================
// Common Types
// =============================================================================

// Dimension represents width and height.
type Dimension struct {
	Width  int
	Height int
}

// Rectangle represents a rectangular area.
type Rectangle struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Frame is a delivered frame detached from the capture session.
type Frame struct {
	Index int
	PTS   time.Duration
	Image image.Image
}

// =============================================================================
// Export Stage Types
// =============================================================================

// ExportInput contains a batch of frames to write as image files.
type ExportInput struct {
	Frames    []Frame
	OutputDir string
	Prefix    string // File name prefix (default: "frame")
	Format    ports.ImageFormat
	Quality   int // JPEG quality (1-100)
}

// DefaultExportInput returns ExportInput with default values.
func DefaultExportInput() ExportInput {
	return ExportInput{
		OutputDir: "frames",
		Prefix:    "frame",
		Format:    ports.FormatPNG,
		Quality:   90,
	}
}

// ExportResult lists the written files in frame order.
type ExportResult struct {
	Files []ExportedFile
}

// ExportedFile describes one written image.
type ExportedFile struct {
	Index int
	Path  string
	Size  int64
}

// TotalBytes sums the sizes of all files.
func (r ExportResult) TotalBytes() int64 {
	var total int64
	for _, f := range r.Files {
		total += f.Size
	}
	return total
}

// =============================================================================
// Sheet Stage Types
// =============================================================================

// SheetInput contains the thumbnails for a contact sheet.
type SheetInput struct {
	Frames    []Frame // Thumbnails, already scaled to the cell size
	Columns   int
	Cell      Dimension
	Gap       int
	Padding   int
	LabelSize float64 // Font size of the timestamp labels, 0 disables them
	Title     string
	Theme     SheetTheme
}

// SheetTheme contains the contact sheet colors.
type SheetTheme struct {
	BackgroundColor color.Color
	CellColor       color.Color
	TextColor       color.Color
}

// DefaultSheetTheme returns the default contact sheet colors.
func DefaultSheetTheme() SheetTheme {
	return SheetTheme{
		BackgroundColor: color.RGBA{R: 26, G: 26, B: 46, A: 255},
		CellColor:       color.RGBA{R: 51, G: 51, B: 85, A: 255},
		TextColor:       color.White,
	}
}

// DefaultSheetInput returns SheetInput with default values.
func DefaultSheetInput() SheetInput {
	return SheetInput{
		Columns:   4,
		Cell:      Dimension{Width: 160, Height: 160},
		Gap:       8,
		Padding:   16,
		LabelSize: 12,
		Theme:     DefaultSheetTheme(),
	}
}

// SheetResult contains the composed contact sheet.
type SheetResult struct {
	Image image.Image
	Size  Dimension
}
