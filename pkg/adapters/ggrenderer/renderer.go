// Package ggrenderer implements ports.Renderer on top of the gg 2D library.
package ggrenderer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/user/framecap/pkg/ports"
)

// Renderer implements ports.Renderer using the gg library.
type Renderer struct {
	faces *faceCache
}

// New creates a new Renderer.
func New() *Renderer {
	return &Renderer{faces: newFaceCache()}
}

// CreateCanvas creates a canvas filled with bg.
func (r *Renderer) CreateCanvas(width, height int, bg color.Color) ports.Canvas {
	dc := gg.NewContext(width, height)
	dc.SetColor(bg)
	dc.Clear()
	return &Canvas{dc: dc, faces: r.faces}
}

// EncodeImage encodes img as JPEG or PNG. Quality only applies to JPEG and
// is clamped to 1..100.
func (r *Renderer) EncodeImage(img image.Image, format ports.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case ports.FormatJPEG:
		quality = min(max(quality, 1), 100)
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode JPEG: %w", err)
		}
	case ports.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestSpeed}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode PNG: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format: %d", format)
	}

	return buf.Bytes(), nil
}

// ResizeImage scales img to width x height with a Catmull-Rom kernel.
func (r *Renderer) ResizeImage(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

var _ ports.Renderer = (*Renderer)(nil)

// Canvas implements ports.Canvas using gg.Context.
type Canvas struct {
	dc    *gg.Context
	faces *faceCache
}

// DrawImage draws img with its top-left corner at (x, y).
func (c *Canvas) DrawImage(img image.Image, x, y int) {
	b := img.Bounds()
	if b.Min != (image.Point{}) {
		// gg assumes a zero origin.
		img = rebase(img)
	}
	c.dc.DrawImage(img, x, y)
}

// DrawRect draws a filled rectangle.
func (c *Canvas) DrawRect(x, y, w, h int, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// DrawText draws a single line of text vertically centered on y. The Go
// Regular face is used unless style.FontPath names a TrueType file.
func (c *Canvas) DrawText(text string, x, y int, style ports.TextStyle) {
	if style.Color != nil {
		c.dc.SetColor(style.Color)
	}
	if style.FontSize > 0 {
		if face, err := c.faces.get(style.FontPath, style.FontSize); err == nil {
			c.dc.SetFontFace(face)
		}
	}

	ax := 0.0
	switch style.Align {
	case ports.AlignCenter:
		ax = 0.5
	case ports.AlignRight:
		ax = 1.0
	}

	c.dc.DrawStringAnchored(text, float64(x), float64(y), ax, 0.5)
}

// ToImage returns the canvas as an image.Image.
func (c *Canvas) ToImage() image.Image {
	return c.dc.Image()
}

var _ ports.Canvas = (*Canvas)(nil)

func rebase(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

type faceKey struct {
	path string
	size float64
}

// faceCache keeps parsed font faces per path and size.
type faceCache struct {
	mu    sync.Mutex
	fonts map[string]*truetype.Font
	faces map[faceKey]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{
		fonts: make(map[string]*truetype.Font),
		faces: make(map[faceKey]font.Face),
	}
}

func (fc *faceCache) get(path string, size float64) (font.Face, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	key := faceKey{path: path, size: size}
	if face, ok := fc.faces[key]; ok {
		return face, nil
	}

	f, ok := fc.fonts[path]
	if !ok {
		var err error
		if path == "" {
			f, err = truetype.Parse(goregular.TTF)
		} else {
			f, err = loadTrueType(path)
		}
		if err != nil {
			return nil, err
		}
		fc.fonts[path] = f
	}

	face := truetype.NewFace(f, &truetype.Options{Size: size})
	fc.faces[key] = face
	return face, nil
}

func loadTrueType(path string) (*truetype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return truetype.Parse(data)
}
