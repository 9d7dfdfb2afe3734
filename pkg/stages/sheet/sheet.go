// Package sheet implements the contact sheet stage: a grid of thumbnails
// labelled with their frame index and timestamp.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/framecap/pkg/pipeline"
	"github.com/user/framecap/pkg/ports"
	"github.com/user/framecap/pkg/transform"
)

// ErrNoFrames is returned when the sheet would be empty.
var ErrNoFrames = errors.New("sheet: no frames")

// Stage draws contact sheets.
type Stage struct {
	renderer ports.Renderer
	logger   ports.Logger
}

// NewStage creates a new sheet stage.
func NewStage(renderer ports.Renderer, logger ports.Logger) *Stage {
	return &Stage{
		renderer: renderer,
		logger:   logger.WithComponent("sheet"),
	}
}

// Grid is the computed sheet geometry.
type Grid struct {
	Size  pipeline.Dimension
	Title pipeline.Rectangle
	// Cells holds one rectangle per frame, in reading order.
	Cells []pipeline.Rectangle
	// LabelHeight is the strip below each cell reserved for its label.
	LabelHeight int
}

// Layout computes where each of n cells goes.
func Layout(input pipeline.SheetInput, n int) Grid {
	cols := max(min(input.Columns, n), 1)
	rows := (n + cols - 1) / cols

	labelH := 0
	if input.LabelSize > 0 {
		labelH = int(input.LabelSize*1.6 + 0.5)
	}
	titleH := 0
	if input.Title != "" {
		titleH = int(max(input.LabelSize, 12)*2 + 0.5)
	}

	cellW, cellH := input.Cell.Width, input.Cell.Height
	rowH := cellH + labelH

	g := Grid{
		Size: pipeline.Dimension{
			Width:  2*input.Padding + cols*cellW + (cols-1)*input.Gap,
			Height: 2*input.Padding + titleH + rows*rowH + max(rows-1, 0)*input.Gap,
		},
		LabelHeight: labelH,
	}
	if titleH > 0 {
		g.Title = pipeline.Rectangle{X: input.Padding, Y: input.Padding, Width: g.Size.Width - 2*input.Padding, Height: titleH}
	}

	top := input.Padding + titleH
	for i := 0; i < n; i++ {
		col, row := i%cols, i/cols
		g.Cells = append(g.Cells, pipeline.Rectangle{
			X:      input.Padding + col*(cellW+input.Gap),
			Y:      top + row*(rowH+input.Gap),
			Width:  cellW,
			Height: cellH,
		})
	}
	return g
}

// ThumbnailSize returns the size a w x h frame takes inside a cell while
// keeping its aspect ratio.
func ThumbnailSize(w, h int, cell pipeline.Dimension) pipeline.Dimension {
	g := transform.Fit(w, h, cell.Width, cell.Height)
	return pipeline.Dimension{Width: g.ScaledWidth, Height: g.ScaledHeight}
}

// Execute draws the sheet. Thumbnails larger than a cell are scaled down.
func (s *Stage) Execute(ctx context.Context, input pipeline.SheetInput) (pipeline.SheetResult, error) {
	if len(input.Frames) == 0 {
		return pipeline.SheetResult{}, ErrNoFrames
	}
	if input.Cell.Width <= 0 || input.Cell.Height <= 0 {
		return pipeline.SheetResult{}, fmt.Errorf("sheet: invalid cell size %dx%d", input.Cell.Width, input.Cell.Height)
	}

	grid := Layout(input, len(input.Frames))
	s.logger.Debug("Drawing %d thumbnails on a %dx%d sheet", len(input.Frames), grid.Size.Width, grid.Size.Height)

	theme := input.Theme
	canvas := s.renderer.CreateCanvas(grid.Size.Width, grid.Size.Height, theme.BackgroundColor)

	if input.Title != "" {
		canvas.DrawText(input.Title, grid.Title.X, grid.Title.Y+grid.Title.Height/2, ports.TextStyle{
			FontSize: max(input.LabelSize, 12) * 1.2,
			Color:    theme.TextColor,
			Align:    ports.AlignLeft,
		})
	}

	for i, frame := range input.Frames {
		if err := ctx.Err(); err != nil {
			return pipeline.SheetResult{}, err
		}

		cell := grid.Cells[i]
		canvas.DrawRect(cell.X, cell.Y, cell.Width, cell.Height, theme.CellColor)

		img := frame.Image
		b := img.Bounds()
		if b.Dx() > cell.Width || b.Dy() > cell.Height {
			size := ThumbnailSize(b.Dx(), b.Dy(), input.Cell)
			img = s.renderer.ResizeImage(img, size.Width, size.Height)
			b = img.Bounds()
		}
		x := cell.X + (cell.Width-b.Dx())/2
		y := cell.Y + (cell.Height-b.Dy())/2
		canvas.DrawImage(img, x, y)

		if grid.LabelHeight > 0 {
			label := fmt.Sprintf("#%d  %s", frame.Index, FormatTimestamp(frame.PTS))
			canvas.DrawText(label, cell.X+cell.Width/2, cell.Y+cell.Height+grid.LabelHeight/2, ports.TextStyle{
				FontSize: input.LabelSize,
				Color:    theme.TextColor,
				Align:    ports.AlignCenter,
			})
		}
	}

	return pipeline.SheetResult{
		Image: canvas.ToImage(),
		Size:  grid.Size,
	}, nil
}

// FormatTimestamp formats d as mm:ss.mmm, or h:mm:ss.mmm past one hour.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	sec := ms / 1000 % 60
	ms %= 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, sec, ms)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, sec, ms)
}

var _ pipeline.Stage[pipeline.SheetInput, pipeline.SheetResult] = (*Stage)(nil)
