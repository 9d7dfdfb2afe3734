package sheet

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/user/framecap/pkg/adapters/ggrenderer"
	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/mocks"
	"github.com/user/framecap/pkg/pipeline"
)

func sheetFrames(n, w, h int) []pipeline.Frame {
	frames := make([]pipeline.Frame, n)
	for i := range frames {
		frames[i] = pipeline.Frame{
			Index: i * 10,
			PTS:   time.Duration(i) * 400 * time.Millisecond,
			Image: image.NewRGBA(image.Rect(0, 0, w, h)),
		}
	}
	return frames
}

func TestLayout(t *testing.T) {
	input := pipeline.SheetInput{
		Columns:   3,
		Cell:      pipeline.Dimension{Width: 100, Height: 50},
		Gap:       10,
		Padding:   5,
		LabelSize: 10,
	}

	g := Layout(input, 5)

	if g.Size.Width != 330 || g.Size.Height != 152 {
		t.Errorf("expected 330x152, got %dx%d", g.Size.Width, g.Size.Height)
	}
	if g.LabelHeight != 16 {
		t.Errorf("expected label height 16, got %d", g.LabelHeight)
	}
	if len(g.Cells) != 5 {
		t.Fatalf("expected 5 cells, got %d", len(g.Cells))
	}
	want := pipeline.Rectangle{X: 115, Y: 81, Width: 100, Height: 50}
	if g.Cells[4] != want {
		t.Errorf("cell 4: expected %+v, got %+v", want, g.Cells[4])
	}
}

func TestLayout_FewerFramesThanColumns(t *testing.T) {
	input := pipeline.SheetInput{Columns: 4, Cell: pipeline.Dimension{Width: 10, Height: 10}}

	g := Layout(input, 2)

	if g.Size.Width != 20 || g.Size.Height != 10 {
		t.Errorf("expected 20x10, got %dx%d", g.Size.Width, g.Size.Height)
	}
}

func TestLayout_Title(t *testing.T) {
	input := pipeline.SheetInput{
		Columns:   2,
		Cell:      pipeline.Dimension{Width: 10, Height: 10},
		Padding:   4,
		LabelSize: 10,
		Title:     "clip.mp4",
	}

	g := Layout(input, 2)

	if g.Title.Height != 24 {
		t.Errorf("expected title height 24, got %d", g.Title.Height)
	}
	if g.Cells[0].Y != 4+24 {
		t.Errorf("cells must start below the title, got y=%d", g.Cells[0].Y)
	}
}

func TestThumbnailSize(t *testing.T) {
	tests := []struct {
		w, h     int
		cell     pipeline.Dimension
		expected pipeline.Dimension
	}{
		{1920, 1080, pipeline.Dimension{Width: 160, Height: 160}, pipeline.Dimension{Width: 160, Height: 90}},
		{1080, 1920, pipeline.Dimension{Width: 160, Height: 160}, pipeline.Dimension{Width: 90, Height: 160}},
		{100, 100, pipeline.Dimension{Width: 50, Height: 80}, pipeline.Dimension{Width: 50, Height: 50}},
	}

	for _, tt := range tests {
		if got := ThumbnailSize(tt.w, tt.h, tt.cell); got != tt.expected {
			t.Errorf("ThumbnailSize(%d, %d, %v) = %v, want %v", tt.w, tt.h, tt.cell, got, tt.expected)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "00:00.000"},
		{1250 * time.Millisecond, "00:01.250"},
		{83*time.Second + 40*time.Millisecond, "01:23.040"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03.000"},
		{-time.Second, "00:00.000"},
	}

	for _, tt := range tests {
		if got := FormatTimestamp(tt.d); got != tt.expected {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}

func TestStage_Execute(t *testing.T) {
	renderer := &mocks.Renderer{}
	stage := NewStage(renderer, logger.NewNoop())

	input := pipeline.DefaultSheetInput()
	input.Columns = 2
	input.Cell = pipeline.Dimension{Width: 100, Height: 100}
	input.Frames = sheetFrames(3, 200, 100)

	result, err := stage.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	grid := Layout(input, 3)
	if result.Size != grid.Size {
		t.Errorf("expected size %v, got %v", grid.Size, result.Size)
	}
	if len(renderer.Canvases) != 1 {
		t.Fatalf("expected one canvas, got %d", len(renderer.Canvases))
	}
	canvas := renderer.Canvases[0]
	if canvas.Rects != 3 {
		t.Errorf("expected 3 cell backgrounds, got %d", canvas.Rects)
	}
	if len(canvas.Images) != 3 {
		t.Fatalf("expected 3 thumbnails, got %d", len(canvas.Images))
	}
	// 200x100 is scaled to 100x50 and centered vertically.
	if got := canvas.Images[0]; got.X != grid.Cells[0].X || got.Y != grid.Cells[0].Y+25 {
		t.Errorf("thumbnail 0 drawn at %v", got)
	}
	if len(canvas.Texts) != 3 || canvas.Texts[1] != "#10  00:00.400" {
		t.Errorf("unexpected labels %q", canvas.Texts)
	}
}

func TestStage_NoLabels(t *testing.T) {
	renderer := &mocks.Renderer{}
	stage := NewStage(renderer, logger.NewNoop())

	input := pipeline.SheetInput{
		Columns: 2,
		Cell:    pipeline.Dimension{Width: 50, Height: 50},
		Frames:  sheetFrames(2, 50, 50),
		Theme:   pipeline.DefaultSheetTheme(),
	}
	if _, err := stage.Execute(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if texts := renderer.Canvases[0].Texts; len(texts) != 0 {
		t.Errorf("expected no labels, got %q", texts)
	}
}

func TestStage_Errors(t *testing.T) {
	stage := NewStage(&mocks.Renderer{}, logger.NewNoop())

	_, err := stage.Execute(context.Background(), pipeline.DefaultSheetInput())
	if !errors.Is(err, ErrNoFrames) {
		t.Errorf("expected ErrNoFrames, got %v", err)
	}

	input := pipeline.DefaultSheetInput()
	input.Frames = sheetFrames(1, 10, 10)
	input.Cell = pipeline.Dimension{}
	if _, err := stage.Execute(context.Background(), input); err == nil {
		t.Error("expected error for empty cell size")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	input = pipeline.DefaultSheetInput()
	input.Frames = sheetFrames(2, 10, 10)
	if _, err := stage.Execute(ctx, input); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestStage_RealRenderer(t *testing.T) {
	stage := NewStage(ggrenderer.New(), logger.NewNoop())

	input := pipeline.DefaultSheetInput()
	input.Title = "clip.mp4"
	input.Frames = sheetFrames(6, 320, 180)

	result, err := stage.Execute(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := result.Image.Bounds()
	if b.Dx() != result.Size.Width || b.Dy() != result.Size.Height {
		t.Errorf("image %v does not match size %v", b, result.Size)
	}
}
