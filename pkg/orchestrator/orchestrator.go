// Package orchestrator runs an extraction: frames are pulled from a capture
// session, exported in batches and optionally collected on a contact sheet.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/framecap/pkg/capture"
	"github.com/user/framecap/pkg/framebuf"
	"github.com/user/framecap/pkg/pipeline"
	"github.com/user/framecap/pkg/ports"
	"github.com/user/framecap/pkg/stages/sheet"
)

// ErrDecode marks a run that ended early on a fatal decode error. Frames
// delivered before the error are still exported.
var ErrDecode = errors.New("decode stopped early")

// Config contains all configuration for an extraction run.
type Config struct {
	InputPath string
	OutputDir string

	// Target frame size. Both zero keeps the native size.
	Width  int
	Height int

	// Every exports one frame out of Every (default: 1).
	Every int
	// MaxFrames stops after that many exported frames. 0 = unlimited.
	MaxFrames int
	// BatchSize is the number of frames handed to the export stage at once.
	BatchSize int

	Format  ports.ImageFormat
	Quality int
	Prefix  string

	// Contact sheet, written to SheetPath when set.
	SheetPath    string
	SheetColumns int
	SheetCell    int
	SheetLabels  bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		OutputDir:    "frames",
		Every:        1,
		BatchSize:    16,
		Format:       ports.FormatPNG,
		Quality:      90,
		Prefix:       "frame",
		SheetColumns: 4,
		SheetCell:    160,
		SheetLabels:  true,
	}
}

// Orchestrator coordinates the capture session and the output stages.
type Orchestrator struct {
	session     *capture.Session
	exportStage pipeline.Stage[pipeline.ExportInput, pipeline.ExportResult]
	sheetStage  pipeline.Stage[pipeline.SheetInput, pipeline.SheetResult]
	renderer    ports.Renderer
	fs          ports.FileSystem
	logger      ports.Logger
}

// New creates a new Orchestrator.
func New(
	session *capture.Session,
	exportStage pipeline.Stage[pipeline.ExportInput, pipeline.ExportResult],
	sheetStage pipeline.Stage[pipeline.SheetInput, pipeline.SheetResult],
	renderer ports.Renderer,
	fs ports.FileSystem,
	logger ports.Logger,
) *Orchestrator {
	return &Orchestrator{
		session:     session,
		exportStage: exportStage,
		sheetStage:  sheetStage,
		renderer:    renderer,
		fs:          fs,
		logger:      logger,
	}
}

// RunResult contains the results of a run for summary generation.
type RunResult struct {
	Stream  ports.StreamDescriptor
	Backend string
	Stats   capture.Stats

	Files        []pipeline.ExportedFile
	BytesWritten int64
	SheetPath    string
	Elapsed      time.Duration

	// DecodeErr is the fatal decode error that ended the stream, if any.
	DecodeErr error
}

// Run executes the extraction. On a fatal decode error the frames read so
// far are still exported and the returned error wraps ErrDecode; the result
// is valid in that case.
func (o *Orchestrator) Run(ctx context.Context, config Config) (RunResult, error) {
	start := time.Now()
	config = withDefaults(config)

	o.logger.Info("Extracting frames from %s", config.InputPath)
	if err := o.session.Open(config.InputPath, config.Width, config.Height); err != nil {
		o.logger.Error("Failed to open input: %s", err)
		return RunResult{}, err
	}
	defer o.session.Close()

	desc := o.session.Stream()
	result := RunResult{
		Stream:  desc,
		Backend: string(o.session.Backend()),
	}

	var (
		batch  []pipeline.Frame
		thumbs []pipeline.Frame
		picked int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		exported, err := o.exportStage.Execute(ctx, pipeline.ExportInput{
			Frames:    batch,
			OutputDir: config.OutputDir,
			Prefix:    config.Prefix,
			Format:    config.Format,
			Quality:   config.Quality,
		})
		if err != nil {
			return fmt.Errorf("export stage: %w", err)
		}
		result.Files = append(result.Files, exported.Files...)
		result.BytesWritten += exported.TotalBytes()
		o.logger.Debug("Exported %d frames", len(result.Files))
		batch = batch[:0]
		return nil
	}

	for _, frame := range o.session.All() {
		if err := ctx.Err(); err != nil {
			frame.Release()
			return result, err
		}

		if frame.Index%config.Every == 0 {
			f := o.detach(frame)
			batch = append(batch, f)
			if config.SheetPath != "" {
				thumbs = append(thumbs, o.thumbnail(f, config.SheetCell))
			}
			picked++
		}
		frame.Release()

		if len(batch) >= config.BatchSize {
			if err := flush(); err != nil {
				o.logger.Error("Failed to export frames: %s", err)
				return result, err
			}
		}
		if config.MaxFrames > 0 && picked >= config.MaxFrames {
			break
		}
	}
	if err := flush(); err != nil {
		o.logger.Error("Failed to export frames: %s", err)
		return result, err
	}

	result.Stats = o.session.Stats()
	result.DecodeErr = o.session.Err()

	if len(thumbs) > 0 {
		if err := o.writeSheet(ctx, config, thumbs); err != nil {
			o.logger.Error("Failed to write contact sheet: %s", err)
			return result, err
		}
		result.SheetPath = config.SheetPath
	}

	result.Elapsed = time.Since(start)
	o.logger.Info("Wrote %d frames to %s", len(result.Files), config.OutputDir)

	if result.DecodeErr != nil {
		return result, fmt.Errorf("%w: %w", ErrDecode, result.DecodeErr)
	}
	return result, nil
}

// detach copies a session frame so it outlives its buffer.
func (o *Orchestrator) detach(frame *framebuf.Frame) pipeline.Frame {
	return pipeline.Frame{
		Index: frame.Index,
		PTS:   frame.PTS,
		Image: frame.ToImage(),
	}
}

func (o *Orchestrator) thumbnail(f pipeline.Frame, cell int) pipeline.Frame {
	b := f.Image.Bounds()
	size := sheet.ThumbnailSize(b.Dx(), b.Dy(), pipeline.Dimension{Width: cell, Height: cell})
	if size.Width != b.Dx() || size.Height != b.Dy() {
		f.Image = o.renderer.ResizeImage(f.Image, size.Width, size.Height)
	}
	return f
}

func (o *Orchestrator) writeSheet(ctx context.Context, config Config, thumbs []pipeline.Frame) error {
	input := pipeline.DefaultSheetInput()
	input.Frames = thumbs
	input.Columns = config.SheetColumns
	input.Cell = pipeline.Dimension{Width: config.SheetCell, Height: config.SheetCell}
	input.Title = filepath.Base(config.InputPath)
	if !config.SheetLabels {
		input.LabelSize = 0
	}

	sh, err := o.sheetStage.Execute(ctx, input)
	if err != nil {
		return fmt.Errorf("sheet stage: %w", err)
	}

	data, err := o.renderer.EncodeImage(sh.Image, SheetFormat(config.SheetPath), config.Quality)
	if err != nil {
		return fmt.Errorf("encode contact sheet: %w", err)
	}
	if err := o.fs.WriteFile(config.SheetPath, data); err != nil {
		return fmt.Errorf("write contact sheet: %w", err)
	}
	o.logger.Info("Contact sheet saved to %s", config.SheetPath)
	return nil
}

// SheetFormat picks the contact sheet encoding from the file extension.
func SheetFormat(path string) ports.ImageFormat {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return ports.ParseImageFormat(ext)
}

func withDefaults(c Config) Config {
	d := DefaultConfig()
	if c.Every <= 0 {
		c.Every = d.Every
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.SheetColumns <= 0 {
		c.SheetColumns = d.SheetColumns
	}
	if c.SheetCell <= 0 {
		c.SheetCell = d.SheetCell
	}
	return c
}
