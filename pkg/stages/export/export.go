// Package export implements the frame export stage.
package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/user/framecap/pkg/pipeline"
	"github.com/user/framecap/pkg/ports"
)

// ErrNoOutputDir is returned when ExportInput.OutputDir is empty.
var ErrNoOutputDir = errors.New("export: output directory is required")

// Stage encodes frames and writes them as image files.
type Stage struct {
	renderer   ports.Renderer
	fs         ports.FileSystem
	logger     ports.Logger
	numWorkers int
}

// NewStage creates a new export stage. numWorkers <= 0 uses one worker per
// CPU.
func NewStage(renderer ports.Renderer, fs ports.FileSystem, logger ports.Logger, numWorkers int) *Stage {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Stage{
		renderer:   renderer,
		fs:         fs,
		logger:     logger.WithComponent("export"),
		numWorkers: numWorkers,
	}
}

// FileName returns the file name used for the frame with the given index.
func FileName(prefix string, index int, format ports.ImageFormat) string {
	if prefix == "" {
		prefix = "frame"
	}
	return fmt.Sprintf("%s-%06d.%s", prefix, index, format.Extension())
}

// Execute writes all frames of the batch. Files are returned in input
// order regardless of which worker wrote them.
func (s *Stage) Execute(ctx context.Context, input pipeline.ExportInput) (pipeline.ExportResult, error) {
	if input.OutputDir == "" {
		return pipeline.ExportResult{}, ErrNoOutputDir
	}
	if len(input.Frames) == 0 {
		return pipeline.ExportResult{Files: []pipeline.ExportedFile{}}, nil
	}
	if err := s.fs.MkdirAll(input.OutputDir); err != nil {
		return pipeline.ExportResult{}, fmt.Errorf("create output directory: %w", err)
	}

	workers := min(s.numWorkers, len(input.Frames))
	s.logger.Debug("Exporting %d frames with %d workers", len(input.Frames), workers)

	return s.executeParallel(ctx, input, workers)
}

type indexedFile struct {
	pos  int
	file pipeline.ExportedFile
}

func (s *Stage) executeParallel(ctx context.Context, input pipeline.ExportInput, workers int) (pipeline.ExportResult, error) {
	numFrames := len(input.Frames)
	jobs := make(chan int, numFrames)
	results := make(chan indexedFile, numFrames)
	errChan := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go s.worker(ctx, &wg, input, jobs, results, errChan)
	}

	for i := 0; i < numFrames; i++ {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
		close(errChan)
	}()

	files := make([]indexedFile, 0, numFrames)
	for result := range results {
		files = append(files, result)
	}

	if err := <-errChan; err != nil {
		return pipeline.ExportResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return pipeline.ExportResult{}, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].pos < files[j].pos
	})

	out := make([]pipeline.ExportedFile, len(files))
	for i, f := range files {
		out[i] = f.file
	}
	return pipeline.ExportResult{Files: out}, nil
}

func (s *Stage) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	input pipeline.ExportInput,
	jobs <-chan int,
	results chan<- indexedFile,
	errChan chan<- error,
) {
	defer wg.Done()

	for pos := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		file, err := s.exportFrame(input, input.Frames[pos])
		if err != nil {
			select {
			case errChan <- fmt.Errorf("export frame %d: %w", input.Frames[pos].Index, err):
			default:
			}
			return
		}

		results <- indexedFile{pos: pos, file: file}
	}
}

func (s *Stage) exportFrame(input pipeline.ExportInput, frame pipeline.Frame) (pipeline.ExportedFile, error) {
	data, err := s.renderer.EncodeImage(frame.Image, input.Format, input.Quality)
	if err != nil {
		return pipeline.ExportedFile{}, err
	}

	path := filepath.Join(input.OutputDir, FileName(input.Prefix, frame.Index, input.Format))
	if err := s.fs.WriteFile(path, data); err != nil {
		return pipeline.ExportedFile{}, err
	}

	return pipeline.ExportedFile{
		Index: frame.Index,
		Path:  path,
		Size:  int64(len(data)),
	}, nil
}

var _ pipeline.Stage[pipeline.ExportInput, pipeline.ExportResult] = (*Stage)(nil)
