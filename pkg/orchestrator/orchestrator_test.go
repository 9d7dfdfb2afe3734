package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/capture"
	"github.com/user/framecap/pkg/mocks"
	"github.com/user/framecap/pkg/pipeline"
	"github.com/user/framecap/pkg/ports"
	"github.com/user/framecap/pkg/stages/export"
	"github.com/user/framecap/pkg/stages/sheet"
)

// mockExportStage records every batch it receives.
type mockExportStage struct {
	batches [][]int
	err     error
}

func (m *mockExportStage) Execute(ctx context.Context, input pipeline.ExportInput) (pipeline.ExportResult, error) {
	if m.err != nil {
		return pipeline.ExportResult{}, m.err
	}
	var indices []int
	var files []pipeline.ExportedFile
	for _, f := range input.Frames {
		indices = append(indices, f.Index)
		files = append(files, pipeline.ExportedFile{Index: f.Index, Path: export.FileName(input.Prefix, f.Index, input.Format), Size: 100})
	}
	m.batches = append(m.batches, indices)
	return pipeline.ExportResult{Files: files}, nil
}

// mockSheetStage records the frames it was given.
type mockSheetStage struct {
	input pipeline.SheetInput
	calls int
}

func (m *mockSheetStage) Execute(ctx context.Context, input pipeline.SheetInput) (pipeline.SheetResult, error) {
	m.calls++
	m.input = input
	return pipeline.SheetResult{Size: pipeline.Dimension{Width: 10, Height: 10}}, nil
}

type fixture struct {
	demux    *mocks.Demuxer
	dec      *mocks.Decoder
	export   *mockExportStage
	sheet    *mockSheetStage
	renderer *mocks.Renderer
	fs       *mocks.FileSystem
	orch     *Orchestrator
}

func newFixture(frames int) *fixture {
	desc := ports.StreamDescriptor{
		Width:      64,
		Height:     48,
		FrameRate:  25,
		FrameCount: frames,
		Codec:      ports.CodecH264,
		FourCC:     "avc1",
		Duration:   time.Duration(frames) * 40 * time.Millisecond,
		TimeScale:  1000,
	}
	packets := make([]ports.Packet, frames)
	for i := range packets {
		packets[i] = ports.Packet{Data: []byte{byte(i)}, PTS: int64(i * 40), DTS: int64(i * 40), Index: i}
	}

	f := &fixture{
		demux:    &mocks.Demuxer{Desc: desc, Packets: packets},
		dec:      &mocks.Decoder{Width: desc.Width, Height: desc.Height},
		export:   &mockExportStage{},
		sheet:    &mockSheetStage{},
		renderer: &mocks.Renderer{},
		fs:       mocks.NewFileSystem(),
	}
	session := capture.New(capture.Options{
		Workers:    1,
		NewDemuxer: func(ports.Logger) ports.Demuxer { return f.demux },
		NewDecoder: func(ports.StreamDescriptor) (ports.VideoDecoder, error) { return f.dec, nil },
	})
	f.orch = New(session, f.export, f.sheet, f.renderer, f.fs, logger.NewNoop())
	return f
}

func TestOrchestrator_Run(t *testing.T) {
	f := newFixture(10)

	config := DefaultConfig()
	config.InputPath = "clip.mp4"
	config.OutputDir = "out"
	config.Width, config.Height = 32, 32
	config.BatchSize = 4

	result, err := f.orch.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Files) != 10 {
		t.Errorf("expected 10 files, got %d", len(result.Files))
	}
	if len(f.export.batches) != 3 {
		t.Errorf("expected 3 batches (4+4+2), got %d", len(f.export.batches))
	}
	if result.BytesWritten != 1000 {
		t.Errorf("expected 1000 bytes, got %d", result.BytesWritten)
	}
	if result.Stats.FramesDelivered != 10 || result.Stats.PacketsRead != 10 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
	if result.Stream.Width != 64 || result.Stream.FrameCount != 10 {
		t.Errorf("unexpected stream %+v", result.Stream)
	}
	if f.sheet.calls != 0 {
		t.Error("sheet stage must not run without a sheet path")
	}
	if f.dec.CloseCalls != 1 || f.demux.CloseCalls != 1 {
		t.Error("session should be closed after the run")
	}
	if f.dec.Released != 10 {
		t.Errorf("expected every decoded frame released, got %d", f.dec.Released)
	}
}

func TestOrchestrator_EveryAndMaxFrames(t *testing.T) {
	f := newFixture(20)

	config := DefaultConfig()
	config.InputPath = "clip.mp4"
	config.Every = 3
	config.MaxFrames = 4

	result, err := f.orch.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int{0, 3, 6, 9}
	if len(result.Files) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(result.Files))
	}
	for i, file := range result.Files {
		if file.Index != want[i] {
			t.Errorf("file %d: expected index %d, got %d", i, want[i], file.Index)
		}
	}
	if result.Stats.FramesDelivered != 10 {
		t.Errorf("reading should stop at the last exported frame, delivered %d", result.Stats.FramesDelivered)
	}
}

func TestOrchestrator_ContactSheet(t *testing.T) {
	f := newFixture(6)

	config := DefaultConfig()
	config.InputPath = "videos/clip.mp4"
	config.SheetPath = "out/sheet.jpg"
	config.SheetCell = 32
	config.Every = 2

	result, err := f.orch.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.sheet.calls != 1 {
		t.Fatalf("expected one sheet run, got %d", f.sheet.calls)
	}
	if len(f.sheet.input.Frames) != 3 {
		t.Errorf("expected 3 thumbnails, got %d", len(f.sheet.input.Frames))
	}
	if f.sheet.input.Title != "clip.mp4" {
		t.Errorf("unexpected title %q", f.sheet.input.Title)
	}
	// 64x48 fits a 32x32 cell as 32x24.
	if b := f.sheet.input.Frames[0].Image.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Errorf("unexpected thumbnail size %v", b)
	}
	if result.SheetPath != "out/sheet.jpg" {
		t.Errorf("unexpected sheet path %q", result.SheetPath)
	}
	if _, ok := f.fs.GetFile("out/sheet.jpg"); !ok {
		t.Error("contact sheet not written")
	}
}

func TestOrchestrator_OpenError(t *testing.T) {
	f := newFixture(1)
	f.demux.OpenFunc = func(string) (ports.StreamDescriptor, error) {
		return ports.StreamDescriptor{}, errors.New("not an mp4")
	}

	_, err := f.orch.Run(context.Background(), Config{InputPath: "bad.mp4"})

	var openErr *capture.OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *capture.OpenError, got %v", err)
	}
	if len(f.export.batches) != 0 {
		t.Error("nothing should be exported")
	}
}

func TestOrchestrator_ExportError(t *testing.T) {
	f := newFixture(3)
	f.export.err = errors.New("disk full")

	_, err := f.orch.Run(context.Background(), Config{InputPath: "clip.mp4"})
	if err == nil {
		t.Fatal("expected error")
	}
	if f.dec.CloseCalls != 1 {
		t.Error("session must be closed on failure")
	}
}

func TestOrchestrator_DecodeError(t *testing.T) {
	f := newFixture(8)
	f.dec.SubmitFunc = func(pkt *ports.Packet) error {
		if pkt != nil && pkt.Index == 5 {
			return ports.ErrFatalDecode
		}
		return nil
	}

	result, err := f.orch.Run(context.Background(), Config{InputPath: "clip.mp4"})

	if !errors.Is(err, ErrDecode) || !errors.Is(err, ports.ErrFatalDecode) {
		t.Fatalf("expected ErrDecode wrapping ErrFatalDecode, got %v", err)
	}
	if len(result.Files) != 5 {
		t.Errorf("frames before the error should be exported, got %d", len(result.Files))
	}
	if result.DecodeErr == nil {
		t.Error("expected DecodeErr to be set")
	}
}

func TestOrchestrator_Cancelled(t *testing.T) {
	f := newFixture(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orch.Run(ctx, Config{InputPath: "clip.mp4"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestOrchestrator_RealStages(t *testing.T) {
	f := newFixture(4)
	renderer := &mocks.Renderer{}
	f.orch = New(
		f.orch.session,
		export.NewStage(renderer, f.fs, logger.NewNoop(), 2),
		sheet.NewStage(renderer, logger.NewNoop()),
		renderer,
		f.fs,
		logger.NewNoop(),
	)

	config := DefaultConfig()
	config.InputPath = "clip.mp4"
	config.OutputDir = "frames"
	config.SheetPath = "sheet.png"

	result, err := f.orch.Run(context.Background(), config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, file := range result.Files {
		if _, ok := f.fs.GetFile(file.Path); !ok {
			t.Errorf("%s not written", file.Path)
		}
	}
	if len(f.fs.GetAllFiles()) != 5 {
		t.Errorf("expected 4 frames and a sheet, got %d files", len(f.fs.GetAllFiles()))
	}
}

func TestSheetFormat(t *testing.T) {
	tests := []struct {
		path     string
		expected ports.ImageFormat
	}{
		{"sheet.png", ports.FormatPNG},
		{"sheet.JPG", ports.FormatJPEG},
		{"out/sheet.jpeg", ports.FormatJPEG},
		{"sheet", ports.FormatPNG},
	}
	for _, tt := range tests {
		if got := SheetFormat(tt.path); got != tt.expected {
			t.Errorf("SheetFormat(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}
