package summarizer

import (
	"errors"
	"testing"
	"time"
)

func TestNewSummary(t *testing.T) {
	before := time.Now()
	summary := NewSummary()
	after := time.Now()

	if summary.GeneratedAt.Before(before) || summary.GeneratedAt.After(after) {
		t.Errorf("GeneratedAt should be between %v and %v, got %v",
			before, after, summary.GeneratedAt)
	}
}

func TestBuilder_WithSource(t *testing.T) {
	summary := NewBuilder().
		WithSource(SourceInfo{Path: "clip.mp4", Codec: "h264", Width: 1920, Height: 1080, FrameCount: 10}).
		Build()

	if summary.Source.Path != "clip.mp4" {
		t.Errorf("expected path 'clip.mp4', got '%s'", summary.Source.Path)
	}
	if summary.Source.Width != 1920 || summary.Source.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", summary.Source.Width, summary.Source.Height)
	}
}

func TestBuilder_WithSettingsAndResult(t *testing.T) {
	summary := NewBuilder().
		WithSettings(Settings{TargetWidth: 640, TargetHeight: 640, Format: "png"}).
		WithResult(ResultInfo{FramesDelivered: 10, FramesWritten: 5}).
		Build()

	if summary.Settings.TargetWidth != 640 {
		t.Errorf("expected target width 640, got %d", summary.Settings.TargetWidth)
	}
	if summary.Result.FramesWritten != 5 {
		t.Errorf("expected 5 frames written, got %d", summary.Result.FramesWritten)
	}
}

func TestBuilder_WithError(t *testing.T) {
	summary := NewBuilder().
		WithResult(ResultInfo{FramesDelivered: 3}).
		WithError(errors.New("decoder crashed")).
		Build()

	if summary.Result.Error != "decoder crashed" {
		t.Errorf("expected error to be recorded, got %q", summary.Result.Error)
	}
	if summary.Result.FramesDelivered != 3 {
		t.Error("WithError must keep the other result fields")
	}

	clean := NewBuilder().WithError(nil).Build()
	if clean.Result.Error != "" {
		t.Errorf("nil error should leave Error empty, got %q", clean.Result.Error)
	}
}
