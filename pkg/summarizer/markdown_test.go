package summarizer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/framecap/pkg/mocks"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Source: SourceInfo{
			Path:       "videos/clip.mp4",
			Codec:      "h264",
			FourCC:     "avc1",
			Backend:    "ffmpeg",
			Width:      1920,
			Height:     1080,
			FrameRate:  29.97,
			FrameCount: 300,
			DurationMs: 10010,
		},
		Settings: Settings{
			TargetWidth:  640,
			TargetHeight: 640,
			PadColor:     "#727272",
			BufferPolicy: "owned",
			Format:       "png",
			Every:        10,
		},
		Result: ResultInfo{
			FramesDelivered: 300,
			FramesWritten:   30,
			PacketsRead:     300,
			BytesWritten:    1024 * 1024,
			ElapsedMs:       1500,
			SheetPath:       "out/sheet.png",
		},
	}
}

func TestMarkdownFormatter_Format_Basic(t *testing.T) {
	result := NewMarkdownFormatter().Format(sampleSummary())

	checks := []string{
		"# Extraction Summary",
		"videos/clip.mp4",
		"h264 (avc1)",
		"ffmpeg",
		"1920x1080",
		"29.97 fps",
		"| Frame Count | 300 |",
		"640x640",
		"#727272",
		"owned",
		"| Every Nth Frame | 10 |",
		"| Frames Written | 30 |",
		"1.00 MB",
		"1500 ms",
		"out/sheet.png",
		"2024-01-15 10:30:00 UTC",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q", check)
		}
	}
	if strings.Contains(result, "Decode Error") {
		t.Error("clean run should not show a decode error")
	}
	if strings.Contains(result, "Max Frames") {
		t.Error("unlimited max frames should be omitted")
	}
}

func TestMarkdownFormatter_Format_NativeAndUnknown(t *testing.T) {
	s := sampleSummary()
	s.Settings.TargetWidth, s.Settings.TargetHeight = 0, 0
	s.Source.FrameCount = -1

	result := NewMarkdownFormatter().Format(s)

	if !strings.Contains(result, "| Target Size | Native |") {
		t.Error("expected native target size")
	}
	if !strings.Contains(result, "| Frame Count | Unknown |") {
		t.Error("expected unknown frame count")
	}
}

func TestMarkdownFormatter_Format_Error(t *testing.T) {
	s := NewBuilder().
		WithSource(sampleSummary().Source).
		WithError(errors.New("fatal decode error: bad | pipe")).
		Build()

	result := NewMarkdownFormatter().Format(s)

	if !strings.Contains(result, `| Decode Error | fatal decode error: bad \| pipe |`) {
		t.Errorf("expected escaped error row, got:\n%s", result)
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translate := func(s string) string {
		if s == "Extraction Summary" {
			return "抽出サマリー"
		}
		return s
	}

	result := NewMarkdownFormatter(WithTranslator(translate)).Format(sampleSummary())

	if !strings.Contains(result, "# 抽出サマリー") {
		t.Error("expected translated title")
	}
}

func TestMarkdownFormatter_WithVersion(t *testing.T) {
	result := NewMarkdownFormatter(WithVersion("v1.2.3")).Format(sampleSummary())
	if !strings.Contains(result, "(framecap v1.2.3)") {
		t.Error("expected version in footer")
	}

	result = NewMarkdownFormatter().Format(sampleSummary())
	if strings.Contains(result, "framecap") {
		t.Error("footer should omit version when unset")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1024 * 1024, "1.00 MB"},
		{1024 * 1024 * 1024, "1.00 GB"},
		{1536 * 1024 * 1024, "1.50 GB"},
		{2048 * 1024 * 1024 * 1024, "2048.00 GB"},
	}

	for _, tt := range tests {
		if got := formatBytes(tt.bytes); got != tt.expected {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.bytes, got, tt.expected)
		}
	}
}

func TestFormatFunc(t *testing.T) {
	f := FormatFunc(func(s *Summary) string { return s.Source.Path })
	if got := f.Format(sampleSummary()); got != "videos/clip.mp4" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestWriter_Write(t *testing.T) {
	fs := mocks.NewFileSystem()
	w := NewWriter(NewMarkdownFormatter(), fs)

	if err := w.Write("out/report/summary.md", sampleSummary()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !fs.HasDir("out/report") {
		t.Error("expected parent directory to be created")
	}
	data, ok := fs.GetFile("out/report/summary.md")
	if !ok {
		t.Fatal("summary file not written")
	}
	if !strings.HasPrefix(string(data), "# Extraction Summary") {
		t.Errorf("unexpected content: %q", string(data[:20]))
	}
}

func TestWriter_WriteError(t *testing.T) {
	fs := mocks.NewFileSystem()
	fs.WriteFileFunc = func(string, []byte) error { return errors.New("disk full") }

	err := NewWriter(NewMarkdownFormatter(), fs).Write("summary.md", sampleSummary())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected write error, got %v", err)
	}
}
