// Package summarizer builds and renders the report of an extraction run.
package summarizer

import "time"

// Summary contains everything reported about one extraction.
type Summary struct {
	GeneratedAt time.Time

	Source   SourceInfo
	Settings Settings
	Result   ResultInfo
}

// SourceInfo describes the input stream.
type SourceInfo struct {
	Path       string
	Codec      string
	FourCC     string
	Backend    string
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int // -1 when unknown
	DurationMs int
}

// Settings contains the extraction configuration.
type Settings struct {
	TargetWidth  int // 0 = native size
	TargetHeight int
	PadColor     string
	BufferPolicy string
	Format       string
	Every        int
	MaxFrames    int // 0 = unlimited
}

// ResultInfo contains what the run produced.
type ResultInfo struct {
	FramesDelivered int
	FramesWritten   int
	PacketsRead     int
	Dropped         int
	BytesWritten    int64
	ElapsedMs       int
	SheetPath       string
	// Error is the fatal decode error, if decoding stopped early.
	Error string
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSource sets the input stream information.
func (b *Builder) WithSource(source SourceInfo) *Builder {
	b.summary.Source = source
	return b
}

// WithSettings sets extraction settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithResult sets the run results.
func (b *Builder) WithResult(result ResultInfo) *Builder {
	b.summary.Result = result
	return b
}

// WithError records a fatal decode error.
func (b *Builder) WithError(err error) *Builder {
	if err != nil {
		b.summary.Result.Error = err.Error()
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
