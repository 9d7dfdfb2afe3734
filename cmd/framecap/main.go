// Package main provides the CLI entry point for framecap.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/framecap/pkg/adapters/filesink"
	"github.com/user/framecap/pkg/adapters/ggrenderer"
	"github.com/user/framecap/pkg/adapters/logger"
	"github.com/user/framecap/pkg/adapters/nullsink"
	"github.com/user/framecap/pkg/adapters/osfilesystem"
	"github.com/user/framecap/pkg/adapters/smartdecoder"
	"github.com/user/framecap/pkg/capture"
	"github.com/user/framecap/pkg/config"
	"github.com/user/framecap/pkg/orchestrator"
	"github.com/user/framecap/pkg/ports"
	"github.com/user/framecap/pkg/stages/export"
	"github.com/user/framecap/pkg/stages/sheet"
	"github.com/user/framecap/pkg/summarizer"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Probe    ProbeCmd    `cmd:"" help:"Show stream information of a video file."`
	Extract  ExtractCmd  `cmd:"" help:"Extract letterboxed frames from a video file."`
	Backends BackendsCmd `cmd:"" help:"List the available decoder backends."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`
}

// DecodeFlags are shared by the commands that open a video.
type DecodeFlags struct {
	Backend    string `default:"auto" enum:"auto,ffmpeg,libaom,libav" help:"Decoder backend."`
	FFmpegPath string `help:"Path to the ffmpeg executable (falls back to FFMPEG_PATH env, then PATH)."`

	LogLevel string `short:"l" help:"Log level (debug, info, warn, error)."`
	Quiet    bool   `short:"Q" help:"Suppress all log output."`
}

func (f DecodeFlags) newLogger(fallback ports.LogLevel) ports.Logger {
	level := fallback
	if f.LogLevel != "" {
		level = ports.ParseLogLevel(f.LogLevel)
	}
	if f.Quiet {
		level = ports.LevelQuiet
	}
	return logger.New(level)
}

// ProbeCmd defines the probe subcommand.
type ProbeCmd struct {
	Input       string `arg:"" type:"existingfile" help:"Video file to inspect."`
	DecodeFlags `embed:""`
}

// ExtractCmd defines the extract subcommand.
type ExtractCmd struct {
	Input  string `arg:"" type:"existingfile" help:"Video file to decode."`
	Config string `short:"c" type:"path" help:"YAML configuration file."`

	// Output
	Output  *string `short:"o" help:"Output directory for the frames (default: ./frames)."`
	Format  *string `short:"f" help:"Image format (png, jpg)."`
	Quality *int    `short:"q" help:"JPEG quality (1-100)."`
	Prefix  *string `help:"File name prefix of the frames."`
	Summary *string `help:"Write a Markdown summary to this path."`

	// Frame geometry
	Width    *int    `short:"W" help:"Target width (0 keeps the native size)."`
	Height   *int    `short:"H" help:"Target height (0 keeps the native size)."`
	PadColor *string `help:"Letterbox color (#rrggbb, r,g,b or a gray level)."`

	// Selection
	Every     *int `short:"e" help:"Export every Nth frame."`
	MaxFrames *int `short:"n" help:"Stop after this many exported frames (0 = unlimited)."`

	// Contact sheet
	Sheet        *string `short:"s" help:"Write a contact sheet to this path."`
	SheetColumns *int    `help:"Contact sheet columns."`
	SheetCell    *int    `help:"Contact sheet cell size in pixels."`

	// Decoding
	BufferPolicy *string `help:"Frame buffer policy (owned, borrowed)."`
	Workers      *int    `short:"j" help:"Worker count for conversion and export (0 = CPU count)."`

	// Debug options
	Debug    bool   `short:"d" help:"Enable debug output."`
	DebugDir string `default:"./debug" help:"Directory for debug output."`

	DecodeFlags `embed:""`
}

// BackendsCmd defines the backends subcommand.
type BackendsCmd struct {
	FFmpegPath string `help:"Path to the ffmpeg executable."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("framecap"),
		kong.Description(l10n.T("Decode videos into letterboxed BGR frames and export them as images.")),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// Run executes the probe command.
func (cmd *ProbeCmd) Run() error {
	log := cmd.newLogger(ports.LevelInfo)
	backend, err := smartdecoder.ParseBackend(cmd.Backend)
	if err != nil {
		return err
	}

	s := capture.New(capture.Options{
		Backend:    backend,
		FFmpegPath: cmd.FFmpegPath,
		Logger:     log,
	})
	if err := s.Open(cmd.Input, 0, 0); err != nil {
		return err
	}
	defer s.Close()

	desc := s.Stream()
	fmt.Printf("%-14s %s\n", l10n.T("File"), cmd.Input)
	fmt.Printf("%-14s %s (%s)\n", l10n.T("Codec"), desc.Codec, desc.FourCC)
	fmt.Printf("%-14s %s\n", l10n.T("Decoder"), s.Backend())
	fmt.Printf("%-14s %dx%d\n", l10n.T("Resolution"), desc.Width, desc.Height)
	fmt.Printf("%-14s %.3f\n", l10n.T("Frame Rate"), desc.FrameRate)
	fmt.Printf("%-14s %s\n", l10n.T("Duration"), desc.Duration.Round(time.Millisecond))
	fmt.Println()
	for _, prop := range capture.Properties() {
		fmt.Printf("%-14s %g\n", prop, s.Get(prop))
	}
	return nil
}

// Run executes the extract command.
func (cmd *ExtractCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := cmd.newLogger(cfg.LogLevel)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	// Create adapters
	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	var sink ports.DebugSink
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	captureOpts, err := cfg.CaptureOptions(log, sink)
	if err != nil {
		return err
	}

	orch := orchestrator.New(
		capture.New(captureOpts),
		export.NewStage(renderer, fs, log, cfg.Workers),
		sheet.NewStage(renderer, log),
		renderer,
		fs,
		log,
	)

	result, runErr := orch.Run(ctx, cfg.ToOrchestratorConfig())
	if runErr != nil && !errors.Is(runErr, orchestrator.ErrDecode) {
		return runErr
	}

	if cfg.Summary != "" {
		if err := writeSummary(cfg, result, fs); err != nil {
			log.Warn("Failed to write summary: %s", err)
		} else {
			log.Info("Summary saved to %s", cfg.Summary)
		}
	}

	return runErr
}

// buildConfig layers the config file and the command-line overrides over
// the defaults.
func (cmd *ExtractCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != "" {
		var err error
		if cfg, err = config.LoadFromFile(cmd.Config); err != nil {
			return cfg, err
		}
	}

	cfg.Input = cmd.Input
	if cmd.Backend != "auto" || cfg.Backend == "" {
		cfg.Backend = cmd.Backend
	}
	if cmd.FFmpegPath != "" {
		cfg.FFmpegPath = cmd.FFmpegPath
	}
	if cmd.Debug {
		cfg.Debug = true
		cfg.DebugDir = cmd.DebugDir
	}

	setString(&cfg.OutputDir, cmd.Output)
	setString(&cfg.Prefix, cmd.Prefix)
	setString(&cfg.Summary, cmd.Summary)
	setString(&cfg.PadColor, cmd.PadColor)
	setString(&cfg.Sheet.Path, cmd.Sheet)
	setString(&cfg.Format, cmd.Format)
	setString(&cfg.BufferPolicy, cmd.BufferPolicy)

	setInt(&cfg.Quality, cmd.Quality)
	setInt(&cfg.Width, cmd.Width)
	setInt(&cfg.Height, cmd.Height)
	setInt(&cfg.Every, cmd.Every)
	setInt(&cfg.MaxFrames, cmd.MaxFrames)
	setInt(&cfg.Sheet.Columns, cmd.SheetColumns)
	setInt(&cfg.Sheet.Cell, cmd.SheetCell)
	setInt(&cfg.Workers, cmd.Workers)

	return cfg, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func writeSummary(cfg config.Config, result orchestrator.RunResult, fs ports.FileSystem) error {
	desc := result.Stream
	s := summarizer.NewBuilder().
		WithSource(summarizer.SourceInfo{
			Path:       cfg.Input,
			Codec:      string(desc.Codec),
			FourCC:     desc.FourCC,
			Backend:    result.Backend,
			Width:      desc.Width,
			Height:     desc.Height,
			FrameRate:  desc.FrameRate,
			FrameCount: desc.FrameCount,
			DurationMs: int(desc.Duration.Milliseconds()),
		}).
		WithSettings(summarizer.Settings{
			TargetWidth:  cfg.Width,
			TargetHeight: cfg.Height,
			PadColor:     cfg.PadColor,
			BufferPolicy: cfg.BufferPolicy,
			Format:       cfg.Format,
			Every:        cfg.Every,
			MaxFrames:    cfg.MaxFrames,
		}).
		WithResult(summarizer.ResultInfo{
			FramesDelivered: result.Stats.FramesDelivered,
			FramesWritten:   len(result.Files),
			PacketsRead:     result.Stats.PacketsRead,
			Dropped:         result.Stats.Dropped,
			BytesWritten:    result.BytesWritten,
			ElapsedMs:       int(result.Elapsed.Milliseconds()),
			SheetPath:       result.SheetPath,
		}).
		WithError(result.DecodeErr).
		Build()

	formatter := summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
	return summarizer.NewWriter(formatter, fs).Write(filepath.Clean(cfg.Summary), s)
}

// Run executes the backends command.
func (cmd *BackendsCmd) Run() error {
	for _, info := range smartdecoder.Supported(smartdecoder.Options{FFmpegPath: cmd.FFmpegPath}) {
		fmt.Printf("%-6s %s\n", info.Codec, info.Backend)
	}
	return nil
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("framecap version %s", version))
	return nil
}
