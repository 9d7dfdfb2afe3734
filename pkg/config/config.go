// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/user/framecap/pkg/adapters/smartdecoder"
	"github.com/user/framecap/pkg/capture"
	"github.com/user/framecap/pkg/framebuf"
	"github.com/user/framecap/pkg/orchestrator"
	"github.com/user/framecap/pkg/ports"
)

// Config represents the full configuration for framecap.
type Config struct {
	// Input/Output
	Input     string `yaml:"input"`
	OutputDir string `yaml:"output_dir"`
	Summary   string `yaml:"summary"`

	// Frame geometry
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	PadColor string `yaml:"pad_color"`

	// Decoding
	Backend      string `yaml:"backend"`
	FFmpegPath   string `yaml:"ffmpeg_path"`
	BufferPolicy string `yaml:"buffer_policy"`
	PoolSize     int    `yaml:"pool_size"`
	Workers      int    `yaml:"workers"`

	// Export
	Format    string `yaml:"format"`
	Quality   int    `yaml:"quality"`
	Prefix    string `yaml:"prefix"`
	Every     int    `yaml:"every"`
	MaxFrames int    `yaml:"max_frames"`
	BatchSize int    `yaml:"batch_size"`

	// Contact sheet
	Sheet SheetConfig `yaml:"sheet"`

	// Logging and debug
	LogLevel ports.LogLevel `yaml:"log_level"`
	Debug    bool           `yaml:"debug"`
	DebugDir string         `yaml:"debug_dir"`
}

// SheetConfig represents contact sheet options.
type SheetConfig struct {
	Path    string `yaml:"path"`
	Columns int    `yaml:"columns"`
	Cell    int    `yaml:"cell"`
	Labels  bool   `yaml:"labels"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		OutputDir: "./frames",

		PadColor: "#727272",

		BufferPolicy: "owned",
		PoolSize:     framebuf.DefaultFreeBuffers,

		Format:    "png",
		Quality:   90,
		Prefix:    "frame",
		Every:     1,
		BatchSize: 16,

		Sheet: SheetConfig{
			Columns: 4,
			Cell:    160,
			Labels:  true,
		},

		LogLevel: ports.LevelInfo,
		DebugDir: "./debug",
	}
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks option ranges and enumerations.
func (c Config) Validate() error {
	var errs []error

	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, fmt.Errorf("size must not be negative: %dx%d", c.Width, c.Height))
	} else if (c.Width == 0) != (c.Height == 0) {
		errs = append(errs, fmt.Errorf("width and height must both be set or both be zero: %dx%d", c.Width, c.Height))
	}
	if _, err := ParseColor(c.PadColor); err != nil {
		errs = append(errs, err)
	}
	if _, err := smartdecoder.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	if _, err := framebuf.ParsePolicy(c.BufferPolicy); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Format) {
	case "png", "jpg", "jpeg":
	default:
		errs = append(errs, fmt.Errorf("unknown image format %q", c.Format))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality must be between 1 and 100: %d", c.Quality))
	}
	if c.Every < 1 {
		errs = append(errs, fmt.Errorf("every must be at least 1: %d", c.Every))
	}
	if c.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("max_frames must not be negative: %d", c.MaxFrames))
	}
	if c.Sheet.Columns < 0 || c.Sheet.Cell < 0 {
		errs = append(errs, errors.New("sheet columns and cell must not be negative"))
	}

	return errors.Join(errs...)
}

// ParseColor parses "#rrggbb", "#rgb", "r,g,b" or a single gray level
// "0".."255". An empty string is the default pad color.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return color.RGBA{R: 114, G: 114, B: 114, A: 255}, nil
	}

	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		r, g, b := c.RGB255()
		return color.RGBA{R: r, G: g, B: b, A: 255}, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 1 && len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	var v [3]uint8
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		v[i] = uint8(n)
	}
	if len(parts) == 1 {
		v[1], v[2] = v[0], v[0]
	}
	return color.RGBA{R: v[0], G: v[1], B: v[2], A: 255}, nil
}

// CaptureOptions converts the decoding settings to capture.Options.
func (c Config) CaptureOptions(logger ports.Logger, sink ports.DebugSink) (capture.Options, error) {
	pad, err := ParseColor(c.PadColor)
	if err != nil {
		return capture.Options{}, err
	}
	backend, err := smartdecoder.ParseBackend(c.Backend)
	if err != nil {
		return capture.Options{}, err
	}
	policy, err := framebuf.ParsePolicy(c.BufferPolicy)
	if err != nil {
		return capture.Options{}, err
	}

	return capture.Options{
		PadColor:   pad,
		Policy:     policy,
		Backend:    backend,
		FFmpegPath: c.FFmpegPath,
		Workers:    c.Workers,
		PoolSize:   c.PoolSize,
		Logger:     logger,
		Sink:       sink,
	}, nil
}

// ToOrchestratorConfig converts Config to orchestrator.Config.
func (c Config) ToOrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		InputPath: c.Input,
		OutputDir: c.OutputDir,

		Width:  c.Width,
		Height: c.Height,

		Every:     c.Every,
		MaxFrames: c.MaxFrames,
		BatchSize: c.BatchSize,

		Format:  ports.ParseImageFormat(strings.ToLower(c.Format)),
		Quality: c.Quality,
		Prefix:  c.Prefix,

		SheetPath:    c.Sheet.Path,
		SheetColumns: c.Sheet.Columns,
		SheetCell:    c.Sheet.Cell,
		SheetLabels:  c.Sheet.Labels,
	}
}
