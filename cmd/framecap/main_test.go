package main

import (
	"os"
	"path/filepath"
	"testing"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestExtractCmd_BuildConfigDefaults(t *testing.T) {
	cmd := &ExtractCmd{Input: "clip.mp4", DecodeFlags: DecodeFlags{Backend: "auto"}}

	cfg, err := cmd.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Input != "clip.mp4" || cfg.Backend != "auto" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestExtractCmd_BuildConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framecap.yaml")
	content := "width: 320\nheight: 240\nbackend: libav\nquality: 70\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := &ExtractCmd{
		Input:       "clip.mp4",
		Config:      path,
		Width:       intPtr(640),
		Height:      intPtr(640),
		Format:      strPtr("jpg"),
		Sheet:       strPtr("sheet.png"),
		DecodeFlags: DecodeFlags{Backend: "auto"},
	}

	cfg, err := cmd.buildConfig()
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 640 {
		t.Errorf("flags should override the file: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Quality != 70 {
		t.Errorf("file value should be kept, got quality %d", cfg.Quality)
	}
	if cfg.Backend != "libav" {
		t.Errorf("default backend flag must not override the file, got %q", cfg.Backend)
	}
	if cfg.Format != "jpg" || cfg.Sheet.Path != "sheet.png" {
		t.Errorf("unexpected output settings %+v", cfg)
	}
}

func TestExtractCmd_BuildConfigMissingFile(t *testing.T) {
	cmd := &ExtractCmd{Input: "clip.mp4", Config: filepath.Join(t.TempDir(), "none.yaml")}
	if _, err := cmd.buildConfig(); err == nil {
		t.Error("expected error for missing config file")
	}
}
