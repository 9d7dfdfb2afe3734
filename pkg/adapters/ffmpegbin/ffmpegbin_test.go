package ffmpegbin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFind_CustomPath(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := Find(fake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fake {
		t.Errorf("expected %s, got %s", fake, got)
	}
}

func TestFind_MissingCustomPath(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFind_EnvVar(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "ffmpeg-env")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvVar, fake)

	got, err := Find("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fake {
		t.Errorf("expected %s, got %s", fake, got)
	}

	t.Setenv(EnvVar, filepath.Join(t.TempDir(), "missing"))
	if Available("") {
		t.Error("expected Available to be false for a dangling FFMPEG_PATH")
	}
}
