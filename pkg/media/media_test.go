package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// writeStub writes an executable shell script at dir/name that writes
// fixed bytes to its last argument (the output path ffmpeg/ffprobe always
// receives last in this package's invocations) and exits 0.
func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestExtractAudioWritesFile(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffmpeg", `shift $(($#-1)); printf 'RIFF' > "$1"`)

	a := New(WithFFmpegPath(stub))
	audioPath, err := a.ExtractAudio(context.Background(), "input.mp4")
	if err != nil {
		t.Fatalf("ExtractAudio() error = %v", err)
	}
	defer os.Remove(audioPath)

	data, err := os.ReadFile(audioPath)
	if err != nil || string(data) != "RIFF" {
		t.Errorf("ExtractAudio() output = %q, err = %v", data, err)
	}
}

func TestExtractFrameWritesFile(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffmpeg", `shift $(($#-1)); printf 'JPEGDATA' > "$1"`)

	a := New(WithFFmpegPath(stub))
	framePath, err := a.ExtractFrame(context.Background(), "input.mp4", 12.5)
	if err != nil {
		t.Fatalf("ExtractFrame() error = %v", err)
	}
	defer os.Remove(framePath)

	data, err := os.ReadFile(framePath)
	if err != nil || string(data) != "JPEGDATA" {
		t.Errorf("ExtractFrame() output = %q, err = %v", data, err)
	}
}

func TestExtractAudioCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffmpeg", `exit 1`)

	a := New(WithFFmpegPath(stub))
	audioPath, err := a.ExtractAudio(context.Background(), "input.mp4")
	if err == nil {
		t.Fatal("expected ExtractAudio() to fail when ffmpeg exits non-zero")
	}
	if audioPath != "" {
		t.Errorf("expected empty path on failure, got %q", audioPath)
	}
}

func TestDurationParsesProbeOutput(t *testing.T) {
	dir := t.TempDir()
	stub := writeStub(t, dir, "ffprobe", `printf '123.456000\n'`)

	a := New(WithFFprobePath(stub))
	d, err := a.Duration(context.Background(), "input.mp4")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if d != 123.456 {
		t.Errorf("Duration() = %v, want 123.456", d)
	}
}
