// Package media wraps the external ffmpeg/ffprobe binaries the pipeline
// shells out to for audio extraction and frame capture. No Go codec
// library in the reference corpus replaces a system ffmpeg install for this
// domain, so these two tools are invoked as subprocesses via
// exec.CommandContext, the same pattern the pack uses for its stdio-backed
// external tool integrations.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Adapter shells out to ffmpeg/ffprobe. The binary names are configurable so
// tests (and unusual installs) can point at a stub.
type Adapter struct {
	ffmpegPath  string
	ffprobePath string
}

// Option configures an [Adapter].
type Option func(*Adapter)

// WithFFmpegPath overrides the ffmpeg executable name/path. Defaults to
// "ffmpeg" (resolved via PATH).
func WithFFmpegPath(path string) Option {
	return func(a *Adapter) { a.ffmpegPath = path }
}

// WithFFprobePath overrides the ffprobe executable name/path. Defaults to
// "ffprobe".
func WithFFprobePath(path string) Option {
	return func(a *Adapter) { a.ffprobePath = path }
}

// New constructs an Adapter with default binary names, applying opts.
func New(opts ...Option) *Adapter {
	a := &Adapter{ffmpegPath: "ffmpeg", ffprobePath: "ffprobe"}
	for _, o := range opts {
		o(a)
	}
	return a
}

// ExtractAudio extracts a 16 kHz mono PCM WAV track from videoPath into a new
// temporary file, which the caller owns and must remove.
func (a *Adapter) ExtractAudio(ctx context.Context, videoPath string) (audioPath string, err error) {
	tmp, err := os.CreateTemp("", "screenscribe-audio-*.wav")
	if err != nil {
		return "", fmt.Errorf("media: create temp audio file: %w", err)
	}
	audioPath = tmp.Name()
	tmp.Close()

	args := []string{
		"-y",
		"-i", videoPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		audioPath,
	}
	if err := a.run(ctx, a.ffmpegPath, args...); err != nil {
		os.Remove(audioPath)
		return "", fmt.Errorf("media: extract audio: %w", err)
	}
	return audioPath, nil
}

// ExtractFrame captures a single JPEG frame from videoPath at timestamp
// seconds into a new temporary file, which the caller owns and must remove.
func (a *Adapter) ExtractFrame(ctx context.Context, videoPath string, timestamp float64) (framePath string, err error) {
	tmp, err := os.CreateTemp("", "screenscribe-frame-*.jpg")
	if err != nil {
		return "", fmt.Errorf("media: create temp frame file: %w", err)
	}
	framePath = tmp.Name()
	tmp.Close()

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	}
	if err := a.run(ctx, a.ffmpegPath, args...); err != nil {
		os.Remove(framePath)
		return "", fmt.Errorf("media: extract frame at %.3fs: %w", timestamp, err)
	}
	return framePath, nil
}

// Duration probes videoPath's total duration in seconds via ffprobe.
func (a *Adapter) Duration(ctx context.Context, videoPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, a.ffprobePath, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("media: probe duration: %w", err)
	}

	var duration float64
	if _, err := fmt.Sscanf(stdout.String(), "%f", &duration); err != nil {
		return 0, fmt.Errorf("media: parse duration %q: %w", stdout.String(), err)
	}
	return duration, nil
}

func (a *Adapter) run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %v: %w: %s", filepath.Base(name), args, err, stderr.String())
	}
	return nil
}
