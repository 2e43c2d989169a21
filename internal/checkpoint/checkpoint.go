// Package checkpoint persists and restores a [types.PipelineCheckpoint] so
// that a review run can resume after a crash, a timeout, or a deliberate
// interruption without redoing completed stages.
//
// Checkpoints are written atomically: the JSON is written to a temporary
// file in the same directory as the final path and then renamed over it, so
// a reader never observes a partially written checkpoint even if the
// process is killed mid-write. This is a filesystem primitive with no
// third-party grounding in the example corpus; os.Rename is POSIX-atomic
// within a single filesystem, which os.WriteFile alone is not.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// FileName is the checkpoint's on-disk name within a run's cache directory.
const FileName = "checkpoint.json"

// CacheDirName is the hidden subdirectory of a run's output directory that
// holds the checkpoint.
const CacheDirName = ".cache"

// Path returns the checkpoint file path for the given output directory.
func Path(outputDir string) string {
	return filepath.Join(outputDir, CacheDirName, FileName)
}

func cacheDir(outputDir string) string {
	return filepath.Join(outputDir, CacheDirName)
}

// Load reads and decodes the checkpoint at outputDir's checkpoint file. A
// missing file yields an error wrapping the os error with %w, so
// errors.Is(err, fs.ErrNotExist) lets callers distinguish "no prior run"
// from "corrupt checkpoint" (os.IsNotExist does not unwrap it).
func Load(outputDir string) (*types.PipelineCheckpoint, error) {
	data, err := os.ReadFile(Path(outputDir))
	if err != nil {
		return nil, fmt.Errorf("checkpoint: load: %w", err)
	}

	var cp types.PipelineCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("checkpoint: load: corrupt checkpoint: %w", err)
	}
	return &cp, nil
}

// Exists reports whether a checkpoint file is present at outputDir.
func Exists(outputDir string) bool {
	_, err := os.Stat(Path(outputDir))
	return err == nil
}

// ValidFor reports whether cp was produced for the same videoPath, outputDir,
// and language, with content still matching videoHash. A checkpoint whose
// video hash no longer matches the file on disk (the input was replaced)
// must not be resumed from.
func ValidFor(cp *types.PipelineCheckpoint, videoPath, outputDir, language, videoHash string) bool {
	if cp == nil {
		return false
	}
	return cp.VideoPath == videoPath &&
		cp.OutputDir == outputDir &&
		cp.Language == language &&
		cp.VideoHash == videoHash
}

// Save atomically writes cp to outputDir's checkpoint file, creating the
// cache directory if necessary.
func Save(outputDir string, cp *types.PipelineCheckpoint) error {
	if !cp.IsPrefixClosed() {
		return fmt.Errorf("checkpoint: save: completed_stages is not prefix-closed: %v", cp.CompletedStages)
	}

	dir := cacheDir(outputDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("checkpoint: save: failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: save: failed to encode checkpoint: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json.tmp")
	if err != nil {
		return fmt.Errorf("checkpoint: save: failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: save: failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: save: failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, Path(outputDir)); err != nil {
		return fmt.Errorf("checkpoint: save: failed to finalize checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint at outputDir, if present, and removes its
// cache directory if doing so leaves it empty. It is not an error for the
// checkpoint to already be absent.
func Delete(outputDir string) error {
	err := os.Remove(Path(outputDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	_ = os.Remove(cacheDir(outputDir)) // no-op unless now empty
	return nil
}

// MarkCompleted returns a copy of cp with stage appended to CompletedStages,
// unless it is already present.
func MarkCompleted(cp types.PipelineCheckpoint, stage types.Stage) types.PipelineCheckpoint {
	if cp.HasCompleted(stage) {
		return cp
	}
	cp.CompletedStages = append(append([]types.Stage(nil), cp.CompletedStages...), stage)
	return cp
}
