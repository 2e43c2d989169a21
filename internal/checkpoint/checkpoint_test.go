package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/libraxis-labs/screenscribe/pkg/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cp := &types.PipelineCheckpoint{
		VideoPath:       "video.mp4",
		VideoHash:       "abc123",
		OutputDir:       dir,
		Language:        "en",
		CompletedStages: []types.Stage{types.StageAudio, types.StageTranscript},
		Transcription:   &types.Transcription{Language: "en", FullText: "hello"},
	}

	if err := Save(dir, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.VideoHash != cp.VideoHash || loaded.Transcription.FullText != "hello" {
		t.Errorf("Load() = %+v, want matching %+v", loaded, cp)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Error("Load() on missing checkpoint should error")
	}
	if Exists(dir) {
		t.Error("Exists() should be false for missing checkpoint")
	}
}

func TestSaveRejectsNonPrefixClosed(t *testing.T) {
	dir := t.TempDir()
	cp := &types.PipelineCheckpoint{
		CompletedStages: []types.Stage{types.StageDetection, types.StageAudio},
	}
	if err := Save(dir, cp); err == nil {
		t.Error("Save() should reject a non-prefix-closed checkpoint")
	}
}

func TestValidFor(t *testing.T) {
	cp := &types.PipelineCheckpoint{VideoPath: "a.mp4", OutputDir: "out", Language: "en", VideoHash: "h1"}
	if !ValidFor(cp, "a.mp4", "out", "en", "h1") {
		t.Error("ValidFor() should be true for matching path, output dir, language, and hash")
	}
	if ValidFor(cp, "a.mp4", "out", "en", "h2") {
		t.Error("ValidFor() should be false when hash differs")
	}
	if ValidFor(cp, "a.mp4", "other", "en", "h1") {
		t.Error("ValidFor() should be false when output dir differs")
	}
	if ValidFor(cp, "a.mp4", "out", "pl", "h1") {
		t.Error("ValidFor() should be false when language differs")
	}
	if ValidFor(nil, "a.mp4", "out", "en", "h1") {
		t.Error("ValidFor() should be false for a nil checkpoint")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	if err := Delete(dir); err != nil {
		t.Fatalf("Delete() on absent checkpoint error = %v", err)
	}

	cp := &types.PipelineCheckpoint{CompletedStages: []types.Stage{types.StageAudio}}
	if err := Save(dir, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := Delete(dir); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if Exists(dir) {
		t.Error("Exists() should be false after Delete()")
	}
	if _, err := os.Stat(filepath.Join(dir, CacheDirName)); !os.IsNotExist(err) {
		t.Error("Delete() should remove the now-empty cache directory")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	cp := &types.PipelineCheckpoint{CompletedStages: []types.Stage{types.StageAudio}}
	if err := Save(dir, cp); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, CacheDirName))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if e.Name() != FileName {
			t.Errorf("unexpected leftover file %q", e.Name())
		}
	}
	if _, err := os.Stat(Path(dir)); err != nil {
		t.Errorf("expected checkpoint file to exist: %v", err)
	}
}

func TestMarkCompletedIsIdempotentAndNonMutating(t *testing.T) {
	cp := types.PipelineCheckpoint{CompletedStages: []types.Stage{types.StageAudio}}
	next := MarkCompleted(cp, types.StageTranscript)
	if !next.HasCompleted(types.StageTranscript) {
		t.Error("expected stage to be marked completed")
	}
	if cp.HasCompleted(types.StageTranscript) {
		t.Error("MarkCompleted should not mutate the original checkpoint")
	}

	again := MarkCompleted(next, types.StageTranscript)
	if len(again.CompletedStages) != len(next.CompletedStages) {
		t.Error("MarkCompleted should be idempotent for an already-completed stage")
	}
}
