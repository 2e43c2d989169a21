// Package pipeline implements the Pipeline Coordinator: the fixed stage
// sequence audio -> transcription -> detection -> screenshots ->
// unified_analysis -> report, with checkpointed resume and best-effort,
// non-fatal error accumulation in every stage after transcription.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/libraxis-labs/screenscribe/internal/analyzer"
	"github.com/libraxis-labs/screenscribe/internal/checkpoint"
	"github.com/libraxis-labs/screenscribe/internal/config"
	"github.com/libraxis-labs/screenscribe/internal/dedup"
	"github.com/libraxis-labs/screenscribe/internal/keyword"
	"github.com/libraxis-labs/screenscribe/internal/merger"
	"github.com/libraxis-labs/screenscribe/internal/observe"
	"github.com/libraxis-labs/screenscribe/internal/prefilter"
	"github.com/libraxis-labs/screenscribe/internal/summary"
	"github.com/libraxis-labs/screenscribe/internal/transport"
	"github.com/libraxis-labs/screenscribe/pkg/media"
	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// FilterLevel selects which detection strategy stage 3 runs.
type FilterLevel string

const (
	FilterKeywords FilterLevel = "keywords"
	FilterBase     FilterLevel = "base"
	FilterCombined FilterLevel = "combined"
)

// frameOffset is the fixed offset from a Detection's start used by the
// Frame Extractor, per §4.1 stage 4.
const frameOffset = 0.5

// Options configures one Run invocation.
type Options struct {
	Language       string
	UseSemantic    bool
	UseVision      bool
	FilterLevel    FilterLevel
	CustomKeywords keyword.Config
	Resume         bool
	Force          bool
	SkipValidation bool
	DryRun         bool
	EmbedVideo     bool

	// OnStage, if set, is called once a stage's checkpoint has been saved.
	// It exists for callers that want to surface live progress (the browser
	// UI streams these over SSE); Run never blocks on it for more than the
	// time the callback itself takes.
	OnStage func(stage types.Stage)
}

// Coordinator executes the pipeline stage sequence against a configured
// set of role endpoints.
type Coordinator struct {
	cfg     *config.Config
	client  *transport.Client
	media   *media.Adapter
	metrics *observe.Metrics
}

// CoordinatorOption configures a Coordinator at construction.
type CoordinatorOption func(*Coordinator)

// WithMetrics wires stage-latency/error instrumentation into the
// Coordinator and the unified analyzer it drives. Not setting this leaves
// the run unmetered.
func WithMetrics(m *observe.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// New constructs a Coordinator from a resolved configuration.
func New(cfg *config.Config, client *transport.Client, mediaAdapter *media.Adapter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{cfg: cfg, client: client, media: mediaAdapter}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes every stage for videoPath, writing intermediate state to
// outputDir's checkpoint after each stage, and returns the final report.
// Non-fatal component failures are recorded in the returned report's Errors
// rather than aborting the run; only a failure to hash the video, a
// validation preflight failure, and any failure of audio extraction or
// transcription (including audio-quality rejection) abort early.
func (c *Coordinator) Run(ctx context.Context, videoPath, outputDir string, opts Options) (report types.Report, err error) {
	if c.metrics != nil {
		defer func() {
			status := "ok"
			if err != nil {
				status = "error"
			}
			c.metrics.RecordRunCompleted(ctx, status)
		}()
	}

	videoHash, err := hashVideo(videoPath)
	if err != nil {
		return types.Report{}, fmt.Errorf("pipeline: hash video: %w", err)
	}

	cp := c.loadOrInitCheckpoint(outputDir, videoPath, videoHash, opts)

	if !opts.SkipValidation {
		if fatal := Preflight(ctx, c.client, c.cfg, opts.UseSemantic, opts.UseVision); len(fatal) > 0 {
			return types.Report{}, fmt.Errorf("pipeline: validation preflight failed: %v", fatal)
		}
	}

	if !cp.HasCompleted(types.StageAudio) {
		stageStart := time.Now()
		cp.OutputDir = outputDir
		cp = checkpoint.MarkCompleted(cp, types.StageAudio)
		c.save(outputDir, &cp)
		notify(opts, types.StageAudio)
		c.recordStageDuration(ctx, types.StageAudio, stageStart)
	}

	// Gated independently of StageAudio: a crash between the two checkpoint
	// saves must not leave a resumed run skipping transcription outright.
	// The checkpoint has no persisted audio path, so resuming here always
	// re-extracts it; extraction is cheap relative to transcription itself.
	if !cp.HasCompleted(types.StageTranscript) {
		stageStart := time.Now()
		audioPath, err := c.media.ExtractAudio(ctx, videoPath)
		if err != nil {
			return types.Report{}, fmt.Errorf("pipeline: extract audio: %w", err)
		}
		defer os.Remove(audioPath)

		transcribeStart := time.Now()
		if err := c.runTranscription(ctx, audioPath, &cp, opts); err != nil {
			return types.Report{}, err
		}
		if c.metrics != nil {
			c.metrics.RecordTranscriptionDuration(ctx, time.Since(transcribeStart).Seconds())
		}
		cp = checkpoint.MarkCompleted(cp, types.StageTranscript)
		c.save(outputDir, &cp)
		notify(opts, types.StageTranscript)
		c.recordStageDuration(ctx, types.StageTranscript, stageStart)
	}

	if !cp.HasCompleted(types.StageDetection) {
		stageStart := time.Now()
		if err := c.runDetection(ctx, &cp, opts); err != nil {
			cp.Errors = append(cp.Errors, types.PipelineError{Stage: "detection", Message: err.Error()})
			c.recordStageError(ctx, types.StageDetection)
		}
		cp = checkpoint.MarkCompleted(cp, types.StageDetection)
		c.save(outputDir, &cp)
		notify(opts, types.StageDetection)
		c.recordStageDuration(ctx, types.StageDetection, stageStart)
	}

	if opts.DryRun {
		return c.dryRunReport(cp, opts), nil
	}

	if !cp.HasCompleted(types.StageScreenshots) {
		stageStart := time.Now()
		if opts.UseVision {
			c.runScreenshots(ctx, videoPath, &cp)
		}
		cp = checkpoint.MarkCompleted(cp, types.StageScreenshots)
		c.save(outputDir, &cp)
		notify(opts, types.StageScreenshots)
		c.recordStageDuration(ctx, types.StageScreenshots, stageStart)
	}

	if !cp.HasCompleted(types.StageUnified) {
		stageStart := time.Now()
		if err := c.runUnifiedAnalysis(ctx, &cp, opts); err != nil {
			cp.Errors = append(cp.Errors, types.PipelineError{Stage: "unified_analysis", Message: err.Error()})
			c.recordStageError(ctx, types.StageUnified)
		}
		cp = checkpoint.MarkCompleted(cp, types.StageUnified)
		c.save(outputDir, &cp)
		notify(opts, types.StageUnified)
		c.recordStageDuration(ctx, types.StageUnified, stageStart)
		for _, f := range cp.UnifiedFindings {
			if c.metrics != nil {
				c.metrics.RecordFinding(ctx, string(f.Category), string(f.Severity))
			}
		}
	}

	reportStart := time.Now()
	if err := c.runSummary(ctx, &cp, opts); err != nil {
		cp.Errors = append(cp.Errors, types.PipelineError{Stage: "summary", Message: err.Error()})
		c.recordStageError(ctx, "summary")
	}
	cp = checkpoint.MarkCompleted(cp, types.StageReport)
	c.save(outputDir, &cp)
	c.recordStageDuration(ctx, types.StageReport, reportStart)
	notify(opts, types.StageReport)

	report = c.buildReport(cp, opts)
	if delErr := checkpoint.Delete(outputDir); delErr != nil {
		slog.Warn("pipeline: failed to delete checkpoint after success", "error", delErr)
	}
	return report, nil
}

// notify invokes opts.OnStage if the caller set one.
func notify(opts Options, stage types.Stage) {
	if opts.OnStage != nil {
		opts.OnStage(stage)
	}
}

// recordStageDuration is a no-op when the Coordinator has no metrics wired.
func (c *Coordinator) recordStageDuration(ctx context.Context, stage types.Stage, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordStageDuration(ctx, string(stage), time.Since(start).Seconds())
	}
}

// recordStageError is a no-op when the Coordinator has no metrics wired.
func (c *Coordinator) recordStageError(ctx context.Context, stage types.Stage) {
	if c.metrics != nil {
		c.metrics.RecordStageError(ctx, string(stage))
	}
}

func (c *Coordinator) loadOrInitCheckpoint(outputDir, videoPath, videoHash string, opts Options) types.PipelineCheckpoint {
	if opts.Resume && !opts.Force {
		if existing, err := checkpoint.Load(outputDir); err == nil &&
			checkpoint.ValidFor(existing, videoPath, outputDir, opts.Language, videoHash) {
			return *existing
		}
	}
	return types.PipelineCheckpoint{
		VideoPath: videoPath,
		VideoHash: videoHash,
		OutputDir: outputDir,
		Language:  opts.Language,
	}
}

func (c *Coordinator) save(outputDir string, cp *types.PipelineCheckpoint) {
	if err := checkpoint.Save(outputDir, cp); err != nil {
		slog.Warn("pipeline: failed to save checkpoint", "error", err)
	}
}

func (c *Coordinator) runTranscription(ctx context.Context, audioPath string, cp *types.PipelineCheckpoint, opts Options) error {
	apiKey, baseURL, endpoint, model, err := config.ResolveRole(c.cfg, "stt", "/v1/audio/transcriptions")
	if err != nil {
		return err
	}
	client := transport.New(apiKey)

	tr, err := client.Transcribe(ctx, baseURL, endpoint, model, opts.Language, audioPath)
	if err != nil {
		return fmt.Errorf("pipeline: transcribe: %w", err)
	}

	if len(tr.Segments) == 0 || tr.AverageNoSpeechProb() > c.cfg.Pipeline.NoSpeechThreshold {
		return fmt.Errorf("pipeline: audio quality: no_speech_prob %.2f exceeds threshold %.2f or no segments produced",
			tr.AverageNoSpeechProb(), c.cfg.Pipeline.NoSpeechThreshold)
	}

	cp.Transcription = &tr
	cp.Language = tr.Language
	return nil
}

func (c *Coordinator) runDetection(ctx context.Context, cp *types.PipelineCheckpoint, opts Options) error {
	if cp.Transcription == nil {
		return fmt.Errorf("pipeline: detection requires a transcription")
	}

	kwCfg := opts.CustomKeywords
	if kwCfg == nil {
		def, err := keyword.DefaultConfig()
		if err != nil {
			return err
		}
		kwCfg = def
	}
	detector, err := keyword.New(kwCfg, keyword.WithMaxGap(c.cfg.Pipeline.MaxGapSeconds))
	if err != nil {
		return err
	}

	keywordDetections := detector.Detect(cp.Transcription.Segments)

	filterLevel := opts.FilterLevel
	if !opts.UseSemantic {
		filterLevel = FilterKeywords
	}

	switch filterLevel {
	case FilterKeywords, "":
		cp.Detections = keywordDetections
		return nil

	case FilterBase:
		pois, err := c.runPrefilter(ctx, *cp.Transcription, opts)
		if err != nil || len(pois) == 0 {
			cp.Detections = keywordDetections
			return nil
		}
		cp.Detections = merger.ToDetections(pois)
		return nil

	case FilterCombined:
		pois, err := c.runPrefilter(ctx, *cp.Transcription, opts)
		if err != nil {
			cp.Detections = keywordDetections
			return nil
		}
		merged := merger.Merge(pois, keywordDetections)
		cp.Detections = merger.ToDetections(merged)
		return nil

	default:
		return fmt.Errorf("pipeline: unknown filter level %q", filterLevel)
	}
}

func (c *Coordinator) runPrefilter(ctx context.Context, tr types.Transcription, opts Options) ([]types.POI, error) {
	apiKey, baseURL, endpoint, model, err := config.ResolveRole(c.cfg, "llm", "/v1/responses")
	if err != nil {
		return nil, err
	}
	client := transport.New(apiKey)
	f := prefilter.New(client, baseURL, endpoint, model, prefilter.WithLanguage(opts.Language))

	result, err := f.Run(ctx, tr, tr.ResponseID)
	if err != nil {
		return nil, err
	}
	return prefilter.Dedup(result.POIs), nil
}

func (c *Coordinator) runScreenshots(ctx context.Context, videoPath string, cp *types.PipelineCheckpoint) {
	var surviving []types.Detection
	for _, det := range cp.Detections {
		ts := det.Start + frameOffset
		if ts > det.End {
			ts = det.End
		}
		framePath, err := c.media.ExtractFrame(ctx, videoPath, ts)
		if err != nil {
			cp.Errors = append(cp.Errors, types.PipelineError{Stage: "screenshots", Message: err.Error()})
			continue
		}
		cp.Screenshots = append(cp.Screenshots, types.Screenshot{DetectionID: det.DetectionID, Timestamp: ts, FilePath: framePath})
		surviving = append(surviving, det)
	}
	cp.Detections = surviving
}

func (c *Coordinator) runUnifiedAnalysis(ctx context.Context, cp *types.PipelineCheckpoint, opts Options) error {
	apiKey, baseURL, endpoint, model, err := config.ResolveRole(c.cfg, "vision", "/v1/responses")
	if err != nil {
		return err
	}
	client := transport.New(apiKey)

	frameByDetection := make(map[int]string, len(cp.Screenshots))
	for _, s := range cp.Screenshots {
		frameByDetection[s.DetectionID] = s.FilePath
	}

	items := make([]analyzer.Item, len(cp.Detections))
	for i, det := range cp.Detections {
		items[i] = analyzer.Item{Detection: det, FramePath: frameByDetection[det.DetectionID]}
	}

	seedResponseID := ""
	if cp.Transcription != nil {
		seedResponseID = cp.Transcription.ResponseID
	}

	a := analyzer.New(client, baseURL, endpoint, model,
		analyzer.WithWorkers(c.cfg.Pipeline.Workers),
		analyzer.WithLanguage(opts.Language),
		analyzer.WithStagger(time.Duration(c.cfg.Pipeline.StaggerSeconds*float64(time.Second))),
		analyzer.WithMetrics(c.metrics))

	findings, taskErrs := a.Run(ctx, items, seedResponseID)
	for _, te := range taskErrs {
		cp.Errors = append(cp.Errors, types.PipelineError{Stage: "unified_analysis", Message: te.Error()})
	}

	deduped := dedup.Dedup(findings)
	cp.UnifiedFindings = deduped
	pruneToSurvivingFindings(cp, deduped)
	return nil
}

// pruneToSurvivingFindings drops screenshots/detections whose DetectionID no
// longer appears in the deduplicated finding list, per §4.1 stage 5.
func pruneToSurvivingFindings(cp *types.PipelineCheckpoint, findings []types.UnifiedFinding) {
	surviving := make(map[int]bool, len(findings))
	for _, f := range findings {
		surviving[f.DetectionID] = true
	}

	var screenshots []types.Screenshot
	for _, s := range cp.Screenshots {
		if surviving[s.DetectionID] {
			screenshots = append(screenshots, s)
		}
	}
	cp.Screenshots = screenshots

	var detections []types.Detection
	for _, d := range cp.Detections {
		if surviving[d.DetectionID] {
			detections = append(detections, d)
		}
	}
	cp.Detections = detections
}

func (c *Coordinator) runSummary(ctx context.Context, cp *types.PipelineCheckpoint, opts Options) error {
	apiKey, baseURL, endpoint, model, err := config.ResolveRole(c.cfg, "llm", "/v1/responses")
	if err != nil {
		return err
	}
	client := transport.New(apiKey)
	gen := summary.New(client, baseURL, endpoint, model, summary.WithLanguage(opts.Language))

	exec, err := gen.GenerateExecutive(ctx, cp.UnifiedFindings)
	if err != nil {
		return err
	}
	cp.ExecutiveSummary = exec

	visual, err := gen.GenerateVisual(ctx, cp.UnifiedFindings)
	if err != nil {
		cp.Errors = append(cp.Errors, types.PipelineError{Stage: "summary", Message: err.Error()})
	} else {
		cp.VisualSummary = visual
	}
	return nil
}

func (c *Coordinator) buildReport(cp types.PipelineCheckpoint, opts Options) types.Report {
	return types.Report{
		VideoPath:        cp.VideoPath,
		Transcription:    cp.Transcription,
		Findings:         cp.UnifiedFindings,
		ExecutiveSummary: cp.ExecutiveSummary,
		VisualSummary:    cp.VisualSummary,
		Errors:           cp.Errors,
		Counts:           types.CountFindings(cp.UnifiedFindings),
		EmbedVideo:       opts.EmbedVideo,
	}
}

// dryRunReport builds a report from the stages a dry run executes (audio
// extraction, transcription, and detection): counts reflect the candidate
// detections, not VLM findings, since screenshots, vision analysis, and
// summarization never run.
func (c *Coordinator) dryRunReport(cp types.PipelineCheckpoint, opts Options) types.Report {
	r := c.buildReport(cp, opts)
	r.Findings = nil
	r.Counts = types.CountDetections(cp.Detections)
	return r
}

// hashVideo returns the first 16 hex characters of the SHA-256 of path's
// content, per §4.2's checkpoint validity check.
func hashVideo(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}
