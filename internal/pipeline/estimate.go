package pipeline

import (
	"fmt"
	"io"
)

// Per-unit processing time heuristics for --estimate. Seconds per minute of
// video, or seconds per detection, calibrated against typical Responses/Chat
// Completions API latency rather than measured.
const (
	estimateAudioFixedSeconds          = 5.0
	estimateSTTSecondsPerMinute        = 2.0
	estimateSTTMinimumSeconds          = 30.0
	estimatePrefilterSecondsPerMinute  = 8.0
	estimateScreenshotsFixedSeconds    = 10.0
	estimateUnifiedSecondsPerDetection = 20.0

	// estimateDetectionsPerMinuteKeywords/Semantic project a detection count
	// from video length alone, used only when no real detection count is
	// available yet (i.e. before stage 3 has run).
	estimateDetectionsPerMinuteKeywords = 4.0
	estimateDetectionsPerMinuteSemantic = 6.0
)

// EstimateStep is one line of an Estimate's processing-time breakdown.
type EstimateStep struct {
	Name    string
	Seconds float64
	Note    string
}

// Estimate is a rough processing-time projection for a video, computed from
// its duration and the requested options without running the pipeline.
type Estimate struct {
	Steps        []EstimateStep
	TotalSeconds float64
}

// EstimateRun projects the time Run would take for a video of the given
// duration, under filterLevel/useVision, without touching the network or
// the filesystem. detectionCount overrides the duration-based projection
// when a real count is already known (e.g. a prior dry run).
func EstimateRun(durationSeconds float64, filterLevel FilterLevel, useVision bool, detectionCount *int) Estimate {
	var e Estimate
	minutes := durationSeconds / 60

	e.addStep("audio extraction", estimateAudioFixedSeconds, "ffmpeg")

	sttSeconds := minutes * estimateSTTSecondsPerMinute
	if sttSeconds < estimateSTTMinimumSeconds {
		sttSeconds = estimateSTTMinimumSeconds
	}
	e.addStep("transcription", sttSeconds, fmt.Sprintf("%.1f min video", minutes))

	switch filterLevel {
	case FilterBase, FilterCombined:
		e.addStep("semantic pre-filter", minutes*estimatePrefilterSecondsPerMinute, "LLM reads the full transcript")
		e.addStep("keyword detection", 0, "merged with the semantic pre-filter")
	default:
		e.addStep("keyword detection", 0, "pattern matching over segments")
	}

	count := projectedDetections(minutes, filterLevel)
	if detectionCount != nil {
		count = *detectionCount
	}

	if useVision {
		e.addStep("screenshots", estimateScreenshotsFixedSeconds, "ffmpeg frame extraction")
	}
	e.addStep("unified VLM analysis", float64(count)*estimateUnifiedSecondsPerDetection,
		fmt.Sprintf("%d detections x ~%ds", count, int(estimateUnifiedSecondsPerDetection)))

	return e
}

func projectedDetections(minutes float64, filterLevel FilterLevel) int {
	perMinute := estimateDetectionsPerMinuteKeywords
	if filterLevel == FilterBase || filterLevel == FilterCombined {
		perMinute = estimateDetectionsPerMinuteSemantic
	}
	return int(minutes * perMinute)
}

func (e *Estimate) addStep(name string, seconds float64, note string) {
	e.Steps = append(e.Steps, EstimateStep{Name: name, Seconds: seconds, Note: note})
	e.TotalSeconds += seconds
}

// WriteTo renders the estimate as a plain-text table, the same shape the
// CLI prints for --estimate.
func (e Estimate) WriteTo(w io.Writer) (int64, error) {
	var written int
	n, err := fmt.Fprintln(w, "Estimated processing time:")
	written += n
	if err != nil {
		return int64(written), err
	}
	for _, s := range e.Steps {
		n, err = fmt.Fprintf(w, "  %-22s ~%-6s %s\n", s.Name, formatEstimateSeconds(s.Seconds), s.Note)
		written += n
		if err != nil {
			return int64(written), err
		}
	}
	n, err = fmt.Fprintf(w, "Total: ~%s\n", formatEstimateSeconds(e.TotalSeconds))
	written += n
	return int64(written), err
}

func formatEstimateSeconds(seconds float64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", int(seconds))
	}
	return fmt.Sprintf("%dmin", int(seconds/60))
}
