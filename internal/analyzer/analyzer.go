// Package analyzer implements the Unified VLM Analyzer: the pipeline's
// concurrent core. A fixed worker pool streams one VLM call per Detection,
// threading a shared previous_response_id forward under a mutex, and
// reassembles results in original input order regardless of completion
// order.
package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/libraxis-labs/screenscribe/internal/jsonrepair"
	"github.com/libraxis-labs/screenscribe/internal/observe"
	"github.com/libraxis-labs/screenscribe/internal/prompts"
	"github.com/libraxis-labs/screenscribe/internal/transport"
	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// DefaultWorkers is W in §4.5: the fixed worker pool size.
const DefaultWorkers = 5

// StaggerInterval is the per-task start delay (task i waits i*StaggerInterval
// before issuing its request), spreading the initial burst of requests to
// avoid thundering-herd against upstream rate limits.
const StaggerInterval = 500 * time.Millisecond

// Item is one unit of work: a Detection and its extracted frame, if any.
type Item struct {
	Detection types.Detection
	FramePath string // empty means no screenshot is available
}

// Analyzer runs the Unified VLM Analyzer against a configured endpoint.
type Analyzer struct {
	client   *transport.Client
	baseURL  string
	endpoint string
	model    string
	language string
	workers  int
	stagger  time.Duration
	metrics  *observe.Metrics

	onContent   func(index int, delta string)
	onReasoning func(index int, delta string)
}

// Option configures an [Analyzer].
type Option func(*Analyzer)

// WithWorkers overrides DefaultWorkers.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithLanguage sets the prompt language.
func WithLanguage(language string) Option {
	return func(a *Analyzer) { a.language = language }
}

// WithStagger overrides StaggerInterval, the per-task submission delay.
func WithStagger(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.stagger = d
		}
	}
}

// WithContentCallback registers a callback invoked for every content delta
// of task index, used by an interactive progress UI.
func WithContentCallback(fn func(index int, delta string)) Option {
	return func(a *Analyzer) { a.onContent = fn }
}

// WithReasoningCallback registers a callback invoked for every reasoning
// delta of task index.
func WithReasoningCallback(fn func(index int, delta string)) Option {
	return func(a *Analyzer) { a.onReasoning = fn }
}

// WithMetrics wires instrumentation: ActiveWorkers tracks in-flight tasks
// and AnalysisTaskDuration records each task's VLM round-trip latency. Not
// setting this leaves the analyzer unmetered.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// New constructs an Analyzer calling endpoint on client.
func New(client *transport.Client, baseURL, endpoint, model string, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:   client,
		baseURL:  baseURL,
		endpoint: endpoint,
		model:    model,
		language: "en",
		workers:  DefaultWorkers,
		stagger:  StaggerInterval,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// TaskError pairs an item index with the error that terminated its task.
type TaskError struct {
	Index int
	Err   error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("analyzer: task %d: %v", e.Index, e.Err)
}

// Run analyzes every item and returns UnifiedFindings in input order. A task
// that exhausts its retries contributes no finding (its slot is nil and
// dropped from the result) and its error is appended to errs; siblings are
// unaffected. Run returns once every task has either completed or been
// canceled via ctx.
func (a *Analyzer) Run(ctx context.Context, items []Item, seedResponseID string) (findings []types.UnifiedFinding, errs []TaskError) {
	results := make([]*types.UnifiedFinding, len(items))
	taskErrs := make([]error, len(items))

	sem := semaphore.NewWeighted(int64(a.workers))
	var wg sync.WaitGroup

	var mu sync.Mutex
	previousResponseID := seedResponseID

	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			taskErrs[i] = err
			continue
		}
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			defer sem.Release(1)

			select {
			case <-time.After(time.Duration(i) * a.stagger):
			case <-ctx.Done():
				taskErrs[i] = ctx.Err()
				return
			}

			if a.metrics != nil {
				a.metrics.ActiveWorkers.Add(ctx, 1)
				defer a.metrics.ActiveWorkers.Add(ctx, -1)
			}
			taskStart := time.Now()

			finding, respID, err := a.runOne(ctx, i, item, &mu, &previousResponseID)
			if a.metrics != nil {
				a.metrics.RecordAnalysisTaskDuration(ctx, time.Since(taskStart).Seconds())
			}
			if err != nil {
				taskErrs[i] = err
				return
			}
			results[i] = &finding
			if respID != "" {
				mu.Lock()
				previousResponseID = respID
				mu.Unlock()
			}
		}(i, item)
	}
	wg.Wait()

	findings = make([]types.UnifiedFinding, 0, len(items))
	for i, r := range results {
		if r != nil {
			findings = append(findings, *r)
			continue
		}
		if taskErrs[i] != nil {
			errs = append(errs, TaskError{Index: i, Err: taskErrs[i]})
		}
	}
	return findings, errs
}

// runOne builds and streams a single VLM call. It reads previousResponseID
// under mu exactly once, at the start, per §4.5 step 1.
func (a *Analyzer) runOne(ctx context.Context, index int, item Item, mu *sync.Mutex, previousResponseID *string) (types.UnifiedFinding, string, error) {
	mu.Lock()
	prevID := *previousResponseID
	mu.Unlock()

	hasImage := item.FramePath != ""
	prompt, err := prompts.Get(prompts.RoleUnifiedAnalysis, a.language, hasImage)
	if err != nil {
		return types.UnifiedFinding{}, "", err
	}
	userText := renderPrompt(prompt, item.Detection.Midpoint(), item.Detection.Context)

	var imageDataURI string
	if hasImage {
		imageDataURI, err = encodeImageDataURI(item.FramePath)
		if err != nil {
			hasImage = false
			userText = mustRenderTextOnly(a.language, item.Detection)
		}
	}

	content, respID, err := a.client.Stream(ctx, transport.StreamRequest{
		BaseURL:              a.baseURL,
		Endpoint:             a.endpoint,
		Model:                a.model,
		UserText:             userText,
		ImageDataURI:         imageDataURI,
		PreviousResponseID:   prevID,
		WithReasoningSummary: true,
	}, transport.StreamCallbacks{
		OnContent: func(delta string) {
			if a.onContent != nil {
				a.onContent(index, delta)
			}
		},
		OnReasoning: func(delta string) {
			if a.onReasoning != nil {
				a.onReasoning(index, delta)
			}
		},
	})
	if err != nil {
		return types.UnifiedFinding{}, "", err
	}

	finding := parseFinding(content, item.Detection)
	finding.ResponseID = respID
	finding.ScreenshotPath = item.FramePath
	return finding, respID, nil
}

func mustRenderTextOnly(language string, d types.Detection) string {
	prompt, err := prompts.Get(prompts.RoleUnifiedAnalysis, language, false)
	if err != nil {
		return d.Context
	}
	return renderPrompt(prompt, d.Midpoint(), d.Context)
}

func renderPrompt(prompt string, timestamp float64, context string) string {
	r := strings.NewReplacer(
		"{{.Timestamp}}", fmt.Sprintf("%.1f", timestamp),
		"{{.Context}}", context,
	)
	return r.Replace(prompt)
}

// rawFinding is the wire shape the VLM is asked to emit.
type rawFinding struct {
	Category              string   `json:"category"`
	IsIssue               bool     `json:"is_issue"`
	Sentiment             string   `json:"sentiment"`
	Severity              string   `json:"severity"`
	Summary               string   `json:"summary"`
	ActionItems           []string `json:"action_items"`
	AffectedComponents    []string `json:"affected_components"`
	SuggestedFix          string   `json:"suggested_fix"`
	UIElements            []string `json:"ui_elements"`
	IssuesDetected        []string `json:"issues_detected"`
	AccessibilityNotes    string   `json:"accessibility_notes"`
	DesignFeedback        string   `json:"design_feedback"`
	TechnicalObservations string   `json:"technical_observations"`
}

// parseFinding repairs and parses content into a UnifiedFinding identified
// by det. On parse failure it produces the sentinel finding described in
// §4.5 step 4 rather than dropping the task.
func parseFinding(content string, det types.Detection) types.UnifiedFinding {
	repaired := jsonrepair.Extract(content)

	var raw rawFinding
	if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
		return types.UnifiedFinding{
			DetectionID:  det.DetectionID,
			Timestamp:    det.Midpoint(),
			Category:     det.Category,
			IsIssue:      true,
			Severity:     types.SeverityMedium,
			Summary:      content,
			SuggestedFix: fmt.Sprintf("parseError: %v", err),
		}
	}

	category := types.Category(raw.Category)
	if category == "" {
		category = det.Category
	}

	severity := types.Severity(raw.Severity)
	if severity == "" {
		severity = types.SeverityMedium
	}

	actionItems := raw.ActionItems
	if !raw.IsIssue {
		// No-issue-implies-no-actions (enforced for merged groups in
		// internal/dedup too): a singleton finding must satisfy the same
		// invariant before it ever reaches dedup.
		actionItems = nil
		if severity.Rank() > types.SeverityLow.Rank() {
			severity = types.SeverityLow
		}
	}

	return types.UnifiedFinding{
		DetectionID:           det.DetectionID,
		Timestamp:             det.Midpoint(),
		Category:              category,
		IsIssue:               raw.IsIssue,
		Sentiment:             types.Sentiment(raw.Sentiment),
		Severity:              severity,
		Summary:               raw.Summary,
		ActionItems:           actionItems,
		AffectedComponents:    raw.AffectedComponents,
		SuggestedFix:          raw.SuggestedFix,
		UIElements:            raw.UIElements,
		IssuesDetected:        raw.IssuesDetected,
		AccessibilityNotes:    raw.AccessibilityNotes,
		DesignFeedback:        raw.DesignFeedback,
		TechnicalObservations: raw.TechnicalObservations,
	}
}

// encodeImageDataURI reads path and returns a "data:<mime>;base64,<...>"
// string suitable for the Responses/Chat-Completions image content parts.
func encodeImageDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("analyzer: read frame: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)), nil
}
