// Package prefilter implements the Semantic Pre-filter: a single streamed
// LLM call over the full transcript that proposes a liberal, recall-favoring
// list of Points of Interest, which the coordinator later merges with
// keyword detections or falls back to them entirely.
package prefilter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/libraxis-labs/screenscribe/internal/dedup"
	"github.com/libraxis-labs/screenscribe/internal/jsonrepair"
	"github.com/libraxis-labs/screenscribe/internal/prompts"
	"github.com/libraxis-labs/screenscribe/internal/transport"
	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// DedupThreshold is the similarity threshold for optional POI-level
// deduplication.
const DedupThreshold = 0.45

// segmentWindow bounds how far (seconds) a segment's range may fall outside
// a POI's range and still be considered part of it.
const segmentWindow = 1.0

// Filter is the Semantic Pre-filter. It is constructed once per run with the
// transport and endpoint it will call.
type Filter struct {
	client   *transport.Client
	baseURL  string
	endpoint string
	model    string
	language string
}

// Option configures a [Filter].
type Option func(*Filter)

// WithLanguage sets the prompt language (IETF code, only "en"/"pl" have
// dedicated prompts; any other value falls back to English).
func WithLanguage(language string) Option {
	return func(f *Filter) { f.language = language }
}

// New constructs a Filter calling endpoint on client.
func New(client *transport.Client, baseURL, endpoint, model string, opts ...Option) *Filter {
	f := &Filter{client: client, baseURL: baseURL, endpoint: endpoint, model: model, language: "en"}
	for _, o := range opts {
		o(f)
	}
	return f
}

// rawPOI is the wire shape the model is asked to emit.
type rawPOI struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Excerpt    string  `json:"excerpt"`
}

// Result is the Semantic Pre-filter's output.
type Result struct {
	POIs       []types.POI
	ResponseID string
}

// Run streams a single liberal-recall pass over transcription's segments and
// returns the parsed POIs plus the fresh response id. It never fails on a
// malformed model response — an empty POI list is returned instead, per
// §4.4's "never fail the whole stage on parse errors" rule. A transport
// failure (network, non-retriable status after retries) is still returned
// as an error since no content was produced at all.
func (f *Filter) Run(ctx context.Context, transcription types.Transcription, previousResponseID string) (Result, error) {
	prompt, err := prompts.Get(prompts.RoleSemanticPrefilter, f.language, false)
	if err != nil {
		return Result{}, err
	}

	userText := strings.Replace(prompt, "{{.Segments}}", renderSegments(transcription.Segments), 1)

	content, responseID, err := f.client.Stream(ctx, transport.StreamRequest{
		BaseURL:            f.baseURL,
		Endpoint:           f.endpoint,
		Model:              f.model,
		UserText:           userText,
		PreviousResponseID: previousResponseID,
	}, transport.StreamCallbacks{})
	if err != nil {
		return Result{}, fmt.Errorf("prefilter: stream: %w", err)
	}

	pois := parsePOIs(content, transcription.Segments)
	return Result{POIs: pois, ResponseID: responseID}, nil
}

func renderSegments(segments []types.Segment) string {
	var sb strings.Builder
	for _, s := range segments {
		fmt.Fprintf(&sb, "[%.1f - %.1f] %s\n", s.Start, s.End, s.Text)
	}
	return sb.String()
}

// parsePOIs extracts and validates the model's JSON array response, ignoring
// individual entries that fail to parse rather than failing the batch.
func parsePOIs(content string, segments []types.Segment) []types.POI {
	repaired := jsonrepair.Extract(content)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		return nil
	}

	pois := make([]types.POI, 0, len(items))
	for _, item := range items {
		var r rawPOI
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		category := types.Category(r.Category)
		if category == "" {
			continue
		}
		pois = append(pois, types.POI{
			Start:      r.Start,
			End:        r.End,
			Category:   category,
			Confidence: r.Confidence,
			Reasoning:  r.Reasoning,
			Excerpt:    r.Excerpt,
			SegmentIDs: resolveSegmentIDs(r.Start, r.End, segments),
		})
	}
	return pois
}

// resolveSegmentIDs returns every segment whose range falls within
// segmentWindow of [start,end].
func resolveSegmentIDs(start, end float64, segments []types.Segment) []int {
	var ids []int
	for _, s := range segments {
		if s.End >= start-segmentWindow && s.Start <= end+segmentWindow {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Dedup collapses POIs whose (excerpt + " " + reasoning) similarity is at
// least DedupThreshold: the widest time span, the union of segment ids, the
// maximum confidence, and concatenated distinct reasonings are kept.
func Dedup(pois []types.POI) []types.POI {
	n := len(pois)
	merged := make([]bool, n)
	out := make([]types.POI, 0, n)

	for i := 0; i < n; i++ {
		if merged[i] {
			continue
		}
		group := []int{i}
		for j := i + 1; j < n; j++ {
			if merged[j] {
				continue
			}
			if dedup.Similarity(poiText(pois[i]), poiText(pois[j])) < DedupThreshold {
				continue
			}
			group = append(group, j)
			merged[j] = true
		}
		merged[i] = true
		out = append(out, mergePOIGroup(pois, group))
	}
	return out
}

func poiText(p types.POI) string {
	return p.Excerpt + " " + p.Reasoning
}

func mergePOIGroup(pois []types.POI, idxs []int) types.POI {
	if len(idxs) == 1 {
		return pois[idxs[0]]
	}

	base := pois[idxs[0]]
	reasonings := []string{base.Reasoning}
	seenReasoning := map[string]bool{base.Reasoning: true}

	for _, idx := range idxs[1:] {
		p := pois[idx]
		if p.Start < base.Start {
			base.Start = p.Start
		}
		if p.End > base.End {
			base.End = p.End
		}
		if p.Confidence > base.Confidence {
			base.Confidence = p.Confidence
		}
		base.SegmentIDs = unionInts(base.SegmentIDs, p.SegmentIDs)
		if !seenReasoning[p.Reasoning] && p.Reasoning != "" {
			seenReasoning[p.Reasoning] = true
			reasonings = append(reasonings, p.Reasoning)
		}
	}
	base.Reasoning = strings.Join(reasonings, "; ")
	return base
}

func unionInts(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, s := range append(append([]int{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
