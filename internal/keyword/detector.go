// Package keyword implements the regex-based Keyword Detector: a fast,
// LLM-free classifier over transcript segments driven by a configurable
// category -> patterns table. It is modeled on the same sub-millisecond,
// purely-heuristic philosophy as a tiered classifier — no network calls, a
// small immutable config, and an explicit priority ordering on multi-match
// input.
package keyword

import (
	_ "embed"
	"fmt"
	"regexp"

	"github.com/libraxis-labs/screenscribe/pkg/types"
	"gopkg.in/yaml.v3"
)

//go:embed keywords/default.yaml
var defaultPatternsYAML []byte

// categoryPriority is the fixed precedence applied when a single segment
// matches more than one category: bug beats change beats ui.
var categoryPriority = []types.Category{types.CategoryBug, types.CategoryChange, types.CategoryUI}

// Config maps a category to the list of regex patterns that identify it.
// Only bug, change, and ui are populated by [DefaultConfig]; a custom
// keywords file may define any subset of these three.
type Config map[types.Category][]string

// DefaultConfig returns the embedded default category->pattern table.
func DefaultConfig() (Config, error) {
	return ParseConfig(defaultPatternsYAML)
}

// ParseConfig decodes a YAML document in the same shape as the embedded
// default: a top-level mapping from category name to a list of regex
// strings.
func ParseConfig(data []byte) (Config, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("keyword: parse config: %w", err)
	}
	cfg := make(Config, len(raw))
	for k, v := range raw {
		cfg[types.Category(k)] = v
	}
	return cfg, nil
}

// Detector classifies transcript segments against a compiled [Config].
// Detector is safe for concurrent use once constructed; it holds no mutable
// state after [New] returns.
type Detector struct {
	patterns      map[types.Category][]*regexp.Regexp
	maxGap        float64
	contextWindow int
}

// Option configures a [Detector].
type Option func(*Detector)

// WithMaxGap sets the maximum time gap (seconds) within which adjacent
// same-category detections are merged. Defaults to 5s, per §4.6.
func WithMaxGap(seconds float64) Option {
	return func(d *Detector) { d.maxGap = seconds }
}

// WithContextWindow sets how many neighboring segments on each side are
// concatenated into a Detection's Context field. Defaults to 1.
func WithContextWindow(n int) Option {
	return func(d *Detector) { d.contextWindow = n }
}

// New compiles cfg's patterns and returns a ready [Detector].
func New(cfg Config, opts ...Option) (*Detector, error) {
	d := &Detector{
		patterns:      make(map[types.Category][]*regexp.Regexp),
		maxGap:        5,
		contextWindow: 1,
	}
	for category, patterns := range cfg {
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("keyword: compile pattern %q for category %q: %w", p, category, err)
			}
			d.patterns[category] = append(d.patterns[category], re)
		}
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Detect scans every segment (case-insensitively) and returns merged
// Detections in segment order. Adjacent same-category detections whose gap
// is <= the configured max gap are merged into one Detection spanning the
// union time range, union keyword set, and concatenated context.
func (d *Detector) Detect(segments []types.Segment) []types.Detection {
	var raw []types.Detection
	nextID := 0
	for i, seg := range segments {
		category, keywords := d.classify(seg.Text)
		if category == "" {
			continue
		}
		raw = append(raw, types.Detection{
			DetectionID:   nextID,
			Start:         seg.Start,
			End:           seg.End,
			Category:      category,
			KeywordsFound: keywords,
			Context:       d.context(segments, i),
		})
		nextID++
	}
	return mergeAdjacent(raw, d.maxGap)
}

// classify returns the highest-priority matching category for text and the
// list of keyword patterns that matched it. Returns ("", nil) when no
// category matches.
func (d *Detector) classify(text string) (types.Category, []string) {
	for _, category := range categoryPriority {
		var matched []string
		for _, re := range d.patterns[category] {
			if re.MatchString(text) {
				matched = append(matched, re.String())
			}
		}
		if len(matched) > 0 {
			return category, matched
		}
	}
	return "", nil
}

// context concatenates up to contextWindow segments on each side of index i
// with seg[i]'s own text.
func (d *Detector) context(segments []types.Segment, i int) string {
	lo := i - d.contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := i + d.contextWindow
	if hi >= len(segments) {
		hi = len(segments) - 1
	}
	ctx := ""
	for j := lo; j <= hi; j++ {
		if j > lo {
			ctx += " "
		}
		ctx += segments[j].Text
	}
	return ctx
}

// mergeAdjacent merges consecutive same-category detections whose temporal
// gap is <= maxGap. Input must already be in time order (it is, since it is
// built by a single forward pass over segments).
func mergeAdjacent(detections []types.Detection, maxGap float64) []types.Detection {
	if len(detections) == 0 {
		return nil
	}
	merged := []types.Detection{detections[0]}
	for _, next := range detections[1:] {
		last := &merged[len(merged)-1]
		if next.Category == last.Category && next.Start-last.End <= maxGap {
			last.End = next.End
			last.KeywordsFound = unionStrings(last.KeywordsFound, next.KeywordsFound)
			last.Context = last.Context + " " + next.Context
			continue
		}
		merged = append(merged, next)
	}
	for i := range merged {
		merged[i].DetectionID = i
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
