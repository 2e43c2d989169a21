// Package merger combines Semantic Pre-filter output (POIs) with Keyword
// Detector output (Detections) into one ranked list of POIs, and converts a
// POI list back into Detections for the downstream screenshot/analysis
// stages. It is a pure function over its inputs: no I/O, no retries, safe
// to call from any goroutine.
package merger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// boostWindow is how close (seconds) a keyword Detection's start must be to
// an existing POI's start for the POI to be boosted rather than promoted.
const boostWindow = 3.0

// confidenceBoost is added to a matched POI's confidence, capped at 1.0.
const confidenceBoost = 0.2

// promotedConfidence is the confidence assigned to a keyword Detection with
// no nearby POI, promoted to a synthetic POI.
const promotedConfidence = 0.7

// Merge combines pois and detections per the POI/Keyword Merger: each
// keyword Detection either boosts a nearby POI's confidence or is promoted
// to a synthetic POI, after which overlapping or near-abutting POIs (within
// boostWindow) are merged into one. The result is sorted by start.
func Merge(pois []types.POI, detections []types.Detection) []types.POI {
	working := append([]types.POI(nil), pois...)

	for _, det := range detections {
		idx := nearestPOI(working, det.Start, boostWindow)
		if idx >= 0 {
			working[idx].Confidence = minFloat(working[idx].Confidence+confidenceBoost, 1.0)
			continue
		}
		working = append(working, types.POI{
			Start:      det.Start,
			End:        det.End,
			Category:   det.Category,
			Confidence: promotedConfidence,
			Reasoning:  fmt.Sprintf("Keyword detection: %s", strings.Join(det.KeywordsFound, ", ")),
		})
	}

	sort.SliceStable(working, func(i, j int) bool { return working[i].Start < working[j].Start })
	return mergeOverlapping(working, boostWindow)
}

// nearestPOI returns the index of the first POI in pois whose Start is
// within window of start, or -1 if none qualifies.
func nearestPOI(pois []types.POI, start, window float64) int {
	for i, p := range pois {
		if absFloat(p.Start-start) <= window {
			return i
		}
	}
	return -1
}

// mergeOverlapping sweeps sorted POIs once, merging any whose intervals
// overlap or abut within gap.
func mergeOverlapping(pois []types.POI, gap float64) []types.POI {
	if len(pois) == 0 {
		return nil
	}
	merged := []types.POI{pois[0]}
	for _, next := range pois[1:] {
		last := &merged[len(merged)-1]
		if next.Start <= last.End+gap {
			if next.Confidence > last.Confidence {
				last.Category = next.Category
			}
			last.End = maxFloat(last.End, next.End)
			last.Start = minFloat(last.Start, next.Start)
			last.Confidence = maxFloat(last.Confidence, next.Confidence)
			last.SegmentIDs = unionInts(last.SegmentIDs, next.SegmentIDs)
			last.Reasoning = joinNonEmpty(last.Reasoning, next.Reasoning)
			last.Excerpt = joinNonEmpty(last.Excerpt, next.Excerpt)
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// ToDetections converts POIs to Detections for stages downstream of
// detection that expect the Detection shape (screenshots, analysis).
// DetectionID is assigned by position in pois (already sorted by start).
func ToDetections(pois []types.POI) []types.Detection {
	out := make([]types.Detection, len(pois))
	for i, p := range pois {
		out[i] = types.Detection{
			DetectionID: i,
			Start:       p.Start,
			End:         p.End,
			Category:    p.Category,
			Context:     p.Excerpt,
		}
	}
	return out
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "; " + b
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

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
