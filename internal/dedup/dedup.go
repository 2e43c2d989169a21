package dedup

import (
	"sort"
	"strings"

	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// SimilarityThreshold is the minimum Similarity score at which two findings
// in the same category and within TimeWindow of each other are merged.
const SimilarityThreshold = 0.4

// TimeWindow bounds how far apart (in seconds) two findings may be and still
// be considered for similarity-based merging.
const TimeWindow = 30.0

// maxActionItems bounds the merged ActionItems list.
const maxActionItems = 5

// Dedup collapses findings in two passes: an exact pass merging findings
// whose normalized summaries are identical regardless of category or time,
// followed by a similar pass merging same-category findings within
// TimeWindow whose Similarity is at least SimilarityThreshold. Order is
// preserved: each group surfaces at the position of its earliest member.
//
// Dedup is idempotent: Dedup(Dedup(xs)) == Dedup(xs).
func Dedup(findings []types.UnifiedFinding) []types.UnifiedFinding {
	if len(findings) == 0 {
		return findings
	}
	exact := dedupExact(findings)
	return dedupSimilar(exact)
}

func normalizeSummary(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func dedupExact(findings []types.UnifiedFinding) []types.UnifiedFinding {
	groups := make(map[string][]int)
	order := make([]string, 0, len(findings))
	for i, f := range findings {
		key := normalizeSummary(f.Summary)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]types.UnifiedFinding, 0, len(order))
	for _, key := range order {
		idxs := groups[key]
		out = append(out, mergeGroup(findings, idxs))
	}
	return out
}

func dedupSimilar(findings []types.UnifiedFinding) []types.UnifiedFinding {
	n := len(findings)
	merged := make([]bool, n)
	out := make([]types.UnifiedFinding, 0, n)

	for i := 0; i < n; i++ {
		if merged[i] {
			continue
		}
		group := []int{i}
		for j := i + 1; j < n; j++ {
			if merged[j] {
				continue
			}
			if findings[i].Category != findings[j].Category {
				continue
			}
			if absFloat(findings[i].Timestamp-findings[j].Timestamp) > TimeWindow {
				continue
			}
			if Similarity(findings[i].Summary, findings[j].Summary) < SimilarityThreshold {
				continue
			}
			group = append(group, j)
			merged[j] = true
		}
		merged[i] = true
		out = append(out, mergeGroup(findings, group))
	}
	return out
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// mergeGroup combines the findings at idxs (indices into all) into one
// UnifiedFinding: the earliest-timestamp member supplies identity and visual
// fields, severity is the max across the group, is_issue is true if any
// member is an issue, and action items / affected components are
// order-preserving unions.
func mergeGroup(all []types.UnifiedFinding, idxs []int) types.UnifiedFinding {
	if len(idxs) == 1 {
		return all[idxs[0]]
	}

	sorted := append([]int(nil), idxs...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return all[sorted[a]].Timestamp < all[sorted[b]].Timestamp
	})
	base := all[sorted[0]]

	merged := base
	merged.ActionItems = nil
	merged.AffectedComponents = nil
	merged.MergedFromIDs = append([]types.FindingRef(nil), base.MergedFromIDs...)

	actionSeen := make(map[string]bool)
	componentSeen := make(map[string]bool)

	for _, idx := range sorted {
		f := all[idx]
		merged.Severity = merged.Severity.Max(f.Severity)
		if f.IsIssue {
			merged.IsIssue = true
		}
		for _, a := range f.ActionItems {
			if actionSeen[a] {
				continue
			}
			actionSeen[a] = true
			if len(merged.ActionItems) < maxActionItems {
				merged.ActionItems = append(merged.ActionItems, a)
			}
		}
		for _, c := range f.AffectedComponents {
			if componentSeen[c] {
				continue
			}
			componentSeen[c] = true
			merged.AffectedComponents = append(merged.AffectedComponents, c)
		}
		if idx != sorted[0] {
			merged.MergedFromIDs = append(merged.MergedFromIDs, types.FindingRef{
				DetectionID: f.DetectionID,
				Timestamp:   f.Timestamp,
			})
		}
	}

	if !merged.IsIssue {
		merged.ActionItems = nil
	}

	return merged
}
