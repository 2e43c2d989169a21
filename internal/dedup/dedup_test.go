package dedup

import (
	"testing"

	"github.com/libraxis-labs/screenscribe/pkg/types"
)

func TestDedupExactMatchMerges(t *testing.T) {
	findings := []types.UnifiedFinding{
		{
			DetectionID: 1, Timestamp: 10, Category: types.CategoryBug,
			IsIssue: true, Severity: types.SeverityMedium,
			Summary:     "Submit button does not respond to clicks",
			ActionItems: []string{"investigate click handler"},
		},
		{
			DetectionID: 2, Timestamp: 190, Category: types.CategoryUI,
			IsIssue: true, Severity: types.SeverityHigh,
			Summary:     "submit button does   not respond to clicks",
			ActionItems: []string{"add click handler test"},
		},
	}

	out := Dedup(findings)
	if len(out) != 1 {
		t.Fatalf("expected 1 merged finding, got %d", len(out))
	}
	f := out[0]
	if f.Severity != types.SeverityHigh {
		t.Errorf("expected merged severity to be the max (high), got %v", f.Severity)
	}
	if f.Timestamp != 10 {
		t.Errorf("expected merged finding to keep earliest timestamp, got %v", f.Timestamp)
	}
	if len(f.MergedFromIDs) != 1 || f.MergedFromIDs[0].DetectionID != 2 {
		t.Errorf("expected merged_from_ids to record detection 2, got %+v", f.MergedFromIDs)
	}
	if len(f.ActionItems) != 2 {
		t.Errorf("expected both action items preserved, got %v", f.ActionItems)
	}
}

func TestDedupSimilarMatchWithinWindow(t *testing.T) {
	findings := []types.UnifiedFinding{
		{
			DetectionID: 1, Timestamp: 100, Category: types.CategoryBug,
			IsIssue: true, Severity: types.SeverityMedium,
			Summary: "the button crashes and the layout is broken",
		},
		{
			DetectionID: 2, Timestamp: 115, Category: types.CategoryBug,
			IsIssue: true, Severity: types.SeverityCritical,
			Summary: "button crash, layout broken again",
		},
	}

	out := Dedup(findings)
	if len(out) != 1 {
		t.Fatalf("expected 1 merged finding, got %d", len(out))
	}
	if out[0].Severity != types.SeverityCritical {
		t.Errorf("expected critical severity to win, got %v", out[0].Severity)
	}
}

func TestDedupDoesNotMergeAcrossTimeWindow(t *testing.T) {
	findings := []types.UnifiedFinding{
		{DetectionID: 1, Timestamp: 0, Category: types.CategoryBug, Summary: "button crash, layout broken"},
		{DetectionID: 2, Timestamp: 1000, Category: types.CategoryBug, Summary: "button crash, layout broken again"},
	}

	out := Dedup(findings)
	if len(out) != 2 {
		t.Fatalf("expected findings 1000s apart to stay separate, got %d groups", len(out))
	}
}

func TestDedupDoesNotMergeAcrossCategory(t *testing.T) {
	findings := []types.UnifiedFinding{
		{DetectionID: 1, Timestamp: 10, Category: types.CategoryBug, Summary: "button crash, layout broken"},
		{DetectionID: 2, Timestamp: 15, Category: types.CategoryPerformance, Summary: "button crash, layout broken now"},
	}

	out := Dedup(findings)
	if len(out) != 2 {
		t.Fatalf("expected different-category findings to stay separate, got %d", len(out))
	}
}

func TestDedupIsIdempotent(t *testing.T) {
	findings := []types.UnifiedFinding{
		{DetectionID: 1, Timestamp: 10, Category: types.CategoryBug, IsIssue: true, Severity: types.SeverityLow, Summary: "button crash, layout broken"},
		{DetectionID: 2, Timestamp: 20, Category: types.CategoryBug, IsIssue: true, Severity: types.SeverityHigh, Summary: "button crash and layout broken too"},
		{DetectionID: 3, Timestamp: 500, Category: types.CategoryAccessibility, IsIssue: true, Severity: types.SeverityMedium, Summary: "contrast ratio too low on login form"},
	}

	once := Dedup(findings)
	twice := Dedup(once)

	if len(once) != len(twice) {
		t.Fatalf("dedup is not idempotent: first pass %d groups, second pass %d groups", len(once), len(twice))
	}
	for i := range once {
		if once[i].Summary != twice[i].Summary || once[i].Severity != twice[i].Severity {
			t.Errorf("dedup result changed on second pass at index %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestDedupNonIssueHasNoActionItems(t *testing.T) {
	findings := []types.UnifiedFinding{
		{DetectionID: 1, Timestamp: 10, Category: types.CategoryOther, IsIssue: false, Severity: types.SeverityNone, Summary: "narrator describes the dashboard layout"},
		{DetectionID: 2, Timestamp: 12, Category: types.CategoryOther, IsIssue: false, Severity: types.SeverityLow, Summary: "narrator describes the dashboard layout again"},
	}

	out := Dedup(findings)
	for _, f := range out {
		if !f.Valid() {
			t.Errorf("merged non-issue finding violates invariant: %+v", f)
		}
	}
}
