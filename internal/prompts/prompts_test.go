package prompts

import "testing"

func TestGetExactMatch(t *testing.T) {
	p, err := Get(RoleUnifiedAnalysis, "pl", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != unifiedAnalysisImagePL {
		t.Error("expected exact pl/image match")
	}
}

func TestGetFallsBackToEnglish(t *testing.T) {
	p, err := Get(RoleUnifiedAnalysis, "de", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != unifiedAnalysisImageEN {
		t.Error("expected fallback to english image variant")
	}
}

func TestGetFallsBackToTextOnly(t *testing.T) {
	p, err := Get(RoleSemanticPrefilter, "pl", true)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p != semanticPrefilterPL {
		t.Error("expected fallback to text-only pl variant (prefilter has no image variant)")
	}
}

func TestGetUnknownRole(t *testing.T) {
	if _, err := Get(Role("bogus"), "en", false); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
