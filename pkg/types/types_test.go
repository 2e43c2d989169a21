package types

import "testing"

func TestSeverityRankOrdering(t *testing.T) {
	order := []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for i := 1; i < len(order); i++ {
		if order[i].Rank() <= order[i-1].Rank() {
			t.Errorf("%s.Rank() = %d, want > %s.Rank() = %d", order[i], order[i].Rank(), order[i-1], order[i-1].Rank())
		}
	}
}

func TestSeverityMax(t *testing.T) {
	if got := SeverityLow.Max(SeverityCritical); got != SeverityCritical {
		t.Errorf("Max = %s, want critical", got)
	}
	if got := SeverityHigh.Max(SeverityLow); got != SeverityHigh {
		t.Errorf("Max = %s, want high", got)
	}
}

func TestUnifiedFindingValid(t *testing.T) {
	cases := []struct {
		name string
		f    UnifiedFinding
		want bool
	}{
		{"issue with actions", UnifiedFinding{IsIssue: true, ActionItems: []string{"fix it"}, Severity: SeverityHigh}, true},
		{"non-issue no actions low severity", UnifiedFinding{IsIssue: false, Severity: SeverityLow}, true},
		{"non-issue with actions", UnifiedFinding{IsIssue: false, ActionItems: []string{"oops"}, Severity: SeverityLow}, false},
		{"non-issue high severity", UnifiedFinding{IsIssue: false, Severity: SeverityHigh}, false},
	}
	for _, tc := range cases {
		if got := tc.f.Valid(); got != tc.want {
			t.Errorf("%s: Valid() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsPrefixClosed(t *testing.T) {
	cases := []struct {
		name  string
		stages []Stage
		want  bool
	}{
		{"empty", nil, true},
		{"proper prefix", []Stage{StageAudio, StageTranscript}, true},
		{"full sequence", Stages, true},
		{"out of order", []Stage{StageTranscript, StageAudio}, false},
		{"unknown stage ignored", []Stage{StageAudio, "future_stage", StageTranscript}, true},
		{"duplicate", []Stage{StageAudio, StageAudio}, false},
	}
	for _, tc := range cases {
		ck := PipelineCheckpoint{CompletedStages: tc.stages}
		if got := ck.IsPrefixClosed(); got != tc.want {
			t.Errorf("%s: IsPrefixClosed() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestAverageNoSpeechProb(t *testing.T) {
	tr := Transcription{Segments: []Segment{{NoSpeechProb: 0.2}, {NoSpeechProb: 0.6}}}
	if got := tr.AverageNoSpeechProb(); got != 0.4 {
		t.Errorf("AverageNoSpeechProb() = %v, want 0.4", got)
	}
	if got := (Transcription{}).AverageNoSpeechProb(); got != 0 {
		t.Errorf("empty AverageNoSpeechProb() = %v, want 0", got)
	}
}

func TestCountFindings(t *testing.T) {
	findings := []UnifiedFinding{{Category: CategoryBug}, {Category: CategoryBug}, {Category: CategoryUI}}
	counts := CountFindings(findings)
	if counts[CategoryBug] != 2 || counts[CategoryUI] != 1 {
		t.Errorf("CountFindings = %v", counts)
	}
}
