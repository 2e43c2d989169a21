package summary

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/libraxis-labs/screenscribe/internal/transport"
	"github.com/libraxis-labs/screenscribe/pkg/types"
)

func sseBody(events ...string) string {
	var body string
	for _, e := range events {
		body += "data: " + e + "\n\n"
	}
	return body + "data: [DONE]\n\n"
}

func TestGenerateExecutiveReturnsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseBody(`{"type":"response.output_text.delta","delta":"Overall the product is stable."}`)))
	}))
	defer server.Close()

	g := New(transport.New(""), server.URL, "/v1/responses", "test-model")
	findings := []types.UnifiedFinding{
		{Category: types.CategoryBug, Severity: types.SeverityHigh, Summary: "crash on submit"},
	}

	got, err := g.GenerateExecutive(context.Background(), findings)
	if err != nil {
		t.Fatalf("GenerateExecutive() error = %v", err)
	}
	if !strings.Contains(got, "stable") {
		t.Errorf("GenerateExecutive() = %q, want content from stream", got)
	}
}

func TestGenerateVisualSkipsWhenNoVisualFindings(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(sseBody(`{"type":"response.output_text.delta","delta":"x"}`)))
	}))
	defer server.Close()

	g := New(transport.New(""), server.URL, "/v1/responses", "test-model")
	findings := []types.UnifiedFinding{
		{Category: types.CategoryPerformance, Summary: "slow load"},
	}

	got, err := g.GenerateVisual(context.Background(), findings)
	if err != nil {
		t.Fatalf("GenerateVisual() error = %v", err)
	}
	if got != "" {
		t.Errorf("GenerateVisual() = %q, want empty when no visual findings", got)
	}
	if called {
		t.Error("expected no HTTP call when there are no visual findings")
	}
}

func TestGenerateVisualFiltersToUIAndAccessibility(t *testing.T) {
	var sawCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		sawCount = strings.Count(string(buf), "\\n-")
		w.Write([]byte(sseBody(`{"type":"response.output_text.delta","delta":"visual summary"}`)))
	}))
	defer server.Close()

	g := New(transport.New(""), server.URL, "/v1/responses", "test-model")
	findings := []types.UnifiedFinding{
		{Category: types.CategoryUI, Summary: "button misaligned"},
		{Category: types.CategoryAccessibility, Summary: "low contrast"},
		{Category: types.CategoryPerformance, Summary: "slow load"},
	}

	got, err := g.GenerateVisual(context.Background(), findings)
	if err != nil {
		t.Fatalf("GenerateVisual() error = %v", err)
	}
	if got != "visual summary" {
		t.Errorf("GenerateVisual() = %q", got)
	}
	if sawCount != 2 {
		t.Errorf("request listed %d findings, want 2 (ui and accessibility only)", sawCount)
	}
}
