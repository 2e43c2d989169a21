package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
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

func TestRunPreservesInputOrder(t *testing.T) {
	var seenPrevIDs sync.Map
	var counter int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := atomic.AddInt64(&counter, 1)
		seenPrevIDs.Store(id, true)
		w.Header().Set("Content-Type", "text/event-stream")
		body := sseBody(
			`{"type":"response.output_text.delta","delta":"{\"category\":\"bug\",\"is_issue\":true,\"severity\":\"high\",\"summary\":\"issue `+string(rune('0'+id))+`\"}"}`,
			`{"type":"response.done","response":{"id":"resp"}}`,
		)
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := transport.New("")
	a := New(client, server.URL, "/v1/responses", "test-model", WithWorkers(3))

	items := []Item{
		{Detection: types.Detection{DetectionID: 0, Start: 0, End: 1}},
		{Detection: types.Detection{DetectionID: 1, Start: 1, End: 2}},
		{Detection: types.Detection{DetectionID: 2, Start: 2, End: 3}},
	}

	findings, errs := a.Run(context.Background(), items, "")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(findings) != 3 {
		t.Fatalf("expected 3 findings, got %d", len(findings))
	}
	for i, f := range findings {
		if f.DetectionID != i {
			t.Errorf("expected findings in input order, index %d has DetectionID %d", i, f.DetectionID)
		}
	}
}

func TestRunProducesSentinelFindingOnParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		body := sseBody(`{"type":"response.output_text.delta","delta":"this is not json at all"}`)
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := transport.New("")
	a := New(client, server.URL, "/v1/responses", "test-model", WithWorkers(1))

	items := []Item{{Detection: types.Detection{DetectionID: 5, Start: 10, End: 11}}}
	findings, errs := a.Run(context.Background(), items, "")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 sentinel finding, got %d", len(findings))
	}
	f := findings[0]
	if !f.IsIssue || f.Severity != types.SeverityMedium {
		t.Errorf("expected sentinel finding is_issue=true severity=medium, got %+v", f)
	}
}

func TestRunNoImageFallsBackToTextOnlyPrompt(t *testing.T) {
	var sawImagePart bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		if len(buf) > 0 {
			sawImagePart = sawImagePart || containsImageField(buf)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(sseBody(`{"type":"response.output_text.delta","delta":"{\"category\":\"ui\",\"is_issue\":false,\"severity\":\"none\",\"summary\":\"ok\"}"}`)))
	}))
	defer server.Close()

	client := transport.New("")
	a := New(client, server.URL, "/v1/responses", "test-model", WithWorkers(1))

	items := []Item{{Detection: types.Detection{DetectionID: 0, Start: 0, End: 1}}}
	findings, errs := a.Run(context.Background(), items, "")
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if sawImagePart {
		t.Error("expected no image part for an item with no FramePath")
	}
}

func containsImageField(buf []byte) bool {
	s := string(buf)
	return strings.Contains(s, "input_image") || strings.Contains(s, "image_url")
}
