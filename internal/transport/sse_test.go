package transport

import (
	"strings"
	"testing"
)

func TestReadSSEResponsesProtocol(t *testing.T) {
	stream := "" +
		"data: {\"type\":\"response.created\"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"Hello\"}\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\", world\"}\n\n" +
		"data: {\"type\":\"response.reasoning_summary_text.delta\",\"delta\":\"thinking...\"}\n\n" +
		"data: {\"type\":\"response.done\",\"response\":{\"id\":\"resp_123\"}}\n\n" +
		"data: [DONE]\n\n"

	var gotReasoning string
	var gotID string
	content, err := ReadSSE(strings.NewReader(stream), StreamCallbacks{
		OnReasoning:  func(d string) { gotReasoning += d },
		OnResponseID: func(id string) { gotID = id },
	})
	if err != nil {
		t.Fatalf("ReadSSE: %v", err)
	}
	if content != "Hello, world" {
		t.Errorf("content = %q, want %q", content, "Hello, world")
	}
	if gotReasoning != "thinking..." {
		t.Errorf("reasoning = %q", gotReasoning)
	}
	if gotID != "resp_123" {
		t.Errorf("responseID = %q, want resp_123", gotID)
	}
}

func TestReadSSELegacyChatCompletions(t *testing.T) {
	stream := "" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"foo\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"bar\"}}]}\n\n" +
		"data: [DONE]\n\n"

	content, err := ReadSSE(strings.NewReader(stream), StreamCallbacks{})
	if err != nil {
		t.Fatalf("ReadSSE: %v", err)
	}
	if content != "foobar" {
		t.Errorf("content = %q, want foobar", content)
	}
}

func TestReadSSETolerant(t *testing.T) {
	stream := "" +
		"event: ping\n" +
		"data: not json at all\n\n" +
		"data: {\"type\":\"response.output_text.delta\",\"delta\":\"ok\"}\n\n"

	content, err := ReadSSE(strings.NewReader(stream), StreamCallbacks{})
	if err != nil {
		t.Fatalf("ReadSSE: %v", err)
	}
	if content != "ok" {
		t.Errorf("content = %q, want ok", content)
	}
}
