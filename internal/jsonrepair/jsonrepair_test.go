package jsonrepair

import (
	"encoding/json"
	"testing"
)

func TestExtractPlainJSON(t *testing.T) {
	got := Extract(`{"a": 1}`)
	var v map[string]int
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("Extract() = %q, failed to unmarshal: %v", got, err)
	}
}

func TestExtractStripsCodeFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"a\": 1, \"b\": [1,2,3]}\n```\nLet me know if you need more."
	got := Extract(raw)
	var v map[string]any
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("Extract() = %q, failed to unmarshal: %v", got, err)
	}
}

func TestExtractStripsControlTokens(t *testing.T) {
	raw := "<|channel|>analysis<|message|>{\"a\": 1}"
	got := Extract(raw)
	var v map[string]int
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("Extract() = %q, failed to unmarshal: %v", got, err)
	}
}

func TestExtractFindsLargestObjectAmongNoise(t *testing.T) {
	raw := `some preamble {"a": 1} more text {"a": 1, "b": 2, "c": {"nested": true}} trailing`
	got := Extract(raw)
	var v map[string]any
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("Extract() = %q, failed to unmarshal: %v", got, err)
	}
	if len(v) != 3 {
		t.Errorf("expected the larger object to win, got %v", v)
	}
}

func TestExtractFindsArrayWhenNoObject(t *testing.T) {
	raw := "noise [1, 2, {\"x\": 1}, 3] noise"
	got := Extract(raw)
	var v []any
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("Extract() = %q, failed to unmarshal: %v", got, err)
	}
}

func TestExtractIgnoresBracesInsideStrings(t *testing.T) {
	raw := `{"text": "this has a } brace inside", "n": 1}`
	got := Extract(raw)
	var v map[string]any
	if err := json.Unmarshal([]byte(got), &v); err != nil {
		t.Fatalf("Extract() = %q, failed to unmarshal: %v", got, err)
	}
}
