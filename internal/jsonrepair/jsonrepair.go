// Package jsonrepair recovers a JSON value from an LLM/VLM text completion
// that is supposed to be strict JSON but in practice arrives wrapped in
// control tokens, markdown code fences, or leading/trailing chatter. Both
// the semantic pre-filter and the unified analyzer apply the same recovery
// steps before unmarshaling, so the logic lives in one place.
package jsonrepair

import "regexp"

// controlToken matches model-specific control sequences like
// "<|channel|>analysis<|message|>" that some providers emit around content.
var controlToken = regexp.MustCompile(`<\|[^|]*\|>[^<{\[]*`)

// codeFence matches a ```json ... ``` or ``` ... ``` wrapper.
var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// Extract attempts to recover a clean JSON substring from raw model output.
// It strips control tokens, unwraps a markdown code fence if present, and
// otherwise falls back to the largest balanced '{' ... '}' span. It never
// errors: if nothing looks like JSON, it returns the trimmed input unchanged
// so that the caller's own json.Unmarshal reports the parse failure.
func Extract(raw string) string {
	cleaned := controlToken.ReplaceAllString(raw, "")

	if m := codeFence.FindStringSubmatch(cleaned); m != nil {
		cleaned = trimSpace(m[1])
	}

	trimmed := trimSpace(cleaned)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return trimmed
	}

	obj := largestBalancedObject(cleaned)
	arr := largestBalancedArray(cleaned)
	switch {
	case len(obj) >= len(arr) && obj != "":
		return obj
	case arr != "":
		return arr
	}
	return trimmed
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// largestBalancedObject scans s for every balanced {...} span (respecting
// quoted strings) and returns the longest one found, or "" if none is
// balanced.
func largestBalancedObject(s string) string {
	return largestBalanced(s, '{', '}')
}

// largestBalancedArray scans s for every balanced [...] span.
func largestBalancedArray(s string) string {
	return largestBalanced(s, '[', ']')
}

func largestBalanced(s string, open, close byte) string {
	best := ""
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					candidate := s[start : i+1]
					if len(candidate) > len(best) {
						best = candidate
					}
					start = -1
				}
			}
		}
	}
	return best
}
