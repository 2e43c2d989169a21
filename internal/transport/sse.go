package transport

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/Tangerg/lynx/sse"
)

// StreamCallbacks are the three optional hooks the analyzer and pre-filter
// may observe while a response streams in. Implementations of ReadSSE must
// never invoke a callback after ReadSSE has returned.
type StreamCallbacks struct {
	// OnContent fires for every content delta (both Responses-protocol and
	// Chat-Completions-protocol shapes funnel through this one callback).
	OnContent func(delta string)

	// OnReasoning fires for reasoning-summary deltas; the Chat Completions
	// protocol never produces these.
	OnReasoning func(delta string)

	// OnResponseID fires at most once, when the server announces the final
	// response identifier for this call.
	OnResponseID func(id string)
}

// sseEnvelope is a tolerant superset of every event shape §4.3 requires
// ReadSSE to recognize. Unknown fields and unknown "type" values are
// ignored rather than treated as errors — the upstream server may add event
// types the pipeline does not yet understand.
type sseEnvelope struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`

	Response struct {
		ID string `json:"id"`
	} `json:"response"`
	ID string `json:"id"`

	// Legacy Chat Completions streaming shape.
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ReadSSE decodes r as a text/event-stream body, recognizing every event
// flavor listed in §4.3 (response.output_text.delta, response.content_part.delta,
// content.delta, response.text.delta, response.reasoning_summary_text.delta|done,
// response.created, response.completed, response.done, and the legacy
// choices[0].delta.content shape). It accumulates and returns the full
// content text; the sentinel "data: [DONE]" line ends the stream without
// error. Malformed individual events are skipped, not fatal — a single bad
// line never aborts the whole read.
func ReadSSE(r io.Reader, cb StreamCallbacks) (content string, err error) {
	dec := sse.NewDecoder(r)
	var sb strings.Builder

	for dec.Next() {
		msg := dec.Current()
		data := strings.TrimSpace(string(msg.Data))
		if data == "[DONE]" {
			break
		}
		if data == "" {
			continue
		}

		var env sseEnvelope
		if jsonErr := json.Unmarshal(msg.Data, &env); jsonErr != nil {
			continue
		}

		switch env.Type {
		case "response.output_text.delta", "response.content_part.delta",
			"content.delta", "response.text.delta":
			if env.Delta != "" {
				sb.WriteString(env.Delta)
				if cb.OnContent != nil {
					cb.OnContent(env.Delta)
				}
			}
		case "response.reasoning_summary_text.delta":
			if cb.OnReasoning != nil {
				cb.OnReasoning(env.Delta)
			}
		case "response.reasoning_summary_text.done", "response.created":
			// terminal/informational markers only; no content to surface.
		case "response.completed", "response.done":
			id := env.Response.ID
			if id == "" {
				id = env.ID
			}
			if id != "" && cb.OnResponseID != nil {
				cb.OnResponseID(id)
			}
		default:
			if len(env.Choices) > 0 && env.Choices[0].Delta.Content != "" {
				delta := env.Choices[0].Delta.Content
				sb.WriteString(delta)
				if cb.OnContent != nil {
					cb.OnContent(delta)
				}
			}
		}
	}

	if decErr := dec.Error(); decErr != nil && decErr != io.EOF {
		return sb.String(), decErr
	}
	return sb.String(), nil
}
