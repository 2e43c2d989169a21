package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StreamRequest is the protocol-agnostic shape every LLM/VLM call in the
// pipeline builds. [Client.Stream] translates it into either the Responses
// protocol or the Chat Completions protocol depending on Endpoint's path.
type StreamRequest struct {
	BaseURL  string
	Endpoint string
	Model    string

	SystemPrompt string
	UserText     string

	// ImageDataURI is a "data:<mime>;base64,<...>" string. Empty means
	// text-only — callers must already have selected the text-only prompt
	// template in that case.
	ImageDataURI string

	// PreviousResponseID carries conversational context forward; empty on
	// the first call of a chain. Ignored by the Chat Completions protocol,
	// which has no equivalent concept.
	PreviousResponseID string

	// WithReasoningSummary requests reasoning.summary = "auto" on the
	// Responses protocol. Ignored by Chat Completions.
	WithReasoningSummary bool
}

// isResponsesProtocol detects the wire shape by URL path, per §6: "Both
// flavors must be supported; endpoint shape is detected by the URL path."
func isResponsesProtocol(endpoint string) bool {
	return !strings.Contains(endpoint, "/chat/completions")
}

// Stream issues a streaming POST against req's endpoint, invoking cb as
// deltas arrive, and returns the full accumulated content plus the final
// response id (empty if the server never announced one — the Chat
// Completions protocol has no equivalent of response ids). Every call runs
// under [VisionTimeout], whichever role it serves; [LLMTimeout] is not
// applied here.
func (c *Client) Stream(ctx context.Context, req StreamRequest, cb StreamCallbacks) (content, responseID string, err error) {
	ctx, cancel := context.WithTimeout(ctx, VisionTimeout)
	defer cancel()

	var body []byte
	if isResponsesProtocol(req.Endpoint) {
		body, err = buildResponsesBody(req, true)
	} else {
		body, err = buildChatCompletionsBody(req, true)
	}
	if err != nil {
		return "", "", err
	}

	url := req.BaseURL + req.Endpoint
	breaker := c.breakerFor(url)
	var resp *http.Response
	err = breaker.Execute(func() error {
		var doErr error
		resp, doErr = Do(ctx, func() (*http.Response, error) {
			httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if reqErr != nil {
				return nil, reqErr
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Accept", "text/event-stream")
			c.authorize(httpReq)
			return c.httpClient.Do(httpReq)
		})
		return doErr
	})
	if err != nil {
		return "", "", fmt.Errorf("transport: stream request: %w", err)
	}
	defer resp.Body.Close()

	var capturedID string
	wrapped := cb
	wrapped.OnResponseID = func(id string) {
		capturedID = id
		if cb.OnResponseID != nil {
			cb.OnResponseID(id)
		}
	}

	content, err = ReadSSE(resp.Body, wrapped)
	return content, capturedID, err
}

// ProbeLLM issues the minimal single-token request §4.8 describes against an
// LLM or VLM model endpoint. 200/400 means the model exists; 404 is a fatal
// model-name error; 401 is a fatal API-key error; a 503 whose body mentions
// "model" is model-unavailable; any other transport-level error (including a
// timeout) is logged but treated as non-fatal by the caller.
func (c *Client) ProbeLLM(ctx context.Context, baseURL, endpoint, model string) error {
	ctx, cancel := context.WithTimeout(ctx, PreflightTimeout)
	defer cancel()

	req := StreamRequest{BaseURL: baseURL, Endpoint: endpoint, Model: model, UserText: "ping"}
	var body []byte
	var err error
	if isResponsesProtocol(endpoint) {
		body, err = buildResponsesBody(req, false)
	} else {
		body, err = buildChatCompletionsBody(req, false)
	}
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: build preflight request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("llm: timeout or connection error: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("llm: model-name error for %q (HTTP 404)", model)
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("llm: api-key error (HTTP 401)")
	case resp.StatusCode == http.StatusServiceUnavailable:
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		if strings.Contains(strings.ToLower(buf.String()), "model") {
			return fmt.Errorf("llm: model-unavailable for %q", model)
		}
		return nil
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest:
		return nil
	default:
		return fmt.Errorf("llm: unexpected status %d probing %q", resp.StatusCode, model)
	}
}

func buildResponsesBody(req StreamRequest, stream bool) ([]byte, error) {
	type contentPart struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		ImageURL string `json:"image_url,omitempty"`
	}
	type inputItem struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}
	var input []inputItem
	if req.SystemPrompt != "" {
		input = append(input, inputItem{Role: "system", Content: []contentPart{{Type: "input_text", Text: req.SystemPrompt}}})
	}
	parts := []contentPart{{Type: "input_text", Text: req.UserText}}
	if req.ImageDataURI != "" {
		parts = append(parts, contentPart{Type: "input_image", ImageURL: req.ImageDataURI})
	}
	input = append(input, inputItem{Role: "user", Content: parts})

	payload := map[string]any{
		"model": req.Model,
		"input": input,
	}
	if stream {
		payload["stream"] = true
	}
	if req.WithReasoningSummary {
		payload["reasoning"] = map[string]string{"summary": "auto"}
	}
	if req.PreviousResponseID != "" {
		payload["previous_response_id"] = req.PreviousResponseID
	}
	return json.Marshal(payload)
}

func buildChatCompletionsBody(req StreamRequest, stream bool) ([]byte, error) {
	type contentPart struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url,omitempty"`
	}
	type message struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}
	var messages []message
	if req.SystemPrompt != "" {
		messages = append(messages, message{Role: "system", Content: []contentPart{{Type: "text", Text: req.SystemPrompt}}})
	}
	parts := []contentPart{{Type: "text", Text: req.UserText}}
	if req.ImageDataURI != "" {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &struct {
			URL string `json:"url"`
		}{URL: req.ImageDataURI}})
	}
	messages = append(messages, message{Role: "user", Content: parts})

	payload := map[string]any{
		"model":    req.Model,
		"messages": messages,
	}
	if stream {
		payload["stream"] = true
	}
	return json.Marshal(payload)
}
