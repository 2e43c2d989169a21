package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// sttResponse is the verbose_json wire shape documented in §6: a full-text
// transcription plus per-segment detail including no_speech_prob.
type sttResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		ID           int     `json:"id"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// Transcribe uploads the audio file at audioPath as multipart/form-data to
// the STT endpoint and returns the parsed [types.Transcription]. model and
// language are optional form fields; an empty language lets the server
// auto-detect.
func (c *Client) Transcribe(ctx context.Context, baseURL, endpoint, model, language, audioPath string) (types.Transcription, error) {
	ctx, cancel := context.WithTimeout(ctx, TranscriptionTimeout)
	defer cancel()

	body, contentType, err := buildMultipartAudio(audioPath, model, language)
	if err != nil {
		return types.Transcription{}, err
	}

	url := baseURL + endpoint
	cb := c.breakerFor(url)
	var resp *http.Response
	err = cb.Execute(func() error {
		var doErr error
		resp, doErr = Do(ctx, func() (*http.Response, error) {
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
			if reqErr != nil {
				return nil, reqErr
			}
			req.Header.Set("Content-Type", contentType)
			c.authorize(req)
			return c.httpClient.Do(req)
		})
		return doErr
	})
	if err != nil {
		return types.Transcription{}, fmt.Errorf("transport: stt request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transcription{}, fmt.Errorf("transport: read stt response: %w", err)
	}

	var parsed sttResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return types.Transcription{}, fmt.Errorf("transport: parse stt response: %w", err)
	}

	tr := types.Transcription{
		Language: parsed.Language,
		FullText: parsed.Text,
	}
	for _, s := range parsed.Segments {
		tr.Segments = append(tr.Segments, types.Segment{
			ID:           s.ID,
			Start:        s.Start,
			End:          s.End,
			Text:         s.Text,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return tr, nil
}

// ProbeSTT performs the validation-preflight multipart POST with an empty
// audio part, per §4.8: 200/400 is healthy, 401 is an API-key error,
// anything else (including a transport-level connection error) is treated as
// model-unavailable.
func (c *Client) ProbeSTT(ctx context.Context, baseURL, endpoint string) error {
	ctx, cancel := context.WithTimeout(ctx, PreflightTimeout)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "probe.wav")
	if err != nil {
		return fmt.Errorf("transport: build stt probe: %w", err)
	}
	_, _ = fw.Write(nil)
	_ = mw.Close()

	url := baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("transport: build stt probe request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stt: model-unavailable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("stt: api-key error (HTTP 401)")
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest:
		return nil
	default:
		return fmt.Errorf("stt: model-unavailable (HTTP %d)", resp.StatusCode)
	}
}

// buildMultipartAudio reads the file at audioPath and writes a multipart
// body with fields file, model, language, response_format=verbose_json —
// the wire shape documented in §6.
func buildMultipartAudio(audioPath, model, language string) (body []byte, contentType string, err error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("transport: read audio file: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("transport: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("transport: write audio data: %w", err)
	}

	if model != "" {
		if err := mw.WriteField("model", model); err != nil {
			return nil, "", fmt.Errorf("transport: write model field: %w", err)
		}
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, "", fmt.Errorf("transport: write language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", fmt.Errorf("transport: write response_format field: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("transport: close multipart writer: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
