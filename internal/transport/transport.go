// Package transport is the single HTTP boundary the pipeline calls through:
// timeouts, JSON and multipart requests, SSE streaming, and
// retry-with-exponential-backoff-and-jitter on a fixed set of transient
// failures. Every outbound call the pipeline makes — to the STT endpoint,
// the LLM endpoint, or the VLM endpoint — goes through a [Client] so that the
// retry and classification policy is applied exactly once, in exactly one
// place.
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/libraxis-labs/screenscribe/internal/resilience"
)

// Per-operation timeouts, per the wire contract in §6 of the review engine's
// interface documentation.
const (
	TranscriptionTimeout = 600 * time.Second
	LLMTimeout           = 60 * time.Second
	VisionTimeout        = 120 * time.Second
	PreflightTimeout     = 10 * time.Second
)

// Client wraps a single *http.Client and the API key used to authenticate
// every request. A Client has no per-role state; callers pass the resolved
// base URL, endpoint path, and model for each call.
type Client struct {
	httpClient *http.Client
	apiKey     string

	breakersMu sync.Mutex
	breakers   map[string]*resilience.CircuitBreaker
}

// New returns a Client authenticating with apiKey. The underlying
// *http.Client has no default timeout — every call sets its own deadline via
// context (Stream uses VisionTimeout for every role).
func New(apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		breakers:   make(map[string]*resilience.CircuitBreaker),
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// breakerFor returns the circuit breaker guarding calls to url, creating one
// on first use. Every distinct base URL + endpoint combination a role
// resolves to gets its own breaker, so a dead vision endpoint can't also
// starve a healthy transcription endpoint of retries.
func (c *Client) breakerFor(url string) *resilience.CircuitBreaker {
	c.breakersMu.Lock()
	defer c.breakersMu.Unlock()
	cb, ok := c.breakers[url]
	if !ok {
		cb = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: url})
		c.breakers[url] = cb
	}
	return cb
}
