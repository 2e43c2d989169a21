package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// maxRetries is N in §4.3: at most 3 additional attempts after the first.
	maxRetries = 3

	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 30 * time.Second

	// retryRandomizationFactor reproduces the spec's (0.5 + uniform(0,1))
	// jitter multiplier: backoff/v4 applies jitter as
	// interval * (1 ± RandomizationFactor), so 0.5 yields a [0.5, 1.5]
	// multiplier window centered on the deterministic exponential delay.
	retryRandomizationFactor = 0.5
)

// newBackOff builds the exponential-backoff-and-jitter schedule shared by
// every retriable call: base=1s, multiplier=2, cap=30s, at most 3 retries.
func newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryBaseDelay
	b.Multiplier = 2
	b.MaxInterval = retryMaxDelay
	b.RandomizationFactor = retryRandomizationFactor
	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}

// Do executes fn and retries it per the retry policy whenever the resulting
// error or status code classifies as [ClassTransient]. Permanent failures
// (including a successful HTTP round-trip with a non-retriable status) are
// returned to the caller on the first attempt; retries are entirely
// transparent otherwise. The caller is responsible for closing the returned
// response body.
func Do(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	var result *http.Response

	operation := func() error {
		resp, err := fn()
		if err != nil {
			if Classify(err, 0) == ClassTransient {
				return err
			}
			return backoff.Permanent(err)
		}
		if retriableStatus[resp.StatusCode] {
			resp.Body.Close()
			return fmt.Errorf("transport: retriable status %d", resp.StatusCode)
		}
		result = resp
		return nil
	}

	if err := backoff.Retry(operation, newBackOff(ctx)); err != nil {
		return nil, err
	}
	return result, nil
}
