package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	start := time.Now()
	resp, err := Do(context.Background(), func() (*http.Response, error) {
		return http.Get(srv.URL)
	})
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if elapsed < 500*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 0.5*base delay", elapsed)
	}
}

func TestDoStopsOnPermanentStatus(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	resp, err := Do(context.Background(), func() (*http.Response, error) {
		return http.Get(srv.URL)
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent status)", attempts)
	}
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Do(context.Background(), func() (*http.Response, error) {
		return http.Get(srv.URL)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxRetries+1 {
		t.Errorf("attempts = %d, want %d (1 initial + %d retries)", attempts, maxRetries+1, maxRetries)
	}
}

func TestDoRetriesBareErrorAsTransient(t *testing.T) {
	sentinel := errors.New("boom")
	var calls int
	_, err := Do(context.Background(), func() (*http.Response, error) {
		calls++
		return nil, sentinel
	})
	if err == nil {
		t.Fatal("expected error")
	}
	// A bare non-nil error with no response is classified transient (network
	// error), so it retries up to the bound rather than failing on call 1.
	if calls != maxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxRetries+1)
	}
}
