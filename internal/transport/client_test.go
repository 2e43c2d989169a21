package transport

import (
	"errors"
	"testing"

	"github.com/libraxis-labs/screenscribe/internal/resilience"
)

func TestBreakerForIsPerURL(t *testing.T) {
	c := New("key")

	a1 := c.breakerFor("http://host/a")
	a2 := c.breakerFor("http://host/a")
	b := c.breakerFor("http://host/b")

	if a1 != a2 {
		t.Error("breakerFor returned a different breaker for the same URL")
	}
	if a1 == b {
		t.Error("breakerFor returned the same breaker for different URLs")
	}
}

func TestBreakerForTripsIndependentlyPerURL(t *testing.T) {
	c := New("key")
	boom := errors.New("boom")

	cbA := c.breakerFor("http://host/a")
	for i := 0; i < 5; i++ {
		_ = cbA.Execute(func() error { return boom })
	}
	if err := cbA.Execute(func() error { return nil }); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("breaker A should be open after 5 consecutive failures, got %v", err)
	}

	cbB := c.breakerFor("http://host/b")
	if err := cbB.Execute(func() error { return nil }); err != nil {
		t.Errorf("breaker for a healthy, untouched URL should accept calls, got %v", err)
	}
}
