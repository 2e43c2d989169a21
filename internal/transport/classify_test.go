package transport

import (
	"errors"
	"net/http"
	"testing"
)

func TestClassifyNetworkError(t *testing.T) {
	if got := Classify(errors.New("dial tcp: timeout"), 0); got != ClassTransient {
		t.Errorf("Classify(network error) = %v, want transient", got)
	}
}

func TestClassifyRetriableStatuses(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		if got := Classify(nil, status); got != ClassTransient {
			t.Errorf("Classify(nil, %d) = %v, want transient", status, got)
		}
	}
}

func TestClassifyPermanentStatuses(t *testing.T) {
	for _, status := range []int{200, 400, 401, 403, 404} {
		if got := Classify(nil, status); got != ClassPermanent {
			t.Errorf("Classify(nil, %d) = %v, want permanent", status, got)
		}
	}
	if http.StatusOK != 200 {
		t.Fatal("sanity check failed")
	}
}
