package webui

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/libraxis-labs/screenscribe/internal/observe"
	"github.com/libraxis-labs/screenscribe/internal/report"
	"github.com/libraxis-labs/screenscribe/pkg/types"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(observe.DefaultMetrics())
}

func TestHandleStatusBeforeAnyRun(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHandleReportNotFoundBeforeRunCompletes(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleReportServesJSONAfterFinish(t *testing.T) {
	s := testServer(t)
	s.Begin("video.mp4", report.FormatJSON, "")
	s.Finish(types.Report{VideoPath: "video.mp4", Findings: []types.UnifiedFinding{}, Errors: []types.PipelineError{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestHandleReportReflectsRunError(t *testing.T) {
	s := testServer(t)
	s.Begin("video.mp4", report.FormatJSON, "")
	s.Finish(types.Report{}, errBoom{})

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	w := httptest.NewRecorder()
	s.Mux().ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestBroadcastDoesNotBlockWithoutSubscribers(t *testing.T) {
	s := testServer(t)
	s.OnStage(types.StageAudio)
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
