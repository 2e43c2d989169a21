// Package webui implements the interactive browser UI: a single-user,
// read-only HTTP server that streams pipeline progress over Server-Sent
// Events and serves the finished report once a run completes.
//
// There is exactly one run in flight per Server, matching the CLI's
// one-video-at-a-time review loop. Out of scope: multi-user concurrency,
// authentication, websockets.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	sse "github.com/Tangerg/lynx/sse"

	"github.com/libraxis-labs/screenscribe/internal/health"
	"github.com/libraxis-labs/screenscribe/internal/observe"
	"github.com/libraxis-labs/screenscribe/internal/report"
	"github.com/libraxis-labs/screenscribe/pkg/types"
)

// shutdownTimeout bounds how long Shutdown waits for in-flight requests
// (including open SSE streams) to drain.
const shutdownTimeout = 15 * time.Second

// sseHeartbeat is the keep-alive interval for idle event streams.
const sseHeartbeat = 15 * time.Second

// Server serves the browser UI for one review run at a time.
type Server struct {
	health  *health.Handler
	metrics *observe.Metrics

	mu        sync.Mutex
	video     string
	status    string // "running", "done", "error"
	completed []types.Stage
	report    *types.Report
	format    report.Format
	language  string
	runErr    error

	subMu sync.Mutex
	subs  map[chan event]struct{}

	httpServer *http.Server
}

// event is one progress notification broadcast to connected SSE clients.
type event struct {
	Stage  types.Stage `json:"stage,omitempty"`
	Status string      `json:"status"`
}

// New creates a Server. checkers are evaluated on GET /readyz in addition
// to the server's own liveness (which is implicit: a reachable process is
// alive).
func New(metrics *observe.Metrics, checkers ...health.Checker) *Server {
	return &Server{
		health:  health.New(checkers...),
		metrics: metrics,
		subs:    make(map[chan event]struct{}),
		status:  "idle",
	}
}

// Begin records the start of a new run. Call it right before handing opts
// (with OnStage wired to [Server.OnStage]) to the coordinator.
func (s *Server) Begin(video string, format report.Format, language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = video
	s.status = "running"
	s.completed = nil
	s.report = nil
	s.runErr = nil
	s.format = format
	s.language = language
	s.broadcast(event{Status: "running"})
}

// OnStage is a [pipeline.Options.OnStage] callback that broadcasts stage
// completion to every connected SSE client.
func (s *Server) OnStage(stage types.Stage) {
	s.mu.Lock()
	s.completed = append(s.completed, stage)
	s.mu.Unlock()
	s.broadcast(event{Stage: stage, Status: "running"})
}

// Finish records the outcome of the current run and notifies subscribers.
func (s *Server) Finish(rep types.Report, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = &rep
	s.runErr = err
	if err != nil {
		s.status = "error"
		s.broadcast(event{Status: "error"})
		return
	}
	s.status = "done"
	s.broadcast(event{Status: "done"})
}

// broadcast fans an event out to every subscriber without blocking on a
// slow or stalled client.
func (s *Server) broadcast(e event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (s *Server) subscribe() chan event {
	ch := make(chan event, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan event) {
	s.subMu.Lock()
	delete(s.subs, ch)
	s.subMu.Unlock()
}

// Mux builds the server's routes, wrapped in [observe.Middleware] for HTTP
// request metrics.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /", s.handleIndex)

	wrapped := http.NewServeMux()
	wrapped.Handle("/", observe.Middleware(s.metrics)(mux))
	return wrapped
}

// handleEvents streams stage-progress events to the client as they happen.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writer, err := sse.NewWriter(&sse.WriterConfig{
		Context:        r.Context(),
		ResponseWriter: w,
		HeartBeat:      sseHeartbeat,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer writer.Close()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-ch:
			if err := writer.SendData(e); err != nil {
				return
			}
		}
	}
}

// handleStatus reports the current run's status without requiring an SSE
// connection, useful for a page that just loaded.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	status := s.status
	video := s.video
	completed := append([]types.Stage(nil), s.completed...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, struct {
		Video     string        `json:"video"`
		Status    string        `json:"status"`
		Completed []types.Stage `json:"completed_stages"`
	}{video, status, completed})
}

// handleReport renders and serves the finished report. Returns 404 before
// a run has completed and 500 if the run ended in error.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rep := s.report
	runErr := s.runErr
	format := s.format
	language := s.language
	s.mu.Unlock()

	if rep == nil {
		http.Error(w, "no report available yet", http.StatusNotFound)
		return
	}
	if runErr != nil {
		http.Error(w, "run ended with an error: "+runErr.Error(), http.StatusInternalServerError)
		return
	}

	if f := r.URL.Query().Get("format"); f != "" {
		format = report.Format(f)
	}
	rendered, err := report.Render(*rep, format, language)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch format {
	case report.FormatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case report.FormatJSON:
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = w.Write([]byte(rendered))
}

const indexPage = `<!doctype html>
<html><head><title>screenscribe</title></head>
<body>
<h1>screenscribe</h1>
<p id="status">connecting...</p>
<ul id="stages"></ul>
<p><a href="/report">view report</a> once the run finishes.</p>
<script>
const stages = document.getElementById("stages");
const status = document.getElementById("status");
const seen = new Set();
const es = new EventSource("/events");
es.onmessage = (ev) => {
  const data = JSON.parse(ev.data);
  status.textContent = "status: " + data.status;
  if (data.stage && !seen.has(data.stage)) {
    seen.add(data.stage);
    const li = document.createElement("li");
    li.textContent = data.stage;
    stages.appendChild(li);
  }
};
</script>
</body></html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

// ListenAndServe starts the server on addr and blocks until ctx is
// cancelled, at which point it shuts down gracefully within
// [shutdownTimeout].
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Mux(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("webui listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shut down webui server: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
