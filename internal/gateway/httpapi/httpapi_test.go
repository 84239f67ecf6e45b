package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mwenda/kazi/internal/pipeline"
	"github.com/mwenda/kazi/internal/report"
	"github.com/mwenda/kazi/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testGateway() *Gateway {
	logger := discardLogger()
	return NewGateway(Config{ListenAddr: ":0"}, nil, session.New(), report.NewAssembler(logger), logger)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "validation error is the caller's fault",
			err:  &pipeline.ValidationError{Step: "planner", Err: errors.New("description is empty")},
			want: http.StatusBadRequest,
		},
		{
			name: "upstream error maps to bad gateway",
			err:  &pipeline.UpstreamError{Step: "monitor", Err: errors.New("api unreachable")},
			want: http.StatusBadGateway,
		},
		{
			name: "empty report maps to conflict",
			err:  &report.ReportError{Msg: "nothing to report"},
			want: http.StatusConflict,
		},
		{
			name: "unknown errors stay internal",
			err:  errors.New("surprise"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, msg := errorStatus(tc.err)
			if code != tc.want {
				t.Errorf("status = %d, want %d", code, tc.want)
			}
			if msg == "" {
				t.Error("expected a non-empty message")
			}
		})
	}

	// Wrapped errors still map.
	wrapped := &pipeline.UpstreamError{Step: "planner", Err: errors.New("boom")}
	if code, _ := errorStatus(wrapped); code != http.StatusBadGateway {
		t.Errorf("wrapped upstream status = %d, want 502", code)
	}
}

func TestHandleReport_EmptySession(t *testing.T) {
	g := testGateway()

	rec := httptest.NewRecorder()
	g.handleReport(rec, httptest.NewRequest("GET", "/v1/report", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "error") {
		t.Errorf("expected JSON error body, got %q", rec.Body.String())
	}
}

func TestHandleReport_WithPlan(t *testing.T) {
	g := testGateway()
	g.sess.Ledger().Record("Project Planning", 100, 0.0009)
	g.sess.PublishPlan(
		pipeline.ProjectInput{Description: "build it", Team: "us"},
		&pipeline.Result{
			Kind:       pipeline.KindPlan,
			Steps:      []pipeline.StepResult{{Name: "planner", Output: "the plan"}},
			FinishedAt: time.Now().UTC(),
		},
	)

	rec := httptest.NewRecorder()
	g.handleReport(rec, httptest.NewRequest("GET", "/v1/report", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "attachment") || !strings.Contains(cd, ".pdf") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Error("body is not a PDF document")
	}
}

func TestHandleIndex(t *testing.T) {
	g := testGateway()

	rec := httptest.NewRecorder()
	g.handleIndex(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, g.sess.ID().String()) {
		t.Error("page missing session ID")
	}
	if !strings.Contains(body, "/v1/plan") {
		t.Error("page missing plan endpoint wiring")
	}
}

func TestResetSession_ReturnsOwnID(t *testing.T) {
	g := testGateway()

	id := g.resetSession()
	if id != g.sess.ID().String() {
		t.Errorf("resetSession returned %q, session is %q", id, g.sess.ID())
	}
}

func TestResetSession_ConcurrentResetsReportDistinctIDs(t *testing.T) {
	g := testGateway()

	const n = 16
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.resetSession()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("two resets reported the same session ID %q", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("expected %d distinct session IDs, got %d", n, len(seen))
	}
}

func TestRunMutex_Busy(t *testing.T) {
	g := testGateway()

	// Simulate an in-flight run.
	g.runMu.Lock()
	defer g.runMu.Unlock()

	if g.runMu.TryLock() {
		t.Fatal("TryLock should fail while a run is in flight")
	}
}
