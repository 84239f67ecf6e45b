package report

import (
	"bytes"
	"compress/zlib"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/mwenda/kazi/internal/pipeline"
	"github.com/mwenda/kazi/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func planResult(output string) *pipeline.Result {
	return &pipeline.Result{
		Kind: pipeline.KindPlan,
		Steps: []pipeline.StepResult{
			{Name: "planner", Prompt: "prompt", Output: output},
		},
		FinishedAt: time.Now().UTC(),
	}
}

func TestBuild_EmptySessionFails(t *testing.T) {
	sess := session.New()
	a := NewAssembler(discardLogger())

	_, err := a.Build(sess.Snapshot())
	if err == nil {
		t.Fatal("expected error for empty session")
	}
	var re *ReportError
	if !errors.As(err, &re) {
		t.Fatalf("expected *ReportError, got %T: %v", err, err)
	}
}

func TestBuild_PlanOnly(t *testing.T) {
	sess := session.New()
	sess.Ledger().Record("Project Planning", 120, 0.00108)
	sess.PublishPlan(
		pipeline.ProjectInput{Description: "Build a rover", Team: "Ann, Ben"},
		planResult("1. Design chassis\n2. Assemble"),
	)

	a := NewAssembler(discardLogger())
	r, err := a.Build(sess.Snapshot())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if r.Plan == nil {
		t.Fatal("expected plan in report")
	}
	if r.Allocation != nil || r.Analysis != nil {
		t.Error("unexpected allocation or analysis in plan-only report")
	}
	if r.Project == nil || r.Project.Description != "Build a rover" {
		t.Errorf("project input not carried into report: %+v", r.Project)
	}
	if r.Totals.Tokens != 120 || r.Totals.Operations != 1 {
		t.Errorf("totals mismatch: %+v", r.Totals)
	}
	if len(r.History) != 1 || r.History[0].Operation != "Project Planning" {
		t.Errorf("history mismatch: %+v", r.History)
	}
}

func TestBuild_TotalsFrozenAtSnapshot(t *testing.T) {
	sess := session.New()
	sess.Ledger().Record("Project Planning", 100, 0.0009)
	sess.PublishPlan(pipeline.ProjectInput{Description: "d", Team: "t"}, planResult("plan"))

	a := NewAssembler(discardLogger())
	r, err := a.Build(sess.Snapshot())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	sess.Ledger().Record("Task Allocation", 50, 0.00045)

	if r.Totals.Tokens != 100 {
		t.Errorf("report totals changed after snapshot: %+v", r.Totals)
	}
	if len(r.History) != 1 {
		t.Errorf("report history changed after snapshot: %d entries", len(r.History))
	}
}

func TestRender_ProducesPDF(t *testing.T) {
	sess := session.New()
	sess.Ledger().Record("Project Planning", 120, 0.00108)
	sess.PublishPlan(
		pipeline.ProjectInput{Description: "Build a rover", Team: "Ann, Ben"},
		planResult("1. Design chassis"),
	)

	a := NewAssembler(discardLogger())
	r, err := a.Build(sess.Snapshot())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	raw, err := r.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("%PDF")) {
		t.Errorf("output does not start with %%PDF header: %q", raw[:min(8, len(raw))])
	}
	if len(raw) < 500 {
		t.Errorf("suspiciously small PDF: %d bytes", len(raw))
	}
}

// inflatedStreams decompresses every flate stream in a rendered PDF so
// tests can inspect the page content text.
func inflatedStreams(t *testing.T, raw []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	rest := raw
	for {
		i := bytes.Index(rest, []byte("stream"))
		if i < 0 {
			break
		}
		seg := bytes.TrimLeft(rest[i+len("stream"):], "\r\n")
		end := bytes.Index(seg, []byte("endstream"))
		if end < 0 {
			break
		}
		if zr, err := zlib.NewReader(bytes.NewReader(seg[:end])); err == nil {
			_, _ = io.Copy(&out, zr)
			zr.Close()
		}
		rest = seg[end+len("endstream"):]
	}
	if out.Len() == 0 {
		t.Fatal("no decompressible streams found in PDF")
	}
	return out.Bytes()
}

func TestRender_TranslatesNonASCII(t *testing.T) {
	sess := session.New()
	sess.Ledger().Record("Project Planning", 80, 0.00072)
	sess.PublishPlan(
		pipeline.ProjectInput{Description: "Déploiement — café", Team: "Ann"},
		planResult("1. Déployer le café"),
	)

	a := NewAssembler(discardLogger())
	r, err := a.Build(sess.Snapshot())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	raw, err := r.Render()
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	content := inflatedStreams(t, raw)
	// The core Helvetica font is cp1252: é must land in the content
	// stream as the single byte 0xE9, not the UTF-8 pair 0xC3 0xA9.
	if bytes.Contains(content, []byte{0xC3, 0xA9}) {
		t.Error("UTF-8 bytes for é reached the cp1252 text stream")
	}
	if !bytes.Contains(content, []byte{0xE9}) {
		t.Error("cp1252 byte for é missing from text stream")
	}
}

func TestFilename(t *testing.T) {
	r := &Report{GeneratedAt: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
	got := r.Filename()
	want := "project-report-20260314-092653.pdf"
	if got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
	if ok, _ := regexp.MatchString(`^project-report-\d{8}-\d{6}\.pdf$`, got); !ok {
		t.Errorf("filename %q does not match expected pattern", got)
	}
}
