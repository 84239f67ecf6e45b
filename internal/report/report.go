// Package report assembles session state into a paginated PDF document.
package report

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mwenda/kazi/internal/pipeline"
	"github.com/mwenda/kazi/internal/session"
	"github.com/mwenda/kazi/internal/usage"
)

const reportKind = "project-report"

// ReportError reports that a document was requested with nothing to
// put in it: no pipeline has produced a result yet.
type ReportError struct {
	Msg string
}

func (e *ReportError) Error() string { return e.Msg }

// Report is a frozen snapshot combining the most recent inputs, the
// most recent pipeline results, and a copy of the usage ledger at
// assembly time. Never mutated after creation; ledger entries added
// later do not appear in it.
type Report struct {
	GeneratedAt time.Time
	SessionID   uuid.UUID

	Project    *pipeline.ProjectInput
	Status     *pipeline.StatusInput
	Plan       *pipeline.Result
	Allocation *pipeline.Result
	Analysis   *pipeline.Result

	History []usage.Record
	Totals  usage.Totals
}

// Filename suggests a download name derived from the generation time.
func (r *Report) Filename() string {
	return fmt.Sprintf("%s-%s.pdf", reportKind, r.GeneratedAt.Format("20060102-150405"))
}

// Assembler builds reports from session snapshots.
type Assembler struct {
	logger *slog.Logger
}

// NewAssembler creates a report assembler.
func NewAssembler(logger *slog.Logger) *Assembler {
	return &Assembler{logger: logger}
}

// Build freezes the snapshot into a Report. It fails with *ReportError
// when no pipeline result of any kind exists.
func (a *Assembler) Build(snap session.Snapshot) (*Report, error) {
	if len(snap.Results) == 0 {
		return nil, &ReportError{Msg: "nothing to report: no pipeline has completed yet"}
	}

	r := &Report{
		GeneratedAt: snap.TakenAt,
		SessionID:   snap.SessionID,
		Project:     snap.Project,
		Status:      snap.Status,
		Plan:        snap.Results[pipeline.KindPlan],
		Allocation:  snap.Results[pipeline.KindAllocation],
		Analysis:    snap.Results[pipeline.KindStatus],
		History:     snap.History,
		Totals:      snap.Totals,
	}

	a.logger.Info("report assembled",
		slog.String("session_id", r.SessionID.String()),
		slog.Int("operations", r.Totals.Operations),
		slog.Bool("has_plan", r.Plan != nil),
		slog.Bool("has_analysis", r.Analysis != nil),
	)

	return r, nil
}
