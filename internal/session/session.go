// Package session holds all mutable per-session state: the latest
// inputs, one latest pipeline result per kind, and the usage ledger.
//
// The session is an explicit context object passed to every operation;
// nothing here is package-level state. Kazi runs one session per
// process, owned by the gateway, and destroys all of it on reset.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mwenda/kazi/internal/pipeline"
	"github.com/mwenda/kazi/internal/usage"
)

// Session is one user's working state. A failed pipeline run never
// touches it: results are published only on full success, overwriting
// the previous result of the same kind.
type Session struct {
	mu        sync.Mutex
	id        uuid.UUID
	createdAt time.Time
	ledger    *usage.Ledger
	project   *pipeline.ProjectInput
	status    *pipeline.StatusInput
	results   map[pipeline.Kind]*pipeline.Result
}

// New creates an empty session with a fresh ledger.
func New() *Session {
	return &Session{
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
		ledger:    usage.NewLedger(),
		results:   make(map[pipeline.Kind]*pipeline.Result),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Ledger returns the session's usage ledger.
func (s *Session) Ledger() *usage.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger
}

// PublishPlan stores a successful planning run and its input.
func (s *Session) PublishPlan(in pipeline.ProjectInput, res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = &in
	s.results[pipeline.KindPlan] = res
}

// PublishAllocation stores a successful allocation run.
func (s *Session) PublishAllocation(res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[pipeline.KindAllocation] = res
}

// PublishStatus stores a successful status run and its input.
func (s *Session) PublishStatus(in pipeline.StatusInput, res *pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &in
	s.results[pipeline.KindStatus] = res
}

// Result returns the latest result of the given kind, if any.
func (s *Session) Result(kind pipeline.Kind) (*pipeline.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[kind]
	return res, ok
}

// PlanText returns the latest planning output, or "" when no plan
// exists. The allocation form uses it as the default plan input.
func (s *Session) PlanText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[pipeline.KindPlan]; ok {
		return res.Output()
	}
	return ""
}

// Reset discards every result, input, and the whole ledger, starting a
// new session in place. This is the only way ledger totals shrink.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.New()
	s.createdAt = time.Now().UTC()
	s.ledger = usage.NewLedger()
	s.project = nil
	s.status = nil
	s.results = make(map[pipeline.Kind]*pipeline.Result)
}

// Snapshot is a frozen copy of session state taken for report assembly.
// Ledger entries appended after the snapshot are invisible to it.
type Snapshot struct {
	SessionID uuid.UUID
	TakenAt   time.Time
	Project   *pipeline.ProjectInput
	Status    *pipeline.StatusInput
	Results   map[pipeline.Kind]*pipeline.Result
	History   []usage.Record
	Totals    usage.Totals
}

// Snapshot copies the current state. Result pointers are shared but
// results are never mutated after publication.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[pipeline.Kind]*pipeline.Result, len(s.results))
	for k, v := range s.results {
		results[k] = v
	}

	var project *pipeline.ProjectInput
	if s.project != nil {
		p := *s.project
		project = &p
	}
	var status *pipeline.StatusInput
	if s.status != nil {
		st := *s.status
		status = &st
	}

	return Snapshot{
		SessionID: s.id,
		TakenAt:   time.Now().UTC(),
		Project:   project,
		Status:    status,
		Results:   results,
		History:   s.ledger.History(),
		Totals:    s.ledger.Totals(),
	}
}
