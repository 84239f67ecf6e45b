// Package usage implements the per-session token usage ledger.
//
// The ledger is append-only: records are never edited or removed, and
// totals are always computed by folding over the record list so they
// cannot drift. The only way totals shrink is a whole-session reset.
package usage

import (
	"sync"
	"time"
)

// Claude Sonnet pricing works out to roughly $3 per 1M input tokens and
// $15 per 1M output tokens; the ledger uses a flat $9 per 1M average
// because input and output are not tracked separately.
const pricePerToken = 9.0 / 1_000_000

// Record is one completed invocation step's usage accounting.
type Record struct {
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"` // UTC.
	Tokens    int       `json:"tokens"`
	CostUSD   float64   `json:"cost_usd"`
}

// Totals is the aggregate over all records.
type Totals struct {
	Tokens     int     `json:"tokens"`
	CostUSD    float64 `json:"cost_usd"`
	Operations int     `json:"operations"`
}

// Ledger is the append-only usage ledger for one session.
type Ledger struct {
	mu      sync.Mutex
	records []Record
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends one entry stamped with the current UTC time.
func (l *Ledger) Record(operation string, tokens int, costUSD float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, Record{
		Operation: operation,
		Timestamp: time.Now().UTC(),
		Tokens:    tokens,
		CostUSD:   costUSD,
	})
}

// Totals folds over all records. Never cached separately.
func (l *Ledger) Totals() Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	var t Totals
	for _, r := range l.records {
		t.Tokens += r.Tokens
		t.CostUSD += r.CostUSD
		t.Operations++
	}
	return t
}

// History returns a copy of all records, most-recent-last.
func (l *Ledger) History() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// EstimateTokens approximates the token count of s at ~4 characters per
// token, rounding up. This is a documented heuristic, not a measurement.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Cost converts a token count to USD under the fixed average price.
func Cost(tokens int) float64 {
	return float64(tokens) * pricePerToken
}
