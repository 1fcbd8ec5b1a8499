package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is unknown to the history store.
var ErrRunNotFound = errors.New("run not found")

// RunStore persists finished run reports.
type RunStore interface {
	SaveRun(ctx context.Context, report *Report) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id uuid.UUID) (*Report, error)
}

// RunSummary is the list view of a finished run.
type RunSummary struct {
	RunID        uuid.UUID    `json:"run_id"`
	FileName     string       `json:"file_name"`
	CollectionID CollectionID `json:"collection_id"`
	Total        int          `json:"total"`
	Created      int          `json:"created"`
	Updated      int          `json:"updated"`
	Failed       int          `json:"failed"`
	Error        string       `json:"error,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Summary condenses the report for listings.
func (r *Report) Summary() RunSummary {
	return RunSummary{
		RunID:        r.RunID,
		FileName:     r.FileName,
		CollectionID: r.CollectionID,
		Total:        r.Total,
		Created:      r.Created,
		Updated:      r.Updated,
		Failed:       len(r.Failed),
		Error:        r.Error,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// MemoryRuns keeps the most recent reports in process memory. It is used
// when no database is configured.
type MemoryRuns struct {
	mu    sync.RWMutex
	limit int
	runs  []*Report // newest last
}

// NewMemoryRuns keeps at most limit reports.
func NewMemoryRuns(limit int) *MemoryRuns {
	if limit <= 0 {
		limit = 50
	}
	return &MemoryRuns{limit: limit}
}

func (m *MemoryRuns) SaveRun(_ context.Context, report *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, report)
	if len(m.runs) > m.limit {
		m.runs = m.runs[len(m.runs)-m.limit:]
	}
	return nil
}

// ListRuns returns summaries newest first.
func (m *MemoryRuns) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.runs) {
		limit = len(m.runs)
	}
	out := make([]RunSummary, 0, limit)
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i].Summary())
	}
	return out, nil
}

func (m *MemoryRuns) GetRun(_ context.Context, id uuid.UUID) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.RunID == id {
			return r, nil
		}
	}
	return nil, ErrRunNotFound
}
