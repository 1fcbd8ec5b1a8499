package core

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/boardsync/internal/csvfile"
)

// Column positions of an input row.
const (
	ColName = iota
	ColKey
	ColNumber
	ColStatus
	ColDate
)

// Row is one data line of an input file.
type Row struct {
	// Line is the 1-based line number in the source file.
	Line   int
	Fields []string
}

// Field returns the trimmed value at position i and whether the row has it.
func (r Row) Field(i int) (string, bool) {
	if i < 0 || i >= len(r.Fields) {
		return "", false
	}
	return r.Fields[i], true
}

// Name is the display name of the row, empty if absent.
func (r Row) Name() string {
	v, _ := r.Field(ColName)
	return v
}

// Key is the natural key of the row, empty if absent.
func (r Row) Key() string {
	v, _ := r.Field(ColKey)
	return v
}

// CollectionID identifies the remote board. Zero means unset.
type CollectionID int64

// IsSet reports whether a collection has been resolved.
func (c CollectionID) IsSet() bool { return c > 0 }

// RemoteRecord is an existing item and its natural key, as fetched at the
// start of a run or minted by the create phase.
type RemoteRecord struct {
	ID         int64  `json:"id"`
	NaturalKey string `json:"natural_key"`
}

// FieldValues is the column-id keyed payload the remote store accepts.
type FieldValues map[string]any

// RemoteStore is the remote collection API a run mutates.
type RemoteStore interface {
	// Records returns every item of the collection with its natural key.
	Records(ctx context.Context, collection CollectionID) ([]RemoteRecord, error)

	// Create adds an item and returns its new id.
	Create(ctx context.Context, collection CollectionID, name string, values FieldValues) (int64, error)

	// Update replaces column values on an existing item.
	Update(ctx context.Context, collection CollectionID, itemID int64, values FieldValues) error
}

// ContextResolver yields the collection a run should target.
type ContextResolver interface {
	ResolveCollection(ctx context.Context) (CollectionID, error)
}

// StaticCollection is a resolver for a collection fixed by configuration.
type StaticCollection CollectionID

func (s StaticCollection) ResolveCollection(context.Context) (CollectionID, error) {
	return CollectionID(s), nil
}

// Phase names a stage of a run.
type Phase string

const (
	PhaseFetch  Phase = "fetch"
	PhaseCreate Phase = "create"
	PhaseUpdate Phase = "update"
)

// ProgressState counts settled rows against the planned total.
type ProgressState struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent returns completion as 0-100.
func (p ProgressState) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Completed * 100 / p.Total
}

// FailedRow describes a row whose remote call failed.
type FailedRow struct {
	Line       int      `json:"line"`
	Phase      Phase    `json:"phase"`
	NaturalKey string   `json:"natural_key"`
	Reason     string   `json:"reason"`
	Data       []string `json:"data"`
}

// RowEvent is emitted once per settled row.
type RowEvent struct {
	Phase  Phase
	Row    Row
	ItemID int64
	Err    error
}

// Report is the outcome of one run.
type Report struct {
	RunID        uuid.UUID    `json:"run_id"`
	FileName     string       `json:"file_name"`
	CollectionID CollectionID `json:"collection_id"`
	Header       []string     `json:"header,omitempty"`
	Total        int          `json:"total"`
	Created      int          `json:"created"`
	Updated      int          `json:"updated"`
	Failed       []FailedRow  `json:"failed"`
	Error        string       `json:"error,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Succeeded is the number of rows applied remotely.
func (r *Report) Succeeded() int { return r.Created + r.Updated }

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// WriteFailed writes the failed rows as a CSV that can be fixed and dropped
// again.
func (r *Report) WriteFailed(w io.Writer) error {
	rows := make([]csvfile.FailedRow, len(r.Failed))
	for i, f := range r.Failed {
		rows[i] = csvfile.FailedRow{Line: f.Line, Phase: string(f.Phase), Reason: f.Reason, Data: f.Data}
	}
	return csvfile.WriteFailed(w, r.Header, rows)
}
