package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoRemoteItem is recorded for an update row whose key vanished from the index.
var ErrNoRemoteItem = errors.New("no remote item for key")

// PhaseResult accumulates per-row outcomes of one phase.
type PhaseResult struct {
	Phase     Phase
	Created   int
	Updated   int
	Failed    []FailedRow
	Attempted int
}

// Executor applies rows to the remote store one at a time. A row's failure
// is recorded and never stops the rows after it.
type Executor struct {
	store   RemoteStore
	tracker *Tracker
	logger  *slog.Logger

	// OnRow, when set, observes every settled row.
	OnRow func(RowEvent)
}

// NewExecutor returns an executor reporting progress to tracker.
func NewExecutor(store RemoteStore, tracker *Tracker, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, tracker: tracker, logger: logger}
}

// CreatePhase creates every row and appends minted ids to index. A row whose
// key was minted earlier in this phase updates that item instead of
// creating a second one.
func (e *Executor) CreatePhase(ctx context.Context, collection CollectionID, rows []Row, index *RemoteIndex) PhaseResult {
	return e.run(ctx, PhaseCreate, rows, func(row Row) (int64, Phase, error) {
		if rec, ok := index.Lookup(row.Key()); ok {
			return rec.ID, PhaseUpdate, e.store.Update(ctx, collection, rec.ID, mapUpdate(row))
		}

		id, err := e.store.Create(ctx, collection, row.Name(), MapRow(row))
		if err != nil {
			return 0, PhaseCreate, err
		}
		index.Append(RemoteRecord{ID: id, NaturalKey: row.Key()})
		return id, PhaseCreate, nil
	})
}

// UpdatePhase updates every row against the item its key resolves to.
// The index is only read.
func (e *Executor) UpdatePhase(ctx context.Context, collection CollectionID, rows []Row, index KeyLookup) PhaseResult {
	return e.run(ctx, PhaseUpdate, rows, func(row Row) (int64, Phase, error) {
		rec, ok := index.Lookup(row.Key())
		if !ok {
			return 0, PhaseUpdate, fmt.Errorf("%w %q", ErrNoRemoteItem, row.Key())
		}
		return rec.ID, PhaseUpdate, e.store.Update(ctx, collection, rec.ID, mapUpdate(row))
	})
}

// applyFunc performs the remote call for one row and reports which
// operation it ended up being.
type applyFunc func(Row) (itemID int64, applied Phase, err error)

func (e *Executor) run(ctx context.Context, phase Phase, rows []Row, apply applyFunc) PhaseResult {
	res := PhaseResult{Phase: phase}

	for _, row := range rows {
		res.Attempted++

		var (
			itemID  int64
			applied = phase
			err     = ctx.Err()
		)
		if err == nil {
			itemID, applied, err = apply(row)
		}

		if err != nil {
			res.Failed = append(res.Failed, FailedRow{
				Line:       row.Line,
				Phase:      applied,
				NaturalKey: row.Key(),
				Reason:     err.Error(),
				Data:       row.Fields,
			})
			e.logger.Warn("row failed",
				"phase", applied,
				"line", row.Line,
				"key", row.Key(),
				"error", err,
			)
		} else {
			if applied == PhaseCreate {
				res.Created++
			} else {
				res.Updated++
			}
			e.tracker.Increment()
			e.logger.Debug("row applied", "phase", applied, "line", row.Line, "item_id", itemID)
		}

		if e.OnRow != nil {
			e.OnRow(RowEvent{Phase: applied, Row: row, ItemID: itemID, Err: err})
		}
	}

	return res
}
