package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/boardsync/internal/csvfile"
)

var (
	// ErrNoData is returned when a sync is triggered before a file was loaded.
	ErrNoData = errors.New("no file loaded")

	// ErrNotReady is returned when the orchestrator is still resolving its context.
	ErrNotReady = errors.New("sync engine not ready")
)

// historyTimeout bounds persisting a finished report.
const historyTimeout = 10 * time.Second

// RunState is the lifecycle stage of the orchestrator.
type RunState int

const (
	StateIdle RunState = iota
	StateLoading
	StateReady
	StateDataLoaded
	StateUploading
	StateDone
)

var stateNames = [...]string{"idle", "loading", "ready", "data_loaded", "uploading", "done"}

func (s RunState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// MarshalText renders the state name in JSON payloads.
func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is what the UI needs to render the current stage.
type Snapshot struct {
	State        RunState      `json:"state"`
	CollectionID CollectionID  `json:"collection_id"`
	FileName     string        `json:"file_name,omitempty"`
	Pending      int           `json:"pending"`
	Progress     ProgressState `json:"progress"`
	RunID        string        `json:"run_id,omitempty"`
	LastRunID    string        `json:"last_run_id,omitempty"`
}

// CanSync reports whether the trigger should be enabled.
func (s Snapshot) CanSync() bool { return s.State == StateDataLoaded }

// Options configures an Orchestrator.
type Options struct {
	Store    RemoteStore
	Resolver ContextResolver

	// Runs stores finished reports. Defaults to an in-memory store.
	Runs RunStore

	Logger *slog.Logger

	// OnRow observes every settled row of every run.
	OnRow func(RowEvent)
}

// Orchestrator drives the sync lifecycle:
//
//	idle -> loading -> ready -> data_loaded -> uploading -> done -> loading ...
//
// It owns the loaded rows and the progress tracker and allows a single
// active run.
type Orchestrator struct {
	store    RemoteStore
	resolver ContextResolver
	runs     RunStore
	logger   *slog.Logger
	onRow    func(RowEvent)

	gate     *RunGate
	tracker  *Tracker
	listener *broadcaster

	mu         sync.Mutex
	baseCtx    context.Context
	state      RunState
	collection CollectionID
	fileName   string
	header     []string
	rows       []Row
	runID      uuid.UUID
	lastReport *Report
}

// New returns an orchestrator in the idle state.
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Runs == nil {
		opts.Runs = NewMemoryRuns(0)
	}
	if opts.Resolver == nil {
		opts.Resolver = StaticCollection(0)
	}

	o := &Orchestrator{
		store:    opts.Store,
		resolver: opts.Resolver,
		runs:     opts.Runs,
		logger:   opts.Logger,
		onRow:    opts.OnRow,
		gate:     NewRunGate(1),
		listener: newBroadcaster(),
		baseCtx:  context.Background(),
	}
	o.tracker = NewTracker(func(ProgressState) { o.publish() })
	return o
}

// Start resolves the target collection and moves to ready. ctx also becomes
// the parent context of runs started with StartSync, so cancelling it stops
// an active run at the next row. Calling Start again is a no-op.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return
	}
	o.baseCtx = ctx
	o.mu.Unlock()

	o.resolve(ctx, false)
}

// resolve performs loading -> ready. A resolver failure leaves the
// collection unset; the next run then fetches nothing and creates every row.
// When endRun is set the run gate is released in the same critical section
// that sets ready.
func (o *Orchestrator) resolve(ctx context.Context, endRun bool) {
	o.setState(StateLoading)

	collection, err := o.resolver.ResolveCollection(ctx)
	if err != nil {
		o.logger.Warn("resolve collection failed, continuing without one", "error", err)
		collection = 0
	}

	o.mu.Lock()
	o.collection = collection
	o.state = StateReady
	if endRun {
		o.gate.Release()
	}
	o.mu.Unlock()
	o.publish()

	o.logger.Info("sync engine ready", "collection_id", int64(collection))
}

// stagedFile is a parsed input file waiting for a run.
type stagedFile struct {
	name   string
	header []string
	rows   []Row
}

// parseFile checks that a file may be staged now and parses it.
func (o *Orchestrator) parseFile(name string, r io.Reader) (*stagedFile, error) {
	o.mu.Lock()
	state := o.state
	o.mu.Unlock()

	switch state {
	case StateReady, StateDataLoaded:
	case StateUploading, StateDone:
		return nil, ErrSyncInProgress
	default:
		return nil, ErrNotReady
	}

	file, err := csvfile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	rows := make([]Row, len(file.Records))
	for i, rec := range file.Records {
		rows[i] = Row{Line: rec.Line, Fields: rec.Fields}
	}
	return &stagedFile{name: name, header: file.Header, rows: rows}, nil
}

// LoadFile parses r and stages its rows for the next run, replacing any
// rows staged before. A parse error leaves the staged state untouched.
func (o *Orchestrator) LoadFile(name string, r io.Reader) (int, error) {
	staged, err := o.parseFile(name, r)
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	if o.state != StateReady && o.state != StateDataLoaded {
		o.mu.Unlock()
		return 0, ErrSyncInProgress
	}
	o.stageLocked(staged)
	o.state = StateDataLoaded
	o.mu.Unlock()
	o.publish()

	o.logger.Info("file loaded", "file", name, "rows", len(staged.rows))
	return len(staged.rows), nil
}

// SyncFile parses r and runs its rows, blocking until the run finishes.
// Staging and starting the run happen under one lock, so a concurrent
// LoadFile can never swap in other rows before the run begins. Rows staged
// earlier through LoadFile are replaced.
func (o *Orchestrator) SyncFile(ctx context.Context, name string, r io.Reader) (*Report, error) {
	staged, err := o.parseFile(name, r)
	if err != nil {
		return nil, err
	}

	plan, err := o.begin(staged)
	if err != nil {
		return nil, err
	}
	o.logger.Info("file loaded", "file", name, "rows", len(staged.rows))
	return o.execute(ctx, plan), nil
}

func (o *Orchestrator) stageLocked(f *stagedFile) {
	o.fileName = f.name
	o.header = f.header
	o.rows = f.rows
}

// runPlan is the immutable input of one run.
type runPlan struct {
	id         uuid.UUID
	collection CollectionID
	fileName   string
	header     []string
	rows       []Row
}

// Sync runs the staged rows and blocks until the run finishes.
func (o *Orchestrator) Sync(ctx context.Context) (*Report, error) {
	plan, err := o.begin(nil)
	if err != nil {
		return nil, err
	}
	return o.execute(ctx, plan), nil
}

// StartSync runs the staged rows in the background and returns the run id.
func (o *Orchestrator) StartSync() (uuid.UUID, error) {
	plan, err := o.begin(nil)
	if err != nil {
		return uuid.Nil, err
	}

	o.mu.Lock()
	ctx := o.baseCtx
	o.mu.Unlock()

	go o.execute(ctx, plan)
	return plan.id, nil
}

// begin moves to uploading and takes the run gate. A non-nil staged file
// replaces the staged rows first.
func (o *Orchestrator) begin(staged *stagedFile) (*runPlan, error) {
	o.mu.Lock()
	switch o.state {
	case StateDataLoaded:
	case StateReady:
		if staged == nil {
			o.mu.Unlock()
			return nil, ErrNoData
		}
	case StateUploading, StateDone:
		o.mu.Unlock()
		return nil, ErrSyncInProgress
	default:
		o.mu.Unlock()
		return nil, ErrNotReady
	}
	if !o.gate.TryAcquire() {
		o.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	if staged != nil {
		o.stageLocked(staged)
	}

	plan := &runPlan{
		id:         uuid.New(),
		collection: o.collection,
		fileName:   o.fileName,
		header:     o.header,
		rows:       o.rows,
	}
	o.state = StateUploading
	o.runID = plan.id
	o.mu.Unlock()

	o.tracker.Reset(len(plan.rows))
	return plan, nil
}

// execute performs one run. The gate taken by begin is released by reset.
func (o *Orchestrator) execute(ctx context.Context, plan *runPlan) *Report {
	log := o.logger.With("run_id", plan.id.String(), "collection_id", int64(plan.collection))
	report := &Report{
		RunID:        plan.id,
		FileName:     plan.fileName,
		CollectionID: plan.collection,
		Header:       plan.header,
		Total:        len(plan.rows),
		Failed:       []FailedRow{},
		StartedAt:    time.Now().UTC(),
	}
	log.Info("sync started", "file", plan.fileName, "rows", len(plan.rows))

	index, err := FetchIndex(ctx, o.store, plan.collection)
	if err != nil {
		report.Error = err.Error()
		log.Error("sync aborted before any change", "error", err)
	} else {
		part := Reconcile(plan.rows, index)
		log.Info("rows partitioned", "create", len(part.ToCreate), "update", len(part.ToUpdate))

		exec := NewExecutor(o.store, o.tracker, log)
		exec.OnRow = o.onRow

		for _, res := range []PhaseResult{
			exec.CreatePhase(ctx, plan.collection, part.ToCreate, index),
			exec.UpdatePhase(ctx, plan.collection, part.ToUpdate, index),
		} {
			report.Created += res.Created
			report.Updated += res.Updated
			report.Failed = append(report.Failed, res.Failed...)
		}
	}
	report.FinishedAt = time.Now().UTC()

	o.mu.Lock()
	o.state = StateDone
	o.lastReport = report
	o.mu.Unlock()
	o.publish()

	log.Info("sync finished",
		"applied", report.Succeeded(),
		"created", report.Created,
		"updated", report.Updated,
		"failed", len(report.Failed),
		"duration", report.Duration(),
	)

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	if err := o.runs.SaveRun(saveCtx, report); err != nil {
		log.Error("save run history failed", "error", err)
	}
	cancel()

	o.reset(ctx)
	return report
}

// reset discards the finished run's rows and progress, re-resolves the
// collection and ends the run in ready.
func (o *Orchestrator) reset(ctx context.Context) {
	o.mu.Lock()
	o.rows = nil
	o.header = nil
	o.fileName = ""
	o.runID = uuid.Nil
	o.mu.Unlock()

	o.tracker.Reset(0)
	o.resolve(context.WithoutCancel(ctx), true)
}

// State returns the current snapshot.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{
		State:        o.state,
		CollectionID: o.collection,
		FileName:     o.fileName,
		Pending:      len(o.rows),
		Progress:     o.tracker.Snapshot(),
	}
	if o.runID != uuid.Nil {
		s.RunID = o.runID.String()
	}
	if o.lastReport != nil {
		s.LastRunID = o.lastReport.RunID.String()
	}
	return s
}

// LastReport returns the report of the most recent run, or nil.
func (o *Orchestrator) LastReport() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReport
}

// Gate reports run gate occupancy.
func (o *Orchestrator) Gate() RunGateStatus { return o.gate.Status() }

// Runs exposes the history store.
func (o *Orchestrator) Runs() RunStore { return o.runs }

// Subscribe streams snapshots on every state or progress change. The
// channel starts with the current snapshot. Call cancel when done.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	return o.listener.subscribe(o.State)
}

// Close waits for an active run to finish and closes all subscriptions.
func (o *Orchestrator) Close(ctx context.Context) error {
	err := o.gate.WaitForDrain(ctx)
	o.listener.closeAll()
	return err
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.publish()
}

func (o *Orchestrator) publish() {
	o.listener.publish(o.State)
}
