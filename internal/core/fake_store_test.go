package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeStore is an in-memory RemoteStore that records every call.
type fakeStore struct {
	mu sync.Mutex

	records  []RemoteRecord
	fetchErr error
	nextID   int64

	// failKeys makes Create/Update fail for rows with these natural keys.
	failKeys map[string]bool

	fetches int
	creates []createCall
	updates []updateCall
	// calls logs every Create/Update attempt in order as "create:KEY" or
	// "update:KEY", failed attempts included.
	calls []string
	// inFlight tracks concurrent calls to prove the executor is serial.
	inFlight    int
	maxInFlight int
}

type createCall struct {
	Collection CollectionID
	Name       string
	Values     FieldValues
}

type updateCall struct {
	Collection CollectionID
	ItemID     int64
	Values     FieldValues
}

func newFakeStore(records ...RemoteRecord) *fakeStore {
	return &fakeStore{records: records, nextID: 100, failKeys: map[string]bool{}}
}

func (f *fakeStore) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeStore) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeStore) Records(ctx context.Context, _ CollectionID) ([]RemoteRecord, error) {
	f.enter()
	defer f.leave()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]RemoteRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) Create(ctx context.Context, c CollectionID, name string, values FieldValues) (int64, error) {
	f.enter()
	defer f.leave()
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key, _ := values[ColumnText].(string)
	f.calls = append(f.calls, "create:"+key)
	if f.failKeys[key] {
		return 0, fmt.Errorf("create %q: %w", key, errRemote)
	}
	f.nextID++
	f.creates = append(f.creates, createCall{Collection: c, Name: name, Values: values})
	f.records = append(f.records, RemoteRecord{ID: f.nextID, NaturalKey: key})
	return f.nextID, nil
}

func (f *fakeStore) Update(ctx context.Context, c CollectionID, itemID int64, values FieldValues) error {
	f.enter()
	defer f.leave()
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	key, _ := values[ColumnText].(string)
	f.calls = append(f.calls, "update:"+key)
	if f.failKeys[key] {
		return fmt.Errorf("update %q: %w", key, errRemote)
	}
	f.updates = append(f.updates, updateCall{Collection: c, ItemID: itemID, Values: values})
	return nil
}

var errRemote = errors.New("remote rejected the request")

// resolverFunc adapts a function to ContextResolver.
type resolverFunc func(context.Context) (CollectionID, error)

func (f resolverFunc) ResolveCollection(ctx context.Context) (CollectionID, error) { return f(ctx) }
