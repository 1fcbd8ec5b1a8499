package core

import (
	"context"
	"fmt"
	"log/slog"
)

// KeyLookup resolves a natural key to the first matching record.
type KeyLookup interface {
	Lookup(key string) (RemoteRecord, bool)
}

// RemoteIndex is the run-scoped, append-only view of the collection.
// It is owned by a single run and must not be shared between goroutines.
type RemoteIndex struct {
	records []RemoteRecord
}

// NewRemoteIndex builds an index from fetched records, preserving order.
func NewRemoteIndex(records []RemoteRecord) *RemoteIndex {
	idx := &RemoteIndex{records: make([]RemoteRecord, len(records))}
	copy(idx.records, records)
	return idx
}

// Lookup returns the first record carrying key. An empty key never matches.
func (idx *RemoteIndex) Lookup(key string) (RemoteRecord, bool) {
	if key == "" {
		return RemoteRecord{}, false
	}
	for _, rec := range idx.records {
		if rec.NaturalKey == key {
			return rec, true
		}
	}
	return RemoteRecord{}, false
}

// Append records an item minted during the create phase.
func (idx *RemoteIndex) Append(rec RemoteRecord) {
	idx.records = append(idx.records, rec)
}

// Len is the number of records, fetched and minted.
func (idx *RemoteIndex) Len() int { return len(idx.records) }

// Duplicates returns keys that appear on more than one record.
func (idx *RemoteIndex) Duplicates() []string {
	seen := make(map[string]int, len(idx.records))
	var dups []string
	for _, rec := range idx.records {
		if rec.NaturalKey == "" {
			continue
		}
		seen[rec.NaturalKey]++
		if seen[rec.NaturalKey] == 2 {
			dups = append(dups, rec.NaturalKey)
		}
	}
	return dups
}

// FetchIndex loads the collection's records in one query. With no
// collection set it returns an empty index without calling the store.
func FetchIndex(ctx context.Context, store RemoteStore, collection CollectionID) (*RemoteIndex, error) {
	if !collection.IsSet() {
		return NewRemoteIndex(nil), nil
	}

	records, err := store.Records(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("fetch collection %d: %w", collection, err)
	}

	idx := NewRemoteIndex(records)
	if dups := idx.Duplicates(); len(dups) > 0 {
		slog.Warn("collection has duplicate natural keys, first match wins",
			"collection_id", int64(collection),
			"keys", dups,
		)
	}
	return idx, nil
}
