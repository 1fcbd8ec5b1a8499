package core

// Partition splits input rows into the create and update sets.
type Partition struct {
	ToCreate []Row
	ToUpdate []Row
}

// Total is the number of rows in both sets.
func (p Partition) Total() int { return len(p.ToCreate) + len(p.ToUpdate) }

// Reconcile routes each row by natural key: rows whose key exists in index
// are updates, everything else (including rows without a key) is a create.
// Input order is kept within each set.
func Reconcile(rows []Row, index KeyLookup) Partition {
	var p Partition
	for _, row := range rows {
		if _, ok := index.Lookup(row.Key()); ok {
			p.ToUpdate = append(p.ToUpdate, row)
			continue
		}
		p.ToCreate = append(p.ToCreate, row)
	}
	return p
}
