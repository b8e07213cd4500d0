// Package ledger tracks which upgrades are constructed on a single host.
package ledger

import "fmt"

// Record is one constructed upgrade. Count is the number of built instances and is
// always at least 1 while the record exists.
type Record struct {
	DefID      string `json:"def"`
	Material   string `json:"material"`
	Count      int    `json:"count"`
	ToggledOff bool   `json:"toggled_off"`
}

// Ledger holds at most one record per definition id, in insertion order.
// A Ledger is owned by exactly one host and is not safe for concurrent use.
type Ledger struct {
	records []Record
	index   map[string]int // def id → position in records
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{index: make(map[string]int)}
}

// FromRecords builds a ledger from records already in canonical shape.
// Records with a non-positive count or a repeated id are skipped.
func FromRecords(recs []Record) *Ledger {
	l := New()
	for _, r := range recs {
		if r.Count < 1 || l.Has(r.DefID) {
			continue
		}
		l.append(r)
	}
	return l
}

func (l *Ledger) append(r Record) {
	l.index[r.DefID] = len(l.records)
	l.records = append(l.records, r)
}

// Install adds a new record with count 1.
func (l *Ledger) Install(defID, material string) error {
	if l.Has(defID) {
		return fmt.Errorf("%w: %s", ErrAlreadyInstalled, defID)
	}
	l.append(Record{DefID: defID, Material: material, Count: 1})
	return nil
}

// IncreaseCount adds one instance to an existing record.
func (l *Ledger) IncreaseCount(defID string) error {
	i, ok := l.index[defID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, defID)
	}
	l.records[i].Count++
	return nil
}

// DecreaseCount removes one instance, deleting the record when none remain.
// The returned record reflects the state before the decrement.
func (l *Ledger) DecreaseCount(defID string) (Record, error) {
	i, ok := l.index[defID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotInstalled, defID)
	}
	before := l.records[i]
	if before.Count <= 1 {
		return l.Remove(defID)
	}
	l.records[i].Count--
	return before, nil
}

// Remove deletes a record and returns it so the caller can compute a refund.
func (l *Ledger) Remove(defID string) (Record, error) {
	i, ok := l.index[defID]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotInstalled, defID)
	}
	rec := l.records[i]
	l.records = append(l.records[:i], l.records[i+1:]...)
	delete(l.index, defID)
	for j := i; j < len(l.records); j++ {
		l.index[l.records[j].DefID] = j
	}
	return rec, nil
}

// SetToggledOff sets the toggle flag on an existing record.
func (l *Ledger) SetToggledOff(defID string, off bool) error {
	i, ok := l.index[defID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, defID)
	}
	l.records[i].ToggledOff = off
	return nil
}

// Has reports whether defID is constructed.
func (l *Ledger) Has(defID string) bool {
	_, ok := l.index[defID]
	return ok
}

// ConstructedCount returns the number of built instances of defID, 0 if absent.
func (l *Ledger) ConstructedCount(defID string) int {
	if i, ok := l.index[defID]; ok {
		return l.records[i].Count
	}
	return 0
}

// Get returns a copy of the record for defID.
func (l *Ledger) Get(defID string) (Record, bool) {
	if i, ok := l.index[defID]; ok {
		return l.records[i], true
	}
	return Record{}, false
}

// Records returns a copy of all records in insertion order.
func (l *Ledger) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Ledger) Len() int { return len(l.records) }
