package engagements

import (
	"sync"
	"time"
)

// WorkingSet is the single slot holding uploaded records. Writers replace the whole
// slice; readers always receive a copy.
type WorkingSet struct {
	mu         sync.RWMutex
	records    []Record
	filename   string
	uploadedAt time.Time
}

// Snapshot describes the uploaded set at the time it was read.
type Snapshot struct {
	Records    []Record
	Filename   string
	UploadedAt time.Time
}

func NewWorkingSet() *WorkingSet {
	return &WorkingSet{}
}

// Replace swaps in a new uploaded set. An empty slice clears the slot.
func (w *WorkingSet) Replace(records []Record, filename string, at time.Time) {
	if len(records) == 0 {
		w.Clear()
		return
	}
	cp := make([]Record, len(records))
	copy(cp, records)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = cp
	w.filename = filename
	w.uploadedAt = at
}

// Clear empties the slot and reports whether it held anything.
func (w *WorkingSet) Clear() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	had := w.records != nil
	w.records = nil
	w.filename = ""
	w.uploadedAt = time.Time{}
	return had
}

// Read returns a copy of the uploaded set, or false when nothing is uploaded.
func (w *WorkingSet) Read() (Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.records == nil {
		return Snapshot{}, false
	}
	cp := make([]Record, len(w.records))
	copy(cp, w.records)
	return Snapshot{Records: cp, Filename: w.filename, UploadedAt: w.uploadedAt}, true
}
