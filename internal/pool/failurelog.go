package pool

import (
	"sync"
	"time"

	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/metrics"
)

// FailureRecord is one entry in a FailureLog.
type FailureRecord struct {
	TaskID  string
	TypeTag string
	Err     string
	At      time.Time
}

// FailureLog is an in-memory, capacity-bounded record of task-body
// errors, grounded on the teacher's Redis-backed dead letter queue
// (internal/queue.DLQ) but without the Redis stream/set backing: task
// state is explicitly out of scope for cross-restart persistence
// (spec.md Non-goals), so this log only needs to survive the process
// it runs in. Install it as a Scheduler exception handler via Handler.
type FailureLog struct {
	mu      sync.Mutex
	cap     int
	records []FailureRecord
}

// NewFailureLog builds a FailureLog retaining at most capacity records,
// oldest-dropped-first once full.
func NewFailureLog(capacity int) *FailureLog {
	return &FailureLog{cap: capacity}
}

// Add appends a failure record, evicting the oldest entry if the log is
// already at capacity.
func (f *FailureLog) Add(task *coretask.Task, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.records = append(f.records, FailureRecord{
		TaskID:  task.ID(),
		TypeTag: task.TypeTag(),
		Err:     err.Error(),
		At:      time.Now(),
	})
	if f.cap > 0 && len(f.records) > f.cap {
		f.records = f.records[len(f.records)-f.cap:]
	}
	metrics.IncrementFailureLogAdded()
	metrics.SetFailureLogSize(float64(len(f.records)))
}

// Snapshot returns a copy of the currently-retained records, oldest
// first.
func (f *FailureLog) Snapshot() []FailureRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FailureRecord, len(f.records))
	copy(out, f.records)
	return out
}

// Len reports how many records the log currently retains.
func (f *FailureLog) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// Clear empties the log.
func (f *FailureLog) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = nil
	metrics.SetFailureLogSize(0)
}

// Handler adapts Add to the coresched.WithExceptionHandler /
// Scheduler.SetExceptionHandler signature, so a FailureLog can be
// wired in as a scheduler's default error sink.
func (f *FailureLog) Handler() func(*coretask.Task, error) {
	return f.Add
}
