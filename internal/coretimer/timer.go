// Package coretimer implements the Timer primitive (C4): a single
// deadline multiplexer backed by a container/heap min-heap, lazily
// registered with the reactor's EventLoop.
package coretimer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/metrics"
	"github.com/maumercado/corosched/internal/reactor"
)

// Scheduler is the narrow slice of the scheduler AwaitOrTimeout needs:
// forcing other_task onto the admission queue rather than risking an
// immediate same-cycle dispatch.
type Scheduler interface {
	Queue(task *coretask.Task)
}

// Timer multiplexes many outstanding deadlines over one clock source.
type Timer struct {
	mu     sync.Mutex
	heap   entryHeap
	seq    uint64
	source clockSource
}

// New builds a Timer and registers its clock source with loop.
func New(loop reactor.EventLoop) (*Timer, error) {
	src, err := newClockSource(loop)
	if err != nil {
		return nil, err
	}
	return &Timer{source: src}, nil
}

// Wait suspends task until d elapses. Must be called from inside
// task's own body. Installs a termination hook so task death cancels
// the pending wake-up; the hook is removed again once Wait returns.
func (tm *Timer) Wait(task *coretask.Task, d time.Duration) {
	tm.mu.Lock()
	tm.seq++
	e := &entry{deadline: time.Now().Add(d), task: task, seq: tm.seq, index: -1}
	heap.Push(&tm.heap, e)
	tm.rearmLocked()
	tm.mu.Unlock()

	handle := task.OnTermination(func() { tm.cancel(e) })
	task.Suspend()
	task.RemoveTermination(handle)
}

// AwaitOrTimeout suspends self until either other finishes or d
// elapses, whichever comes first. Returns true if the timeout fired
// first. Must be called from inside self's own body.
func (tm *Timer) AwaitOrTimeout(self, other *coretask.Task, d time.Duration, sched Scheduler) bool {
	tm.mu.Lock()
	tm.seq++
	e := &entry{deadline: time.Now().Add(d), task: self, seq: tm.seq, index: -1}
	heap.Push(&tm.heap, e)
	tm.rearmLocked()
	tm.mu.Unlock()

	selfHandle := self.OnTermination(func() { tm.cancel(e) })
	otherHandle := other.OnTermination(func() {
		tm.cancel(e)
		self.Resume()
	})

	sched.Queue(other)
	self.Suspend()

	timedOut := !other.Finished()
	self.RemoveTermination(selfHandle)
	if timedOut {
		other.RemoveTermination(otherHandle)
	}
	return timedOut
}

func (tm *Timer) cancel(e *entry) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if e.canceled {
		return
	}
	e.canceled = true
	if e.index >= 0 {
		heap.Remove(&tm.heap, e.index)
	}
	tm.rearmLocked()
}

// onFire pops every entry whose deadline has elapsed and resumes its
// task. Runs on the scheduler's own goroutine (see clockSource doc).
func (tm *Timer) onFire() {
	tm.mu.Lock()
	now := time.Now()
	var due []*entry
	for tm.heap.Len() > 0 && !tm.heap[0].deadline.After(now) {
		due = append(due, heap.Pop(&tm.heap).(*entry))
	}
	tm.rearmLocked()
	tm.mu.Unlock()

	for _, e := range due {
		if e.canceled {
			continue
		}
		e.canceled = true
		metrics.RecordTimerFired()
		e.task.Resume()
	}
}

func (tm *Timer) rearmLocked() {
	metrics.SetTimerArmed(float64(tm.heap.Len()))
	if tm.heap.Len() == 0 {
		tm.source.Stop()
		return
	}
	tm.source.Arm(tm.heap[0].deadline, tm.onFire)
}

// Pending returns the number of outstanding (non-canceled) deadlines.
// Exposed for tests and metrics.
func (tm *Timer) Pending() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.heap.Len()
}
