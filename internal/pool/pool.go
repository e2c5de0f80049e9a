// Package pool implements TaskPool (C6) and ThrottledTaskPool (C7): a
// typed container over reusable instances of one task "subclass",
// keeping each instance on exactly one of {free, busy} and routing
// recycling through a termination hook rather than the task's own
// RecycleHook. Grounded on spec.md §4.6-4.7; generics stand in for the
// source's copyArguments/deserialize reflection per SPEC_FULL.md §9.
package pool

import (
	"errors"

	"github.com/maumercado/corosched/internal/coresched"
	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/logger"
	"github.com/maumercado/corosched/internal/metrics"
)

// ErrPoolFull is returned by neither Start nor Restore, both report
// capacity exhaustion by returning false, matching spec.md §4.6, but is
// exposed for callers that want a typed reason in logs/tests.
var ErrPoolFull = errors.New("pool: at capacity")

// ErrCallerNotATask is returned by AwaitRunningTasks when called with a
// nil current task.
var ErrCallerNotATask = errors.New("pool: awaitRunningTasks caller must be a task")

// ErrCallerOwnedByPool is returned by AwaitRunningTasks when current is
// itself one of the pool's own busy instances (spec.md §4.6: "must not
// itself be one of the pool's tasks").
var ErrCallerOwnedByPool = errors.New("pool: awaitRunningTasks caller belongs to this pool")

// PoolItem is the capability a pooled instance must expose: access to
// its backing Task, and a way to load fresh scheduling arguments into it
// before it's (re)scheduled.
type PoolItem[A any] interface {
	Instance() *coretask.Task
	CopyArguments(A)
}

// Restorable is the optional alternate-initialization path (spec.md
// §4.6's "optionally deserialize(bytes)"): an instance that can load its
// state from a serialized buffer instead of a fresh argument value.
type Restorable[A any] interface {
	PoolItem[A]
	Deserialize([]byte) error
}

// TaskPool is the Go realization of C6. It is not safe for concurrent
// use by multiple goroutines, matching every other scheduler-adjacent
// type in this module, Start/Restore/AwaitRunningTasks are meant to be
// called from task bodies running on the scheduler's own goroutine.
type TaskPool[A any, T PoolItem[A]] struct {
	name      string
	scheduler *coresched.Scheduler
	limit     int
	factory   func() T

	free []T
	busy map[string]T

	afterRelease func(item T)
}

// New builds a TaskPool bound to scheduler, capped at limit concurrently
// busy instances, constructing fresh instances via factory when the free
// list is empty.
func New[A any, T PoolItem[A]](name string, scheduler *coresched.Scheduler, limit int, factory func() T) *TaskPool[A, T] {
	return &TaskPool[A, T]{
		name:      name,
		scheduler: scheduler,
		limit:     limit,
		factory:   factory,
		busy:      make(map[string]T, limit),
	}
}

// Busy returns the number of instances currently scheduled (not yet
// terminated).
func (p *TaskPool[A, T]) Busy() int { return len(p.busy) }

// Limit returns the pool's capacity.
func (p *TaskPool[A, T]) Limit() int { return p.limit }

func (p *TaskPool[A, T]) acquire() T {
	if n := len(p.free); n > 0 {
		item := p.free[n-1]
		p.free = p.free[:n-1]
		return item
	}
	return p.factory()
}

func (p *TaskPool[A, T]) admit(item T) {
	task := item.Instance()
	p.busy[task.ID()] = item
	task.OnTermination(func() { p.release(item) })
	metrics.SetPoolBusyInstances(p.name, float64(len(p.busy)))
}

func (p *TaskPool[A, T]) release(item T) {
	task := item.Instance()
	delete(p.busy, task.ID())
	p.free = append(p.free, item)
	metrics.SetPoolBusyInstances(p.name, float64(len(p.busy)))
	if p.afterRelease != nil {
		p.afterRelease(item)
	}
}

// Start implements spec.md §4.6 start(args): if the pool is at limit,
// returns false. Otherwise it acquires a free instance (constructing one
// if needed), copies args in, registers the internal release hook, and
// schedules it.
func (p *TaskPool[A, T]) Start(args A) bool {
	if len(p.busy) >= p.limit {
		metrics.RecordPoolRejected(p.name)
		return false
	}
	item := p.acquire()
	item.CopyArguments(args)
	p.admit(item)
	_ = p.scheduler.Schedule(item.Instance())
	return true
}

// Restore implements spec.md §4.6 restore(args): as Start, but
// initializes the acquired instance via Restorable.Deserialize instead
// of CopyArguments. Returns false if the pool is at capacity, if T
// doesn't implement Restorable[A], or if Deserialize fails.
func (p *TaskPool[A, T]) Restore(data []byte) bool {
	if len(p.busy) >= p.limit {
		metrics.RecordPoolRejected(p.name)
		return false
	}
	item := p.acquire()
	restorable, ok := any(item).(Restorable[A])
	if !ok {
		logger.WithComponent("pool").Warn().Str("pool", p.name).Msg("Restore called but item type does not implement Restorable")
		p.free = append(p.free, item)
		return false
	}
	if err := restorable.Deserialize(data); err != nil {
		logger.WithComponent("pool").Error().Err(err).Str("pool", p.name).Msg("Restore: deserialize failed")
		p.free = append(p.free, item)
		return false
	}
	p.admit(item)
	_ = p.scheduler.Schedule(item.Instance())
	return true
}

// AwaitRunningTasks implements spec.md §4.6 awaitRunningTasks(): current
// must be a task not owned by this pool. It registers a termination hook
// on every currently-busy instance; once every one of them has finished,
// current is resumed via Scheduler.DelayedResume, an extra scheduler
// cycle beyond the last instance's own termination, per SPEC_FULL.md
// §9's resolution of the "task not yet recycled" Open Question, then
// suspends current.
func (p *TaskPool[A, T]) AwaitRunningTasks(current *coretask.Task) error {
	if current == nil {
		return ErrCallerNotATask
	}
	if _, owned := p.busy[current.ID()]; owned {
		return ErrCallerOwnedByPool
	}

	remaining := len(p.busy)
	if remaining == 0 {
		return nil
	}
	for _, item := range p.busy {
		item.Instance().OnTermination(func() {
			remaining--
			if remaining == 0 {
				p.scheduler.DelayedResume(current)
			}
		})
	}
	current.Suspend()
	return nil
}
