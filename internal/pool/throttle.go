package pool

import (
	"fmt"

	"github.com/maumercado/corosched/internal/coresched"
	"github.com/maumercado/corosched/internal/metrics"
)

// Suspendable is an upstream producer a Throttler can pause and resume,
// never a task (spec.md §4.7 is explicit: "these refer to an upstream
// producer, not a task").
type Suspendable interface {
	Suspend()
	Resume()
}

// Throttler is the policy object spec.md §4.7 describes: it decides, on
// each pool Start/Restore and on each instance termination, whether to
// flip its bound Suspendable.
type Throttler interface {
	// OnStart is called right after an instance is admitted.
	OnStart()
	// OnTerminate is called once an instance has been released back to
	// the free list, via a cycle-end callback (spec.md §4.7: "via a hook
	// registered on the EventLoop cycle callback").
	OnTerminate()
}

// watermarkThrottler is the shared suspend/resume bookkeeping behind
// both Throttler flavors below: suspend once measure() reaches
// suspendAt, resume once it falls back to resumeAt.
type watermarkThrottler struct {
	poolName    string
	suspendable Suspendable
	suspendAt   int
	resumeAt    int
	measure     func() int
	suspended   bool
}

func newWatermarkThrottler(poolName string, suspendable Suspendable, suspendAt, resumeAt int, measure func() int) (*watermarkThrottler, error) {
	if suspendAt <= resumeAt {
		return nil, fmt.Errorf("pool: throttle watermarks invalid: suspend_at (%d) must exceed resume_at (%d)", suspendAt, resumeAt)
	}
	return &watermarkThrottler{
		poolName:    poolName,
		suspendable: suspendable,
		suspendAt:   suspendAt,
		resumeAt:    resumeAt,
		measure:     measure,
	}, nil
}

func (t *watermarkThrottler) OnStart() {
	if !t.suspended && t.measure() >= t.suspendAt {
		t.suspended = true
		metrics.SetThrottleSuspended(t.poolName, true)
		t.suspendable.Suspend()
	}
}

func (t *watermarkThrottler) OnTerminate() {
	if t.suspended && t.measure() <= t.resumeAt {
		t.suspended = false
		metrics.SetThrottleSuspended(t.poolName, false)
		t.suspendable.Resume()
	}
}

// QueueUsageThrottler is the default Throttler flavor from spec.md §4.7:
// its measure is the scheduler's global queued-task count plus the
// pool's own local busy count.
type QueueUsageThrottler struct{ *watermarkThrottler }

// NewQueueUsageThrottler builds the default Throttler. localBusy is
// typically the owning ThrottledTaskPool.Busy.
func NewQueueUsageThrottler(poolName string, scheduler *coresched.Scheduler, localBusy func() int, suspendable Suspendable, suspendAt, resumeAt int) (*QueueUsageThrottler, error) {
	measure := func() int {
		return scheduler.Stats().QueuedBusy + localBusy()
	}
	wt, err := newWatermarkThrottler(poolName, suspendable, suspendAt, resumeAt, measure)
	if err != nil {
		return nil, err
	}
	return &QueueUsageThrottler{wt}, nil
}

// SpecializedPoolThrottler is the second Throttler flavor from spec.md
// §4.7: its measure is a single named specialized ContextPool's busy
// count.
type SpecializedPoolThrottler struct{ *watermarkThrottler }

// NewSpecializedPoolThrottler builds a Throttler keyed off the
// specialized pool registered under tag. The pool is looked up lazily on
// every measurement, since it's configured once at Scheduler
// construction and never changes identity afterward.
func NewSpecializedPoolThrottler(poolName string, scheduler *coresched.Scheduler, tag string, suspendable Suspendable, suspendAt, resumeAt int) (*SpecializedPoolThrottler, error) {
	measure := func() int {
		sp := scheduler.SpecializedPool(tag)
		if sp == nil {
			return 0
		}
		return sp.Busy()
	}
	wt, err := newWatermarkThrottler(poolName, suspendable, suspendAt, resumeAt, measure)
	if err != nil {
		return nil, err
	}
	return &SpecializedPoolThrottler{wt}, nil
}

// ThrottledTaskPool is the Go realization of C7: a TaskPool that drives
// an external Suspendable via a Throttler as it crosses watermarks.
type ThrottledTaskPool[A any, T PoolItem[A]] struct {
	*TaskPool[A, T]
	scheduler *coresched.Scheduler
	throttler Throttler
}

// NewThrottled wraps a fresh TaskPool with the default QueueUsageThrottler.
// Use WithThrottler afterward to install SpecializedPoolThrottler
// instead.
func NewThrottled[A any, T PoolItem[A]](name string, scheduler *coresched.Scheduler, limit int, factory func() T, suspendable Suspendable, suspendAt, resumeAt int) (*ThrottledTaskPool[A, T], error) {
	tp := New[A, T](name, scheduler, limit, factory)
	p := &ThrottledTaskPool[A, T]{TaskPool: tp, scheduler: scheduler}

	throttler, err := NewQueueUsageThrottler(name, scheduler, tp.Busy, suspendable, suspendAt, resumeAt)
	if err != nil {
		return nil, err
	}
	p.throttler = throttler
	p.wireAfterRelease()
	return p, nil
}

// WithThrottler replaces the installed Throttler, e.g. with a
// SpecializedPoolThrottler built via NewSpecializedPoolThrottler.
func (p *ThrottledTaskPool[A, T]) WithThrottler(t Throttler) *ThrottledTaskPool[A, T] {
	p.throttler = t
	return p
}

func (p *ThrottledTaskPool[A, T]) wireAfterRelease() {
	p.TaskPool.afterRelease = func(T) {
		p.scheduler.OnCycleEnd(p.throttler.OnTerminate)
	}
}

// Start overrides TaskPool.Start to additionally consult the throttler
// once an instance is successfully admitted.
func (p *ThrottledTaskPool[A, T]) Start(args A) bool {
	ok := p.TaskPool.Start(args)
	if ok {
		p.throttler.OnStart()
	}
	return ok
}

// Restore overrides TaskPool.Restore the same way Start does.
func (p *ThrottledTaskPool[A, T]) Restore(data []byte) bool {
	ok := p.TaskPool.Restore(data)
	if ok {
		p.throttler.OnStart()
	}
	return ok
}
