package corectx

import (
	"container/list"
	"errors"

	"github.com/maumercado/corosched/internal/metrics"
)

// ErrQueueFull is returned when the admission queue is at queueLimit and
// no overflow policy (or an overflow policy that chooses Reraise)
// applies.
var ErrQueueFull = errors.New("corectx: admission queue is full")

// DispatchResult reports what RunOrEnqueue actually did with a task.
type DispatchResult int

const (
	RanImmediately DispatchResult = iota
	Enqueued
	Rejected
)

// OverflowDecision is returned by an OverflowFunc when the admission
// queue is already at capacity.
type OverflowDecision int

const (
	// Drop silently discards the task; RunOrEnqueue returns (Rejected, nil).
	Drop OverflowDecision = iota
	// EnqueueAnyway appends the task past queueLimit.
	EnqueueAnyway
	// Reraise causes RunOrEnqueue to return (Rejected, ErrQueueFull).
	Reraise
)

// OverflowFunc decides what happens to a task that arrives when both the
// pool and its admission queue are full.
type OverflowFunc func(task Runnable) OverflowDecision

// Pool is a fixed-capacity set of WorkerContexts fronted by a bounded
// FIFO admission queue. It is the Go realization of C2 from the design:
// every call that would exceed worker_limit is queued instead of
// spawning unbounded goroutines, and the queue itself is bounded by
// queue_limit.
//
// Pool is not safe for concurrent use by multiple goroutines; callers
// coordinate access through the single-owner scheduler goroutine, same
// as WorkerContext.
type Pool struct {
	name        string
	workerLimit int
	queueLimit  int
	stackSize   int
	overflow    OverflowFunc

	contexts []*WorkerContext
	free     []*WorkerContext
	busy     map[*WorkerContext]struct{}
	pending  *list.List
}

// New builds a Pool. overflow may be nil, in which case a full queue
// always rejects with ErrQueueFull.
func New(name string, workerLimit, queueLimit, stackSize int, overflow OverflowFunc) *Pool {
	return &Pool{
		name:        name,
		workerLimit: workerLimit,
		queueLimit:  queueLimit,
		stackSize:   stackSize,
		overflow:    overflow,
		busy:        make(map[*WorkerContext]struct{}, workerLimit),
		pending:     list.New(),
	}
}

func (p *Pool) acquireFree() *WorkerContext {
	if n := len(p.free); n > 0 {
		ctx := p.free[n-1]
		p.free = p.free[:n-1]
		return ctx
	}
	if len(p.contexts) < p.workerLimit {
		ctx := New(len(p.contexts), p.stackSize)
		p.contexts = append(p.contexts, ctx)
		return ctx
	}
	return nil
}

func (p *Pool) release(ctx *WorkerContext) {
	delete(p.busy, ctx)
	p.free = append(p.free, ctx)
}

func (p *Pool) bindAndRun(ctx *WorkerContext, task Runnable) (terminated bool) {
	_ = ctx.Reset(task)
	p.busy[ctx] = struct{}{}
	terminated = ctx.Resume()
	if terminated {
		p.release(ctx)
	}
	p.reportGauges()
	return terminated
}

// RunOrEnqueue binds task to a free context and runs it immediately if
// one is available; otherwise it enqueues the task (subject to
// queueLimit and the overflow policy).
func (p *Pool) RunOrEnqueue(task Runnable) (DispatchResult, error) {
	if ctx := p.acquireFree(); ctx != nil {
		p.bindAndRun(ctx, task)
		return RanImmediately, nil
	}
	return p.Enqueue(task)
}

// Enqueue unconditionally queues task without attempting immediate
// dispatch, subject to queueLimit and the overflow policy.
func (p *Pool) Enqueue(task Runnable) (DispatchResult, error) {
	if p.pending.Len() < p.queueLimit {
		p.pending.PushBack(task)
		p.reportGauges()
		return Enqueued, nil
	}

	if p.overflow == nil {
		metrics.RecordQueueRejected()
		return Rejected, ErrQueueFull
	}

	switch p.overflow(task) {
	case EnqueueAnyway:
		p.pending.PushBack(task)
		p.reportGauges()
		return Enqueued, nil
	case Reraise:
		metrics.RecordQueueRejected()
		return Rejected, ErrQueueFull
	default: // Drop
		metrics.RecordQueueRejected()
		return Rejected, nil
	}
}

// DrainQueued binds and runs up to max queued tasks onto newly-free
// contexts. It returns how many were actually dispatched and whether
// the queue still has entries left afterward. Scheduler cycles call
// this with max equal to FreeCount (every context that could be bound
// right now), so a burst of queued tasks can never flood more than one worker_limit's
// worth of dispatches per cycle.
func (p *Pool) DrainQueued(max int) (dispatched int, remaining bool) {
	for dispatched < max && p.pending.Len() > 0 {
		ctx := p.acquireFree()
		if ctx == nil {
			break
		}
		front := p.pending.Front()
		p.pending.Remove(front)
		task := front.Value.(Runnable)
		p.bindAndRun(ctx, task)
		dispatched++
	}
	return dispatched, p.pending.Len() > 0
}

// ResumeBusy re-enters a context that is already bound and suspended,
// woken by a delayed resume or a termination hook, as opposed to first
// dispatch via RunOrEnqueue/DrainQueued. If the task terminates, the
// context is returned to the free list so a later dispatch can reuse it.
func (p *Pool) ResumeBusy(ctx *WorkerContext) (terminated bool) {
	terminated = ctx.Resume()
	if terminated {
		p.release(ctx)
	}
	p.reportGauges()
	return terminated
}

// IterBusy visits every currently-busy context. Used by shutdown paths
// that need to kill every in-flight task.
func (p *Pool) IterBusy(fn func(ctx *WorkerContext)) {
	for ctx := range p.busy {
		fn(ctx)
	}
}

// Busy returns the number of contexts currently bound to a running or
// suspended task.
func (p *Pool) Busy() int { return len(p.busy) }

// Limit returns worker_limit.
func (p *Pool) Limit() int { return p.workerLimit }

// QueueLimit returns queue_limit.
func (p *Pool) QueueLimit() int { return p.queueLimit }

// Queued returns the current admission-queue depth.
func (p *Pool) Queued() int { return p.pending.Len() }

// TotalContexts returns how many contexts have been allocated so far
// (<= worker_limit).
func (p *Pool) TotalContexts() int { return len(p.contexts) }

// FreeCount returns how many contexts could be bound right now, whether
// already allocated and idle or still within worker_limit headroom.
// Scheduler cycles pass this as DrainQueued's max so a burst of queued
// tasks can never dispatch more than one worker_limit's worth per cycle.
func (p *Pool) FreeCount() int { return p.workerLimit - len(p.busy) }

// ClearQueue drops every task waiting in the admission queue without
// running it. Used by Scheduler.Shutdown per spec.md §4.5.
func (p *Pool) ClearQueue() {
	p.pending.Init()
	p.reportGauges()
}

// Close tears down every allocated context's backing goroutine. Only
// safe once the pool is fully idle (no busy contexts, empty queue).
func (p *Pool) Close() {
	for _, ctx := range p.contexts {
		ctx.Close()
	}
}

func (p *Pool) reportGauges() {
	metrics.SetBusyContexts(float64(len(p.busy)))
	metrics.SetTotalContexts(float64(len(p.contexts)))
	metrics.SetQueueDepth(float64(p.pending.Len()))
}
