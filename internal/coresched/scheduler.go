// Package coresched implements the Scheduler (C5): the top-level
// orchestrator that owns the context pool, drives the reactor, and
// exposes schedule/queue/await/processEvents/shutdown to task bodies
// and outside producers alike.
package coresched

import (
	"sync"
	"time"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/coretimer"
	"github.com/maumercado/corosched/internal/corectx"
	"github.com/maumercado/corosched/internal/logger"
	"github.com/maumercado/corosched/internal/metrics"
	"github.com/maumercado/corosched/internal/reactor"
)

// Scheduler is the Go realization of C5. It is not safe for concurrent
// use except through External, which is the one call meant to be
// reached from outside the scheduler's own goroutine, see spec.md §5
// and SPEC_FULL.md §5 (NEW).
type Scheduler struct {
	loop        reactor.EventLoop
	ctxPool     *corectx.Pool
	specialized map[string]*corectx.Pool
	overflow    corectx.OverflowFunc

	state          State
	pendingResumes int
	refillArmed    bool

	exceptionHandler func(*coretask.Task, error)

	timerOnce sync.Once
	timer     *coretimer.Timer
	timerErr  error

	externalMu    sync.Mutex
	externalQueue []*coretask.Task
}

// Option customizes a Scheduler at construction time.
type Option func(*Scheduler)

// WithOverflow installs the ContextPool overflow policy consulted when
// the admission queue is already at queue_limit.
func WithOverflow(fn corectx.OverflowFunc) Option {
	return func(s *Scheduler) { s.overflow = fn }
}

// WithExceptionHandler installs the task-body error handler (spec.md
// §7 "Task-body errors"). Equivalent to calling SetExceptionHandler
// after construction.
func WithExceptionHandler(fn func(*coretask.Task, error)) Option {
	return func(s *Scheduler) { s.exceptionHandler = fn }
}

// New builds a Scheduler bound to loop, with its main ContextPool sized
// per cfg and one specialized corectx.Pool per cfg.SpecializedPools
// entry (routed by Task.TypeTag, spec.md §3 notes specialized pools
// are out of scope for the main core's contract, so routing here is
// intentionally minimal: one worker, a queue matching cfg.QueueLimit).
func New(cfg config.SchedulerConfig, loop reactor.EventLoop, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		loop:        loop,
		specialized: make(map[string]*corectx.Pool, len(cfg.SpecializedPools)),
		state:       StateInitial,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.ctxPool = corectx.New("main", cfg.WorkerLimit, cfg.QueueLimit, cfg.WorkerStackSize, s.overflow)
	for _, spec := range cfg.SpecializedPools {
		s.specialized[spec.TaskTypeTag] = corectx.New(spec.TaskTypeTag, 1, cfg.QueueLimit, spec.StackSize, s.overflow)
	}

	return s, nil
}

// SetExceptionHandler installs (or replaces) the task-body error
// handler. Safe to call at any time; it's consulted afresh on every
// task error, regardless of when the error-producing run was
// dispatched.
func (s *Scheduler) SetExceptionHandler(fn func(*coretask.Task, error)) {
	s.exceptionHandler = fn
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() State { return s.state }

// ContextPool exposes the main pool, e.g. for TaskPool/ThrottledTaskPool
// throttlers that read its Busy/Queued/Limit stats directly.
func (s *Scheduler) ContextPool() *corectx.Pool { return s.ctxPool }

// SpecializedPool returns the named specialized pool, or nil if none
// was configured under that tag.
func (s *Scheduler) SpecializedPool(tag string) *corectx.Pool { return s.specialized[tag] }

func (s *Scheduler) onTaskError(task *coretask.Task, err error) {
	if s.exceptionHandler != nil {
		s.exceptionHandler(task, err)
	}
}

func (s *Scheduler) poolFor(task *coretask.Task) *corectx.Pool {
	if p, ok := s.specialized[task.TypeTag()]; ok {
		return p
	}
	return s.ctxPool
}

// Schedule hands task to the scheduler from outside any task body (a
// producer). Equivalent to ScheduleCaller(nil, task).
func (s *Scheduler) Schedule(task *coretask.Task) error {
	return s.ScheduleCaller(nil, task)
}

// ScheduleCaller is Schedule as called from inside caller's own body:
// if the scheduler is shutting down, caller is killed instead of (or
// in addition to, when caller is nil) returning ErrShuttingDown.
func (s *Scheduler) ScheduleCaller(caller, task *coretask.Task) error {
	if s.state == StateShuttingDown {
		if caller != nil {
			caller.Kill()
		}
		return ErrShuttingDown
	}

	p := s.poolFor(task)
	task.BindResumer(p)
	task.SetExceptionHandler(s.onTaskError)
	task.MarkScheduled()

	result, err := p.RunOrEnqueue(task)
	if result == corectx.Rejected {
		task.ClearScheduled()
	}
	if err != nil {
		return err
	}
	if result == corectx.Enqueued {
		s.armRefill()
	}
	return nil
}

// Queue unconditionally enqueues task, it never dispatches
// immediately, even if a context is free, forcing next-cycle
// semantics. Implements the coretimer.Scheduler interface AwaitOrTimeout
// relies on to force other_task onto the admission queue.
func (s *Scheduler) Queue(task *coretask.Task) {
	if s.state == StateShuttingDown {
		return
	}
	task.BindResumer(s.ctxPool)
	task.SetExceptionHandler(s.onTaskError)
	task.MarkScheduled()

	result, err := s.ctxPool.Enqueue(task)
	if result == corectx.Rejected {
		task.ClearScheduled()
	}
	if err != nil {
		logger.WithComponent("coresched").Warn().Err(err).Str("task", task.ID()).Msg("Queue: admission queue rejected task")
		return
	}
	if result == corectx.Enqueued {
		s.armRefill()
	}
}

// ProcessEvents is the shorthand from spec.md §4.5: delayedResume(current);
// current.suspend(). If shutting down, current is killed instead.
func (s *Scheduler) ProcessEvents(current *coretask.Task) {
	if s.state == StateShuttingDown {
		current.Kill()
		return
	}
	s.DelayedResume(current)
	current.Suspend()
}

// DelayedResume registers a cycle-end callback that resumes task,
// routing any surfaced body error to the exception handler. This is
// the only sanctioned way to resume a task from inside another task's
// termination hook, a direct Resume there would re-enter the context
// transfer reentrantly, which spec.md §9 bans.
func (s *Scheduler) DelayedResume(task *coretask.Task) {
	s.pendingResumes++
	s.reportPendingResumes()
	s.loop.OnCycleEnd(func() {
		s.pendingResumes--
		s.reportPendingResumes()
		task.Resume()
	})
}

func (s *Scheduler) reportPendingResumes() {
	metrics.SetPendingResumes(float64(s.pendingResumes))
}

// Await suspends current until task finishes, scheduling task first if
// it hasn't already been handed to a pool. finish, if given, is
// registered as a second termination hook (fired before the resume
// hook, since hooks run LIFO and the resume hook is registered first).
func (s *Scheduler) Await(current, task *coretask.Task, finish ...func()) error {
	if current == nil {
		return ErrNoCurrentTask
	}
	if current == task {
		return ErrAwaitSelf
	}

	resumeHandle := task.OnTermination(func() {
		if current.Suspended() {
			s.DelayedResume(current)
		}
	})
	hasFinish := len(finish) > 0 && finish[0] != nil
	var finishHandle int
	if hasFinish {
		finishHandle = task.OnTermination(finish[0])
	}

	if !task.Scheduled() && !task.Finished() {
		if err := s.ScheduleCaller(current, task); err != nil {
			task.RemoveTermination(resumeHandle)
			if hasFinish {
				task.RemoveTermination(finishHandle)
			}
			return err
		}
	}

	if !task.Finished() {
		current.Suspend()
	}
	return nil
}

// AwaitResult awaits task then copies its stashed result to the
// caller. Intended for value-type results set via Task.SetResult.
func (s *Scheduler) AwaitResult(current, task *coretask.Task) (any, error) {
	if err := s.Await(current, task); err != nil {
		return nil, err
	}
	return task.Result(), nil
}

// AwaitOrTimeout delegates to the lazily-initialized Timer: current
// suspends until either task finishes or d elapses, whichever comes
// first. Returns true if the timeout fired first.
func (s *Scheduler) AwaitOrTimeout(current, task *coretask.Task, d time.Duration) (bool, error) {
	if current == nil {
		return false, ErrNoCurrentTask
	}
	tm, err := s.getTimer()
	if err != nil {
		return false, err
	}
	return tm.AwaitOrTimeout(current, task, d, s), nil
}

// Wait suspends current for d, via the lazily-initialized Timer.
func (s *Scheduler) Wait(current *coretask.Task, d time.Duration) error {
	tm, err := s.getTimer()
	if err != nil {
		return err
	}
	tm.Wait(current, d)
	return nil
}

func (s *Scheduler) getTimer() (*coretimer.Timer, error) {
	s.timerOnce.Do(func() {
		s.timer, s.timerErr = coretimer.New(s.loop)
	})
	return s.timer, s.timerErr
}

// OnCycleEnd exposes the reactor's one-shot ordered callback queue to
// call sites that need to react once the current cycle settles, without
// holding a reference to the raw EventLoop, e.g. ThrottledTaskPool's
// resume check, which spec.md §4.7 requires run "via a hook registered
// on the EventLoop cycle callback" rather than synchronously inside the
// termination hook that freed the instance.
func (s *Scheduler) OnCycleEnd(cb func()) {
	s.loop.OnCycleEnd(cb)
}

// External is the thread-safe producer entry point (SPEC_FULL.md §5,
// NEW): a foreign goroutine that isn't the scheduler's own may call
// this to get task scheduled on the scheduler's own goroutine at the
// next cycle-end, instead of racing scheduler-internal state directly.
func (s *Scheduler) External(task *coretask.Task) {
	s.externalMu.Lock()
	s.externalQueue = append(s.externalQueue, task)
	s.externalMu.Unlock()
	s.loop.OnCycleEnd(s.drainExternal)
}

func (s *Scheduler) drainExternal() {
	s.externalMu.Lock()
	pending := s.externalQueue
	s.externalQueue = nil
	s.externalMu.Unlock()

	for _, task := range pending {
		_ = s.ScheduleCaller(nil, task)
	}
}

func (s *Scheduler) armRefill() {
	if s.refillArmed {
		return
	}
	s.refillArmed = true
	s.loop.OnCycleEnd(s.refillCycle)
}

// refillCycle is the per-cycle refill callback from spec.md §4.5: it
// drains at most as many queued tasks as there are free contexts, so a
// burst of cooperatively-yielding tasks re-queuing themselves can never
// flood more than one worker_limit's worth of dispatches in a single
// cycle. It re-arms itself while the queue still has entries left.
func (s *Scheduler) refillCycle() {
	s.refillArmed = false

	drainPool := func(p *corectx.Pool) bool {
		free := p.FreeCount()
		if free <= 0 {
			return p.Queued() > 0
		}
		_, remaining := p.DrainQueued(free)
		return remaining
	}

	needsRearm := drainPool(s.ctxPool)
	for _, p := range s.specialized {
		if drainPool(p) {
			needsRearm = true
		}
	}
	if needsRearm {
		s.armRefill()
	}
}

// EventLoop is the top-level run call (spec.md §4.5): drives loop.Run
// until it returns (either because shutdown was requested or because
// the loop is genuinely quiescent); only on the shutdown path does it
// then kill every in-flight task and assert busy == 0 && queued == 0.
func (s *Scheduler) EventLoop() error {
	if s.state == StateShuttingDown {
		return ErrShuttingDown
	}
	s.state = StateRunning

	if err := s.loop.Run(); err != nil {
		return err
	}

	if s.state != StateShuttingDown {
		// loop.Run returned because no fds/cycle-end callbacks remain,
		// not because Shutdown was called: the scheduler is quiescent
		// and reusable via a fresh EventLoop() call.
		s.state = StateInitial
		return nil
	}

	var busyContexts []*corectx.WorkerContext
	s.ctxPool.IterBusy(func(ctx *corectx.WorkerContext) {
		busyContexts = append(busyContexts, ctx)
	})
	for _, p := range s.specialized {
		p.IterBusy(func(ctx *corectx.WorkerContext) {
			busyContexts = append(busyContexts, ctx)
		})
	}
	for _, ctx := range busyContexts {
		if task, ok := ctx.Active().(*coretask.Task); ok {
			task.Kill()
		}
	}

	queued := s.ctxPool.Queued()
	busy := s.ctxPool.Busy()
	for _, p := range s.specialized {
		queued += p.Queued()
		busy += p.Busy()
	}
	if busy != 0 || queued != 0 {
		return &SanityError{Busy: busy, Queued: queued}
	}
	return nil
}

// Shutdown is idempotent: it moves the scheduler to ShuttingDown,
// drops every queued task, signals the reactor to stop, and kills
// caller if it's itself a task. Once ShuttingDown, every later
// operation kills its caller (or returns ErrShuttingDown for
// non-task producers) per spec.md §7.
func (s *Scheduler) Shutdown(caller *coretask.Task) {
	alreadyShuttingDown := s.state == StateShuttingDown
	if !alreadyShuttingDown {
		s.state = StateShuttingDown
		s.ctxPool.ClearQueue()
		for _, p := range s.specialized {
			p.ClearQueue()
		}
		s.loop.Shutdown()
	}
	if caller != nil {
		caller.Kill()
	}
}

// Stats returns the snapshot aggregate from spec.md §3, summed across
// the main pool and every specialized pool.
func (s *Scheduler) Stats() Stats {
	suspended := 0
	countSuspended := func(ctx *corectx.WorkerContext) {
		if ctx.Phase() == corectx.PhaseSuspended {
			suspended++
		}
	}
	s.ctxPool.IterBusy(countSuspended)

	queued, total, busy, limit := s.ctxPool.Queued(), s.ctxPool.QueueLimit(), s.ctxPool.Busy(), s.ctxPool.Limit()
	for _, p := range s.specialized {
		p.IterBusy(countSuspended)
		queued += p.Queued()
		total += p.QueueLimit()
		busy += p.Busy()
		limit += p.Limit()
	}

	return Stats{
		QueuedBusy:     queued,
		QueuedTotal:    total,
		SuspendedCount: suspended,
		BusyWorkers:    busy,
		TotalWorkers:   limit,
	}
}
