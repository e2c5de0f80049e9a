// Package coretask implements the Task primitive (C3): the public
// suspend/resume/kill/hook contract every scheduled unit of work
// exposes, plus the entry-point wrapper that threads body execution,
// kill signals, termination hooks, and recycling together.
package coretask

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/maumercado/corosched/internal/corectx"
	"github.com/maumercado/corosched/internal/logger"
	"github.com/maumercado/corosched/internal/metrics"
)

// Flags is a bitset of Task lifecycle markers.
type Flags uint32

const (
	FlagToKill Flags = 1 << iota
	FlagFinished
)

// Body is a task's run() override: the work it performs, suspending via
// t.Suspend() at cooperative yield points. A non-nil return is surfaced
// to the scheduler's exception handler.
type Body func(t *Task) error

// RecycleHook is a task's optional recycle() override: resets
// user-owned per-task state so the instance can be reused.
type RecycleHook func(t *Task)

// ExceptionHandler receives a task-body error once recycle has run.
// Installed by the scheduler at schedule/queue time so routing works
// regardless of which resume path (first dispatch, delayed resume,
// drain) ultimately runs the body.
type ExceptionHandler func(t *Task, err error)

// Hook is a termination callback, fired in LIFO order of registration.
type Hook func()

type hookEntry struct {
	id int
	fn Hook
}

// Task is the unit the scheduler multiplexes onto WorkerContexts. It
// implements corectx.Runnable.
type Task struct {
	id      string
	typeTag string
	body    Body
	recycle RecycleHook

	flags     Flags
	scheduled bool
	hooks     []hookEntry
	hookSeq     int
	firingHooks bool

	ctx     *corectx.WorkerContext
	resumer ContextResumer
	onError ExceptionHandler

	lastErr   error
	result    any
	startedAt time.Time
}

// New constructs a Task. typeTag labels it in logs/metrics (e.g. the
// pool name it belongs to); body is required, recycle may be nil.
func New(typeTag string, body Body, recycle RecycleHook) *Task {
	return &Task{
		id:      uuid.NewString(),
		typeTag: typeTag,
		body:    body,
		recycle: recycle,
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// TypeTag returns the label this task was constructed with.
func (t *Task) TypeTag() string { return t.typeTag }

// Finished reports whether the task has run to completion (normally or
// via kill) since it was last bound.
func (t *Task) Finished() bool { return t.flags&FlagFinished != 0 }

// Suspended reports whether the task is currently parked mid-body.
func (t *Task) Suspended() bool {
	return t.ctx != nil && t.ctx.Phase() == corectx.PhaseSuspended
}

// LastError returns the error (if any) the most recent run surfaced.
func (t *Task) LastError() error { return t.lastErr }

// Result returns the value most recently stashed by SetResult. Used by
// Scheduler.AwaitResult to hand a value-type result back to an awaiter
// before recycle overwrites it.
func (t *Task) Result() any { return t.result }

// SetResult stashes a value-type result for AwaitResult to retrieve.
func (t *Task) SetResult(v any) { t.result = v }

// BindResumer installs the bookkeeping-aware resume path used by
// Resume and Kill when the task is already bound and suspended. Called
// by the scheduler at dispatch time.
func (t *Task) BindResumer(r ContextResumer) { t.resumer = r }

// SetExceptionHandler installs the callback the entry-point wrapper
// invokes when the body returns a non-nil error. The scheduler
// (re-)installs this every time it hands the task to a pool, with a
// callback that reads the scheduler's current handler when the error
// is reported.
func (t *Task) SetExceptionHandler(fn ExceptionHandler) { t.onError = fn }

// Scheduled reports whether the task has been handed to a dispatch
// pool (queued, running, or suspended) and hasn't finished yet. Used by
// Scheduler.Await to decide whether a task still needs scheduling, as
// distinct from Finished/Suspended which only describe a bound task.
func (t *Task) Scheduled() bool { return t.scheduled }

// MarkScheduled records that the task has just been handed to a
// dispatch pool. Called by the scheduler before RunOrEnqueue/Enqueue.
func (t *Task) MarkScheduled() { t.scheduled = true }

// ClearScheduled undoes MarkScheduled for a dispatch attempt that was
// actually rejected (task never bound, never ran).
func (t *Task) ClearScheduled() { t.scheduled = false }

// Bind implements corectx.Runnable. It's invoked once per dispatch by
// the context pool, immediately before the context's goroutine first
// runs this task.
func (t *Task) Bind(ctx *corectx.WorkerContext) func() {
	t.ctx = ctx
	t.flags &^= FlagFinished
	t.lastErr = nil
	t.startedAt = time.Now()
	metrics.RecordTaskStart(t.typeTag)
	return t.run
}

// Suspend yields the current context. Must be called from inside this
// task's own body. If Kill was already called (e.g. before the task was
// first bound), throws the kill signal instead of yielding; on resume,
// if Kill was called meanwhile, throws the kill signal.
func (t *Task) Suspend() {
	if t.flags&FlagToKill != 0 {
		panic(killSignal{})
	}
	t.ctx.Yield()
	if t.flags&FlagToKill != 0 {
		panic(killSignal{})
	}
}

// Resume re-enters this task's context. Precondition: the task is
// suspended and not finished.
func (t *Task) Resume() (terminated bool) {
	if t.resumer != nil {
		return t.resumer.ResumeBusy(t.ctx)
	}
	return t.ctx.Resume()
}

// Kill marks ToKill. If called from the task's own running body it
// throws the kill signal immediately (the single-threaded cooperative
// model guarantees that's the only possible caller while the context is
// Running); otherwise it resumes the suspended context so the kill
// signal fires synchronously inside the task, same as a normal Suspend
// wakeup.
func (t *Task) Kill() {
	t.flags |= FlagToKill
	if t.ctx == nil {
		return // not yet bound; observed on the first Suspend check once scheduled
	}
	switch t.ctx.Phase() {
	case corectx.PhaseRunning:
		panic(killSignal{})
	case corectx.PhaseSuspended:
		t.Resume()
	}
}

// OnTermination registers a hook to fire (LIFO) once the task finishes.
// Returns a handle for RemoveTermination. Panics if called while
// termination hooks are already firing, hook bodies must not register
// new hooks on the task they're running for.
func (t *Task) OnTermination(fn Hook) int {
	if t.firingHooks {
		panic(fmt.Errorf("coretask: OnTermination called on task %s while its termination hooks were firing", t.id))
	}
	t.hookSeq++
	id := t.hookSeq
	t.hooks = append(t.hooks, hookEntry{id: id, fn: fn})
	return id
}

// RemoveTermination unregisters a hook previously returned by
// OnTermination. No-op if the handle is unknown or already fired.
func (t *Task) RemoveTermination(handle int) {
	for i, h := range t.hooks {
		if h.id == handle {
			t.hooks = append(t.hooks[:i:i], t.hooks[i+1:]...)
			return
		}
	}
}

func (t *Task) fireHooks() {
	t.firingHooks = true
	for len(t.hooks) > 0 {
		n := len(t.hooks)
		h := t.hooks[n-1]
		t.hooks = t.hooks[:n-1]
		h.fn()
	}
	t.firingHooks = false
}

// run is the entry-point wrapper every dispatch invokes. It implements
// the six-step contract: run the body, interpret a kill signal versus a
// body error, mark Finished, fire termination hooks LIFO, then recycle.
func (t *Task) run() {
	killed, bodyErr := t.invokeBody()
	t.flags |= FlagFinished
	t.scheduled = false
	t.fireHooks()

	t.flags &^= FlagToKill
	if t.recycle != nil {
		t.recycle(t)
	}

	outcome := "completed"
	switch {
	case killed:
		outcome = "killed"
		metrics.RecordTaskKill(t.typeTag)
	case bodyErr != nil:
		outcome = "errored"
	}
	metrics.RecordTaskRecycle(t.typeTag, outcome, time.Since(t.startedAt).Seconds())

	if bodyErr != nil {
		logger.WithTask(t.id).Error().Err(bodyErr).Str("type", t.typeTag).Msg("task body returned an error")
		if t.onError != nil {
			t.onError(t, bodyErr)
		}
	}
}

func (t *Task) invokeBody() (killed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(killSignal); ok {
				killed = true
				err = nil
				return
			}
			err = fmt.Errorf("coretask: task body panicked: %v\n%s", r, debug.Stack())
		}
		t.lastErr = err
	}()
	err = t.body(t)
	return killed, err
}
