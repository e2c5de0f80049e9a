package coresched

import (
	"errors"
	"fmt"
)

// ErrShuttingDown is returned by Schedule, ScheduleCaller and EventLoop
// (and so by Await when it has to schedule its target) once Shutdown
// has been called, per spec.md §7 ("shutdown is the universal escape
// hatch"). A caller that is itself a task is killed instead of (or in
// addition to) receiving this error; Queue drops the task silently and
// ProcessEvents kills its caller.
var ErrShuttingDown = errors.New("coresched: scheduler is shutting down")

// ErrNoCurrentTask is returned by Await/AwaitResult/AwaitOrTimeout when
// called with a nil current task, those operations are only valid
// from inside a running task's own body.
var ErrNoCurrentTask = errors.New("coresched: this operation requires a current task")

// ErrAwaitSelf is returned when a task attempts to await itself.
var ErrAwaitSelf = errors.New("coresched: a task cannot await itself")

// ErrNotInitialized is returned by Get when no singleton Scheduler has
// been installed via Init yet.
var ErrNotInitialized = errors.New("coresched: no scheduler has been initialized")

// ErrNotQuiescent is returned by Init when replacing an existing
// singleton that still has busy contexts or a non-empty admission
// queue. Per spec.md §6, replacement is legal only when quiescent.
var ErrNotQuiescent = errors.New("coresched: existing scheduler is not quiescent (busy contexts or queued tasks remain)")

// SanityError reports an invariant violation caught at EventLoop
// shutdown: spec.md §8 requires busy == 0 && queued == 0 once the loop
// has drained and every busy context has been killed.
type SanityError struct {
	Busy   int
	Queued int
}

func (e *SanityError) Error() string {
	return fmt.Sprintf("coresched: sanity check failed at shutdown: busy=%d queued=%d, want 0,0", e.Busy, e.Queued)
}
