package coretask

import "github.com/maumercado/corosched/internal/corectx"

// ContextResumer is the bookkeeping-aware resume path a Task uses to
// re-enter a context it's already bound to (as opposed to first
// dispatch, which goes through corectx.Pool.RunOrEnqueue/DrainQueued).
// The scheduler's ContextPool implements this; Task only depends on
// this narrow interface to avoid importing the scheduler package.
type ContextResumer interface {
	ResumeBusy(ctx *corectx.WorkerContext) (terminated bool)
}
