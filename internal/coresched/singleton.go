package coresched

import (
	"sync"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/reactor"
)

// Design note (spec.md §9 "Global singleton scheduler"): the source
// exposes a process-wide scheduler. Here the ambient accessor is kept
// thin and optional, every Scheduler method still takes its operands
// explicitly (current task, target task, ...), so the singleton exists
// only for call sites (cmd/coroctl, package-level task pools) that
// would otherwise have to thread a *Scheduler through unrelated
// plumbing. Construct once at process start; replace only in tests,
// and only when the prior instance is quiescent.
var (
	singletonMu sync.Mutex
	singleton   *Scheduler
)

// Init constructs (or replaces) the package-level singleton Scheduler.
// Replacing an existing singleton is legal only when it is quiescent:
// no busy contexts and an empty admission queue, across the main pool
// and every specialized pool.
func Init(cfg config.SchedulerConfig, loop reactor.EventLoop, opts ...Option) (*Scheduler, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	if singleton != nil {
		st := singleton.Stats()
		if st.BusyWorkers != 0 || st.QueuedBusy != 0 {
			return nil, ErrNotQuiescent
		}
	}

	s, err := New(cfg, loop, opts...)
	if err != nil {
		return nil, err
	}
	singleton = s
	return s, nil
}

// Get returns the package-level singleton Scheduler, or
// ErrNotInitialized if Init hasn't been called yet.
func Get() (*Scheduler, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton == nil {
		return nil, ErrNotInitialized
	}
	return singleton, nil
}

// reset drops the singleton. Test-only (unexported): production code
// has no teardown path per the design note above.
func reset() {
	singletonMu.Lock()
	singleton = nil
	singletonMu.Unlock()
}
