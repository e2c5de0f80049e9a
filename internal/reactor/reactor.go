// Package reactor provides the EventLoop the scheduler drives: fd
// multiplexing plus an ordered, one-shot "cycle-end" callback queue.
// Grounded on joeycumines-go-utilpkg/eventloop's FastPoller/wakeup
// design (epoll + eventfd on Linux); internal/coretimer is the only
// consumer that registers a real fd (a timerfd) with it.
package reactor

import "errors"

// IOEvent is a bitmask of readiness conditions a registered fd is
// interested in.
type IOEvent uint32

const (
	EventRead IOEvent = 1 << iota
	EventWrite
)

// IOCallback is invoked with the events that became ready on a
// registered fd.
type IOCallback func(events IOEvent)

// ErrAlreadyRunning is returned by Run if the loop is already inside a
// call to Run on another goroutine. Run must not be re-entrant.
var ErrAlreadyRunning = errors.New("reactor: Run is already in progress")

// ErrUnsupported is returned by Register/Deregister on platforms with
// no fd-multiplexing backend.
var ErrUnsupported = errors.New("reactor: fd registration is not supported on this platform")

// EventLoop is the scheduler's consumed event loop contract (spec.md §6).
type EventLoop interface {
	// Register begins monitoring fd for the given interest, invoking cb
	// from within Run whenever it becomes ready.
	Register(fd int, interest IOEvent, cb IOCallback) error
	// Deregister stops monitoring fd.
	Deregister(fd int) error
	// OnCycleEnd queues a one-shot callback fired once after the next
	// fd-batch drains, in registration order relative to other pending
	// cycle-end callbacks.
	OnCycleEnd(cb func())
	// Run blocks, processing fd readiness and cycle-end callbacks,
	// until no fds are registered and no cycle-end callbacks remain, or
	// Shutdown is called. Must not be called concurrently with itself.
	Run() error
	// Shutdown causes the current Run to return and future Run calls to
	// return immediately without blocking.
	Shutdown()
}
