// Package corectx implements the stackful worker-context primitive (C1)
// and the fixed-capacity context pool (C2) described by the scheduling
// core's design.
//
// A WorkerContext emulates a stackful coroutine on top of a goroutine:
// the goroutine is parked on an unbuffered "resume" channel whenever it
// isn't actively running task code, and it hands control back through an
// unbuffered "yield" channel whenever it suspends or terminates. Because
// every Resume call blocks until the matching Yield (or termination)
// signal arrives, only one goroutine is ever executing bound work at a
// time, the same single-threaded cooperative guarantee the original
// stackful-coroutine design relies on, obtained here through channel
// rendezvous instead of a real fiber switch.
package corectx

import "errors"

// Phase mirrors the WorkerContext lifecycle from spec.md §3.
type Phase int32

const (
	PhaseFresh Phase = iota
	PhaseRunning
	PhaseSuspended
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "fresh"
	case PhaseRunning:
		return "running"
	case PhaseSuspended:
		return "suspended"
	case PhaseTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrNotTerminated is returned by Reset when the context isn't eligible
// for reuse yet.
var ErrNotTerminated = errors.New("corectx: reset is only legal when phase is terminated or fresh")

// Runnable is bound into a WorkerContext. Bind is called once, at the
// moment the context is about to run it, and must return the entry
// closure the context's goroutine will invoke on resume. Implementations
// typically stash ctx so the closure can later call ctx.Yield at its
// suspension points, and return only once the underlying task has
// finished.
type Runnable interface {
	Bind(ctx *WorkerContext) func()
}

// WorkerContext is a reusable, stackful execution context holding one
// Runnable at a time. See the package doc for the rendezvous design.
type WorkerContext struct {
	id        int
	stackSize int

	resumeCh chan struct{}
	yieldCh  chan struct{}
	closeCh  chan struct{}
	closed   bool

	phase  Phase
	entry  func()
	active Runnable
}

// New allocates a WorkerContext and starts its backing goroutine. The
// goroutine parks immediately, waiting for the first Resume.
func New(id, stackSize int) *WorkerContext {
	c := &WorkerContext{
		id:        id,
		stackSize: stackSize,
		resumeCh:  make(chan struct{}),
		yieldCh:   make(chan struct{}),
		closeCh:   make(chan struct{}),
		phase:     PhaseFresh,
	}
	go c.loop()
	return c
}

func (c *WorkerContext) loop() {
	for {
		select {
		case <-c.resumeCh:
		case <-c.closeCh:
			return
		}
		entry := c.entry
		c.phase = PhaseRunning
		entry()
		c.phase = PhaseTerminated
		c.yieldCh <- struct{}{}
	}
}

// ID returns the context's pool-assigned identifier.
func (c *WorkerContext) ID() int { return c.id }

// StackSize returns the configured stack-size hint. Go goroutine stacks
// grow and shrink under runtime management; this value is retained for
// configuration/metrics parity with spec.md §3, not enforced.
func (c *WorkerContext) StackSize() int { return c.stackSize }

// Phase returns the context's current lifecycle phase.
func (c *WorkerContext) Phase() Phase { return c.phase }

// Active returns the Runnable currently (or most recently) bound to this
// context, or nil if it has never been bound.
func (c *WorkerContext) Active() Runnable { return c.active }

// Reset binds a new Runnable for the next run. Legal only when phase is
// Terminated (reuse) or Fresh (first use).
func (c *WorkerContext) Reset(active Runnable) error {
	if c.phase != PhaseTerminated && c.phase != PhaseFresh {
		return ErrNotTerminated
	}
	c.active = active
	c.entry = active.Bind(c)
	c.phase = PhaseFresh
	return nil
}

// Resume transfers control into the bound goroutine. It blocks until the
// goroutine suspends (via Yield, called from inside entry) or the entry
// function returns entirely. Returns true if the context terminated.
func (c *WorkerContext) Resume() (terminated bool) {
	c.resumeCh <- struct{}{}
	<-c.yieldCh
	return c.phase == PhaseTerminated
}

// Yield hands control back to whoever called Resume, and blocks until
// resumed again. Must be called only from the goroutine currently
// running this context's entry function.
func (c *WorkerContext) Yield() {
	c.phase = PhaseSuspended
	c.yieldCh <- struct{}{}
	<-c.resumeCh
	c.phase = PhaseRunning
}

// Close stops the backing goroutine. Only safe to call once the context
// is not bound to a live task (phase is Fresh or Terminated).
func (c *WorkerContext) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.closeCh)
}
