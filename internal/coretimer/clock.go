package coretimer

import "time"

// clockSource arms a one-shot wake-up at `at`. Arm is idempotent, a
// later call before a pending wake-up fires reprograms it instead of
// stacking. fire must eventually run on the scheduler's own goroutine:
// the Linux timerfd-backed source satisfies this because fd readiness
// is already dispatched there by the reactor; the portable fallback
// hands off through reactor.EventLoop.OnCycleEnd from its background
// time.Timer goroutine.
type clockSource interface {
	Arm(at time.Time, fire func())
	Stop()
}
