//go:build !linux

package coretimer

import (
	"sync"
	"time"

	"github.com/maumercado/corosched/internal/reactor"
)

// goClockSource is the portable fallback: a plain time.Timer. Its fire
// callback runs on a runtime-managed goroutine, so it hands off to the
// scheduler's own goroutine through reactor.EventLoop.OnCycleEnd rather
// than touching Timer state directly.
type goClockSource struct {
	loop reactor.EventLoop

	mu    sync.Mutex
	timer *time.Timer
	fire  func()
}

func newClockSource(loop reactor.EventLoop) (clockSource, error) {
	return &goClockSource{loop: loop}, nil
}

func (c *goClockSource) Arm(at time.Time, fire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fire = fire
	if c.timer != nil {
		c.timer.Stop()
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		fire := c.fire
		c.mu.Unlock()
		if fire != nil {
			c.loop.OnCycleEnd(fire)
		}
	})
}

func (c *goClockSource) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
