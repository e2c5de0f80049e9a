//go:build linux

package coretimer

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/maumercado/corosched/internal/reactor"
)

// fdClockSource is a single timerfd registered once with the reactor's
// EventLoop. Because fd readiness callbacks run inside EventLoop.Run on
// the scheduler's own goroutine, fire executes there directly, no
// cross-goroutine handoff is needed on Linux.
type fdClockSource struct {
	loop       reactor.EventLoop
	fd         int
	registered bool
	fire       func()
}

func newClockSource(loop reactor.EventLoop) (clockSource, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	c := &fdClockSource{loop: loop, fd: fd, registered: true}
	if err := loop.Register(fd, reactor.EventRead, c.onReadable); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return c, nil
}

func (c *fdClockSource) onReadable(reactor.IOEvent) {
	var buf [8]byte
	_, _ = unix.Read(c.fd, buf[:])
	if c.fire != nil {
		c.fire()
	}
}

func (c *fdClockSource) Arm(at time.Time, fire func()) {
	c.fire = fire
	if !c.registered {
		if err := c.loop.Register(c.fd, reactor.EventRead, c.onReadable); err != nil {
			return
		}
		c.registered = true
	}
	d := time.Until(at)
	if d <= 0 {
		d = time.Nanosecond
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	_ = unix.TimerfdSettime(c.fd, 0, &spec, nil)
}

// Stop disarms the timerfd and deregisters it, so an idle timer doesn't
// keep the reactor's Run alive; the fd stays open and the next Arm
// registers it again.
func (c *fdClockSource) Stop() {
	_ = unix.TimerfdSettime(c.fd, 0, &unix.ItimerSpec{}, nil)
	if c.registered {
		_ = c.loop.Deregister(c.fd)
		c.registered = false
	}
}
