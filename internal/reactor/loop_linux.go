//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// epollLoop is an EventLoop backed by epoll, with an eventfd used to
// interrupt a blocking EpollWait from Shutdown. Grounded on
// joeycumines-go-utilpkg/eventloop's FastPoller (poller_linux.go) and
// wake-fd (wakeup_linux.go), simplified to a mutex-protected map since
// this reactor is driven by a single owner goroutine and isn't on the
// same throughput path as a general-purpose network poller.
type epollLoop struct {
	epfd   int
	wakeFd int

	mu        sync.Mutex
	callbacks map[int]IOCallback
	cycleEnd  []func()
	running   bool
	shutdown  bool
}

// New builds the Linux epoll-backed EventLoop.
func New() (EventLoop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}
	l := &epollLoop{epfd: epfd, wakeFd: wakeFd, callbacks: make(map[int]IOCallback)}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		_ = unix.Close(epfd)
		_ = unix.Close(wakeFd)
		return nil, err
	}
	return l, nil
}

func toEpoll(events IOEvent) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpoll(events uint32) IOEvent {
	var e IOEvent
	if events&unix.EPOLLIN != 0 {
		e |= EventRead
	}
	if events&unix.EPOLLOUT != 0 {
		e |= EventWrite
	}
	return e
}

func (l *epollLoop) Register(fd int, interest IOEvent, cb IOCallback) error {
	l.mu.Lock()
	l.callbacks[fd] = cb
	l.mu.Unlock()

	ev := unix.EpollEvent{Events: toEpoll(interest), Fd: int32(fd)}
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (l *epollLoop) Deregister(fd int) error {
	l.mu.Lock()
	delete(l.callbacks, fd)
	l.mu.Unlock()
	return unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (l *epollLoop) OnCycleEnd(cb func()) {
	l.mu.Lock()
	l.cycleEnd = append(l.cycleEnd, cb)
	l.mu.Unlock()
}

func (l *epollLoop) Run() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrAlreadyRunning
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	var events [128]unix.EpollEvent
	for {
		l.mu.Lock()
		shuttingDown := l.shutdown
		registered := len(l.callbacks)
		l.mu.Unlock()
		if shuttingDown {
			return nil
		}

		if registered == 0 {
			l.runCycleEnd()
			l.mu.Lock()
			nothingLeft := len(l.cycleEnd) == 0
			l.mu.Unlock()
			if nothingLeft {
				return nil
			}
			continue
		}

		n, err := unix.EpollWait(l.epfd, events[:], -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == l.wakeFd {
				l.drainWake()
				continue
			}
			l.mu.Lock()
			cb := l.callbacks[fd]
			l.mu.Unlock()
			if cb != nil {
				cb(fromEpoll(events[i].Events))
			}
		}

		l.runCycleEnd()
	}
}

func (l *epollLoop) runCycleEnd() {
	l.mu.Lock()
	pending := l.cycleEnd
	l.cycleEnd = nil
	l.mu.Unlock()
	for _, cb := range pending {
		cb()
	}
}

func (l *epollLoop) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(l.wakeFd, buf[:])
		if err != nil {
			break
		}
	}
}

func (l *epollLoop) Shutdown() {
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
	one := [8]byte{1}
	_, _ = unix.Write(l.wakeFd, one[:])
}
