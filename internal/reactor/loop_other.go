//go:build !linux

package reactor

import "sync"

// simpleLoop is the portable EventLoop fallback: it has no fd
// multiplexing backend (Register/Deregister always fail), but
// implements the cycle-end callback queue and blocking Run/Shutdown
// semantics other packages (notably coretimer's portable clock source)
// rely on. OnCycleEnd is safe to call from any goroutine, matching the
// Linux implementation, since a background time.Timer (rather than a
// timerfd) is what drives coretimer here.
type simpleLoop struct {
	mu       sync.Mutex
	cycleEnd []func()
	running  bool
	shutdown bool

	wake       chan struct{}
	shutdownCh chan struct{}
}

// New builds the portable EventLoop.
func New() (EventLoop, error) {
	return &simpleLoop{
		wake:       make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}, nil
}

func (l *simpleLoop) Register(int, IOEvent, IOCallback) error { return ErrUnsupported }
func (l *simpleLoop) Deregister(int) error                    { return ErrUnsupported }

func (l *simpleLoop) OnCycleEnd(cb func()) {
	l.mu.Lock()
	l.cycleEnd = append(l.cycleEnd, cb)
	l.mu.Unlock()
	l.poke()
}

func (l *simpleLoop) poke() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *simpleLoop) Run() error {
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

	for {
		l.mu.Lock()
		shuttingDown := l.shutdown
		hasWork := len(l.cycleEnd) > 0
		l.mu.Unlock()
		if shuttingDown {
			return nil
		}

		if !hasWork {
			select {
			case <-l.wake:
				continue
			case <-l.shutdownCh:
				return nil
			}
		}

		l.runCycleEnd()

		l.mu.Lock()
		empty := len(l.cycleEnd) == 0
		l.mu.Unlock()
		if empty {
			return nil
		}
	}
}

func (l *simpleLoop) runCycleEnd() {
	l.mu.Lock()
	pending := l.cycleEnd
	l.cycleEnd = nil
	l.mu.Unlock()
	for _, cb := range pending {
		cb()
	}
}

func (l *simpleLoop) Shutdown() {
	l.mu.Lock()
	if l.shutdown {
		l.mu.Unlock()
		return
	}
	l.shutdown = true
	l.mu.Unlock()
	close(l.shutdownCh)
}
