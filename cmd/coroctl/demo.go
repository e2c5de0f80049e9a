package main

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/maumercado/corosched/internal/coretask"
)

// pingItem is the stand-in "task subclass" this demo pools: its
// argument is just a sequence number, and its body does no real work
// beyond recording completion.
type pingItem struct {
	task      *coretask.Task
	n         int
	completed *atomic.Int64
}

func newPingItem(completed *atomic.Int64) *pingItem {
	item := &pingItem{completed: completed}
	item.task = coretask.New("ping", func(*coretask.Task) error {
		item.completed.Add(1)
		return nil
	}, nil)
	return item
}

func (p *pingItem) Instance() *coretask.Task { return p.task }
func (p *pingItem) CopyArguments(n int)      { p.n = n }

// Deserialize implements pool.Restorable[int]: it's the alternate
// initialization path poolstore.RestoreAll drives at startup, loading
// back the decimal-encoded sequence number a prior process persisted
// via Store.Save before exiting.
func (p *pingItem) Deserialize(data []byte) error {
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	p.n = n
	return nil
}

// logSuspendable is a Suspendable that just logs the pause/resume edges
// a Throttler drives it through, a stand-in for an upstream producer
// that would otherwise need backpressure (a consumer connection, a
// polling goroutine, ...).
type logSuspendable struct {
	log zerolog.Logger
}

func (l *logSuspendable) Suspend() { l.log.Warn().Msg("throttle: suspending upstream producer") }
func (l *logSuspendable) Resume()  { l.log.Info().Msg("throttle: resuming upstream producer") }
