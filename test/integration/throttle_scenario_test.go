//go:build integration
// +build integration

package integration

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/coresched"
	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/logger"
	"github.com/maumercado/corosched/internal/pool"
	"github.com/maumercado/corosched/internal/reactor"
)

func init() {
	logger.Init("error", false)
}

// tickItem simulates a small amount of work so busy instances overlap
// instead of completing synchronously the instant they're started.
type tickItem struct {
	task *coretask.Task
}

func newTickItem(s *coresched.Scheduler, completed *atomic.Int64) *tickItem {
	item := &tickItem{}
	item.task = coretask.New("tick", func(tk *coretask.Task) error {
		if err := s.Wait(tk, 5*time.Millisecond); err != nil {
			return err
		}
		completed.Add(1)
		return nil
	}, nil)
	return item
}

func (t *tickItem) Instance() *coretask.Task { return t.task }
func (t *tickItem) CopyArguments(int)        {}

type recordingUpstream struct {
	suspends atomic.Int64
	resumes  atomic.Int64
}

func (r *recordingUpstream) Suspend() { r.suspends.Add(1) }
func (r *recordingUpstream) Resume()  { r.resumes.Add(1) }

// TestThrottling_SuspendsAndResumesAcrossAThousandTasks implements
// spec.md §8 seed scenario 5: a ThrottledTaskPool(size=10, suspend_at=10,
// resume_at=0) fed by a timer producing one task per tick, run until
// 1000 tasks complete. The upstream Suspendable must be told to suspend
// whenever busy reaches 10 and resume whenever it drops back to 0; total
// tasks actually started must land in [1000, 1000+queue_limit].
func TestThrottling_SuspendsAndResumesAcrossAThousandTasks(t *testing.T) {
	const (
		poolSize   = 10
		queueLimit = 10
		target     = 1000
	)

	loop, err := reactor.New()
	require.NoError(t, err)
	s, err := coresched.New(config.SchedulerConfig{
		WorkerStackSize: 4096,
		WorkerLimit:     poolSize,
		QueueLimit:      queueLimit,
	}, loop)
	require.NoError(t, err)

	var completed atomic.Int64
	var started atomic.Int64
	upstream := &recordingUpstream{}

	tp, err := pool.NewThrottled[int, *tickItem]("throttle-scenario", s, poolSize, func() *tickItem {
		return newTickItem(s, &completed)
	}, upstream, poolSize, 0)
	require.NoError(t, err)

	producer := coretask.New("producer", func(tk *coretask.Task) error {
		for completed.Load() < target {
			if tp.Start(0) {
				started.Add(1)
			}
			if err := s.Wait(tk, time.Millisecond); err != nil {
				return err
			}
		}
		s.Shutdown(tk)
		return nil
	}, nil)
	require.NoError(t, s.Schedule(producer))

	done := make(chan error, 1)
	go func() { done <- s.EventLoop() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("throttling scenario did not complete in time")
	}

	assert.GreaterOrEqual(t, completed.Load(), int64(target))
	assert.GreaterOrEqual(t, started.Load(), int64(target))
	assert.LessOrEqual(t, started.Load(), int64(target+queueLimit))
	assert.Greater(t, upstream.suspends.Load(), int64(0), "busy should have reached suspend_at at least once")
	assert.Greater(t, upstream.resumes.Load(), int64(0), "busy should have drained to resume_at at least once")
}
