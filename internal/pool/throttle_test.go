package pool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/coresched"
	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/pool"
	"github.com/maumercado/corosched/internal/reactor"
)

func newTestSchedulerWithSpecialized(t *testing.T) *coresched.Scheduler {
	t.Helper()
	loop, err := reactor.New()
	require.NoError(t, err)
	cfg := config.SchedulerConfig{
		WorkerStackSize: 4096,
		WorkerLimit:     2,
		QueueLimit:      2,
		SpecializedPools: []config.PoolSpec{
			{TaskTypeTag: "heavy", StackSize: 4096},
		},
	}
	s, err := coresched.New(cfg, loop)
	require.NoError(t, err)
	return s
}

type recordingSuspendable struct {
	suspends int
	resumes  int
}

func (r *recordingSuspendable) Suspend() { r.suspends++ }
func (r *recordingSuspendable) Resume()  { r.resumes++ }

func TestThrottledTaskPool_SuspendsAtWatermarkAndResumesAtFloor(t *testing.T) {
	s := newTestScheduler(t, 4, 4)
	up := &recordingSuspendable{}

	var built []*suspendingItem
	p, err := pool.NewThrottled[int, *suspendingItem]("throttled", s, 2, func() *suspendingItem {
		item := newSuspendingItem()
		built = append(built, item)
		return item
	}, up, 2, 0)
	require.NoError(t, err)

	require.True(t, p.Start(1))
	assert.Zero(t, up.suspends, "suspend_at=2, only one instance busy so far")

	require.True(t, p.Start(2))
	assert.Equal(t, 1, up.suspends, "busy reached suspend_at")

	// Resume both busy instances; the throttler's resume check runs via
	// a cycle-end callback, so it only fires once the event loop drains.
	for _, item := range built {
		item.Instance().Resume()
	}
	require.NoError(t, waitDone(t, s, time.Second))

	assert.Equal(t, 1, up.resumes, "busy dropped to resume_at via the deferred cycle-end check")
}

func TestNewQueueUsageThrottler_RejectsInvalidWatermarks(t *testing.T) {
	s := newTestScheduler(t, 2, 2)
	up := &recordingSuspendable{}
	_, err := pool.NewQueueUsageThrottler("x", s, func() int { return 0 }, up, 1, 1)
	assert.Error(t, err, "suspend_at must exceed resume_at")
}

func TestSpecializedPoolThrottler_MeasuresNamedPool(t *testing.T) {
	s := newTestSchedulerWithSpecialized(t)
	up := &recordingSuspendable{}

	throttler, err := pool.NewSpecializedPoolThrottler("special", s, "heavy", up, 1, 0)
	require.NoError(t, err)

	blocker := coretask.New("heavy", func(tk *coretask.Task) error {
		tk.Suspend()
		return nil
	}, nil)
	require.NoError(t, s.Schedule(blocker))

	throttler.OnStart()
	assert.Equal(t, 1, up.suspends, "the named specialized pool's busy count crossed suspend_at")

	blocker.Kill()
	throttler.OnTerminate()
	assert.Equal(t, 1, up.resumes)
}
