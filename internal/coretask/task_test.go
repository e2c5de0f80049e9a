package coretask

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/corosched/internal/corectx"
)

func newDispatchedTask(t *testing.T, pool *corectx.Pool, body Body, recycle RecycleHook) *Task {
	t.Helper()
	task := New("test", body, recycle)
	task.BindResumer(pool)
	_, err := pool.RunOrEnqueue(task)
	require.NoError(t, err)
	return task
}

func TestTask_RunsBodyToCompletion(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	ran := false
	task := newDispatchedTask(t, pool, func(*Task) error {
		ran = true
		return nil
	}, nil)

	assert.True(t, ran)
	assert.True(t, task.Finished())
	assert.False(t, task.Suspended())
	assert.NoError(t, task.LastError())
}

func TestTask_SuspendAndResume(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	var steps []string
	task := newDispatchedTask(t, pool, func(tk *Task) error {
		steps = append(steps, "a")
		tk.Suspend()
		steps = append(steps, "b")
		return nil
	}, nil)

	assert.Equal(t, []string{"a"}, steps)
	assert.True(t, task.Suspended())
	assert.False(t, task.Finished())

	terminated := task.Resume()
	assert.True(t, terminated)
	assert.Equal(t, []string{"a", "b"}, steps)
	assert.True(t, task.Finished())
}

func TestTask_BodyErrorIsSurfacedNotPanicked(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	wantErr := errors.New("boom")
	task := newDispatchedTask(t, pool, func(*Task) error {
		return wantErr
	}, nil)

	assert.True(t, task.Finished())
	assert.ErrorIs(t, task.LastError(), wantErr)
}

func TestTask_KillWhileSuspendedFiresKillSignal(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	observedKill := false
	task := newDispatchedTask(t, pool, func(tk *Task) error {
		defer func() {
			if r := recover(); r != nil {
				observedKill = true
				panic(r) // must still propagate past user recover per contract
			}
		}()
		tk.Suspend()
		return nil
	}, nil)

	assert.True(t, task.Suspended())

	task.Kill()

	assert.True(t, observedKill)
	assert.True(t, task.Finished())
	assert.NoError(t, task.LastError())
}

func TestTask_KillFromOwnBodyThrowsImmediately(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	reachedAfterKill := false
	task := newDispatchedTask(t, pool, func(tk *Task) error {
		tk.Kill()
		reachedAfterKill = true
		return nil
	}, nil)

	assert.False(t, reachedAfterKill)
	assert.True(t, task.Finished())
}

func TestTask_TerminationHooksFireInLIFOOrder(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	var order []int
	task := New("test", func(*Task) error { return nil }, nil)
	task.OnTermination(func() { order = append(order, 1) })
	task.OnTermination(func() { order = append(order, 2) })
	task.OnTermination(func() { order = append(order, 3) })
	task.BindResumer(pool)

	_, err := pool.RunOrEnqueue(task)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestTask_OnTerminationDuringFiringPanics(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	task := New("test", func(*Task) error { return nil }, nil)
	task.OnTermination(func() {
		assert.Panics(t, func() {
			task.OnTermination(func() {})
		})
	})
	task.BindResumer(pool)

	_, err := pool.RunOrEnqueue(task)
	require.NoError(t, err)
}

func TestTask_RecycleInvokedExactlyOnce(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	recycleCount := 0
	task := newDispatchedTask(t, pool, func(*Task) error { return nil }, func(*Task) {
		recycleCount++
	})

	assert.Equal(t, 1, recycleCount)
	_ = task
}

func TestTask_ResultRoundTrip(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	task := newDispatchedTask(t, pool, func(tk *Task) error {
		tk.SetResult(42)
		return nil
	}, nil)

	assert.Equal(t, 42, task.Result())
}

func TestTask_RemoveTermination(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	fired := false
	task := New("test", func(*Task) error { return nil }, nil)
	handle := task.OnTermination(func() { fired = true })
	task.RemoveTermination(handle)
	task.BindResumer(pool)

	_, err := pool.RunOrEnqueue(task)
	require.NoError(t, err)

	assert.False(t, fired)
}

func TestTask_BodyPanicIsCapturedAsError(t *testing.T) {
	pool := corectx.New("t", 2, 2, 4096, nil)
	defer pool.Close()

	task := newDispatchedTask(t, pool, func(*Task) error {
		panic("unexpected")
	}, nil)

	assert.True(t, task.Finished())
	require.Error(t, task.LastError())
}
