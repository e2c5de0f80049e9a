package pool_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/pool"
)

func TestFailureLog_AddAndSnapshot(t *testing.T) {
	log := pool.NewFailureLog(10)
	task := coretask.New("worker", func(*coretask.Task) error { return nil }, nil)

	log.Add(task, errors.New("boom"))

	require.Equal(t, 1, log.Len())
	records := log.Snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, task.ID(), records[0].TaskID)
	assert.Equal(t, "worker", records[0].TypeTag)
	assert.Equal(t, "boom", records[0].Err)
}

func TestFailureLog_EvictsOldestPastCapacity(t *testing.T) {
	log := pool.NewFailureLog(2)
	for i := 0; i < 3; i++ {
		task := coretask.New("worker", func(*coretask.Task) error { return nil }, nil)
		log.Add(task, errors.New("boom"))
	}
	assert.Equal(t, 2, log.Len())
}

func TestFailureLog_HandlerWiresIntoScheduler(t *testing.T) {
	s := newTestScheduler(t, 2, 2)
	log := pool.NewFailureLog(10)
	s.SetExceptionHandler(log.Handler())

	failing := coretask.New("failing", func(*coretask.Task) error {
		return errors.New("boom")
	}, nil)
	require.NoError(t, s.Schedule(failing))

	assert.Equal(t, 1, log.Len())
}

func TestFailureLog_ClearEmptiesLog(t *testing.T) {
	log := pool.NewFailureLog(10)
	task := coretask.New("worker", func(*coretask.Task) error { return nil }, nil)
	log.Add(task, errors.New("boom"))
	log.Clear()
	assert.Zero(t, log.Len())
}
