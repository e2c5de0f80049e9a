package coresched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maumercado/corosched/internal/config"
	"github.com/maumercado/corosched/internal/coretask"
	"github.com/maumercado/corosched/internal/reactor"
)

func testCfg() config.SchedulerConfig {
	return config.SchedulerConfig{WorkerStackSize: 4096, WorkerLimit: 2, QueueLimit: 4}
}

func TestGet_BeforeInitReturnsErrNotInitialized(t *testing.T) {
	reset()
	_, err := Get()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestInit_ThenGetReturnsSameInstance(t *testing.T) {
	reset()
	t.Cleanup(reset)

	loop, err := reactor.New()
	require.NoError(t, err)

	built, err := Init(testCfg(), loop)
	require.NoError(t, err)

	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, built, got)
}

func TestInit_ReplacingQuiescentSchedulerSucceeds(t *testing.T) {
	reset()
	t.Cleanup(reset)

	loop1, err := reactor.New()
	require.NoError(t, err)
	_, err = Init(testCfg(), loop1)
	require.NoError(t, err)

	loop2, err := reactor.New()
	require.NoError(t, err)
	second, err := Init(testCfg(), loop2)
	require.NoError(t, err)

	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestInit_ReplacingBusySchedulerFailsWithErrNotQuiescent(t *testing.T) {
	reset()
	t.Cleanup(reset)

	loop, err := reactor.New()
	require.NoError(t, err)
	s, err := Init(testCfg(), loop)
	require.NoError(t, err)

	blocked := coretask.New("blocked", func(tk *coretask.Task) error {
		tk.Suspend()
		return nil
	}, nil)
	done := make(chan struct{})
	blocked.OnTermination(func() { close(done) })
	require.NoError(t, s.Schedule(blocked))

	loop2, err := reactor.New()
	require.NoError(t, err)
	_, err = Init(testCfg(), loop2)
	assert.ErrorIs(t, err, ErrNotQuiescent)

	blocked.Kill()
	<-done
}
