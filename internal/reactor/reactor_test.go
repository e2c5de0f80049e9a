package reactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLoop_RunReturnsWhenIdle(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return for an idle loop")
	}
}

func TestEventLoop_CycleEndCallbacksFireInOrder(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var order []int
	loop.OnCycleEnd(func() { order = append(order, 1) })
	loop.OnCycleEnd(func() { order = append(order, 2) })
	loop.OnCycleEnd(func() { order = append(order, 3) })

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after draining cycle-end callbacks")
	}

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEventLoop_CycleEndCanReArmItself(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	count := 0
	var again func()
	again = func() {
		count++
		if count < 3 {
			loop.OnCycleEnd(again)
		}
	}
	loop.OnCycleEnd(again)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the re-arming chain finished")
	}

	assert.Equal(t, 3, count)
}

func TestEventLoop_ShutdownStopsARunningLoop(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var keepGoing func()
	keepGoing = func() {
		loop.OnCycleEnd(keepGoing)
	}
	loop.OnCycleEnd(keepGoing)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()

	time.Sleep(20 * time.Millisecond)
	loop.Shutdown()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestEventLoop_RunRejectsReentrantCall(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var keepGoing func()
	keepGoing = func() {
		loop.OnCycleEnd(keepGoing)
	}
	loop.OnCycleEnd(keepGoing)

	done := make(chan error, 1)
	go func() { done <- loop.Run() }()
	time.Sleep(20 * time.Millisecond)

	err = loop.Run()
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	loop.Shutdown()
	<-done
}
