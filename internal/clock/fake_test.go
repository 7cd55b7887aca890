package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresDueTimersInOrder(t *testing.T) {
	c := NewFake(epoch)
	var order []int
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	c.AfterFunc(time.Second, func() { order = append(order, 1) })
	c.AfterFunc(5*time.Second, func() { order = append(order, 5) })

	c.Advance(2 * time.Second)
	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 1, c.PendingCount())
	assert.Equal(t, epoch.Add(2*time.Second), c.Now())
}

func TestFake_StopPreventsCall(t *testing.T) {
	c := NewFake(epoch)
	var fired atomic.Bool
	timer := c.AfterFunc(time.Second, func() { fired.Store(true) })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)
	assert.False(t, fired.Load())
	assert.Zero(t, c.PendingCount())
}

func TestFake_CallbackCanReschedule(t *testing.T) {
	c := NewFake(epoch)
	var ticks int
	var tick func()
	tick = func() {
		ticks++
		if ticks < 3 {
			c.AfterFunc(time.Second, tick)
		}
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(time.Second)
	assert.Equal(t, 1, ticks)
	c.Advance(time.Second)
	c.Advance(time.Second)
	assert.Equal(t, 3, ticks)
	assert.Zero(t, c.PendingCount())
}

func TestFake_WaitForTimers(t *testing.T) {
	c := NewFake(epoch)
	go c.AfterFunc(time.Second, func() {})

	done := make(chan struct{})
	go func() {
		c.WaitForTimers(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timer registration")
	}
}
