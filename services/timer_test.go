package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock hands out tickers that fire only when the test says so.
type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time, 8)}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

func (c *fakeClock) latest() *fakeTicker {
	// Ticker registration happens on the timer's goroutine, so wait briefly
	// for it to land instead of panicking on an empty slice.
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.Lock()
		if n := len(c.tickers); n > 0 {
			ticker := c.tickers[n-1]
			c.mu.Unlock()
			return ticker
		}
		c.mu.Unlock()
		if time.Now().After(deadline) {
			panic("fakeClock: no ticker registered")
		}
		time.Sleep(time.Millisecond)
	}
}

func (c *fakeClock) tick() {
	c.latest().ch <- time.Now()
}

func waitForInt(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick callback")
		return 0
	}
}

func TestQuestionTimerCountsDownAndExpiresOnce(t *testing.T) {
	clock := &fakeClock{}
	ticks := make(chan int, 16)
	expiries := make(chan struct{}, 16)

	timer := NewQuestionTimer(clock,
		func(remaining int) { ticks <- remaining },
		func() { expiries <- struct{}{} },
	)

	require.NoError(t, timer.Start(3))
	assert.True(t, timer.Active())
	assert.Equal(t, 3, timer.TimeRemaining())
	assert.Equal(t, 0, timer.TimeSpent())

	clock.tick()
	assert.Equal(t, 2, waitForInt(t, ticks))
	clock.tick()
	assert.Equal(t, 1, waitForInt(t, ticks))
	assert.Equal(t, 2, timer.TimeSpent())

	clock.tick()
	assert.Equal(t, 0, waitForInt(t, ticks))

	select {
	case <-expiries:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry")
	}

	assert.False(t, timer.Active())
	assert.Equal(t, 0, timer.TimeRemaining())
	assert.Equal(t, 3, timer.TimeSpent())

	// A late tick on the finished run must do nothing.
	clock.tick()
	select {
	case remaining := <-ticks:
		t.Fatalf("unexpected tick after expiry: %d", remaining)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, expiries)
}

func TestQuestionTimerRestartCancelsPriorRun(t *testing.T) {
	clock := &fakeClock{}
	ticks := make(chan int, 16)
	expiries := make(chan struct{}, 16)

	timer := NewQuestionTimer(clock,
		func(remaining int) { ticks <- remaining },
		func() { expiries <- struct{}{} },
	)

	require.NoError(t, timer.Start(5))
	stale := clock.latest()
	clock.tick()
	assert.Equal(t, 4, waitForInt(t, ticks))

	require.NoError(t, timer.Start(3))
	assert.Equal(t, 3, timer.TimeRemaining())

	// A tick from the superseded run must not touch the new countdown.
	stale.ch <- time.Now()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, timer.TimeRemaining())

	clock.tick()
	assert.Equal(t, 2, waitForInt(t, ticks))
	assert.Empty(t, expiries)
}

func TestQuestionTimerStopIsIdempotent(t *testing.T) {
	clock := &fakeClock{}
	timer := NewQuestionTimer(clock, nil, nil)

	require.NoError(t, timer.Start(10))
	timer.Stop()
	timer.Stop()
	assert.False(t, timer.Active())

	// Remaining budget is frozen where the countdown stopped.
	assert.Equal(t, 10, timer.TimeRemaining())
}

func TestQuestionTimerRejectsNonPositiveDuration(t *testing.T) {
	timer := NewQuestionTimer(&fakeClock{}, nil, nil)
	assert.Error(t, timer.Start(0))
	assert.Error(t, timer.Start(-5))
	assert.False(t, timer.Active())
}
