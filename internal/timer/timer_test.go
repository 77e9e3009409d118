package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatePeriod(t *testing.T) {
	tests := []struct {
		rate Rate
		hz   int
	}{
		{Rate16Hz, 16},
		{Rate1024Hz, 1024},
		{Rate256Hz, 256},
		{Rate64Hz, 64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.hz, tt.rate.Hz(), "rate %d", tt.rate)
		p, err := tt.rate.Period()
		require.NoError(t, err)
		assert.Equal(t, time.Second/time.Duration(tt.hz), p)
	}
}

func TestRateInvalid(t *testing.T) {
	_, err := Rate(4).Period()
	assert.ErrorIs(t, err, ErrInvalidRate)
	assert.Equal(t, "Rate(4)", Rate(4).String())
	assert.Equal(t, "256Hz", DefaultRate.String())
}

func TestManualRequiresCallback(t *testing.T) {
	m := NewManual()
	assert.ErrorIs(t, m.Engage(DefaultRate), ErrNoCallback)
	assert.False(t, m.Engaged())
}

func TestManualFire(t *testing.T) {
	m := NewManual()
	var n int
	m.RegisterCallback(func() { n++ })

	assert.Equal(t, 0, m.Fire(3), "disengaged timer must not tick")

	require.NoError(t, m.Engage(Rate64Hz))
	assert.Equal(t, Rate64Hz, m.Rate())
	assert.Equal(t, 3, m.Fire(3))
	assert.Equal(t, 3, n)

	m.Disengage()
	assert.Equal(t, 0, m.Fire(3))
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, m.Engages())
}

func TestManualFireStopsWhenCallbackDisengages(t *testing.T) {
	m := NewManual()
	var n int
	m.RegisterCallback(func() {
		n++
		if n == 2 {
			m.Disengage()
		}
	})
	require.NoError(t, m.Engage(DefaultRate))

	assert.Equal(t, 2, m.Fire(10))
}

func TestManualWaitEngaged(t *testing.T) {
	m := NewManual()
	m.RegisterCallback(func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.WaitEngaged(ctx), context.DeadlineExceeded)

	go func() { _ = m.Engage(DefaultRate) }()
	require.NoError(t, m.WaitEngaged(context.Background()))
	assert.True(t, m.Engaged())
}

func TestTickerDelivers(t *testing.T) {
	tk := NewTicker(0)
	var n atomic.Int32
	tk.RegisterCallback(func() { n.Add(1) })

	require.NoError(t, tk.Engage(Rate1024Hz))
	assert.Eventually(t, func() bool { return n.Load() >= 5 }, time.Second, time.Millisecond)

	tk.Disengage()
	stopped := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, n.Load(), "no ticks after Disengage returns")
}

func TestTickerRequiresCallback(t *testing.T) {
	tk := NewTicker(1)
	assert.ErrorIs(t, tk.Engage(DefaultRate), ErrNoCallback)
	assert.ErrorIs(t, tk.Engage(Rate(9)), ErrInvalidRate)
	tk.Disengage()
}

func TestTickerNestsUpToBound(t *testing.T) {
	const nesting = 2
	tk := NewTicker(nesting)

	release := make(chan struct{})
	var calls, inflight, maxInflight atomic.Int32
	tk.RegisterCallback(func() {
		cur := inflight.Add(1)
		for {
			m := maxInflight.Load()
			if cur <= m || maxInflight.CompareAndSwap(m, cur) {
				break
			}
		}
		if calls.Add(1) == 1 {
			<-release
		}
		inflight.Add(-1)
	})

	require.NoError(t, tk.Engage(Rate1024Hz))
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond,
		"ticks must keep arriving while the first callback is blocked")
	close(release)
	tk.Disengage()

	assert.Equal(t, int32(nesting), maxInflight.Load())
	assert.Equal(t, int32(0), inflight.Load())
}
