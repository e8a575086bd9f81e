package types

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	clock := NewRealClock()

	before := clock.Now()
	clock.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, clock.Since(before), time.Millisecond)

	timer := clock.NewTimer(time.Millisecond)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, timer.Stop())

	ticker := clock.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("ticker did not tick")
	}
}

func TestClockFromContext(t *testing.T) {
	// Without a clock in the context, a real clock is returned.
	clock := ClockFromContext(context.Background())
	assert.NotNil(t, clock)

	custom := NewRealClock()
	ctx := WithClock(context.Background(), custom)
	assert.Equal(t, custom, ClockFromContext(ctx))
}
