package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var start = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func TestStepClock_FirstReadingIsStart(t *testing.T) {
	clock := NewStepClock(start, time.Second)
	assert.Equal(t, start, clock.Now())
}

func TestStepClock_Advances(t *testing.T) {
	clock := NewStepClock(start, time.Second)

	clock.Now()
	assert.Equal(t, start.Add(time.Second), clock.Now())
	assert.Equal(t, start.Add(2*time.Second), clock.Now())
}

func TestStepClock_ZeroStepFreezes(t *testing.T) {
	clock := NewStepClock(start, 0)

	for i := 0; i < 3; i++ {
		assert.Equal(t, start, clock.Now())
	}
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(start, time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset(start)
	assert.Equal(t, start, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(start, time.Nanosecond)
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				now := clock.Now()
				mu.Lock()
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine, "every reading should be unique")
}
