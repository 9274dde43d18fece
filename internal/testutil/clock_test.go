package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_Advances(t *testing.T) {
	c := NewStepClock(Epoch, time.Second)

	assert.Equal(t, Epoch, c.Now())
	assert.Equal(t, Epoch.Add(time.Second), c.Now())
	assert.Equal(t, Epoch.Add(2*time.Second), c.Peek())
}

func TestStepClock_Frozen(t *testing.T) {
	c := NewFrozenClock(Epoch)
	assert.Equal(t, c.Now(), c.Now())
}

func TestStepClock_SetAndReset(t *testing.T) {
	c := NewStepClock(Epoch, time.Minute)
	later := Epoch.Add(24 * time.Hour)

	c.Set(later)
	assert.Equal(t, later, c.Now())

	c.Reset()
	assert.Equal(t, Epoch, c.Now())
}

func TestStepClock_ConcurrentReadsAreDistinct(t *testing.T) {
	c := NewStepClock(Epoch, time.Nanosecond)
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := c.Now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 100)
}
