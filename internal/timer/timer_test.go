// internal/timer/timer_test.go
package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceFiresOnce(t *testing.T) {
	svc := NewService()
	fired := make(chan struct{})
	svc.Schedule(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
}

func TestServiceStopCancels(t *testing.T) {
	svc := NewService()
	fired := make(chan struct{}, 1)
	h := svc.Schedule(50*time.Millisecond, func() { fired <- struct{}{} })

	require.True(t, h.Stop())
	select {
	case <-fired:
		t.Fatal("stopped callback still fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestManualStepsDeterministically(t *testing.T) {
	m := NewManual()
	var order []int
	m.Schedule(time.Second, func() { order = append(order, 1) })
	h := m.Schedule(time.Second, func() { order = append(order, 2) })
	m.Schedule(time.Second, func() { order = append(order, 3) })

	require.True(t, h.Stop())
	assert.Equal(t, 2, m.Pending())

	require.True(t, m.FireNext())
	require.True(t, m.FireNext())
	assert.False(t, m.FireNext())
	assert.Equal(t, []int{1, 3}, order)
}

func TestManualStopRacesFireAll(t *testing.T) {
	m := NewManual()

	const timers = 64
	var fired int64
	handles := make([]Handle, timers)
	for i := 0; i < timers; i++ {
		handles[i] = m.Schedule(time.Second, func() { atomic.AddInt64(&fired, 1) })
	}

	var stopped int64
	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			if h.Stop() {
				atomic.AddInt64(&stopped, 1)
			}
		}(h)
	}
	m.FireAll()
	wg.Wait()

	// Every timer either fired or was stopped, never both or neither.
	assert.Equal(t, int64(timers), fired+stopped)
	assert.Zero(t, m.Pending())
}

func TestManualFireAllRunsNestedSchedules(t *testing.T) {
	m := NewManual()
	var ran int
	m.Schedule(time.Second, func() {
		ran++
		m.Schedule(time.Second, func() { ran++ })
	})

	assert.Equal(t, 2, m.FireAll())
	assert.Equal(t, 2, ran)
	assert.Zero(t, m.Pending())
}
