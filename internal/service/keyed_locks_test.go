package service

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubmissionLocksSerializeSameKey(t *testing.T) {
	locks := NewSubmissionLocks()

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(42, "c1")
			defer unlock()

			current := active.Add(1)
			for {
				seen := maxActive.Load()
				if current <= seen || maxActive.CompareAndSwap(seen, current) {
					break
				}
			}
			active.Add(-1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxActive.Load())
	require.Zero(t, locks.size())
}

func TestSubmissionLocksIndependentKeys(t *testing.T) {
	locks := NewSubmissionLocks()

	unlockFirst := locks.Lock(42, "c1")
	unlockSecond := locks.Lock(42, "c2")
	unlockThird := locks.Lock(43, "c1")
	require.Equal(t, 3, locks.size())

	unlockFirst()
	unlockSecond()
	unlockThird()
	require.Zero(t, locks.size())
}

func TestInFlightSet(t *testing.T) {
	set := newInFlightSet()

	require.True(t, set.tryStart(1))
	require.False(t, set.tryStart(1))
	require.True(t, set.tryStart(2))

	set.finish(1)
	require.True(t, set.tryStart(1))
}
