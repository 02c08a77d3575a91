package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_FIFORotation(t *testing.T) {
	r := NewRegistry(3)
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, r.TryEnqueue(newFakeViewer(id)))
	}

	var order []string
	for i := 0; i < 6; i++ {
		v, ok := r.PopFront()
		require.True(t, ok)
		order = append(order, v.ID())
		r.Requeue(v)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_Capacity(t *testing.T) {
	r := NewRegistry(2)
	assert.Equal(t, 2, r.Cap())
	assert.True(t, r.TryEnqueue(newFakeViewer("a")))
	assert.True(t, r.TryEnqueue(newFakeViewer("b")))
	assert.True(t, r.Full())
	assert.False(t, r.TryEnqueue(newFakeViewer("c")))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_InFlightHoldsCapacity(t *testing.T) {
	r := NewRegistry(2)
	require.True(t, r.TryEnqueue(newFakeViewer("a")))
	require.True(t, r.TryEnqueue(newFakeViewer("b")))

	v, ok := r.PopFront()
	require.True(t, ok)
	assert.Equal(t, 2, r.Len())
	assert.False(t, r.TryEnqueue(newFakeViewer("c")), "popped viewer still counts")

	r.Requeue(v)
	assert.Equal(t, 2, r.Len())

	_, ok = r.PopFront()
	require.True(t, ok)
	r.Discard()
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.TryEnqueue(newFakeViewer("c")))
}

func TestRegistry_PopEmpty(t *testing.T) {
	r := NewRegistry(1)
	_, ok := r.PopFront()
	assert.False(t, ok)
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry(4)
	for i := 0; i < 3; i++ {
		require.True(t, r.TryEnqueue(newFakeViewer(fmt.Sprint(i))))
	}
	// wrap the ring
	v, _ := r.PopFront()
	r.Requeue(v)

	got := r.Drain()
	require.Len(t, got, 3)
	assert.Equal(t, "1", got[0].ID())
	assert.Equal(t, "0", got[2].ID())
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentEnqueueNeverExceedsCapacity(t *testing.T) {
	const capacity = 10
	r := NewRegistry(capacity)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.TryEnqueue(newFakeViewer(fmt.Sprint(i))) {
				accepted.Add(1)
			}
		}(i)
	}

	// rotate concurrently with the enqueues
	for i := 0; i < 100; i++ {
		if v, ok := r.PopFront(); ok {
			r.Requeue(v)
		}
		assert.LessOrEqual(t, r.Len(), capacity)
	}
	wg.Wait()

	assert.Equal(t, int32(capacity), accepted.Load())
	assert.Equal(t, capacity, r.Len())
}
