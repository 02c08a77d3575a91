package stream

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_EnsureGrowsByAThird(t *testing.T) {
	s := &slot{}
	require.NoError(t, s.ensure(300, 1<<20))
	assert.Equal(t, 400, len(s.buf))
	assert.Equal(t, int64(400), s.size.Load())

	// fits, no reallocation
	before := &s.buf[0]
	require.NoError(t, s.ensure(400, 1<<20))
	assert.Same(t, before, &s.buf[0])
}

func TestSlot_CapacityMonotonic(t *testing.T) {
	s := &slot{}
	last, largest := 0, 0
	for _, size := range []int{10, 500, 20, 499, 1000, 1, 750, 1001, 0} {
		require.NoError(t, s.ensure(size, 1<<20))
		largest = max(largest, size)
		assert.GreaterOrEqual(t, len(s.buf), last, "shrank at size %d", size)
		assert.GreaterOrEqual(t, len(s.buf)*4, largest*5, "under 125%% of largest frame %d", largest)
		last = len(s.buf)
	}
}

func TestSlot_EnsureLimit(t *testing.T) {
	s := &slot{}
	require.NoError(t, s.ensure(78, 100))
	assert.Equal(t, 100, len(s.buf), "growth clamps to the limit")

	err := s.ensure(101, 100)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, 100, len(s.buf))
}

func TestSlot_EnsureNeedsHeadroomUnderLimit(t *testing.T) {
	const limit = 4 << 20
	s := &slot{buf: make([]byte, 64<<10)}

	err := s.ensure(limit*7/8, limit)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, 64<<10, len(s.buf), "failed growth keeps the old buffer")

	// largest frame that still fits with a quarter of headroom
	require.NoError(t, s.ensure(limit*4/5, limit))
	assert.Equal(t, limit, len(s.buf))
	assert.GreaterOrEqual(t, len(s.buf)*4, (limit*4/5)*5)
}

func TestFrameStore_EmptySnapshot(t *testing.T) {
	f := NewFrameStore()
	_, ok := f.ReadSnapshot()
	assert.False(t, ok)
	assert.Zero(t, f.Generation())
}

func TestFrameStore_PublishAndRead(t *testing.T) {
	f := NewFrameStore()
	a := newArena(2, 16)

	s := a.at(1)
	n := copy(s.buf, "hello world")
	gen := f.Publish(s, n)
	assert.Equal(t, uint64(1), gen)

	snap, ok := f.ReadSnapshot()
	require.True(t, ok)
	defer snap.Release()
	assert.Equal(t, []byte("hello world"), snap.Data)
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Equal(t, len(snap.Data), cap(snap.Data), "snapshot cannot be appended into the slot")
}

func TestFrameStore_SnapshotLeasesSlot(t *testing.T) {
	f := NewFrameStore()
	a := newArena(2, 16)
	s := a.at(1)
	f.Publish(s, copy(s.buf, "x"))

	snap1, _ := f.ReadSnapshot()
	snap2, _ := f.ReadSnapshot()
	assert.True(t, s.leased())

	snap1.Release()
	assert.True(t, s.leased())
	snap2.Release()
	assert.False(t, s.leased())
}

func TestFrameStore_WaitFirst(t *testing.T) {
	f := NewFrameStore()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.WaitFirst(ctx), context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() { done <- f.WaitFirst(context.Background()) }()

	a := newArena(2, 4)
	f.Publish(a.at(1), 1)
	f.Publish(a.at(2), 1)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitFirst not released by Publish")
	}
}

func TestFrameStore_ConcurrentPublishRead(t *testing.T) {
	f := NewFrameStore()
	a := newArena(2, 8)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			gen := f.Generation() + 1
			s := a.at(gen)
			if s.leased() {
				runtime.Gosched()
				continue
			}
			// length and content both encode the generation
			length := int(gen%8) + 1
			for i := 0; i < length; i++ {
				s.buf[i] = byte(length)
			}
			f.Publish(s, length)
		}
	}()

	for i := 0; i < 10000; i++ {
		snap, ok := f.ReadSnapshot()
		if !ok {
			continue
		}
		for _, b := range snap.Data {
			if int(b) != len(snap.Data) {
				t.Errorf("torn frame: length %d content %v", len(snap.Data), snap.Data)
				break
			}
		}
		snap.Release()
	}
	close(stop)
	<-done
}
