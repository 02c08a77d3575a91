package stream

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectivePeriod(t *testing.T) {
	target := time.Second / 14

	tests := []struct {
		name    string
		viewers int
		want    time.Duration
	}{
		{"no viewers", 0, target},
		{"one viewer", 1, target},
		{"three viewers", 3, target / 3},
		{"full registry", 10, target / 10},
		{"negative count", -1, target},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectivePeriod(target, tt.viewers))
		})
	}

	// 14 fps shared by 3 viewers
	assert.InDelta(t, 23.8, float64(EffectivePeriod(target, 3))/float64(time.Millisecond), 0.05)
}

func newTestScheduler(capacity int) *Scheduler {
	return &Scheduler{
		reg:    NewRegistry(capacity),
		store:  NewFrameStore(),
		target: 10 * time.Millisecond,
		parker: NewParker(),
		stats:  &Stats{},
		log:    testLogger(),
	}
}

func publish(s *Scheduler, a *arena, data string) {
	sl := a.at(s.store.Generation() + 1)
	n := copy(sl.buf, data)
	s.store.Publish(sl, n)
}

func TestScheduler_StepRotates(t *testing.T) {
	s := newTestScheduler(10)
	a := newArena(2, 32)
	publish(s, a, "jpeg")

	viewers := []*fakeViewer{newFakeViewer("a"), newFakeViewer("b"), newFakeViewer("c")}
	for _, v := range viewers {
		require.True(t, s.reg.TryEnqueue(v))
	}

	for i := 0; i < 9; i++ {
		s.step()
	}

	// each viewer once every 3 steps
	for _, v := range viewers {
		assert.Equal(t, 3, v.frameCount(), v.ID())
	}
	assert.Equal(t, uint64(9), s.stats.Served.Load())
	assert.Equal(t, 3, s.reg.Len())
}

func TestScheduler_ServesLatestFrame(t *testing.T) {
	s := newTestScheduler(10)
	a := newArena(2, 32)
	v := newFakeViewer("a")
	require.True(t, s.reg.TryEnqueue(v))

	publish(s, a, "one")
	s.step()
	publish(s, a, "two")
	s.step()

	require.Equal(t, 2, v.frameCount())
	assert.Equal(t, "one", string(v.frames[0]))
	assert.Equal(t, "two", string(v.frames[1]))
	assert.False(t, a.at(1).leased())
	assert.False(t, a.at(2).leased())
}

func TestScheduler_DeadViewerRemovedWithinCapacitySteps(t *testing.T) {
	const capacity = 10
	s := newTestScheduler(capacity)
	a := newArena(2, 32)
	publish(s, a, "jpeg")

	var viewers []*fakeViewer
	for i := 0; i < capacity; i++ {
		v := newFakeViewer(fmt.Sprint(i))
		viewers = append(viewers, v)
		require.True(t, s.reg.TryEnqueue(v))
	}

	// serve a few so the dead one is somewhere mid-ring
	for i := 0; i < 4; i++ {
		s.step()
	}
	dead := viewers[2]
	dead.kill()

	for i := 0; i < capacity; i++ {
		s.step()
	}

	assert.Equal(t, capacity-1, s.reg.Len())
	assert.Equal(t, 1, dead.closeCount())
	assert.Equal(t, uint64(1), s.stats.Disconnected.Load())
	assert.True(t, s.reg.TryEnqueue(newFakeViewer("x")), "freed slot is reusable")
}

func TestScheduler_WriteErrorDrops(t *testing.T) {
	s := newTestScheduler(2)
	a := newArena(2, 32)
	publish(s, a, "jpeg")

	v := newFakeViewer("a")
	v.writeErr = errBrokenPipe
	require.True(t, s.reg.TryEnqueue(v))

	s.step()
	assert.Zero(t, s.reg.Len())
	assert.Equal(t, 1, v.closeCount())
	assert.False(t, a.at(1).leased(), "lease released after failed write")
}

func TestScheduler_ParksWhenEmptyAndClosesOnExit(t *testing.T) {
	s := newTestScheduler(4)
	a := newArena(2, 32)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// blocked on first frame, not parked
	time.Sleep(10 * time.Millisecond)
	assert.False(t, s.parker.Parked())

	publish(s, a, "jpeg")
	require.Eventually(t, s.parker.Parked, time.Second, time.Millisecond)

	v := newFakeViewer("a")
	require.True(t, s.reg.TryEnqueue(v))
	s.parker.Unpark()
	require.Eventually(t, func() bool { return v.frameCount() >= 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, v.closeCount())
	assert.Zero(t, s.reg.Len())
}
